package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	cyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "risk_engine_cycles_total",
		Help: "Total number of management cycles executed",
	})

	cycleErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "risk_engine_cycle_errors_total",
		Help: "Total number of management cycles aborted by errors",
	})

	ordersSubmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_engine_orders_submitted_total",
		Help: "Total orders submitted to the broker by symbol and outcome",
	}, []string{"symbol", "outcome"})

	entriesFilteredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_engine_entries_filtered_total",
		Help: "Entry decisions processed by the duplicate filter, by result",
	}, []string{"result"})

	positionsClosedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "risk_engine_positions_closed_total",
		Help: "Total positions closed by exit processing",
	})

	breakerTripped = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "risk_engine_breaker_tripped",
		Help: "1 when the catastrophic loss breaker has tripped, 0 otherwise",
	})

	restrictionActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "risk_engine_restriction_active",
		Help: "1 while a news or market-close restriction window is active",
	})

	dailyPnL = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "risk_engine_daily_pnl",
		Help: "Combined realized and floating PnL for the current day",
	})
)

func init() {
	prometheus.MustRegister(
		cyclesTotal,
		cycleErrorsTotal,
		ordersSubmittedTotal,
		entriesFilteredTotal,
		positionsClosedTotal,
		breakerTripped,
		restrictionActive,
		dailyPnL,
	)
}

func RecordCycle() {
	cyclesTotal.Inc()
}

func RecordCycleError() {
	cycleErrorsTotal.Inc()
}

func RecordOrder(symbol string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	ordersSubmittedTotal.WithLabelValues(symbol, outcome).Inc()
}

func RecordEntryAllowed() {
	entriesFilteredTotal.WithLabelValues("allowed").Inc()
}

func RecordEntryBlocked() {
	entriesFilteredTotal.WithLabelValues("blocked").Inc()
}

func RecordPositionsClosed(n int) {
	positionsClosedTotal.Add(float64(n))
}

func SetBreakerTripped(tripped bool) {
	if tripped {
		breakerTripped.Set(1)
	} else {
		breakerTripped.Set(0)
	}
}

func SetRestrictionActive(active bool) {
	if active {
		restrictionActive.Set(1)
	} else {
		restrictionActive.Set(0)
	}
}

func SetDailyPnL(v float64) {
	dailyPnL.Set(v)
}
