package engine

import (
	"context"
	"math"

	"github.com/vitos/trade_risk_engine/internal/domain"
	"github.com/vitos/trade_risk_engine/internal/monitoring"
	"go.uber.org/zap"
)

// RiskMonitor is the catastrophic-loss circuit breaker. Once tripped it stays
// tripped for the rest of the session; there is no automatic re-arm.
type RiskMonitor struct {
	broker         domain.Broker
	dailyLossLimit float64 // negative; zero disables the breaker
	logger         *zap.Logger

	breached    bool
	closedPnL   float64
	floatingPnL float64
}

func NewRiskMonitor(broker domain.Broker, dailyLossLimit float64, logger *zap.Logger) *RiskMonitor {
	return &RiskMonitor{broker: broker, dailyLossLimit: dailyLossLimit, logger: logger}
}

// ComputePnL sums realized and floating profit the way the breaker sees them:
// closed positions contribute profit+commission+swap, open ones profit+swap.
func ComputePnL(openPositions []*domain.BrokerPosition, closedToday []*domain.ClosedPosition) (closedPnL, floatingPnL float64) {
	for _, c := range closedToday {
		closedPnL += c.Profit + c.Commission + c.Swap
	}
	for _, p := range openPositions {
		floatingPnL += p.Profit + p.Swap
	}
	return closedPnL, floatingPnL
}

// CheckCatastrophicLossLimit trips the breaker when the aggregate daily loss
// crosses the configured limit. On the breach transition it force-closes all
// open positions and cancels all pending orders, exactly once.
func (m *RiskMonitor) CheckCatastrophicLossLimit(ctx context.Context, openPositions []*domain.BrokerPosition, closedToday []*domain.ClosedPosition) bool {
	m.closedPnL, m.floatingPnL = ComputePnL(openPositions, closedToday)

	if m.breached {
		return true
	}
	if m.dailyLossLimit >= 0 {
		return false
	}

	lossRatio := (m.closedPnL + m.floatingPnL) / math.Abs(m.dailyLossLimit)
	if lossRatio >= -1 {
		return false
	}

	m.breached = true
	monitoring.SetBreakerTripped(true)
	m.logger.Error("CATASTROPHIC LOSS LIMIT BREACHED, flattening account",
		zap.Float64("closed_pnl", m.closedPnL),
		zap.Float64("floating_pnl", m.floatingPnL),
		zap.Float64("daily_loss_limit", m.dailyLossLimit),
		zap.Float64("loss_ratio", lossRatio))

	if err := m.broker.CloseAllPositions(ctx); err != nil {
		m.logger.Error("emergency close-all failed", zap.Error(err))
	}
	if err := m.broker.CancelAllPendingOrders(ctx); err != nil {
		m.logger.Error("emergency cancel-all failed", zap.Error(err))
	}

	return true
}

func (m *RiskMonitor) Breached() bool       { return m.breached }
func (m *RiskMonitor) ClosedPnL() float64   { return m.closedPnL }
func (m *RiskMonitor) FloatingPnL() float64 { return m.floatingPnL }
