package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vitos/trade_risk_engine/internal/domain"
	"github.com/vitos/trade_risk_engine/internal/monitoring"
	"go.uber.org/zap"
)

// SignalSource supplies the decisions to be risk-managed this cycle.
type SignalSource interface {
	NextBatch(ctx context.Context, now time.Time) (TradeBatch, error)
}

// TradeBatch is one cycle's worth of strategy decisions.
type TradeBatch struct {
	Entries []*domain.EntryDecision
	Exits   []*domain.ExitDecision
}

// CycleSummary reports what one management cycle did.
type CycleSummary struct {
	At              time.Time
	PositionsClosed int
	EntriesReceived int
	EntriesAllowed  int
	GroupsCreated   int
	OrdersPlaced    int
	OrdersFailed    int
	RiskBreached    bool
	TradeAuthorized bool
	ClosedPnL       float64
	FloatingPnL     float64
}

// CycleObserver is invoked after every completed cycle.
type CycleObserver func(CycleSummary)

// RiskMetrics is the point-in-time account risk picture.
type RiskMetrics struct {
	DailyPnL        float64
	FloatingPnL     float64
	TotalPnL        float64
	RiskBreached    bool
	TradeAuthorized bool
}

// TradeExecutor runs the full management cycle in a fixed order: sync fills,
// process exits, check the loss breaker, evaluate restriction windows, then
// scale and submit new entries if trading is still authorized.
type TradeExecutor struct {
	broker       domain.Broker
	symbol       string
	calculator   *RiskCalculator
	filter       *DuplicateFilter
	exits        *ExitManager
	monitor      *RiskMonitor
	restrictions *RestrictionManager
	orders       *OrderExecutor
	snapshots    domain.RiskSnapshotRepository
	observer     CycleObserver
	logger       *zap.Logger
}

func NewTradeExecutor(
	broker domain.Broker,
	symbol string,
	calculator *RiskCalculator,
	filter *DuplicateFilter,
	exits *ExitManager,
	monitor *RiskMonitor,
	restrictions *RestrictionManager,
	orders *OrderExecutor,
	snapshots domain.RiskSnapshotRepository,
	logger *zap.Logger,
) *TradeExecutor {
	return &TradeExecutor{
		broker:       broker,
		symbol:       symbol,
		calculator:   calculator,
		filter:       filter,
		exits:        exits,
		monitor:      monitor,
		restrictions: restrictions,
		orders:       orders,
		snapshots:    snapshots,
		logger:       logger,
	}
}

// SetObserver registers a callback invoked with each cycle's summary.
func (t *TradeExecutor) SetObserver(obs CycleObserver) {
	t.observer = obs
}

// Manage executes one cycle over the given batch. A failure to read account
// state aborts the cycle; everything downstream works off that one snapshot.
func (t *TradeExecutor) Manage(ctx context.Context, batch TradeBatch, now time.Time) error {
	monitoring.RecordCycle()

	openPositions, err := t.broker.OpenPositions(ctx, t.symbol)
	if err != nil {
		monitoring.RecordCycleError()
		return fmt.Errorf("%w: fetch open positions: %v", domain.ErrBrokerCall, err)
	}
	pendingOrders, err := t.broker.PendingOrders(ctx, t.symbol)
	if err != nil {
		monitoring.RecordCycleError()
		return fmt.Errorf("%w: fetch pending orders: %v", domain.ErrBrokerCall, err)
	}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	closedToday, err := t.broker.ClosedPositions(ctx, dayStart, now)
	if err != nil {
		monitoring.RecordCycleError()
		return fmt.Errorf("%w: fetch closed positions: %v", domain.ErrBrokerCall, err)
	}

	t.syncFills(openPositions, now)

	summary := CycleSummary{
		At:              now,
		EntriesReceived: len(batch.Entries),
	}

	summary.PositionsClosed = t.exits.ProcessExits(ctx, batch.Exits, openPositions)
	monitoring.RecordPositionsClosed(summary.PositionsClosed)

	breached := t.monitor.CheckCatastrophicLossLimit(ctx, openPositions, closedToday)
	summary.RiskBreached = breached
	summary.ClosedPnL = t.monitor.ClosedPnL()
	summary.FloatingPnL = t.monitor.FloatingPnL()
	monitoring.SetDailyPnL(summary.ClosedPnL + summary.FloatingPnL)

	if breached {
		summary.TradeAuthorized = false
		t.finishCycle(ctx, summary)
		return nil
	}

	if err := t.restrictions.Evaluate(ctx, now); err != nil {
		t.logger.Error("restriction evaluation failed, skipping new entries this cycle", zap.Error(err))
		summary.TradeAuthorized = false
		t.finishCycle(ctx, summary)
		return nil
	}
	summary.TradeAuthorized = t.restrictions.TradingAuthorized()

	if !summary.TradeAuthorized {
		if len(batch.Entries) > 0 {
			t.logger.Info("dropping entry decisions, trading not authorized",
				zap.Int("entries", len(batch.Entries)))
		}
		t.finishCycle(ctx, summary)
		return nil
	}

	allowed := t.filter.FilterEntries(batch.Entries, openPositions, pendingOrders)
	summary.EntriesAllowed = len(allowed)
	for range allowed {
		monitoring.RecordEntryAllowed()
	}
	for i := 0; i < len(batch.Entries)-len(allowed); i++ {
		monitoring.RecordEntryBlocked()
	}

	if len(allowed) > 0 {
		price, err := t.broker.CurrentPrice(ctx, t.symbol)
		if err != nil {
			t.logger.Error("price fetch failed, deferring entries to next cycle", zap.Error(err))
			t.finishCycle(ctx, summary)
			return nil
		}

		results := t.calculator.ProcessEntries(ctx, allowed, price)
		summary.GroupsCreated = len(results)
		for _, res := range results {
			outcomes, execErr := t.orders.Execute(ctx, res)
			for _, o := range outcomes {
				if o.Err != nil {
					summary.OrdersFailed++
				} else {
					summary.OrdersPlaced++
				}
			}
			if execErr != nil && !errors.Is(execErr, domain.ErrPartialExecution) {
				t.logger.Error("group execution failed",
					zap.String("group", res.GroupID), zap.Error(execErr))
			}
		}
	}

	t.finishCycle(ctx, summary)
	return nil
}

// RiskMetrics reads the account and reports the current risk picture without
// executing a cycle.
func (t *TradeExecutor) RiskMetrics(ctx context.Context, now time.Time) (RiskMetrics, error) {
	openPositions, err := t.broker.OpenPositions(ctx, t.symbol)
	if err != nil {
		return RiskMetrics{}, fmt.Errorf("%w: fetch open positions: %v", domain.ErrBrokerCall, err)
	}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	closedToday, err := t.broker.ClosedPositions(ctx, dayStart, now)
	if err != nil {
		return RiskMetrics{}, fmt.Errorf("%w: fetch closed positions: %v", domain.ErrBrokerCall, err)
	}

	closedPnL, floatingPnL := ComputePnL(openPositions, closedToday)
	return RiskMetrics{
		DailyPnL:        closedPnL,
		FloatingPnL:     floatingPnL,
		TotalPnL:        closedPnL + floatingPnL,
		RiskBreached:    t.monitor.Breached(),
		TradeAuthorized: t.restrictions.TradingAuthorized() && !t.monitor.Breached(),
	}, nil
}

// syncFills binds broker fills back onto tracked scaled positions by ticket
// and refreshes group aggregates.
func (t *TradeExecutor) syncFills(openPositions []*domain.BrokerPosition, now time.Time) {
	byTicket := make(map[int64]*domain.BrokerPosition, len(openPositions))
	for _, p := range openPositions {
		byTicket[p.Ticket] = p
	}

	for _, g := range t.calculator.Groups() {
		changed := false
		for _, pos := range g.Positions {
			if pos.Ticket == 0 {
				continue
			}
			bp, open := byTicket[pos.Ticket]
			switch pos.State {
			case domain.StatePending, domain.StatePartialFilled:
				if open {
					delta := bp.Size - pos.FilledSize
					if delta > 0 {
						pos.UpdateFill(delta, bp.OpenPrice, now)
						changed = true
						t.logger.Info("fill detected",
							zap.String("position", pos.ID),
							zap.Int64("ticket", pos.Ticket),
							zap.Float64("filled_size", pos.FilledSize),
							zap.Float64("price", bp.OpenPrice))
					}
				}
			case domain.StateActive:
				if !open {
					pos.MarkClosed()
					changed = true
					t.logger.Info("tracked position closed at broker",
						zap.String("position", pos.ID),
						zap.Int64("ticket", pos.Ticket))
				}
			}
		}
		if changed {
			g.UpdateMetrics()
		}
	}
}

func (t *TradeExecutor) finishCycle(ctx context.Context, summary CycleSummary) {
	if t.snapshots != nil {
		snap := &domain.RiskSnapshot{
			ClosedPnL:   summary.ClosedPnL,
			FloatingPnL: summary.FloatingPnL,
			TotalPnL:    summary.ClosedPnL + summary.FloatingPnL,
			Breached:    summary.RiskBreached,
			Authorized:  summary.TradeAuthorized,
			At:          summary.At,
		}
		if err := t.snapshots.SaveRiskSnapshot(ctx, snap); err != nil {
			t.logger.Error("failed to persist risk snapshot", zap.Error(err))
		}
	}
	if t.observer != nil {
		t.observer(summary)
	}
}
