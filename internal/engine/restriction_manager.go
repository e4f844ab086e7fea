package engine

import (
	"context"
	"time"

	"github.com/vitos/trade_risk_engine/internal/domain"
	"github.com/vitos/trade_risk_engine/internal/monitoring"
	"go.uber.org/zap"
)

// RestrictionManager suspends protective orders around news and market-close
// windows and restores them afterward. While a window is active, trading
// authorization is withdrawn; the executor checks it before submitting
// entries.
type RestrictionManager struct {
	broker domain.Broker
	rules  domain.RestrictionSource
	store  *SuspensionStore
	symbol string
	logger *zap.Logger

	restricted bool
	authorized bool
}

func NewRestrictionManager(broker domain.Broker, rules domain.RestrictionSource, store *SuspensionStore, symbol string, logger *zap.Logger) *RestrictionManager {
	return &RestrictionManager{
		broker:     broker,
		rules:      rules,
		store:      store,
		symbol:     symbol,
		logger:     logger,
		authorized: true,
	}
}

func (m *RestrictionManager) TradingAuthorized() bool { return m.authorized }
func (m *RestrictionManager) Restricted() bool        { return m.restricted }

// Evaluate checks both restriction conditions and handles window transitions.
// Called once per cycle. While a window stays active the suspension sweep
// re-runs, so orders or positions that appeared mid-window (late fills) are
// suspended too; the store makes re-adding a ticket a no-op.
func (m *RestrictionManager) Evaluate(ctx context.Context, now time.Time) error {
	news, err := m.rules.NewsBlockActive(ctx, now)
	if err != nil {
		m.logger.Error("news restriction lookup failed, keeping previous state", zap.Error(err))
		return err
	}
	closing, err := m.rules.MarketClosingSoon(ctx, m.symbol, now)
	if err != nil {
		m.logger.Error("market-close restriction lookup failed, keeping previous state", zap.Error(err))
		return err
	}

	active := news || closing
	switch {
	case active:
		if !m.restricted {
			m.logger.Warn("entering restriction window",
				zap.Bool("news_block", news),
				zap.Bool("market_closing", closing),
				zap.String("symbol", m.symbol))
		}
		m.suspend(ctx, now)
		m.restricted = true
		m.authorized = false
		monitoring.SetRestrictionActive(true)
	case m.restricted:
		m.restore(ctx)
		m.restricted = false
		m.authorized = true
		monitoring.SetRestrictionActive(false)
		m.logger.Info("restriction window ended, trading authorization restored",
			zap.String("symbol", m.symbol))
	}

	return nil
}

// suspend cancels pending orders and strips SL/TP from open positions,
// recording each under its ticket. Per-item broker failures are logged and
// retried on the next sweep because the failed ticket is not stored.
func (m *RestrictionManager) suspend(ctx context.Context, now time.Time) {
	pending, err := m.broker.PendingOrders(ctx, m.symbol)
	if err != nil {
		m.logger.Error("failed to list pending orders for suspension", zap.Error(err))
	}
	for _, o := range pending {
		if m.store.Has(o.Ticket) {
			continue
		}
		if err := m.broker.CancelPendingOrder(ctx, o.Ticket); err != nil {
			m.logger.Error("failed to cancel pending order for suspension",
				zap.Int64("ticket", o.Ticket), zap.Error(err))
			continue
		}
		side, _ := o.Side()
		m.store.Add(ctx, &domain.SuspendedItem{
			Ticket:      o.Ticket,
			Kind:        domain.SuspendedPendingOrder,
			Symbol:      o.Symbol,
			Side:        side,
			Volume:      o.Volume,
			Price:       o.Price,
			StopLoss:    o.StopLoss,
			TakeProfit:  o.TakeProfit,
			Magic:       o.Magic,
			SuspendedAt: now,
		})
		m.logger.Info("pending order suspended",
			zap.Int64("ticket", o.Ticket), zap.String("symbol", o.Symbol))
	}

	positions, err := m.broker.OpenPositions(ctx, m.symbol)
	if err != nil {
		m.logger.Error("failed to list open positions for suspension", zap.Error(err))
	}
	for _, p := range positions {
		if m.store.Has(p.Ticket) {
			continue
		}
		if err := m.broker.UpdatePosition(ctx, p.Symbol, p.Ticket, 0, 0); err != nil {
			m.logger.Error("failed to strip protection for suspension",
				zap.Int64("ticket", p.Ticket), zap.Error(err))
			continue
		}
		side, _ := p.Side()
		m.store.Add(ctx, &domain.SuspendedItem{
			Ticket:      p.Ticket,
			Kind:        domain.SuspendedPositionSLTP,
			Symbol:      p.Symbol,
			Side:        side,
			Volume:      p.Size,
			Price:       p.OpenPrice,
			StopLoss:    p.StopLoss,
			TakeProfit:  p.TakeProfit,
			Magic:       p.Magic,
			SuspendedAt: now,
		})
		m.logger.Info("position protection suspended",
			zap.Int64("ticket", p.Ticket),
			zap.Float64("original_sl", p.StopLoss),
			zap.Float64("original_tp", p.TakeProfit))
	}
}

// restore reapplies the recorded SL/TP to every suspended position and clears
// the store. Cancelled pending orders are not recreated; they are logged for
// strategy re-evaluation.
func (m *RestrictionManager) restore(ctx context.Context) {
	for _, item := range m.store.Items() {
		switch item.Kind {
		case domain.SuspendedPositionSLTP:
			if err := m.broker.UpdatePosition(ctx, item.Symbol, item.Ticket, item.StopLoss, item.TakeProfit); err != nil {
				m.logger.Error("failed to restore position protection",
					zap.Int64("ticket", item.Ticket), zap.Error(err))
				continue
			}
			m.logger.Info("position protection restored",
				zap.Int64("ticket", item.Ticket),
				zap.Float64("sl", item.StopLoss),
				zap.Float64("tp", item.TakeProfit))
		case domain.SuspendedPendingOrder:
			m.logger.Info("suspended pending order left for strategy re-evaluation",
				zap.Int64("ticket", item.Ticket),
				zap.String("symbol", item.Symbol),
				zap.Float64("price", item.Price),
				zap.Float64("volume", item.Volume))
		}
	}
	m.store.Clear(ctx)
}
