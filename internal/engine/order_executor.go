package engine

import (
	"context"
	"fmt"

	"github.com/vitos/trade_risk_engine/internal/domain"
	"github.com/vitos/trade_risk_engine/internal/monitoring"
	"go.uber.org/zap"
)

// OrderOutcome records what happened to one order spec at the broker.
type OrderOutcome struct {
	Spec   domain.OrderSpec
	Ticket int64
	Err    error
}

// OrderExecutor submits the pending-order ladder produced by the risk
// calculator. One rejected rung never blocks the remaining rungs; the caller
// learns about partial failure from the returned error.
type OrderExecutor struct {
	broker domain.Broker
	repo   domain.OrderRepository
	logger *zap.Logger
}

func NewOrderExecutor(broker domain.Broker, repo domain.OrderRepository, logger *zap.Logger) *OrderExecutor {
	return &OrderExecutor{broker: broker, repo: repo, logger: logger}
}

// Execute submits every order in the result and binds returned tickets back
// onto the corresponding scaled positions. Returns ErrPartialExecution when
// some but not all submissions failed, ErrBrokerCall when all did.
func (e *OrderExecutor) Execute(ctx context.Context, result *domain.RiskEntryResult) ([]OrderOutcome, error) {
	outcomes := make([]OrderOutcome, 0, len(result.Orders))
	failed := 0

	for i := range result.Orders {
		spec := &result.Orders[i]
		ticket, err := e.broker.OpenPendingOrder(ctx, spec)
		outcome := OrderOutcome{Spec: *spec, Ticket: ticket, Err: err}

		pos := e.findPosition(result.Group, spec.PositionID)
		if err != nil {
			failed++
			if pos != nil {
				pos.MarkFailed()
			}
			e.logger.Error("pending order rejected",
				zap.String("group", result.GroupID),
				zap.String("position", spec.PositionID),
				zap.String("symbol", spec.Symbol),
				zap.Float64("price", spec.Price),
				zap.Float64("volume", spec.Volume),
				zap.Error(err))
			monitoring.RecordOrder(spec.Symbol, false)
		} else {
			if pos != nil {
				pos.Ticket = ticket
			}
			e.logger.Info("pending order placed",
				zap.String("group", result.GroupID),
				zap.Int64("ticket", ticket),
				zap.String("kind", string(spec.Kind)),
				zap.Float64("price", spec.Price),
				zap.Float64("volume", spec.Volume),
				zap.Float64("stop_loss", spec.StopLoss))
			monitoring.RecordOrder(spec.Symbol, true)
		}

		if e.repo != nil {
			if saveErr := e.repo.SaveOrderOutcome(ctx, result.GroupID, spec, ticket, err); saveErr != nil {
				e.logger.Error("failed to persist order outcome",
					zap.String("position", spec.PositionID), zap.Error(saveErr))
			}
		}

		outcomes = append(outcomes, outcome)
	}

	switch {
	case failed == 0:
		return outcomes, nil
	case failed == len(result.Orders):
		return outcomes, fmt.Errorf("%w: all %d orders for group %s rejected",
			domain.ErrBrokerCall, failed, result.GroupID)
	default:
		e.logger.Warn("group partially executed",
			zap.String("group", result.GroupID),
			zap.Int("failed", failed),
			zap.Int("total", len(result.Orders)))
		return outcomes, fmt.Errorf("%w: %d of %d orders for group %s rejected",
			domain.ErrPartialExecution, failed, len(result.Orders), result.GroupID)
	}
}

func (e *OrderExecutor) findPosition(g *domain.PositionGroup, id string) *domain.ScaledPosition {
	if g == nil {
		return nil
	}
	for _, p := range g.Positions {
		if p.ID == id {
			return p
		}
	}
	return nil
}
