package engine

import (
	"context"

	"github.com/vitos/trade_risk_engine/internal/domain"
	"go.uber.org/zap"
)

// ExitManager matches exit decisions against open positions and requests
// closure of every match. A magic may legitimately map to several scaled
// positions; all of them are closed.
type ExitManager struct {
	broker domain.Broker
	logger *zap.Logger
}

func NewExitManager(broker domain.Broker, logger *zap.Logger) *ExitManager {
	return &ExitManager{broker: broker, logger: logger}
}

// ProcessExits closes every open position matching an exit's
// (symbol, magic, type). Per-position closure failures are logged and do not
// stop the remaining matches or remaining exits. Returns the number of
// positions successfully closed.
func (m *ExitManager) ProcessExits(ctx context.Context, exits []*domain.ExitDecision, openPositions []*domain.BrokerPosition) int {
	closed := 0
	for _, ex := range exits {
		if ex.Direction != domain.SideLong && ex.Direction != domain.SideShort {
			m.logger.Error("dropping exit with unknown direction",
				zap.String("symbol", ex.Symbol),
				zap.Int64("magic", ex.Magic),
				zap.String("direction", string(ex.Direction)))
			continue
		}
		typeCode := domain.BrokerCodeForSide(ex.Direction)

		matched := 0
		for _, p := range openPositions {
			if p.Symbol != ex.Symbol || p.Magic != ex.Magic || p.Type != typeCode {
				continue
			}
			matched++
			if err := m.broker.ClosePosition(ctx, p.Symbol, p.Ticket); err != nil {
				m.logger.Error("failed to close position",
					zap.String("symbol", p.Symbol),
					zap.Int64("ticket", p.Ticket),
					zap.Int64("magic", p.Magic),
					zap.Error(err))
				continue
			}
			closed++
			m.logger.Info("position closed on exit signal",
				zap.String("symbol", p.Symbol),
				zap.Int64("ticket", p.Ticket),
				zap.Int64("magic", p.Magic),
				zap.String("side", string(ex.Direction)))
		}

		if matched == 0 {
			m.logger.Debug("exit matched no open positions",
				zap.String("symbol", ex.Symbol),
				zap.Int64("magic", ex.Magic),
				zap.String("side", string(ex.Direction)))
		}
	}
	return closed
}
