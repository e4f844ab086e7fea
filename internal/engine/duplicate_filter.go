package engine

import (
	"github.com/vitos/trade_risk_engine/internal/domain"
	"go.uber.org/zap"
)

type exposureKey struct {
	magic int64
	side  domain.Side
}

// DuplicateFilter is the idempotency gate preventing the same strategy and
// direction from stacking duplicate exposure across polling cycles.
type DuplicateFilter struct {
	logger *zap.Logger
}

func NewDuplicateFilter(logger *zap.Logger) *DuplicateFilter {
	return &DuplicateFilter{logger: logger}
}

// FilterEntries drops candidates whose (magic, direction) key is already
// represented by an open position or a pending order. Candidates whose signal
// kind cannot be mapped to a direction are dropped and logged as errors.
func (f *DuplicateFilter) FilterEntries(candidates []*domain.EntryDecision, openPositions []*domain.BrokerPosition, pendingOrders []*domain.PendingOrder) []*domain.EntryDecision {
	existing := make(map[exposureKey]string)

	for _, p := range openPositions {
		side, err := p.Side()
		if err != nil {
			f.logger.Warn("open position with unmappable type",
				zap.Int64("ticket", p.Ticket), zap.Int("type", p.Type))
			continue
		}
		existing[exposureKey{magic: p.Magic, side: side}] = "open position"
	}
	for _, o := range pendingOrders {
		side, err := o.Side()
		if err != nil {
			f.logger.Warn("pending order with unmappable type",
				zap.Int64("ticket", o.Ticket), zap.Int("type", o.Type), zap.String("type_name", o.TypeName))
			continue
		}
		key := exposureKey{magic: o.Magic, side: side}
		if _, ok := existing[key]; !ok {
			existing[key] = "pending order"
		}
	}

	allowed := make([]*domain.EntryDecision, 0, len(candidates))
	for _, d := range candidates {
		side, err := d.Signal.Side()
		if err != nil {
			f.logger.Error("dropping entry with unmappable signal kind",
				zap.String("symbol", d.Symbol),
				zap.Int64("magic", d.Magic),
				zap.String("signal", string(d.Signal)),
				zap.Error(err))
			continue
		}
		key := exposureKey{magic: d.Magic, side: side}
		if source, dup := existing[key]; dup {
			f.logger.Info("duplicate entry blocked",
				zap.String("symbol", d.Symbol),
				zap.Int64("magic", d.Magic),
				zap.String("side", string(side)),
				zap.String("blocked_by", source))
			continue
		}
		allowed = append(allowed, d)
	}

	return allowed
}
