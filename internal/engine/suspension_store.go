package engine

import (
	"context"
	"sort"

	"github.com/vitos/trade_risk_engine/internal/domain"
	"go.uber.org/zap"
)

// SuspensionStore holds the items withdrawn during the current restriction
// window, keyed by ticket. Explicitly constructed and owned by the
// RestrictionManager; lifecycle is the trading session. Writes through to the
// repository when one is provided so a restart inside a window can still
// restore protection afterward.
type SuspensionStore struct {
	items  map[int64]*domain.SuspendedItem
	repo   domain.SuspensionRepository
	logger *zap.Logger
}

func NewSuspensionStore(repo domain.SuspensionRepository, logger *zap.Logger) *SuspensionStore {
	return &SuspensionStore{
		items:  make(map[int64]*domain.SuspendedItem),
		repo:   repo,
		logger: logger,
	}
}

// Restore reloads persisted items after a restart.
func (s *SuspensionStore) Restore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	items, err := s.repo.ListSuspendedItems(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		s.items[item.Ticket] = item
	}
	if len(items) > 0 {
		s.logger.Info("restored suspended items", zap.Int("count", len(items)))
	}
	return nil
}

// Add stores an item. Adding a ticket that is already present is a logged
// no-op, which makes re-entering an active window safe. Reports whether the
// item was newly stored.
func (s *SuspensionStore) Add(ctx context.Context, item *domain.SuspendedItem) bool {
	if _, ok := s.items[item.Ticket]; ok {
		s.logger.Debug("ticket already suspended",
			zap.Int64("ticket", item.Ticket), zap.String("kind", string(item.Kind)))
		return false
	}
	s.items[item.Ticket] = item
	if s.repo != nil {
		if err := s.repo.SaveSuspendedItem(ctx, item); err != nil {
			s.logger.Error("failed to persist suspended item",
				zap.Int64("ticket", item.Ticket), zap.Error(err))
		}
	}
	return true
}

// Has reports whether a ticket is already suspended.
func (s *SuspensionStore) Has(ticket int64) bool {
	_, ok := s.items[ticket]
	return ok
}

// Items returns every stored item ordered by ticket.
func (s *SuspensionStore) Items() []*domain.SuspendedItem {
	out := make([]*domain.SuspendedItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out
}

func (s *SuspensionStore) Len() int { return len(s.items) }

// Clear empties the store and the persisted copy. Called when a restriction
// window ends.
func (s *SuspensionStore) Clear(ctx context.Context) {
	s.items = make(map[int64]*domain.SuspendedItem)
	if s.repo != nil {
		if err := s.repo.ClearSuspendedItems(ctx); err != nil {
			s.logger.Error("failed to clear persisted suspended items", zap.Error(err))
		}
	}
}
