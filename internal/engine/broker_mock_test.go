package engine_test

import (
	"context"
	"time"

	"github.com/vitos/trade_risk_engine/internal/domain"
)

type posUpdate struct {
	Symbol     string
	Ticket     int64
	StopLoss   float64
	TakeProfit float64
}

// mockBroker is a scriptable in-memory stand-in for the gateway.
type mockBroker struct {
	open    []*domain.BrokerPosition
	pending []*domain.PendingOrder
	closed  []*domain.ClosedPosition
	price   float64

	openErr    error
	pendingErr error
	closedErr  error
	priceErr   error

	nextTicket  int64
	orderErrs   map[int]error // keyed by zero-based call index
	orderCalls  int
	placedSpecs []domain.OrderSpec

	closedTickets  []int64
	closeErrFor    map[int64]error
	closeAllCalls  int
	cancelAllCalls int
	cancelled      []int64
	cancelErrFor   map[int64]error
	updates        []posUpdate
	updateErrFor   map[int64]error
}

func newMockBroker() *mockBroker {
	return &mockBroker{
		nextTicket:   1000,
		orderErrs:    make(map[int]error),
		closeErrFor:  make(map[int64]error),
		cancelErrFor: make(map[int64]error),
		updateErrFor: make(map[int64]error),
	}
}

func (m *mockBroker) OpenPositions(ctx context.Context, symbol string) ([]*domain.BrokerPosition, error) {
	return m.open, m.openErr
}

func (m *mockBroker) PendingOrders(ctx context.Context, symbol string) ([]*domain.PendingOrder, error) {
	return m.pending, m.pendingErr
}

func (m *mockBroker) ClosedPositions(ctx context.Context, from, to time.Time) ([]*domain.ClosedPosition, error) {
	return m.closed, m.closedErr
}

func (m *mockBroker) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return m.price, m.priceErr
}

func (m *mockBroker) OpenPendingOrder(ctx context.Context, spec *domain.OrderSpec) (int64, error) {
	idx := m.orderCalls
	m.orderCalls++
	if err, ok := m.orderErrs[idx]; ok {
		return 0, err
	}
	m.placedSpecs = append(m.placedSpecs, *spec)
	m.nextTicket++
	return m.nextTicket, nil
}

func (m *mockBroker) ClosePosition(ctx context.Context, symbol string, ticket int64) error {
	if err, ok := m.closeErrFor[ticket]; ok {
		return err
	}
	m.closedTickets = append(m.closedTickets, ticket)
	return nil
}

func (m *mockBroker) CloseAllPositions(ctx context.Context) error {
	m.closeAllCalls++
	return nil
}

func (m *mockBroker) CancelPendingOrder(ctx context.Context, ticket int64) error {
	if err, ok := m.cancelErrFor[ticket]; ok {
		return err
	}
	m.cancelled = append(m.cancelled, ticket)
	return nil
}

func (m *mockBroker) CancelAllPendingOrders(ctx context.Context) error {
	m.cancelAllCalls++
	return nil
}

func (m *mockBroker) UpdatePosition(ctx context.Context, symbol string, ticket int64, stopLoss, takeProfit float64) error {
	if err, ok := m.updateErrFor[ticket]; ok {
		return err
	}
	m.updates = append(m.updates, posUpdate{Symbol: symbol, Ticket: ticket, StopLoss: stopLoss, TakeProfit: takeProfit})
	return nil
}

// mockRules is a scriptable RestrictionSource.
type mockRules struct {
	news     bool
	closing  bool
	newsErr  error
	closeErr error
}

func (r *mockRules) NewsBlockActive(ctx context.Context, now time.Time) (bool, error) {
	return r.news, r.newsErr
}

func (r *mockRules) MarketClosingSoon(ctx context.Context, symbol string, now time.Time) (bool, error) {
	return r.closing, r.closeErr
}
