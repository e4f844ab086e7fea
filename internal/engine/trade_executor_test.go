package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/trade_risk_engine/internal/domain"
	"github.com/vitos/trade_risk_engine/internal/engine"
	"go.uber.org/zap"
)

type harness struct {
	broker   *mockBroker
	rules    *mockRules
	executor *engine.TradeExecutor
	monitor  *engine.RiskMonitor
	calc     *engine.RiskCalculator
	summary  *engine.CycleSummary
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zap.NewNop()
	broker := newMockBroker()
	broker.price = 3000.0
	rules := &mockRules{}

	scaling := domain.ScalingConfig{NumEntries: 2, Type: domain.ScalingEqual, EntrySpacingPct: 0.5}
	stopCalc := engine.NewStopLossCalculator(nil)
	planner := engine.NewStopLossPlanner(stopCalc, true, 5.0, false, logger)
	riskCalc, err := engine.NewRiskCalculator(scaling, planner, nil, logger)
	require.NoError(t, err)

	monitor := engine.NewRiskMonitor(broker, -1000.0, logger)
	store := engine.NewSuspensionStore(nil, logger)

	h := &harness{broker: broker, rules: rules, monitor: monitor, calc: riskCalc}
	h.executor = engine.NewTradeExecutor(
		broker,
		"XAUUSD",
		riskCalc,
		engine.NewDuplicateFilter(logger),
		engine.NewExitManager(broker, logger),
		monitor,
		engine.NewRestrictionManager(broker, rules, store, "XAUUSD", logger),
		engine.NewOrderExecutor(broker, nil, logger),
		nil,
		logger,
	)
	h.executor.SetObserver(func(s engine.CycleSummary) { h.summary = &s })
	return h
}

func entryBatch() engine.TradeBatch {
	return engine.TradeBatch{
		Entries: []*domain.EntryDecision{{
			Symbol:       "XAUUSD",
			Strategy:     "breakout_v2",
			Magic:        42,
			Direction:    domain.SideLong,
			Signal:       domain.SignalBuyLimit,
			PositionSize: 1.0,
		}},
	}
}

func TestManage_PlacesScaledOrders(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.executor.Manage(context.Background(), entryBatch(), time.Now()))

	require.Len(t, h.broker.placedSpecs, 2)
	assert.InDelta(t, 3000.0, h.broker.placedSpecs[0].Price, 1e-9)
	assert.InDelta(t, 2985.0, h.broker.placedSpecs[1].Price, 1e-9)

	require.NotNil(t, h.summary)
	assert.Equal(t, 1, h.summary.EntriesReceived)
	assert.Equal(t, 1, h.summary.EntriesAllowed)
	assert.Equal(t, 1, h.summary.GroupsCreated)
	assert.Equal(t, 2, h.summary.OrdersPlaced)
	assert.Equal(t, 0, h.summary.OrdersFailed)
	assert.True(t, h.summary.TradeAuthorized)
	assert.False(t, h.summary.RiskBreached)
}

func TestManage_BreachEndsCycleBeforeEntries(t *testing.T) {
	h := newHarness(t)
	h.broker.closed = []*domain.ClosedPosition{{Ticket: 1, Profit: -1500.0}}

	require.NoError(t, h.executor.Manage(context.Background(), entryBatch(), time.Now()))

	assert.Empty(t, h.broker.placedSpecs)
	assert.Equal(t, 1, h.broker.closeAllCalls)
	assert.Equal(t, 1, h.broker.cancelAllCalls)

	require.NotNil(t, h.summary)
	assert.True(t, h.summary.RiskBreached)
	assert.False(t, h.summary.TradeAuthorized)
	assert.InDelta(t, -1500.0, h.summary.ClosedPnL, 1e-9)
}

func TestManage_RestrictionDropsEntries(t *testing.T) {
	h := newHarness(t)
	h.rules.news = true

	require.NoError(t, h.executor.Manage(context.Background(), entryBatch(), time.Now()))

	assert.Empty(t, h.broker.placedSpecs)
	require.NotNil(t, h.summary)
	assert.False(t, h.summary.TradeAuthorized)
	assert.Equal(t, 0, h.summary.EntriesAllowed)
}

func TestManage_DuplicateEntryBlocked(t *testing.T) {
	h := newHarness(t)
	h.broker.open = []*domain.BrokerPosition{
		{Ticket: 1, Symbol: "XAUUSD", Type: domain.BrokerTypeBuy, Magic: 42},
	}

	require.NoError(t, h.executor.Manage(context.Background(), entryBatch(), time.Now()))

	assert.Empty(t, h.broker.placedSpecs)
	require.NotNil(t, h.summary)
	assert.Equal(t, 1, h.summary.EntriesReceived)
	assert.Equal(t, 0, h.summary.EntriesAllowed)
}

func TestManage_ExitsProcessedBeforeBreakCheck(t *testing.T) {
	h := newHarness(t)
	h.broker.open = []*domain.BrokerPosition{
		{Ticket: 5, Symbol: "XAUUSD", Type: domain.BrokerTypeSell, Magic: 7},
	}

	batch := engine.TradeBatch{
		Exits: []*domain.ExitDecision{{Symbol: "XAUUSD", Magic: 7, Direction: domain.SideShort}},
	}
	require.NoError(t, h.executor.Manage(context.Background(), batch, time.Now()))

	assert.Equal(t, []int64{5}, h.broker.closedTickets)
	require.NotNil(t, h.summary)
	assert.Equal(t, 1, h.summary.PositionsClosed)
}

func TestManage_AccountFetchErrorAbortsCycle(t *testing.T) {
	h := newHarness(t)
	h.broker.openErr = errors.New("gateway timeout")

	err := h.executor.Manage(context.Background(), entryBatch(), time.Now())
	assert.ErrorIs(t, err, domain.ErrBrokerCall)
	assert.Nil(t, h.summary)
}

func TestManage_PriceFetchErrorDefersEntries(t *testing.T) {
	h := newHarness(t)
	h.broker.priceErr = errors.New("no quote")

	require.NoError(t, h.executor.Manage(context.Background(), entryBatch(), time.Now()))

	assert.Empty(t, h.broker.placedSpecs)
	require.NotNil(t, h.summary)
	assert.Equal(t, 0, h.summary.GroupsCreated)
}

func TestManage_SyncFillsActivatesPositions(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.executor.Manage(context.Background(), entryBatch(), time.Now()))
	require.Len(t, h.broker.placedSpecs, 2)

	groups := h.calc.Groups()
	require.Len(t, groups, 1)
	group := groups[0]

	// Both rungs fill at the broker.
	h.broker.open = []*domain.BrokerPosition{
		{Ticket: group.Positions[0].Ticket, Symbol: "XAUUSD", Type: domain.BrokerTypeBuy, Size: 0.5, OpenPrice: 3000.0, Magic: 42},
		{Ticket: group.Positions[1].Ticket, Symbol: "XAUUSD", Type: domain.BrokerTypeBuy, Size: 0.5, OpenPrice: 2985.0, Magic: 42},
	}

	require.NoError(t, h.executor.Manage(context.Background(), engine.TradeBatch{}, time.Now()))

	assert.Equal(t, domain.StateActive, group.Positions[0].State)
	assert.Equal(t, domain.StateActive, group.Positions[1].State)
	assert.True(t, group.IsFullyFilled())
	assert.InDelta(t, 1.0, group.TotalFilledSize, 1e-9)
	assert.InDelta(t, 2992.5, group.AverageEntryPrice, 1e-9)
}

func TestRiskMetrics(t *testing.T) {
	h := newHarness(t)
	h.broker.open = []*domain.BrokerPosition{{Ticket: 1, Type: domain.BrokerTypeBuy, Profit: -200.0}}
	h.broker.closed = []*domain.ClosedPosition{{Ticket: 2, Profit: -300.0}}

	metrics, err := h.executor.RiskMetrics(context.Background(), time.Now())
	require.NoError(t, err)

	assert.InDelta(t, -300.0, metrics.DailyPnL, 1e-9)
	assert.InDelta(t, -200.0, metrics.FloatingPnL, 1e-9)
	assert.InDelta(t, -500.0, metrics.TotalPnL, 1e-9)
	assert.False(t, metrics.RiskBreached)
	assert.True(t, metrics.TradeAuthorized)
}
