package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vitos/trade_risk_engine/internal/domain"
	"github.com/vitos/trade_risk_engine/internal/engine"
	"go.uber.org/zap"
)

func TestComputePnL(t *testing.T) {
	open := []*domain.BrokerPosition{
		{Ticket: 1, Profit: -450.0, Swap: -50.0},
		{Ticket: 2, Profit: 30.0},
	}
	closed := []*domain.ClosedPosition{
		{Ticket: 3, Profit: -580.0, Commission: -15.0, Swap: -5.0},
	}

	closedPnL, floatingPnL := engine.ComputePnL(open, closed)
	assert.InDelta(t, -600.0, closedPnL, 1e-9)
	assert.InDelta(t, -470.0, floatingPnL, 1e-9)
}

func TestCheckCatastrophicLossLimit_Trips(t *testing.T) {
	broker := newMockBroker()
	monitor := engine.NewRiskMonitor(broker, -1000.0, zap.NewNop())

	open := []*domain.BrokerPosition{{Ticket: 1, Profit: -500.0}}
	closed := []*domain.ClosedPosition{{Ticket: 2, Profit: -600.0}}

	// -1100 total against a -1000 limit.
	breached := monitor.CheckCatastrophicLossLimit(context.Background(), open, closed)
	assert.True(t, breached)
	assert.True(t, monitor.Breached())
	assert.Equal(t, 1, broker.closeAllCalls)
	assert.Equal(t, 1, broker.cancelAllCalls)
}

func TestCheckCatastrophicLossLimit_FlattensExactlyOnce(t *testing.T) {
	broker := newMockBroker()
	monitor := engine.NewRiskMonitor(broker, -1000.0, zap.NewNop())

	closed := []*domain.ClosedPosition{{Ticket: 2, Profit: -1500.0}}

	assert.True(t, monitor.CheckCatastrophicLossLimit(context.Background(), nil, closed))
	assert.True(t, monitor.CheckCatastrophicLossLimit(context.Background(), nil, closed))
	assert.True(t, monitor.CheckCatastrophicLossLimit(context.Background(), nil, nil))

	assert.Equal(t, 1, broker.closeAllCalls)
	assert.Equal(t, 1, broker.cancelAllCalls)
}

func TestCheckCatastrophicLossLimit_ExactLimitDoesNotTrip(t *testing.T) {
	broker := newMockBroker()
	monitor := engine.NewRiskMonitor(broker, -1000.0, zap.NewNop())

	closed := []*domain.ClosedPosition{{Ticket: 2, Profit: -1000.0}}

	assert.False(t, monitor.CheckCatastrophicLossLimit(context.Background(), nil, closed))
	assert.Equal(t, 0, broker.closeAllCalls)
}

func TestCheckCatastrophicLossLimit_Disabled(t *testing.T) {
	broker := newMockBroker()
	monitor := engine.NewRiskMonitor(broker, 0, zap.NewNop())

	closed := []*domain.ClosedPosition{{Ticket: 2, Profit: -999999.0}}

	assert.False(t, monitor.CheckCatastrophicLossLimit(context.Background(), nil, closed))
	assert.Equal(t, 0, broker.closeAllCalls)
	assert.InDelta(t, -999999.0, monitor.ClosedPnL(), 1e-9)
}

func TestCheckCatastrophicLossLimit_ProfitNeverTrips(t *testing.T) {
	broker := newMockBroker()
	monitor := engine.NewRiskMonitor(broker, -1000.0, zap.NewNop())

	open := []*domain.BrokerPosition{{Ticket: 1, Profit: 2500.0}}

	assert.False(t, monitor.CheckCatastrophicLossLimit(context.Background(), open, nil))
	assert.InDelta(t, 2500.0, monitor.FloatingPnL(), 1e-9)
}
