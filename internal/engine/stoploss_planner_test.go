package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/trade_risk_engine/internal/domain"
	"github.com/vitos/trade_risk_engine/internal/engine"
	"go.uber.org/zap"
)

func newPlanner(groupStop bool, maxRisk float64, strict bool) *engine.StopLossPlanner {
	calc := engine.NewStopLossCalculator(nil)
	return engine.NewStopLossPlanner(calc, groupStop, maxRisk, strict, zap.NewNop())
}

func TestPlan_IndividualMode(t *testing.T) {
	planner := newPlanner(false, 5.0, false)

	d := &domain.EntryDecision{
		Symbol:    "XAUUSD",
		Direction: domain.SideLong,
		Price:     3001.0,
		StopLoss:  &domain.StopLossSpec{Kind: domain.StopLossFixedPrice, Level: 2990.0},
	}

	plan, err := planner.Plan(d, []float64{3001.0, 2986.0}, []float64{0.5, 0.5})
	require.NoError(t, err)

	assert.Equal(t, domain.StopModeIndividual, plan.Mode)
	assert.Equal(t, domain.StopMethodOriginal, plan.Method)
	assert.InDelta(t, 2990.0, plan.StopForEntry(0), 1e-9)
	assert.InDelta(t, 2990.0, plan.StopForEntry(1), 1e-9)
}

func TestPlan_MonetaryGroupStop(t *testing.T) {
	planner := newPlanner(true, 5.0, false)

	d := &domain.EntryDecision{
		Symbol:       "XAUUSD",
		Direction:    domain.SideLong,
		Price:        3001.0,
		PositionSize: 1.0,
	}

	prices := []float64{3001.0, 2985.995, 2970.99, 2955.985}
	sizes := []float64{0.25, 0.25, 0.25, 0.25}

	plan, err := planner.Plan(d, prices, sizes)
	require.NoError(t, err)

	assert.Equal(t, domain.StopModeGroup, plan.Mode)
	assert.Equal(t, domain.StopMethodMonetary, plan.Method)
	assert.InDelta(t, 2973.4925, plan.GroupLevel, 1e-9)
	assert.InDelta(t, 5.0, plan.TargetRisk, 1e-9)
	assert.InDelta(t, 5.0, plan.AchievedRisk, 1e-9)
	assert.InDelta(t, plan.GroupLevel, plan.StopForEntry(3), 1e-9)
}

func TestPlan_PriceLevelGroupStop(t *testing.T) {
	planner := newPlanner(true, 100.0, false)

	d := &domain.EntryDecision{
		Symbol:       "XAUUSD",
		Direction:    domain.SideLong,
		Price:        3001.0,
		PositionSize: 1.0,
		StopLoss:     &domain.StopLossSpec{Kind: domain.StopLossFixedPrice, Level: 2996.0},
	}

	prices := []float64{3001.0, 2985.995, 2970.99, 2955.985}
	sizes := []float64{0.25, 0.25, 0.25, 0.25}

	plan, err := planner.Plan(d, prices, sizes)
	require.NoError(t, err)

	// Original risk 5.0 re-applied around the ladder average of 2978.4925.
	assert.Equal(t, domain.StopModeGroup, plan.Mode)
	assert.Equal(t, domain.StopMethodPriceLevel, plan.Method)
	assert.InDelta(t, 5.0, plan.TargetRisk, 1e-9)
	assert.InDelta(t, 2973.4925, plan.GroupLevel, 1e-9)
	assert.InDelta(t, 5.0, plan.AchievedRisk, 1e-9)
}

func TestPlan_WrongSideStop_WarnAndProceed(t *testing.T) {
	planner := newPlanner(true, 100.0, false)

	d := &domain.EntryDecision{
		Symbol:       "XAUUSD",
		Direction:    domain.SideLong,
		Price:        100.0,
		PositionSize: 1.0,
		StopLoss:     &domain.StopLossSpec{Kind: domain.StopLossFixedPrice, Level: 105.0},
	}

	plan, err := planner.Plan(d, []float64{100.0}, []float64{1.0})
	require.NoError(t, err)

	assert.Equal(t, domain.StopModeGroup, plan.Mode)
	assert.InDelta(t, 105.0, plan.GroupLevel, 1e-9)
}

func TestPlan_WrongSideStop_StrictReject(t *testing.T) {
	planner := newPlanner(true, 100.0, true)

	d := &domain.EntryDecision{
		Symbol:       "XAUUSD",
		Direction:    domain.SideLong,
		Price:        100.0,
		PositionSize: 1.0,
		StopLoss:     &domain.StopLossSpec{Kind: domain.StopLossFixedPrice, Level: 105.0},
	}

	_, err := planner.Plan(d, []float64{100.0}, []float64{1.0})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPlan_MismatchedSlices(t *testing.T) {
	planner := newPlanner(true, 5.0, false)

	d := &domain.EntryDecision{Symbol: "XAUUSD", Direction: domain.SideLong}

	_, err := planner.Plan(d, []float64{100.0, 99.0}, []float64{1.0})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
