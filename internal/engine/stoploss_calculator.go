package engine

import (
	"fmt"

	"github.com/vitos/trade_risk_engine/internal/domain"
)

// WeightedEntry is one (price, size) pair of a scaled ladder.
type WeightedEntry struct {
	Price float64
	Size  float64
}

// GroupStopResult is the outcome of a group stop-loss computation.
type GroupStopResult struct {
	Stop           float64
	AverageEntry   float64
	TotalSize      float64
	RequiredPoints float64
}

// EntryRisk is the monetary risk one entry carries at a given stop.
type EntryRisk struct {
	Price float64
	Size  float64
	Risk  float64
}

// RiskBreakdown is the per-entry and total monetary risk at a given stop.
type RiskBreakdown struct {
	PerEntry  []EntryRisk
	TotalRisk float64
}

// StopLossCalculator computes stop levels that bound the monetary risk of a
// set of weighted entries. Pure math; no broker interaction.
type StopLossCalculator struct {
	pointValues map[string]float64
}

func NewStopLossCalculator(pointValues map[string]float64) *StopLossCalculator {
	return &StopLossCalculator{pointValues: pointValues}
}

// PointValue is the monetary value of one price unit per unit size. Symbols
// without an explicit entry default to 1.0.
func (c *StopLossCalculator) PointValue(symbol string) float64 {
	if v, ok := c.pointValues[symbol]; ok && v > 0 {
		return v
	}
	return 1.0
}

// GroupStopLoss computes the single stop level at which the whole ladder
// loses exactly targetRisk. The stop sits below the size-weighted average
// entry for longs and above it for shorts; oppositeSide flips that placement
// (used when replicating a stop the original decision placed on the profit
// side).
func (c *StopLossCalculator) GroupStopLoss(symbol string, entries []WeightedEntry, targetRisk float64, side domain.Side, oppositeSide bool) (GroupStopResult, error) {
	if len(entries) == 0 {
		return GroupStopResult{}, fmt.Errorf("%w: no entries for group stop-loss", domain.ErrInvalidInput)
	}

	totalSize := 0.0
	weighted := 0.0
	for _, e := range entries {
		totalSize += e.Size
		weighted += e.Price * e.Size
	}
	if totalSize <= 0 {
		return GroupStopResult{}, fmt.Errorf("%w: total entry size is zero", domain.ErrInvalidInput)
	}

	avg := weighted / totalSize
	points := targetRisk / (totalSize * c.PointValue(symbol))

	stopBelow := side == domain.SideLong
	if oppositeSide {
		stopBelow = !stopBelow
	}

	stop := avg + points
	if stopBelow {
		stop = avg - points
	}

	return GroupStopResult{
		Stop:           stop,
		AverageEntry:   avg,
		TotalSize:      totalSize,
		RequiredPoints: points,
	}, nil
}

// RiskForStop is the reverse operation: given an explicit stop, compute the
// monetary risk each entry and the ladder as a whole carries. A negative risk
// means the stop sits on the profit side of that entry.
func (c *StopLossCalculator) RiskForStop(symbol string, entries []WeightedEntry, stop float64, side domain.Side) (RiskBreakdown, error) {
	if len(entries) == 0 {
		return RiskBreakdown{}, fmt.Errorf("%w: no entries for risk calculation", domain.ErrInvalidInput)
	}

	pv := c.PointValue(symbol)
	breakdown := RiskBreakdown{PerEntry: make([]EntryRisk, 0, len(entries))}
	totalSize := 0.0

	for _, e := range entries {
		totalSize += e.Size
		points := e.Price - stop
		if side == domain.SideShort {
			points = stop - e.Price
		}
		risk := points * e.Size * pv
		breakdown.PerEntry = append(breakdown.PerEntry, EntryRisk{Price: e.Price, Size: e.Size, Risk: risk})
		breakdown.TotalRisk += risk
	}
	if totalSize <= 0 {
		return RiskBreakdown{}, fmt.Errorf("%w: total entry size is zero", domain.ErrInvalidInput)
	}

	return breakdown, nil
}

// GroupStopFromOriginal derives the target risk from a single original
// entry/stop pair and re-applies it to the scaled entries, preserving which
// side of the average the stop sat on. Returns the result together with the
// derived target risk.
func (c *StopLossCalculator) GroupStopFromOriginal(symbol string, entries []WeightedEntry, origEntry, origStop, origSize float64, side domain.Side) (GroupStopResult, float64, error) {
	if origSize <= 0 {
		return GroupStopResult{}, 0, fmt.Errorf("%w: original size is zero", domain.ErrInvalidInput)
	}

	dist := origEntry - origStop
	if dist < 0 {
		dist = -dist
	}
	targetRisk := dist * origSize * c.PointValue(symbol)

	opposite := stopOnWrongSide(side, origEntry, origStop)
	res, err := c.GroupStopLoss(symbol, entries, targetRisk, side, opposite)
	return res, targetRisk, err
}

// stopOnWrongSide reports whether a stop level sits on the profit side of the
// entry for the stated direction.
func stopOnWrongSide(side domain.Side, entry, stop float64) bool {
	if side == domain.SideLong {
		return stop > entry
	}
	return stop < entry
}
