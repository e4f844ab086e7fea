package domain

import (
	"fmt"
	"math"
)

type ScalingType string

const (
	ScalingEqual       ScalingType = "equal"
	ScalingPyramidUp   ScalingType = "pyramid_increasing"
	ScalingPyramidDown ScalingType = "pyramid_decreasing"
	ScalingCustom      ScalingType = "custom"
)

// weightSumTolerance is how far the sum of custom weights may deviate from 1.0.
const weightSumTolerance = 0.01

// ScalingConfig describes how one entry signal splits into NumEntries scaled
// sub-orders. Immutable after Validate.
type ScalingConfig struct {
	NumEntries      int
	Type            ScalingType
	EntrySpacingPct float64
	MaxRiskPerGroup float64
	CustomWeights   []float64
}

func (c ScalingConfig) Validate() error {
	if c.NumEntries < 1 {
		return fmt.Errorf("%w: num_entries must be >= 1, got %d", ErrInvalidConfiguration, c.NumEntries)
	}

	switch c.Type {
	case ScalingEqual, ScalingPyramidUp, ScalingPyramidDown:
		// No extra constraints.
	case ScalingCustom:
		if len(c.CustomWeights) == 0 {
			return fmt.Errorf("%w: custom scaling requires weights", ErrInvalidConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown scaling type %q", ErrInvalidConfiguration, string(c.Type))
	}

	if len(c.CustomWeights) > 0 {
		if len(c.CustomWeights) != c.NumEntries {
			return fmt.Errorf("%w: %d custom weights for %d entries", ErrInvalidConfiguration, len(c.CustomWeights), c.NumEntries)
		}
		sum := 0.0
		for _, w := range c.CustomWeights {
			sum += w
		}
		if math.Abs(sum-1.0) > weightSumTolerance {
			return fmt.Errorf("%w: custom weights sum to %f, want 1.0", ErrInvalidConfiguration, sum)
		}
	}

	if c.EntrySpacingPct < 0 {
		return fmt.Errorf("%w: entry spacing must not be negative", ErrInvalidConfiguration)
	}

	return nil
}

// SizeRatios returns the per-entry size fractions. The result always has
// NumEntries elements and sums to 1.0.
func (c ScalingConfig) SizeRatios() []float64 {
	n := c.NumEntries
	ratios := make([]float64, n)

	switch c.Type {
	case ScalingPyramidUp:
		// Proportional to 1..N.
		total := float64(n*(n+1)) / 2
		for i := 0; i < n; i++ {
			ratios[i] = float64(i+1) / total
		}
	case ScalingPyramidDown:
		// Proportional to N..1.
		total := float64(n*(n+1)) / 2
		for i := 0; i < n; i++ {
			ratios[i] = float64(n-i) / total
		}
	case ScalingCustom:
		copy(ratios, c.CustomWeights)
	default:
		for i := 0; i < n; i++ {
			ratios[i] = 1.0 / float64(n)
		}
	}

	return ratios
}
