package engine

import (
	"fmt"

	"github.com/vitos/trade_risk_engine/internal/domain"
	"go.uber.org/zap"
)

// StopLossPlan is the resolved stop arrangement for one scaled entry.
type StopLossPlan struct {
	Mode       domain.StopMode
	Method     domain.StopMethod
	GroupLevel float64

	// PerOrderStops is set only for individual mode; one entry per rung.
	PerOrderStops []float64

	TargetRisk   float64
	AchievedRisk float64
}

// StopForEntry returns the stop level order i should carry.
func (p *StopLossPlan) StopForEntry(i int) float64 {
	if p.Mode == domain.StopModeGroup {
		return p.GroupLevel
	}
	if i < len(p.PerOrderStops) {
		return p.PerOrderStops[i]
	}
	return 0
}

// StopLossPlanner decides, per entry decision, whether the ladder shares a
// single group stop or each rung reuses the original stop, and invokes the
// calculator accordingly. Stateless.
type StopLossPlanner struct {
	calc           *StopLossCalculator
	groupStop      bool
	maxRisk        float64
	strictStopSide bool
	logger         *zap.Logger
}

func NewStopLossPlanner(calc *StopLossCalculator, groupStop bool, maxRiskPerGroup float64, strictStopSide bool, logger *zap.Logger) *StopLossPlanner {
	return &StopLossPlanner{
		calc:           calc,
		groupStop:      groupStop,
		maxRisk:        maxRiskPerGroup,
		strictStopSide: strictStopSide,
		logger:         logger,
	}
}

// Plan resolves the stop arrangement for the given scaled entry prices and
// sizes (parallel slices, one element per rung).
func (p *StopLossPlanner) Plan(d *domain.EntryDecision, entryPrices, sizes []float64) (*StopLossPlan, error) {
	if len(entryPrices) == 0 || len(entryPrices) != len(sizes) {
		return nil, fmt.Errorf("%w: %d prices for %d sizes", domain.ErrInvalidInput, len(entryPrices), len(sizes))
	}

	if !p.groupStop {
		// Individual mode: every rung reuses the original stop verbatim.
		level := 0.0
		if d.StopLoss != nil {
			level = d.StopLoss.Level
		}
		stops := make([]float64, len(entryPrices))
		for i := range stops {
			stops[i] = level
		}
		return &StopLossPlan{
			Mode:          domain.StopModeIndividual,
			Method:        domain.StopMethodOriginal,
			PerOrderStops: stops,
		}, nil
	}

	entries := make([]WeightedEntry, len(entryPrices))
	for i := range entryPrices {
		entries[i] = WeightedEntry{Price: entryPrices[i], Size: sizes[i]}
	}

	if d.StopLoss != nil && d.StopLoss.Kind == domain.StopLossFixedPrice {
		return p.planFromPriceLevel(d, entries)
	}

	// No stop requested, or a monetary target: bound the ladder by the
	// configured group risk budget.
	res, err := p.calc.GroupStopLoss(d.Symbol, entries, p.maxRisk, d.Direction, false)
	if err != nil {
		return nil, err
	}
	achieved, err := p.calc.RiskForStop(d.Symbol, entries, res.Stop, d.Direction)
	if err != nil {
		return nil, err
	}
	return &StopLossPlan{
		Mode:         domain.StopModeGroup,
		Method:       domain.StopMethodMonetary,
		GroupLevel:   res.Stop,
		TargetRisk:   p.maxRisk,
		AchievedRisk: achieved.TotalRisk,
	}, nil
}

func (p *StopLossPlanner) planFromPriceLevel(d *domain.EntryDecision, entries []WeightedEntry) (*StopLossPlan, error) {
	if stopOnWrongSide(d.Direction, d.Price, d.StopLoss.Level) {
		if p.strictStopSide {
			return nil, fmt.Errorf("%w: %s stop %f on the wrong side of entry %f",
				domain.ErrInvalidInput, d.Direction, d.StopLoss.Level, d.Price)
		}
		// Possibly a take-profit level passed as a stop. Replicate it anyway.
		p.logger.Warn("original stop-loss on the wrong side of entry, replicating as-is",
			zap.String("symbol", d.Symbol),
			zap.String("side", string(d.Direction)),
			zap.Float64("entry", d.Price),
			zap.Float64("stop", d.StopLoss.Level))
	}

	res, targetRisk, err := p.calc.GroupStopFromOriginal(d.Symbol, entries, d.Price, d.StopLoss.Level, d.PositionSize, d.Direction)
	if err != nil {
		return nil, err
	}
	achieved, err := p.calc.RiskForStop(d.Symbol, entries, res.Stop, d.Direction)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("group stop replicated from original price level",
		zap.String("symbol", d.Symbol),
		zap.Float64("group_stop", res.Stop),
		zap.Float64("target_risk", targetRisk),
		zap.Float64("achieved_risk", achieved.TotalRisk))

	return &StopLossPlan{
		Mode:         domain.StopModeGroup,
		Method:       domain.StopMethodPriceLevel,
		GroupLevel:   res.Stop,
		TargetRisk:   targetRisk,
		AchievedRisk: achieved.TotalRisk,
	}, nil
}
