package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/vitos/trade_risk_engine/internal/domain"
	"go.uber.org/zap"
)

// RiskCalculator turns accepted entry decisions into position groups and
// broker-ready order ladders. It owns the in-memory group map for the session
// and writes through to the repository when one is provided.
type RiskCalculator struct {
	scaling domain.ScalingConfig
	planner *StopLossPlanner
	repo    domain.GroupRepository
	logger  *zap.Logger

	groups map[string]*domain.PositionGroup
	seq    int64
}

func NewRiskCalculator(scaling domain.ScalingConfig, planner *StopLossPlanner, repo domain.GroupRepository, logger *zap.Logger) (*RiskCalculator, error) {
	if err := scaling.Validate(); err != nil {
		return nil, err
	}
	return &RiskCalculator{
		scaling: scaling,
		planner: planner,
		repo:    repo,
		logger:  logger,
		groups:  make(map[string]*domain.PositionGroup),
	}, nil
}

// Restore reloads persisted groups into the session map after a restart.
func (c *RiskCalculator) Restore(ctx context.Context) error {
	if c.repo == nil {
		return nil
	}
	groups, err := c.repo.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("restore position groups: %w", err)
	}
	for _, g := range groups {
		c.groups[g.ID] = g
	}
	if len(groups) > 0 {
		c.logger.Info("restored position groups", zap.Int("count", len(groups)))
	}
	return nil
}

func (c *RiskCalculator) Group(id string) (*domain.PositionGroup, bool) {
	g, ok := c.groups[id]
	return g, ok
}

func (c *RiskCalculator) Groups() []*domain.PositionGroup {
	out := make([]*domain.PositionGroup, 0, len(c.groups))
	for _, g := range c.groups {
		out = append(out, g)
	}
	return out
}

// ProcessEntrySignal builds the scaled ladder for one decision: N entry
// prices stepping away from the current price, sizes from the scaling ratios,
// a stop plan, and one pending-order spec per rung.
func (c *RiskCalculator) ProcessEntrySignal(ctx context.Context, d *domain.EntryDecision, currentPrice float64) (*domain.RiskEntryResult, error) {
	if currentPrice <= 0 {
		return nil, fmt.Errorf("%w: current price %f", domain.ErrInvalidInput, currentPrice)
	}
	if d.PositionSize <= 0 {
		return nil, fmt.Errorf("%w: position size %f", domain.ErrInvalidInput, d.PositionSize)
	}
	if d.Direction != domain.SideLong && d.Direction != domain.SideShort {
		return nil, fmt.Errorf("%w: direction %q", domain.ErrUnknownSignalDirection, string(d.Direction))
	}

	n := c.scaling.NumEntries

	// Entry ladder: first rung at the current price, later rungs stepping
	// down for longs (buy dips) and up for shorts (sell rallies).
	prices := make([]float64, n)
	for i := 0; i < n; i++ {
		step := currentPrice * c.scaling.EntrySpacingPct / 100 * float64(i)
		if d.Direction == domain.SideLong {
			prices[i] = currentPrice - step
		} else {
			prices[i] = currentPrice + step
		}
	}

	ratios := c.scaling.SizeRatios()
	sizes := make([]float64, n)
	for i, r := range ratios {
		sizes[i] = d.PositionSize * r
	}

	plan, err := c.planner.Plan(d, prices, sizes)
	if err != nil {
		return nil, err
	}

	group := &domain.PositionGroup{
		ID:              c.nextGroupID(),
		Symbol:          d.Symbol,
		Strategy:        d.Strategy,
		Side:            d.Direction,
		Decision:        *d,
		TotalTargetSize: d.PositionSize,
		NumEntries:      n,
		ScalingLabel:    string(c.scaling.Type),
		CreatedAt:       time.Now(),
	}
	if plan.Mode == domain.StopModeGroup {
		group.GroupStopLoss = plan.GroupLevel
	}

	var targets []domain.TakeProfitTarget
	if d.TakeProfit != nil {
		targets = d.TakeProfit.Targets
	}

	orders := make([]domain.OrderSpec, 0, n)
	for i := 0; i < n; i++ {
		role := domain.RoleScaleIn
		if i == 0 {
			role = domain.RoleInitial
		}
		pos := &domain.ScaledPosition{
			ID:          fmt.Sprintf("%s-%d", group.ID, i),
			Symbol:      d.Symbol,
			Side:        d.Direction,
			EntryPrice:  prices[i],
			TargetSize:  sizes[i],
			Role:        role,
			StopLoss:    plan.StopForEntry(i),
			TakeProfits: targets,
			State:       domain.StatePending,
			Strategy:    d.Strategy,
			Magic:       d.Magic,
		}
		group.AddPosition(pos)

		spec := domain.OrderSpec{
			Symbol:     d.Symbol,
			Kind:       domain.OrderKindForSide(d.Direction),
			Volume:     sizes[i],
			Price:      prices[i],
			StopLoss:   plan.StopForEntry(i),
			TakeProfit: d.TakeProfit.FirstLevel(),
			Strategy:   d.Strategy,
			Magic:      d.Magic,
			PositionID: pos.ID,
		}
		if d.StopLoss != nil {
			spec.Trailing = d.StopLoss.Trailing
			spec.TrailingStep = d.StopLoss.TrailingStep
		}
		orders = append(orders, spec)
	}

	c.groups[group.ID] = group
	c.persistGroup(ctx, group)

	c.logger.Info("entry signal scaled",
		zap.String("group", group.ID),
		zap.String("symbol", d.Symbol),
		zap.String("side", string(d.Direction)),
		zap.Int("entries", n),
		zap.String("stop_mode", string(plan.Mode)),
		zap.Float64("target_risk", plan.TargetRisk),
		zap.Float64("achieved_risk", plan.AchievedRisk))

	return &domain.RiskEntryResult{
		GroupID:      group.ID,
		Group:        group,
		Orders:       orders,
		StopMode:     plan.Mode,
		StopMethod:   plan.Method,
		TargetRisk:   plan.TargetRisk,
		AchievedRisk: plan.AchievedRisk,
	}, nil
}

// ProcessEntries applies ProcessEntrySignal per decision. One signal's
// failure never aborts the batch.
func (c *RiskCalculator) ProcessEntries(ctx context.Context, decisions []*domain.EntryDecision, currentPrice float64) []*domain.RiskEntryResult {
	results := make([]*domain.RiskEntryResult, 0, len(decisions))
	for _, d := range decisions {
		res, err := c.ProcessEntrySignal(ctx, d, currentPrice)
		if err != nil {
			c.logger.Error("entry signal rejected",
				zap.String("symbol", d.Symbol),
				zap.Int64("magic", d.Magic),
				zap.Error(err))
			continue
		}
		results = append(results, res)
	}
	return results
}

func (c *RiskCalculator) persistGroup(ctx context.Context, g *domain.PositionGroup) {
	if c.repo == nil {
		return
	}
	if err := c.repo.SaveGroup(ctx, g); err != nil {
		c.logger.Error("failed to persist position group", zap.String("group", g.ID), zap.Error(err))
		return
	}
	for _, p := range g.Positions {
		if err := c.repo.SavePosition(ctx, p); err != nil {
			c.logger.Error("failed to persist scaled position", zap.String("position", p.ID), zap.Error(err))
		}
	}
}

func (c *RiskCalculator) nextGroupID() string {
	c.seq++
	return fmt.Sprintf("grp-%d-%d", time.Now().UnixNano(), c.seq)
}
