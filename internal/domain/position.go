package domain

import "time"

type PositionState string

const (
	StatePending       PositionState = "PENDING"
	StatePartialFilled PositionState = "PARTIAL_FILLED"
	StateActive        PositionState = "ACTIVE"
	StateClosed        PositionState = "CLOSED"
	StateCancelled     PositionState = "CANCELLED"
	StateFailed        PositionState = "FAILED"
)

type PositionRole string

const (
	RoleInitial PositionRole = "INITIAL"
	RoleScaleIn PositionRole = "SCALE_IN"
)

// ScaledPosition is one rung of a scaled entry ladder. Created once per
// sub-order; mutated only by fill updates and terminal state marks.
type ScaledPosition struct {
	ID      string
	GroupID string

	Symbol     string
	Side       Side
	EntryPrice float64
	TargetSize float64
	Role       PositionRole

	StopLoss    float64
	TakeProfits []TakeProfitTarget

	State       PositionState
	FilledSize  float64
	FilledPrice float64
	FilledAt    time.Time

	Strategy string
	Magic    int64
	Ticket   int64
}

// UpdateFill accumulates a fill. The position becomes Active once the filled
// size reaches the target, otherwise PartialFilled.
func (p *ScaledPosition) UpdateFill(size, price float64, at time.Time) {
	p.FilledSize += size
	p.FilledPrice = price
	p.FilledAt = at
	if p.FilledSize >= p.TargetSize {
		p.State = StateActive
	} else {
		p.State = StatePartialFilled
	}
}

func (p *ScaledPosition) IsFilled() bool {
	return p.FilledSize >= p.TargetSize
}

func (p *ScaledPosition) MarkClosed()    { p.State = StateClosed }
func (p *ScaledPosition) MarkCancelled() { p.State = StateCancelled }
func (p *ScaledPosition) MarkFailed()    { p.State = StateFailed }

// PositionGroup holds every scaled position spawned by one entry decision.
// Groups accumulate history for the life of the session; they are never
// silently deleted.
type PositionGroup struct {
	ID       string
	Symbol   string
	Strategy string
	Side     Side
	Decision EntryDecision

	TotalTargetSize float64
	NumEntries      int
	ScalingLabel    string
	Positions       []*ScaledPosition

	GroupStopLoss float64

	TotalFilledSize   float64
	AverageEntryPrice float64
	RealizedPnL       float64

	CreatedAt time.Time
}

func (g *PositionGroup) AddPosition(p *ScaledPosition) {
	p.GroupID = g.ID
	g.Positions = append(g.Positions, p)
}

// UpdateMetrics recomputes the filled size and size-weighted average entry
// price over Active positions only.
func (g *PositionGroup) UpdateMetrics() {
	totalSize := 0.0
	weighted := 0.0
	for _, p := range g.Positions {
		if p.State != StateActive {
			continue
		}
		totalSize += p.FilledSize
		weighted += p.FilledPrice * p.FilledSize
	}
	g.TotalFilledSize = totalSize
	if totalSize > 0 {
		g.AverageEntryPrice = weighted / totalSize
	} else {
		g.AverageEntryPrice = 0
	}
}

// UnrealizedPnL sums floating profit over Active positions at the given price.
func (g *PositionGroup) UnrealizedPnL(currentPrice float64) float64 {
	pnl := 0.0
	for _, p := range g.Positions {
		if p.State != StateActive {
			continue
		}
		if g.Side == SideLong {
			pnl += (currentPrice - p.FilledPrice) * p.FilledSize
		} else {
			pnl += (p.FilledPrice - currentPrice) * p.FilledSize
		}
	}
	return pnl
}

// IsFullyFilled reports whether every position reached its target size.
func (g *PositionGroup) IsFullyFilled() bool {
	for _, p := range g.Positions {
		if !p.IsFilled() {
			return false
		}
	}
	return true
}
