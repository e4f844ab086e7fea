package domain

type OrderKind string

const (
	OrderBuyLimit  OrderKind = "BUY_LIMIT"
	OrderSellLimit OrderKind = "SELL_LIMIT"
)

// OrderKindForSide returns the pending-order kind placed for a scaled entry:
// longs buy dips below price, shorts sell rallies above it.
func OrderKindForSide(side Side) OrderKind {
	if side == SideShort {
		return OrderSellLimit
	}
	return OrderBuyLimit
}

// OrderSpec is one broker-ready pending order produced by the risk calculator.
type OrderSpec struct {
	Symbol       string
	Kind         OrderKind
	Volume       float64
	Price        float64
	StopLoss     float64
	TakeProfit   float64
	Trailing     bool
	TrailingStep float64
	Strategy     string
	Magic        int64

	// PositionID correlates the spec back to its ScaledPosition.
	PositionID string
}

type StopMode string

const (
	StopModeGroup      StopMode = "group"
	StopModeIndividual StopMode = "individual"
)

type StopMethod string

const (
	StopMethodMonetary   StopMethod = "monetary"
	StopMethodPriceLevel StopMethod = "price_level"
	StopMethodOriginal   StopMethod = "original"
)

// RiskEntryResult is everything downstream execution needs for one accepted
// entry decision.
type RiskEntryResult struct {
	GroupID    string
	Group      *PositionGroup
	Orders     []OrderSpec
	StopMode   StopMode
	StopMethod StopMethod

	// TargetRisk is the monetary risk the stop plan aimed for; AchievedRisk is
	// what the resolved stop actually bounds. Zero when the plan reuses the
	// original stop verbatim.
	TargetRisk   float64
	AchievedRisk float64
}
