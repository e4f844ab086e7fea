package domain

import (
	"fmt"
	"time"
)

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// SignalKind identifies how the strategy layer wants to enter the market.
// Values match the broker's order type names so duplicate detection can
// compare signals against live orders directly.
type SignalKind string

const (
	SignalBuy       SignalKind = "BUY"
	SignalSell      SignalKind = "SELL"
	SignalBuyLimit  SignalKind = "BUY_LIMIT"
	SignalSellLimit SignalKind = "SELL_LIMIT"
)

// Side maps the signal kind to a trade direction. Unknown kinds are an error,
// never a silent default.
func (k SignalKind) Side() (Side, error) {
	switch k {
	case SignalBuy, SignalBuyLimit:
		return SideLong, nil
	case SignalSell, SignalSellLimit:
		return SideShort, nil
	default:
		return "", fmt.Errorf("%w: signal kind %q", ErrUnknownSignalDirection, string(k))
	}
}

type StopLossKind string

const (
	StopLossFixedPrice StopLossKind = "fixed_price"
	StopLossMonetary   StopLossKind = "monetary_target"
)

// StopLossSpec is the stop requested by the strategy layer. For fixed_price
// the Level is a price; for monetary_target the group risk budget applies and
// the level is ignored.
type StopLossSpec struct {
	Kind         StopLossKind
	Level        float64
	Trailing     bool
	TrailingStep float64
}

// TakeProfitTarget is one rung of a multi-target take-profit ladder.
type TakeProfitTarget struct {
	Level        float64
	SizeFraction float64
	Percent      float64
	MoveStopTo   float64
}

// TakeProfitSpec is either a single fixed level or a multi-target list.
type TakeProfitSpec struct {
	Level   float64
	Targets []TakeProfitTarget
}

// FirstLevel returns the level attached to broker orders: the first target of
// a multi-target spec, otherwise the fixed level.
func (tp *TakeProfitSpec) FirstLevel() float64 {
	if tp == nil {
		return 0
	}
	if len(tp.Targets) > 0 {
		return tp.Targets[0].Level
	}
	return tp.Level
}

// EntryDecision is one enter-trade signal from the strategy layer. Consumed
// once, read-only.
type EntryDecision struct {
	Symbol       string
	Strategy     string
	Magic        int64
	Direction    Side
	Signal       SignalKind
	Price        float64
	PositionSize float64
	StopLoss     *StopLossSpec
	TakeProfit   *TakeProfitSpec
	DecidedAt    time.Time
}

// ExitDecision requests closure of every open position matching
// (symbol, magic, direction).
type ExitDecision struct {
	Symbol    string
	Strategy  string
	Magic     int64
	Direction Side
	DecidedAt time.Time
}
