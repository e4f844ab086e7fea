package domain

import "time"

type SuspendedKind string

const (
	SuspendedPendingOrder SuspendedKind = "pending_order"
	SuspendedPositionSLTP SuspendedKind = "position_sl_tp"
)

// SuspendedItem records what was withdrawn when a restriction window began:
// either a cancelled pending order (with enough data to recreate it) or the
// original protective levels stripped from an open position. Keyed uniquely
// by ticket.
type SuspendedItem struct {
	Ticket      int64
	Kind        SuspendedKind
	Symbol      string
	Side        Side
	Volume      float64
	Price       float64
	StopLoss    float64
	TakeProfit  float64
	Magic       int64
	SuspendedAt time.Time
}
