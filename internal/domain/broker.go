package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Broker position/order type codes, matching the MT5-style gateway encoding.
const (
	BrokerTypeBuy       = 0
	BrokerTypeSell      = 1
	BrokerTypeBuyLimit  = 2
	BrokerTypeSellLimit = 3
	BrokerTypeBuyStop   = 4
	BrokerTypeSellStop  = 5
)

// SideFromBrokerCode normalizes the gateway's integer type encoding to a
// trade direction.
func SideFromBrokerCode(code int) (Side, error) {
	switch code {
	case BrokerTypeBuy, BrokerTypeBuyLimit, BrokerTypeBuyStop:
		return SideLong, nil
	case BrokerTypeSell, BrokerTypeSellLimit, BrokerTypeSellStop:
		return SideShort, nil
	default:
		return "", fmt.Errorf("%w: broker type code %d", ErrUnknownSignalDirection, code)
	}
}

// SideFromBrokerName normalizes the gateway's string type encoding
// ("BUY", "SELL_LIMIT", ...) to a trade direction.
func SideFromBrokerName(name string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "BUY", "BUY_LIMIT", "BUY_STOP":
		return SideLong, nil
	case "SELL", "SELL_LIMIT", "SELL_STOP":
		return SideShort, nil
	default:
		return "", fmt.Errorf("%w: broker type name %q", ErrUnknownSignalDirection, name)
	}
}

// BrokerCodeForSide returns the market order type code for a direction, used
// when matching exits against open positions.
func BrokerCodeForSide(side Side) int {
	if side == SideShort {
		return BrokerTypeSell
	}
	return BrokerTypeBuy
}

// BrokerPosition is an open position as reported by the gateway.
type BrokerPosition struct {
	Ticket     int64
	Symbol     string
	Type       int
	Size       float64
	OpenPrice  float64
	StopLoss   float64
	TakeProfit float64
	Profit     float64
	Swap       float64
	Commission float64
	Magic      int64
}

func (p *BrokerPosition) Side() (Side, error) {
	return SideFromBrokerCode(p.Type)
}

// PendingOrder is a working order as reported by the gateway. Some gateways
// encode the type numerically, some by name; TypeName wins when present.
type PendingOrder struct {
	Ticket     int64
	Symbol     string
	Type       int
	TypeName   string
	Volume     float64
	Price      float64
	StopLoss   float64
	TakeProfit float64
	Magic      int64
}

func (o *PendingOrder) Side() (Side, error) {
	if o.TypeName != "" {
		return SideFromBrokerName(o.TypeName)
	}
	return SideFromBrokerCode(o.Type)
}

// ClosedPosition is a position closed during the requested history window.
type ClosedPosition struct {
	Ticket     int64
	Symbol     string
	Profit     float64
	Commission float64
	Swap       float64
	Magic      int64
	ClosedAt   time.Time
}

// Broker is the engine's view of the brokerage account. Calls either return a
// result or an error; there are no partial results.
type Broker interface {
	OpenPositions(ctx context.Context, symbol string) ([]*BrokerPosition, error)
	PendingOrders(ctx context.Context, symbol string) ([]*PendingOrder, error)
	ClosedPositions(ctx context.Context, from, to time.Time) ([]*ClosedPosition, error)
	CurrentPrice(ctx context.Context, symbol string) (float64, error)

	OpenPendingOrder(ctx context.Context, spec *OrderSpec) (int64, error)
	ClosePosition(ctx context.Context, symbol string, ticket int64) error
	CloseAllPositions(ctx context.Context) error
	CancelPendingOrder(ctx context.Context, ticket int64) error
	CancelAllPendingOrders(ctx context.Context) error
	UpdatePosition(ctx context.Context, symbol string, ticket int64, stopLoss, takeProfit float64) error
}

// RestrictionSource answers whether trading should currently be restricted.
// Backed by externally maintained news/market-hours calendars.
type RestrictionSource interface {
	NewsBlockActive(ctx context.Context, now time.Time) (bool, error)
	MarketClosingSoon(ctx context.Context, symbol string, now time.Time) (bool, error)
}

// GroupRepository persists position groups and their scaled positions.
type GroupRepository interface {
	SaveGroup(ctx context.Context, g *PositionGroup) error
	SavePosition(ctx context.Context, p *ScaledPosition) error
	ListGroups(ctx context.Context) ([]*PositionGroup, error)
}

// OrderRepository persists per-order execution outcomes.
type OrderRepository interface {
	SaveOrderOutcome(ctx context.Context, groupID string, spec *OrderSpec, ticket int64, submitErr error) error
}

// SuspensionRepository persists suspended items so a restart inside a
// restriction window can still restore protection afterward.
type SuspensionRepository interface {
	SaveSuspendedItem(ctx context.Context, item *SuspendedItem) error
	DeleteSuspendedItem(ctx context.Context, ticket int64) error
	ListSuspendedItems(ctx context.Context) ([]*SuspendedItem, error)
	ClearSuspendedItems(ctx context.Context) error
}

// RiskSnapshot is one per-cycle record of the account risk picture.
type RiskSnapshot struct {
	ClosedPnL   float64
	FloatingPnL float64
	TotalPnL    float64
	Breached    bool
	Authorized  bool
	At          time.Time
}

type RiskSnapshotRepository interface {
	SaveRiskSnapshot(ctx context.Context, snap *RiskSnapshot) error
}
