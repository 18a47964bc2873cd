package types

import "time"

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Action is the per-bar output of the decision engine.
type Action int

const (
	Hold Action = iota
	ActionBuy
	ActionSell
)

func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "buy"
	case ActionSell:
		return "sell"
	default:
		return "hold"
	}
}

// MarshalText renders actions by name in JSON reports.
func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// Side maps a trading action to an order side. Hold has no side.
func (a Action) Side() (Side, bool) {
	switch a {
	case ActionBuy:
		return Buy, true
	case ActionSell:
		return Sell, true
	}
	return "", false
}

// Position is a strategy's market exposure as reported by the broker.
type Position int

const (
	Flat Position = iota
	Long
	Short
)

func (p Position) String() string {
	switch p {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "flat"
	}
}

// PositionOf classifies a signed quantity.
func PositionOf(qty float64) Position {
	switch {
	case qty > 0:
		return Long
	case qty < 0:
		return Short
	}
	return Flat
}

// Bar is one OHLCV sample. Bars are values and never mutated after the feed
// produces them.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

type OrderStatus string

const (
	OrderSubmitted OrderStatus = "SUBMITTED"
	OrderAccepted  OrderStatus = "ACCEPTED"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCanceled  OrderStatus = "CANCELED"
	OrderMargin    OrderStatus = "MARGIN"
	OrderRejected  OrderStatus = "REJECTED"
)

// Terminal reports whether no further transitions follow this status.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderCompleted, OrderCanceled, OrderMargin, OrderRejected:
		return true
	}
	return false
}

type Order struct {
	ID       string
	Strategy string // book the order is accounted against
	Symbol   string
	Side     Side
	Qty      float64
	// meta
	Comment string
}
