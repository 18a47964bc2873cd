package executor

import (
	"errors"
	"time"

	"github.com/evdnx/gosig/types"
)

var ErrUnknownOrder = errors.New("unknown or already final order")

// Broker is everything a strategy needs from the execution side. Positions
// are kept per book (normally the strategy name) so that several strategies
// on the same symbol stay independent.
type Broker interface {
	// Submit queues an order and returns its id. Outcome arrives through
	// the book's Listener.
	Submit(o types.Order) (string, error)
	Cancel(id string) error
	// For back-testing we expose the portfolio state
	Position(book, symbol string) (qty float64, avgPrice float64)
	Cash() float64
	Value() float64
	Subscribe(book string, l Listener)
}

// Listener receives order lifecycle and trade notifications for one book.
type Listener interface {
	OnOrder(ev OrderEvent)
	OnTrade(ev TradeEvent)
}

// OrderEvent reports one status transition of an order. Exec fields are
// set only for OrderCompleted.
type OrderEvent struct {
	Order      types.Order
	Status     types.OrderStatus
	Time       time.Time
	ExecPrice  float64
	ExecValue  float64
	Commission float64
}

// TradeEvent is emitted when a book returns to flat.
type TradeEvent struct {
	Book       string     `json:"book"`
	Symbol     string     `json:"symbol"`
	Side       types.Side `json:"side"` // side of the opening fill
	Qty        float64    `json:"qty"`  // largest absolute size held
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	Opened     time.Time  `json:"opened"`
	Closed     time.Time  `json:"closed"`
	Gross      float64    `json:"gross"`
	Net        float64    `json:"net"` // gross minus every commission paid on the trade
}
