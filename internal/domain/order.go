package domain

import "time"

// OrderSide indicates whether an order buys or sells the contract.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus represents the lifecycle state of an order. An order is
// "open" while any quantity rests on the book, including after partial
// fills; the remaining statuses are terminal.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusExpired   OrderStatus = "expired"
)

// Order represents a limit order for a futures contract. Side, Symbol,
// Price and Owner are immutable after acceptance; only the quantity
// counters and Status mutate, and only under the matching engine's
// per-symbol lock.
type Order struct {
	OrderID           string
	Owner             string
	Side              OrderSide
	Symbol            string
	Price             int64 // cents
	Quantity          int64
	FilledQuantity    int64
	RemainingQuantity int64
	CancelledQuantity int64
	Sequence          uint64 // monotonic, assigned at acceptance; time-priority tie-break
	Status            OrderStatus
	SubmittedAt       time.Time
	ExpiresAt         *time.Time // nil means good-till-cancelled
	CancelledAt       *time.Time
	ExpiredAt         *time.Time
	Trades            []*Trade
}

// Terminal reports whether the order has reached a final state and can
// never return to the book.
func (o *Order) Terminal() bool {
	switch o.Status {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusExpired:
		return true
	}
	return false
}

// OppositeSide returns the side an order of side s matches against.
func OppositeSide(s OrderSide) OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// AveragePrice computes the volume-weighted average execution price over
// the order's trades using integer arithmetic. Returns (0, false) when
// nothing has been filled.
func (o *Order) AveragePrice() (int64, bool) {
	if len(o.Trades) == 0 || o.FilledQuantity == 0 {
		return 0, false
	}
	var total int64
	for _, t := range o.Trades {
		total += t.Price * t.Quantity
	}
	return total / o.FilledQuantity, true
}
