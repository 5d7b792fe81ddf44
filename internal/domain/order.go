package domain

import (
	"fmt"
	"time"
)

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// Opposite returns the side an order of this side matches against.
func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderKind string

const (
	KindLimit  OrderKind = "LIMIT"
	KindMarket OrderKind = "MARKET"
)

type OrderStatus string

const (
	OrderStatusOpen            OrderStatus = "OPEN"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

// Order is an order for BeanCoin priced in Beans. Only limit orders with
// an unfilled remainder live in the book.
type Order struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"userId"`
	Side      OrderSide `json:"side"`
	Kind      OrderKind `json:"type"`
	Price     int64     `json:"price"`
	Amount    int64     `json:"amount"`
	Filled    int64     `json:"filled"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"timestamp"`
}

// Remaining returns the unfilled amount.
func (o *Order) Remaining() int64 {
	return o.Amount - o.Filled
}

// Status derives the lifecycle state from the fill counter.
func (o *Order) Status() OrderStatus {
	switch {
	case o.Filled >= o.Amount:
		return OrderStatusFilled
	case o.Filled > 0:
		return OrderStatusPartiallyFilled
	default:
		return OrderStatusOpen
	}
}

// Locked returns what the order still holds in escrow.
func (o *Order) Locked() (Token, int64) {
	if o.Side == SideBuy {
		return TokenBean, o.Remaining() * o.Price
	}
	return TokenBeanCoin, o.Remaining()
}

// Clone returns a copy of the order.
func (o *Order) Clone() *Order {
	c := *o
	return &c
}

// Validate checks submit parameters.
func (o *Order) Validate() error {
	if o.Side != SideBuy && o.Side != SideSell {
		return fmt.Errorf("%w: side %q", ErrInvalidOrder, o.Side)
	}
	if o.Kind != KindLimit && o.Kind != KindMarket {
		return fmt.Errorf("%w: type %q", ErrInvalidOrder, o.Kind)
	}
	if o.Amount <= 0 {
		return ErrInvalidAmount
	}
	if o.Kind == KindLimit && o.Price <= 0 {
		return fmt.Errorf("%w: limit price must be positive", ErrInvalidAmount)
	}
	return nil
}

// Trade is one execution between a resting maker order and a taker.
type Trade struct {
	TransactionID string    `json:"transactionId"`
	MakerOrderID  string    `json:"makerOrderId"`
	MakerID       string    `json:"makerId"`
	TakerID       string    `json:"takerId"`
	TakerSide     OrderSide `json:"takerSide"`
	Price         int64     `json:"price"`
	Amount        int64     `json:"amount"`
	ExecutedAt    time.Time `json:"executedAt"`
}

// PricePoint is one entry of the BeanCoin price history.
type PricePoint struct {
	Price     int64     `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}
