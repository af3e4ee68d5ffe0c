package domain

import (
	"fmt"
	"time"
)

// OrderType distinguishes limit orders from market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// OrderSide indicates whether an order is a bid (buy) or ask (sell).
type OrderSide string

const (
	OrderSideBid OrderSide = "bid"
	OrderSideAsk OrderSide = "ask"
)

// Opposite returns the side an order of this side trades against.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBid {
		return OrderSideAsk
	}
	return OrderSideBid
}

// Upper bounds on a single order. With both in place a price times a
// quantity fits in int64, and so does any sum of them up to
// MaxOrderQuantity units.
const (
	MaxOrderQuantity int64 = 1_000_000_000
	MaxOrderPrice    int64 = 1_000_000_000 // cents
)

// Order represents an intent to buy or sell a quantity of one symbol.
// Quantity is the remaining quantity and only ever decreases as the
// order fills.
type Order struct {
	OrderID   string
	ClientID  string
	Symbol    string
	Side      OrderSide
	Type      OrderType
	Price     int64 // cents, 0 for market orders
	Quantity  int64
	CreatedAt time.Time
}

// NewOrder validates the order attributes and stamps CreatedAt with the
// current time at millisecond precision.
func NewOrder(orderID, clientID, symbol string, side OrderSide, typ OrderType, price, quantity int64) (*Order, error) {
	o := &Order{
		OrderID:   orderID,
		ClientID:  clientID,
		Symbol:    symbol,
		Side:      side,
		Type:      typ,
		Price:     price,
		Quantity:  quantity,
		CreatedAt: time.UnixMilli(time.Now().UnixMilli()),
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Validate checks the creation invariants of an order.
func (o *Order) Validate() error {
	if o.OrderID == "" {
		return &ValidationError{Message: "order_id is required"}
	}
	if o.Symbol == "" {
		return &ValidationError{Message: "symbol is required"}
	}
	switch o.Side {
	case OrderSideBid, OrderSideAsk:
	default:
		return &ValidationError{Message: fmt.Sprintf("Unknown side: %s. Must be one of: bid, ask", o.Side)}
	}
	switch o.Type {
	case OrderTypeLimit:
		if o.Price <= 0 {
			return &ValidationError{Message: "Limit order price must be positive"}
		}
		if o.Price > MaxOrderPrice {
			return &ValidationError{Message: fmt.Sprintf("Limit order price must be at most %d cents", MaxOrderPrice)}
		}
	case OrderTypeMarket:
		if o.Price != 0 {
			return &ValidationError{Message: "Market order price must be 0"}
		}
	default:
		return &ValidationError{Message: fmt.Sprintf("Unknown order type: %s. Must be one of: limit, market", o.Type)}
	}
	if o.Quantity <= 0 {
		return &ValidationError{Message: "Order quantity must be positive"}
	}
	if o.Quantity > MaxOrderQuantity {
		return &ValidationError{Message: fmt.Sprintf("Order quantity must be at most %d", MaxOrderQuantity)}
	}
	return nil
}

// IsBid reports whether the order buys.
func (o *Order) IsBid() bool { return o.Side == OrderSideBid }

// IsMarket reports whether the order is a market order.
func (o *Order) IsMarket() bool { return o.Type == OrderTypeMarket }
