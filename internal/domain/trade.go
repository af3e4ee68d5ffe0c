package domain

import "time"

// Trade is an immutable execution record between a bid and an ask order.
// BuyOrderID always names the bid-side order and SellOrderID the ask-side
// order, whichever of the two was the aggressor.
type Trade struct {
	TradeID     string
	Symbol      string
	Price       int64 // cents
	Quantity    int64
	BuyOrderID  string
	SellOrderID string
	ExecutedAt  time.Time
}

// Notional returns price × quantity in cents.
func (t *Trade) Notional() int64 {
	return t.Price * t.Quantity
}
