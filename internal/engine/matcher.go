package engine

import (
	"fmt"

	"github.com/efreitasn/lobster/internal/domain"
)

// sweep executes a market order against the opposite side, best level
// first and oldest order first within a level. Each fill executes at the
// resting order's price. Trades go to the pending buffer.
func (ob *OrderBook) sweep(incoming domain.Order) error {
	opposite := ob.side(incoming.Side.Opposite())
	if opposite.empty() {
		return fmt.Errorf("%w: no resting %s orders for market order %s",
			domain.ErrNoLiquidity, opposite.side, incoming.OrderID)
	}

	for incoming.Quantity > 0 {
		lvl, ok := opposite.best()
		if !ok {
			break
		}
		for incoming.Quantity > 0 && !lvl.empty() {
			idx := lvl.head
			resting := &ob.arena.at(idx).order
			qty := min(incoming.Quantity, resting.Quantity)

			ob.pending = append(ob.pending, ob.newTrade(resting.Price, qty, &incoming, resting))
			incoming.Quantity -= qty
			ob.fill(opposite, lvl, idx, qty)
		}
		opposite.dropIfEmpty(lvl)
	}

	if incoming.Quantity > 0 {
		return fmt.Errorf("%w: market order %s left %d unfilled",
			domain.ErrInsufficientLiquidity, incoming.OrderID, incoming.Quantity)
	}
	return nil
}

// MatchOrders drains the trades buffered by market orders, then crosses
// resting bids and asks while the best bid is at or above the best ask.
// Crossed levels trade front order against front order at the ask
// level's price. Trades are returned oldest first.
func (ob *OrderBook) MatchOrders() []*domain.Trade {
	trades := ob.pending
	ob.pending = nil

	for {
		bidLvl, okBid := ob.bids.best()
		askLvl, okAsk := ob.asks.best()
		if !okBid || !okAsk || bidLvl.price < askLvl.price {
			break
		}

		for !bidLvl.empty() && !askLvl.empty() {
			bidIdx, askIdx := bidLvl.head, askLvl.head
			bid := &ob.arena.at(bidIdx).order
			ask := &ob.arena.at(askIdx).order
			qty := min(bid.Quantity, ask.Quantity)

			trades = append(trades, ob.newTrade(askLvl.price, qty, bid, ask))
			ob.fill(ob.bids, bidLvl, bidIdx, qty)
			ob.fill(ob.asks, askLvl, askIdx, qty)
		}

		ob.bids.dropIfEmpty(bidLvl)
		ob.asks.dropIfEmpty(askLvl)
	}

	return trades
}

// newTrade records an execution between two orders on opposite sides.
func (ob *OrderBook) newTrade(price, qty int64, a, b *domain.Order) *domain.Trade {
	buy, sell := a, b
	if !a.IsBid() {
		buy, sell = b, a
	}
	return &domain.Trade{
		TradeID:     ob.ids.NextTradeID(ob.symbol),
		Symbol:      ob.symbol,
		Price:       price,
		Quantity:    qty,
		BuyOrderID:  buy.OrderID,
		SellOrderID: sell.OrderID,
		ExecutedAt:  ob.now(),
	}
}

// QuoteResult holds the outcome of a simulated market order.
type QuoteResult struct {
	QuantityRequested int64
	QuantityAvailable int64
	FullyFillable     bool
	EstimatedAvgPrice *int64 // volume weighted, half-cent rounds up; nil when no liquidity
	EstimatedTotal    *int64 // nil when no liquidity
	PriceLevels       []DepthLevel
}

// Quote walks the side a market order of the given side would sweep and
// reports what it would fill, without changing the book. PriceLevels
// holds the quantity that would be taken at each level. quantity must not
// exceed domain.MaxOrderQuantity, which keeps the estimated total within
// int64.
func (ob *OrderBook) Quote(side domain.OrderSide, quantity int64) *QuoteResult {
	result := &QuoteResult{
		QuantityRequested: quantity,
		PriceLevels:       make([]DepthLevel, 0),
	}

	remaining := quantity
	var total int64
	ob.side(side.Opposite()).levels.Ascend(func(lvl *priceLevel) bool {
		if remaining <= 0 {
			return false
		}
		take := min(lvl.totalQty, remaining)
		orders := 0
		left := take
		for idx := lvl.head; idx != nilSlot && left > 0; idx = ob.arena.at(idx).next {
			left -= ob.arena.at(idx).order.Quantity
			orders++
		}
		result.PriceLevels = append(result.PriceLevels, DepthLevel{
			Price:      lvl.price,
			Quantity:   take,
			OrderCount: orders,
		})
		total += lvl.price * take
		result.QuantityAvailable += take
		remaining -= take
		return remaining > 0
	})

	if result.QuantityAvailable > 0 {
		avg := (total + result.QuantityAvailable/2) / result.QuantityAvailable
		result.EstimatedAvgPrice = &avg
		result.EstimatedTotal = &total
	}
	result.FullyFillable = quantity > 0 && result.QuantityAvailable >= quantity
	return result
}
