package engine

import (
	"fmt"
	"time"

	"github.com/efreitasn/lobster/internal/domain"
)

// orderRef locates a resting order: the side and price select the level,
// the slot ref selects the order within it.
type orderRef struct {
	side  domain.OrderSide
	price int64
	slot  slotRef
}

// OrderBook maintains the resting bids and asks of a single symbol with
// price-time priority. Price levels live in B-trees; orders live in an
// arena indexed by order ID for O(1) lookup and cancellation.
//
// An OrderBook is not safe for concurrent use. Callers that share a book
// between goroutines must serialize access (see service.MarketService).
type OrderBook struct {
	symbol  string
	bids    *bookSide
	asks    *bookSide
	arena   orderArena
	index   map[string]orderRef
	pending []*domain.Trade
	ids     TradeIDGenerator
	now     func() time.Time
}

// Option configures an OrderBook.
type Option func(*OrderBook)

// WithTradeIDGenerator sets the generator used to name trades.
func WithTradeIDGenerator(g TradeIDGenerator) Option {
	return func(ob *OrderBook) {
		ob.ids = g
	}
}

// WithClock sets the time source used to stamp trades.
func WithClock(now func() time.Time) Option {
	return func(ob *OrderBook) {
		ob.now = now
	}
}

// NewOrderBook creates an empty order book for the given symbol.
func NewOrderBook(symbol string, opts ...Option) *OrderBook {
	ob := &OrderBook{
		symbol: symbol,
		bids:   newBookSide(domain.OrderSideBid),
		asks:   newBookSide(domain.OrderSideAsk),
		index:  make(map[string]orderRef),
		ids:    UUIDGenerator{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ob)
	}
	return ob
}

// Symbol returns the symbol this book trades.
func (ob *OrderBook) Symbol() string {
	return ob.symbol
}

// AddOrder accepts an order into the book. Limit orders rest at the tail
// of their price level and are only crossed by MatchOrders. Market orders
// sweep the opposite side immediately; their trades are buffered and
// returned by the next MatchOrders call.
//
// A market order that exhausts the opposite side returns
// ErrInsufficientLiquidity, but the fills made before exhaustion stand.
func (ob *OrderBook) AddOrder(order *domain.Order) error {
	if order == nil {
		return &domain.ValidationError{Message: "order is required"}
	}
	if order.Symbol != ob.symbol {
		return fmt.Errorf("%w: order %s is for %q, book is %q",
			domain.ErrSymbolMismatch, order.OrderID, order.Symbol, ob.symbol)
	}
	if err := order.Validate(); err != nil {
		return err
	}
	if _, exists := ob.index[order.OrderID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateOrder, order.OrderID)
	}

	if order.IsMarket() {
		return ob.sweep(*order)
	}
	ob.rest(*order)
	return nil
}

// rest appends a limit order to its price level and indexes it.
func (ob *OrderBook) rest(o domain.Order) {
	side := ob.side(o.Side)
	lvl := side.levelFor(o.Price)
	ref := ob.arena.alloc(o)
	lvl.enqueue(&ob.arena, ref.idx)
	side.totalQty += o.Quantity
	ob.index[o.OrderID] = orderRef{side: o.Side, price: o.Price, slot: ref}
}

// CancelOrder removes a resting order. It returns ErrOrderNotFound if the
// order is not on the book.
func (ob *OrderBook) CancelOrder(orderID string) error {
	ref, ok := ob.index[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}

	side := ob.side(ref.side)
	lvl, okLevel := side.level(ref.price)
	slot, okSlot := ob.arena.resolve(ref.slot)
	if !okLevel || !okSlot || slot.order.OrderID != orderID {
		panic(fmt.Sprintf("engine: index entry for %s does not resolve to a resting order", orderID))
	}

	side.totalQty -= slot.order.Quantity
	lvl.unlink(&ob.arena, ref.slot.idx)
	ob.arena.release(ref.slot.idx)
	delete(ob.index, orderID)
	side.dropIfEmpty(lvl)
	return nil
}

// fill takes qty from the resting order in slot idx and removes it from
// the book once it is exhausted. The caller drops lvl if it empties.
func (ob *OrderBook) fill(side *bookSide, lvl *priceLevel, idx int32, qty int64) {
	s := ob.arena.at(idx)
	s.order.Quantity -= qty
	lvl.totalQty -= qty
	side.totalQty -= qty
	if s.order.Quantity == 0 {
		delete(ob.index, s.order.OrderID)
		lvl.unlink(&ob.arena, idx)
		ob.arena.release(idx)
	}
}

// Clear resets the book to empty, discarding resting orders and any
// buffered trades.
func (ob *OrderBook) Clear() {
	ob.bids.clear()
	ob.asks.clear()
	ob.arena.reset()
	ob.index = make(map[string]orderRef)
	ob.pending = nil
}

func (ob *OrderBook) side(s domain.OrderSide) *bookSide {
	if s == domain.OrderSideBid {
		return ob.bids
	}
	return ob.asks
}

// BestBid returns the highest bid price, or 0 if there are no bids.
func (ob *OrderBook) BestBid() int64 {
	return ob.bids.bestPrice()
}

// BestAsk returns the lowest ask price, or 0 if there are no asks.
func (ob *OrderBook) BestAsk() int64 {
	return ob.asks.bestPrice()
}

// Spread returns best ask minus best bid. ok is false when either side
// is empty.
func (ob *OrderBook) Spread() (spread int64, ok bool) {
	if ob.bids.empty() || ob.asks.empty() {
		return 0, false
	}
	return ob.BestAsk() - ob.BestBid(), true
}

// BidSize returns the total remaining quantity resting on the bid side.
func (ob *OrderBook) BidSize() int64 {
	return ob.bids.totalQty
}

// AskSize returns the total remaining quantity resting on the ask side.
func (ob *OrderBook) AskSize() int64 {
	return ob.asks.totalQty
}

// BidDepth returns up to levels aggregated bid levels, highest price first.
func (ob *OrderBook) BidDepth(levels int) []DepthLevel {
	return ob.bids.depth(levels)
}

// AskDepth returns up to levels aggregated ask levels, lowest price first.
func (ob *OrderBook) AskDepth(levels int) []DepthLevel {
	return ob.asks.depth(levels)
}

// HasOrder reports whether the order is resting on the book.
func (ob *OrderBook) HasOrder(orderID string) bool {
	_, ok := ob.index[orderID]
	return ok
}

// GetOrder returns a copy of a resting order.
func (ob *OrderBook) GetOrder(orderID string) (domain.Order, bool) {
	ref, ok := ob.index[orderID]
	if !ok {
		return domain.Order{}, false
	}
	slot, ok := ob.arena.resolve(ref.slot)
	if !ok {
		return domain.Order{}, false
	}
	return slot.order, true
}

// OrderCount returns the number of resting orders.
func (ob *OrderBook) OrderCount() int {
	return len(ob.index)
}

// PendingTradeCount returns the number of market-order trades waiting to
// be drained by MatchOrders.
func (ob *OrderBook) PendingTradeCount() int {
	return len(ob.pending)
}
