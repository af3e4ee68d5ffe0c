package engine

import (
	"time"

	"github.com/efreitasn/lobster/internal/domain"
)

var baseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// fataler is satisfied by *testing.T and *rapid.T.
type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

func newTestBook(symbol string) *OrderBook {
	return NewOrderBook(symbol,
		WithTradeIDGenerator(NewSequenceGenerator()),
		WithClock(func() time.Time { return baseTime }),
	)
}

func limitOrder(id string, side domain.OrderSide, price, qty int64) *domain.Order {
	return &domain.Order{
		OrderID:   id,
		ClientID:  "client",
		Symbol:    "TEST",
		Side:      side,
		Type:      domain.OrderTypeLimit,
		Price:     price,
		Quantity:  qty,
		CreatedAt: baseTime,
	}
}

func marketOrder(id string, side domain.OrderSide, qty int64) *domain.Order {
	return &domain.Order{
		OrderID:   id,
		ClientID:  "client",
		Symbol:    "TEST",
		Side:      side,
		Type:      domain.OrderTypeMarket,
		Quantity:  qty,
		CreatedAt: baseTime,
	}
}

func mustAdd(t fataler, ob *OrderBook, o *domain.Order) {
	t.Helper()
	if err := ob.AddOrder(o); err != nil {
		t.Fatalf("AddOrder(%s): %v", o.OrderID, err)
	}
}

// levelOrderIDs returns the order IDs queued at price, front first.
func levelOrderIDs(ob *OrderBook, side domain.OrderSide, price int64) []string {
	lvl, ok := ob.side(side).level(price)
	if !ok {
		return nil
	}
	var ids []string
	for idx := lvl.head; idx != nilSlot; idx = ob.arena.at(idx).next {
		ids = append(ids, ob.arena.at(idx).order.OrderID)
	}
	return ids
}

// checkInvariants verifies that the identity index and the price levels
// describe the same set of orders and that every aggregate is in sync.
func checkInvariants(t fataler, ob *OrderBook) {
	t.Helper()

	seen := make(map[string]bool)
	for _, side := range []*bookSide{ob.bids, ob.asks} {
		var sideTotal int64
		var prevPrice int64
		first := true

		side.levels.Ascend(func(lvl *priceLevel) bool {
			if !first {
				if side.side == domain.OrderSideBid && lvl.price >= prevPrice {
					t.Fatalf("bid levels out of order: %d after %d", lvl.price, prevPrice)
				}
				if side.side == domain.OrderSideAsk && lvl.price <= prevPrice {
					t.Fatalf("ask levels out of order: %d after %d", lvl.price, prevPrice)
				}
			}
			first = false
			prevPrice = lvl.price

			if lvl.empty() {
				t.Fatalf("%s level %d is empty but still in the tree", side.side, lvl.price)
			}

			var levelTotal int64
			count := 0
			prev := nilSlot
			for idx := lvl.head; idx != nilSlot; idx = ob.arena.at(idx).next {
				slot := ob.arena.at(idx)
				o := slot.order
				if !slot.live {
					t.Fatalf("level %d links a released slot %d", lvl.price, idx)
				}
				if slot.prev != prev {
					t.Fatalf("order %s: prev link %d, want %d", o.OrderID, slot.prev, prev)
				}
				if o.Side != side.side || o.Price != lvl.price {
					t.Fatalf("order %s (%s@%d) queued on %s level %d", o.OrderID, o.Side, o.Price, side.side, lvl.price)
				}
				if o.Quantity <= 0 {
					t.Fatalf("order %s rests with quantity %d", o.OrderID, o.Quantity)
				}
				ref, ok := ob.index[o.OrderID]
				if !ok {
					t.Fatalf("order %s is on a level but not indexed", o.OrderID)
				}
				if ref.side != o.Side || ref.price != o.Price || ref.slot.idx != idx || ref.slot.gen != slot.gen {
					t.Fatalf("order %s: index ref %+v does not point at slot %d gen %d", o.OrderID, ref, idx, slot.gen)
				}
				if seen[o.OrderID] {
					t.Fatalf("order %s appears on more than one level", o.OrderID)
				}
				seen[o.OrderID] = true
				levelTotal += o.Quantity
				count++
				prev = idx
			}
			if lvl.tail != prev {
				t.Fatalf("level %d tail %d, want %d", lvl.price, lvl.tail, prev)
			}
			if levelTotal != lvl.totalQty || count != lvl.count {
				t.Fatalf("level %d aggregates %d/%d, want %d/%d", lvl.price, lvl.totalQty, lvl.count, levelTotal, count)
			}
			sideTotal += levelTotal
			return true
		})

		if sideTotal != side.totalQty {
			t.Fatalf("%s total %d, want %d", side.side, side.totalQty, sideTotal)
		}
	}

	if len(seen) != len(ob.index) {
		t.Fatalf("%d orders on levels, %d indexed", len(seen), len(ob.index))
	}
	if live := ob.arena.live(); live != len(ob.index) {
		t.Fatalf("%d live arena slots, %d indexed", live, len(ob.index))
	}
}
