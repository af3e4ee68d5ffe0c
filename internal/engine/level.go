package engine

import (
	"github.com/google/btree"

	"github.com/efreitasn/lobster/internal/domain"
)

const nilSlot int32 = -1

// slotRef is a generation-checked handle to an arena slot. Releasing a
// slot bumps its generation, so a stale ref never resolves to whatever
// order reuses the slot later.
type slotRef struct {
	idx int32
	gen uint32
}

// orderSlot holds one resting order plus the intrusive links of the FIFO
// queue of its price level.
type orderSlot struct {
	order      domain.Order
	gen        uint32
	live       bool
	prev, next int32
}

// orderArena stores resting orders in reusable slots. Pointers returned
// by at are only valid until the next alloc.
type orderArena struct {
	slots []orderSlot
	free  []int32
}

func (a *orderArena) alloc(o domain.Order) slotRef {
	var idx int32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, orderSlot{})
		idx = int32(len(a.slots) - 1)
	}
	s := &a.slots[idx]
	s.order = o
	s.live = true
	s.prev, s.next = nilSlot, nilSlot
	return slotRef{idx: idx, gen: s.gen}
}

func (a *orderArena) release(idx int32) {
	s := &a.slots[idx]
	s.order = domain.Order{}
	s.live = false
	s.gen++
	s.prev, s.next = nilSlot, nilSlot
	a.free = append(a.free, idx)
}

// resolve follows ref, failing if the slot was released since ref was
// handed out.
func (a *orderArena) resolve(ref slotRef) (*orderSlot, bool) {
	if ref.idx < 0 || int(ref.idx) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[ref.idx]
	if !s.live || s.gen != ref.gen {
		return nil, false
	}
	return s, true
}

func (a *orderArena) at(idx int32) *orderSlot {
	return &a.slots[idx]
}

func (a *orderArena) live() int {
	return len(a.slots) - len(a.free)
}

func (a *orderArena) reset() {
	a.slots = nil
	a.free = nil
}

// priceLevel is the FIFO queue of resting orders at one price, threaded
// through the arena.
type priceLevel struct {
	price    int64
	head     int32
	tail     int32
	totalQty int64
	count    int
}

func newPriceLevel(price int64) *priceLevel {
	return &priceLevel{price: price, head: nilSlot, tail: nilSlot}
}

// enqueue appends the order in slot idx at the tail (latest time priority).
func (l *priceLevel) enqueue(a *orderArena, idx int32) {
	s := a.at(idx)
	s.prev = l.tail
	s.next = nilSlot
	if l.tail != nilSlot {
		a.at(l.tail).next = idx
	} else {
		l.head = idx
	}
	l.tail = idx
	l.totalQty += s.order.Quantity
	l.count++
}

// unlink removes the order in slot idx from anywhere in the queue.
func (l *priceLevel) unlink(a *orderArena, idx int32) {
	s := a.at(idx)
	if s.prev != nilSlot {
		a.at(s.prev).next = s.next
	} else {
		l.head = s.next
	}
	if s.next != nilSlot {
		a.at(s.next).prev = s.prev
	} else {
		l.tail = s.prev
	}
	l.totalQty -= s.order.Quantity
	l.count--
	s.prev, s.next = nilSlot, nilSlot
}

func (l *priceLevel) empty() bool {
	return l.head == nilSlot
}

// DepthLevel is one aggregated price level of a depth query.
type DepthLevel struct {
	Price      int64
	Quantity   int64
	OrderCount int
}

// bookSide keeps the price levels of one side in a B-tree ordered so that
// Min() is always the best level: price descending for bids, ascending
// for asks.
type bookSide struct {
	side     domain.OrderSide
	levels   *btree.BTreeG[*priceLevel]
	totalQty int64
}

func newBookSide(side domain.OrderSide) *bookSide {
	const degree = 32
	less := func(a, b *priceLevel) bool { return a.price < b.price }
	if side == domain.OrderSideBid {
		less = func(a, b *priceLevel) bool { return a.price > b.price }
	}
	return &bookSide{
		side:   side,
		levels: btree.NewG[*priceLevel](degree, less),
	}
}

func (s *bookSide) best() (*priceLevel, bool) {
	return s.levels.Min()
}

func (s *bookSide) level(price int64) (*priceLevel, bool) {
	return s.levels.Get(&priceLevel{price: price})
}

// levelFor returns the level at price, creating it if absent.
func (s *bookSide) levelFor(price int64) *priceLevel {
	if lvl, ok := s.level(price); ok {
		return lvl
	}
	lvl := newPriceLevel(price)
	s.levels.ReplaceOrInsert(lvl)
	return lvl
}

// dropIfEmpty removes lvl from the tree once its queue has drained.
func (s *bookSide) dropIfEmpty(lvl *priceLevel) {
	if lvl.empty() {
		s.levels.Delete(lvl)
	}
}

func (s *bookSide) empty() bool {
	return s.levels.Len() == 0
}

func (s *bookSide) bestPrice() int64 {
	lvl, ok := s.best()
	if !ok {
		return 0
	}
	return lvl.price
}

// depth aggregates at most n levels, best first.
func (s *bookSide) depth(n int) []DepthLevel {
	if n <= 0 {
		return []DepthLevel{}
	}
	out := make([]DepthLevel, 0, min(n, s.levels.Len()))
	s.levels.Ascend(func(lvl *priceLevel) bool {
		out = append(out, DepthLevel{
			Price:      lvl.price,
			Quantity:   lvl.totalQty,
			OrderCount: lvl.count,
		})
		return len(out) < n
	})
	return out
}

func (s *bookSide) clear() {
	s.levels.Clear(false)
	s.totalQty = 0
}
