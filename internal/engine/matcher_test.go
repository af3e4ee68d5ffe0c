package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/efreitasn/lobster/internal/domain"
)

type tradeSummary struct {
	Buy, Sell string
	Price     int64
	Quantity  int64
}

func summarize(trades []*domain.Trade) []tradeSummary {
	out := make([]tradeSummary, len(trades))
	for i, tr := range trades {
		out[i] = tradeSummary{Buy: tr.BuyOrderID, Sell: tr.SellOrderID, Price: tr.Price, Quantity: tr.Quantity}
	}
	return out
}

// Example 1: a resting bid and a smaller resting ask at the same price.
func TestMatchOrders_PartialFillLeavesBid(t *testing.T) {
	ob := newTestBook("TEST")
	mustAdd(t, ob, limitOrder("b1", domain.OrderSideBid, 10000, 100))
	mustAdd(t, ob, limitOrder("s1", domain.OrderSideAsk, 10000, 50))

	trades := ob.MatchOrders()

	want := []tradeSummary{{Buy: "b1", Sell: "s1", Price: 10000, Quantity: 50}}
	if got := summarize(trades); !reflect.DeepEqual(got, want) {
		t.Fatalf("trades = %+v, want %+v", got, want)
	}
	if got := ob.BidDepth(5); !reflect.DeepEqual(got, []DepthLevel{{Price: 10000, Quantity: 50, OrderCount: 1}}) {
		t.Errorf("BidDepth = %+v, want [(10000, 50)]", got)
	}
	if got := ob.AskDepth(5); len(got) != 0 {
		t.Errorf("AskDepth = %+v, want empty", got)
	}
	if ob.HasOrder("s1") {
		t.Error("filled ask s1 should be removed")
	}
	if o, _ := ob.GetOrder("b1"); o.Quantity != 50 {
		t.Errorf("b1 remaining = %d, want 50", o.Quantity)
	}
	checkInvariants(t, ob)
}

// Example 5: sequential consumption of two crossed levels.
func TestMatchOrders_SequentialConsumption(t *testing.T) {
	ob := newTestBook("TEST")
	mustAdd(t, ob, limitOrder("bid1", domain.OrderSideBid, 15000, 100))
	mustAdd(t, ob, limitOrder("bid2", domain.OrderSideBid, 15000, 50))
	mustAdd(t, ob, limitOrder("ask1", domain.OrderSideAsk, 15000, 75))
	mustAdd(t, ob, limitOrder("ask2", domain.OrderSideAsk, 15000, 100))

	trades := ob.MatchOrders()

	want := []tradeSummary{
		{Buy: "bid1", Sell: "ask1", Price: 15000, Quantity: 75},
		{Buy: "bid1", Sell: "ask2", Price: 15000, Quantity: 25},
		{Buy: "bid2", Sell: "ask2", Price: 15000, Quantity: 50},
	}
	if got := summarize(trades); !reflect.DeepEqual(got, want) {
		t.Fatalf("trades = %+v, want %+v", got, want)
	}
	if ob.HasOrder("bid1") || ob.HasOrder("bid2") || ob.HasOrder("ask1") {
		t.Error("fully filled orders should be removed")
	}
	o, ok := ob.GetOrder("ask2")
	if !ok || o.Quantity != 25 {
		t.Errorf("ask2 = %+v, %v; want remaining 25", o, ok)
	}
	if ob.BidSize() != 0 || ob.AskSize() != 25 {
		t.Errorf("BidSize/AskSize = %d/%d, want 0/25", ob.BidSize(), ob.AskSize())
	}
	checkInvariants(t, ob)
}

func TestMatchOrders_ExecutesAtAskPrice(t *testing.T) {
	ob := newTestBook("TEST")
	// The ask rests first and the bid arrives later at a higher price; the
	// batch pass still prices at the ask level.
	mustAdd(t, ob, limitOrder("a1", domain.OrderSideAsk, 9800, 10))
	mustAdd(t, ob, limitOrder("b1", domain.OrderSideBid, 10100, 10))

	trades := ob.MatchOrders()
	if len(trades) != 1 || trades[0].Price != 9800 {
		t.Fatalf("trades = %+v, want one trade at 9800", summarize(trades))
	}
}

func TestMatchOrders_WalksMultipleLevels(t *testing.T) {
	ob := newTestBook("TEST")
	mustAdd(t, ob, limitOrder("b1", domain.OrderSideBid, 105, 30))
	mustAdd(t, ob, limitOrder("b2", domain.OrderSideBid, 103, 30))
	mustAdd(t, ob, limitOrder("b3", domain.OrderSideBid, 99, 30))
	mustAdd(t, ob, limitOrder("a1", domain.OrderSideAsk, 100, 20))
	mustAdd(t, ob, limitOrder("a2", domain.OrderSideAsk, 102, 50))
	mustAdd(t, ob, limitOrder("a3", domain.OrderSideAsk, 104, 10))

	trades := ob.MatchOrders()

	want := []tradeSummary{
		{Buy: "b1", Sell: "a1", Price: 100, Quantity: 20},
		{Buy: "b1", Sell: "a2", Price: 102, Quantity: 10},
		{Buy: "b2", Sell: "a2", Price: 102, Quantity: 30},
	}
	if got := summarize(trades); !reflect.DeepEqual(got, want) {
		t.Fatalf("trades = %+v, want %+v", got, want)
	}
	// b3@99 < a2@102 stops the pass.
	if ob.BestBid() != 99 || ob.BestAsk() != 102 {
		t.Errorf("BestBid/BestAsk = %d/%d, want 99/102", ob.BestBid(), ob.BestAsk())
	}
	if o, _ := ob.GetOrder("a2"); o.Quantity != 10 {
		t.Errorf("a2 remaining = %d, want 10", o.Quantity)
	}
	checkInvariants(t, ob)
}

func TestMatchOrders_NoCrossNoTrades(t *testing.T) {
	ob := newTestBook("TEST")
	mustAdd(t, ob, limitOrder("b1", domain.OrderSideBid, 99, 10))
	mustAdd(t, ob, limitOrder("a1", domain.OrderSideAsk, 100, 10))

	if trades := ob.MatchOrders(); len(trades) != 0 {
		t.Fatalf("trades = %+v, want none", summarize(trades))
	}
	if ob.OrderCount() != 2 {
		t.Errorf("OrderCount() = %d, want 2", ob.OrderCount())
	}
}

func TestMatchOrders_OneSideEmpty(t *testing.T) {
	ob := newTestBook("TEST")
	mustAdd(t, ob, limitOrder("b1", domain.OrderSideBid, 99, 10))
	if trades := ob.MatchOrders(); len(trades) != 0 {
		t.Fatalf("trades = %+v, want none", summarize(trades))
	}
}

func TestMatchOrders_TradeMetadata(t *testing.T) {
	ob := newTestBook("TEST")
	mustAdd(t, ob, limitOrder("b1", domain.OrderSideBid, 100, 5))
	mustAdd(t, ob, limitOrder("a1", domain.OrderSideAsk, 100, 5))

	trades := ob.MatchOrders()
	if len(trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(trades))
	}
	tr := trades[0]
	if tr.TradeID != "TEST-0000000001" {
		t.Errorf("TradeID = %q, want TEST-0000000001", tr.TradeID)
	}
	if tr.Symbol != "TEST" {
		t.Errorf("Symbol = %q, want TEST", tr.Symbol)
	}
	if !tr.ExecutedAt.Equal(baseTime) {
		t.Errorf("ExecutedAt = %v, want %v", tr.ExecutedAt, baseTime)
	}
}

// Example 2: a market order against an empty side fails and changes nothing.
func TestSweep_NoLiquidity(t *testing.T) {
	ob := newTestBook("TEST")
	mustAdd(t, ob, limitOrder("b1", domain.OrderSideBid, 100, 10))

	err := ob.AddOrder(marketOrder("m1", domain.OrderSideBid, 100))
	if !errors.Is(err, domain.ErrNoLiquidity) {
		t.Fatalf("AddOrder() error = %v, want ErrNoLiquidity", err)
	}
	if ob.PendingTradeCount() != 0 || ob.OrderCount() != 1 || ob.BidSize() != 10 {
		t.Errorf("book changed after rejected market order")
	}
	checkInvariants(t, ob)
}

// Example 3: a market order larger than the opposite side fills what it
// can, then fails; the fills stand and are returned by the next match.
func TestSweep_InsufficientLiquidityKeepsFills(t *testing.T) {
	ob := newTestBook("TEST")
	mustAdd(t, ob, limitOrder("s1", domain.OrderSideAsk, 10000, 50))

	err := ob.AddOrder(marketOrder("m1", domain.OrderSideBid, 100))
	if !errors.Is(err, domain.ErrInsufficientLiquidity) {
		t.Fatalf("AddOrder() error = %v, want ErrInsufficientLiquidity", err)
	}
	if ob.HasOrder("s1") {
		t.Error("s1 should be fully consumed")
	}
	if ob.AskSize() != 0 || len(ob.AskDepth(5)) != 0 {
		t.Error("ask side should be empty")
	}
	if ob.PendingTradeCount() != 1 {
		t.Fatalf("PendingTradeCount() = %d, want 1", ob.PendingTradeCount())
	}

	trades := ob.MatchOrders()
	want := []tradeSummary{{Buy: "m1", Sell: "s1", Price: 10000, Quantity: 50}}
	if got := summarize(trades); !reflect.DeepEqual(got, want) {
		t.Fatalf("trades = %+v, want %+v", got, want)
	}
	if ob.PendingTradeCount() != 0 {
		t.Error("MatchOrders should drain the pending buffer")
	}
	checkInvariants(t, ob)
}

func TestSweep_MarketBuyWalksAsks(t *testing.T) {
	ob := newTestBook("TEST")
	mustAdd(t, ob, limitOrder("a1", domain.OrderSideAsk, 101, 10))
	mustAdd(t, ob, limitOrder("a2", domain.OrderSideAsk, 100, 5))
	mustAdd(t, ob, limitOrder("a3", domain.OrderSideAsk, 100, 5))
	mustAdd(t, ob, limitOrder("a4", domain.OrderSideAsk, 103, 10))

	if err := ob.AddOrder(marketOrder("m1", domain.OrderSideBid, 15)); err != nil {
		t.Fatalf("AddOrder(market): %v", err)
	}
	if ob.PendingTradeCount() != 3 {
		t.Fatalf("PendingTradeCount() = %d, want 3", ob.PendingTradeCount())
	}

	trades := ob.MatchOrders()
	want := []tradeSummary{
		{Buy: "m1", Sell: "a2", Price: 100, Quantity: 5},
		{Buy: "m1", Sell: "a3", Price: 100, Quantity: 5},
		{Buy: "m1", Sell: "a1", Price: 101, Quantity: 5},
	}
	if got := summarize(trades); !reflect.DeepEqual(got, want) {
		t.Fatalf("trades = %+v, want %+v", got, want)
	}
	wantDepth := []DepthLevel{
		{Price: 101, Quantity: 5, OrderCount: 1},
		{Price: 103, Quantity: 10, OrderCount: 1},
	}
	if got := ob.AskDepth(5); !reflect.DeepEqual(got, wantDepth) {
		t.Errorf("AskDepth = %+v, want %+v", got, wantDepth)
	}
	checkInvariants(t, ob)
}

func TestSweep_MarketSellExecutesAtRestingBidPrice(t *testing.T) {
	ob := newTestBook("TEST")
	mustAdd(t, ob, limitOrder("b1", domain.OrderSideBid, 99, 10))
	mustAdd(t, ob, limitOrder("b2", domain.OrderSideBid, 98, 10))

	if err := ob.AddOrder(marketOrder("m1", domain.OrderSideAsk, 12)); err != nil {
		t.Fatalf("AddOrder(market): %v", err)
	}

	trades := ob.MatchOrders()
	want := []tradeSummary{
		{Buy: "b1", Sell: "m1", Price: 99, Quantity: 10},
		{Buy: "b2", Sell: "m1", Price: 98, Quantity: 2},
	}
	if got := summarize(trades); !reflect.DeepEqual(got, want) {
		t.Fatalf("trades = %+v, want %+v", got, want)
	}
	if o, _ := ob.GetOrder("b2"); o.Quantity != 8 {
		t.Errorf("b2 remaining = %d, want 8", o.Quantity)
	}
	checkInvariants(t, ob)
}

func TestSweep_MarketOrderNeverRests(t *testing.T) {
	ob := newTestBook("TEST")
	mustAdd(t, ob, limitOrder("a1", domain.OrderSideAsk, 100, 10))
	if err := ob.AddOrder(marketOrder("m1", domain.OrderSideBid, 10)); err != nil {
		t.Fatalf("AddOrder(market): %v", err)
	}
	if ob.HasOrder("m1") {
		t.Error("market order should not rest on the book")
	}
	if ob.BidSize() != 0 {
		t.Errorf("BidSize() = %d, want 0", ob.BidSize())
	}
}

func TestMatchOrders_PendingTradesComeFirst(t *testing.T) {
	ob := newTestBook("TEST")
	mustAdd(t, ob, limitOrder("a1", domain.OrderSideAsk, 100, 10))
	if err := ob.AddOrder(marketOrder("m1", domain.OrderSideBid, 4)); err != nil {
		t.Fatalf("AddOrder(market): %v", err)
	}
	mustAdd(t, ob, limitOrder("b1", domain.OrderSideBid, 100, 6))

	trades := ob.MatchOrders()
	want := []tradeSummary{
		{Buy: "m1", Sell: "a1", Price: 100, Quantity: 4},
		{Buy: "b1", Sell: "a1", Price: 100, Quantity: 6},
	}
	if got := summarize(trades); !reflect.DeepEqual(got, want) {
		t.Fatalf("trades = %+v, want %+v", got, want)
	}
	if ob.OrderCount() != 0 {
		t.Errorf("OrderCount() = %d, want 0", ob.OrderCount())
	}
	checkInvariants(t, ob)
}

func TestQuote(t *testing.T) {
	ob := newTestBook("TEST")
	mustAdd(t, ob, limitOrder("a1", domain.OrderSideAsk, 100, 30))
	mustAdd(t, ob, limitOrder("a2", domain.OrderSideAsk, 100, 20))
	mustAdd(t, ob, limitOrder("a3", domain.OrderSideAsk, 110, 50))

	q := ob.Quote(domain.OrderSideBid, 70)
	if !q.FullyFillable || q.QuantityAvailable != 70 {
		t.Errorf("FullyFillable/QuantityAvailable = %v/%d, want true/70", q.FullyFillable, q.QuantityAvailable)
	}
	wantLevels := []DepthLevel{
		{Price: 100, Quantity: 50, OrderCount: 2},
		{Price: 110, Quantity: 20, OrderCount: 1},
	}
	if !reflect.DeepEqual(q.PriceLevels, wantLevels) {
		t.Errorf("PriceLevels = %+v, want %+v", q.PriceLevels, wantLevels)
	}
	if q.EstimatedTotal == nil || *q.EstimatedTotal != 100*50+110*20 {
		t.Errorf("EstimatedTotal = %v, want %d", q.EstimatedTotal, 100*50+110*20)
	}
	// 7200/70 = 102.86 cents rounds to 103.
	if q.EstimatedAvgPrice == nil || *q.EstimatedAvgPrice != 103 {
		t.Errorf("EstimatedAvgPrice = %v, want 103", q.EstimatedAvgPrice)
	}

	// Quoting never mutates the book.
	if ob.AskSize() != 100 || ob.OrderCount() != 3 {
		t.Errorf("book changed by Quote: size=%d count=%d", ob.AskSize(), ob.OrderCount())
	}
	checkInvariants(t, ob)

	over := ob.Quote(domain.OrderSideBid, 500)
	if over.FullyFillable || over.QuantityAvailable != 100 {
		t.Errorf("FullyFillable/QuantityAvailable = %v/%d, want false/100", over.FullyFillable, over.QuantityAvailable)
	}

	empty := ob.Quote(domain.OrderSideAsk, 10)
	if empty.QuantityAvailable != 0 || empty.EstimatedAvgPrice != nil || len(empty.PriceLevels) != 0 {
		t.Errorf("quote against empty bids = %+v, want no liquidity", empty)
	}
}

func TestQuote_AveragePriceRoundsHalfUp(t *testing.T) {
	ob := newTestBook("TEST")
	mustAdd(t, ob, limitOrder("a1", domain.OrderSideAsk, 100, 1))
	mustAdd(t, ob, limitOrder("a2", domain.OrderSideAsk, 101, 1))

	// 201/2 = 100.5 cents.
	q := ob.Quote(domain.OrderSideBid, 2)
	if q.EstimatedAvgPrice == nil || *q.EstimatedAvgPrice != 101 {
		t.Errorf("EstimatedAvgPrice = %v, want 101", q.EstimatedAvgPrice)
	}

	// 301/3 = 100.33 cents.
	mustAdd(t, ob, limitOrder("a0", domain.OrderSideAsk, 100, 1))
	q = ob.Quote(domain.OrderSideBid, 3)
	if q.EstimatedAvgPrice == nil || *q.EstimatedAvgPrice != 100 {
		t.Errorf("EstimatedAvgPrice = %v, want 100", q.EstimatedAvgPrice)
	}
}
