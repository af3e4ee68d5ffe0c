package service

import (
	"fmt"
	"time"

	"github.com/efreitasn/lobster/internal/domain"
	"github.com/efreitasn/lobster/internal/engine"
)

// BookSnapshot is a point-in-time view of one order book.
type BookSnapshot struct {
	Symbol        string
	BestBid       int64 // 0 when there are no bids
	BestAsk       int64 // 0 when there are no asks
	BidSize       int64
	AskSize       int64
	Spread        *int64 // nil if either side empty
	Bids          []engine.DepthLevel
	Asks          []engine.DepthLevel
	OrderCount    int
	PendingTrades int
	SnapshotAt    time.Time
}

// QuoteResponse is the simulated outcome of a market order.
type QuoteResponse struct {
	Symbol   string
	Side     domain.OrderSide
	QuotedAt time.Time
	engine.QuoteResult
}

// GetBook returns a snapshot of symbol's book with up to depth levels per
// side. A depth of 0 selects the configured default.
func (s *MarketService) GetBook(symbol string, depth int) (*BookSnapshot, error) {
	if depth == 0 {
		depth = s.defaultDepth
	}
	if depth < 1 || depth > s.maxDepth {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("depth must be between 1 and %d", s.maxDepth),
		}
	}

	var snap *BookSnapshot
	err := s.withBook(symbol, false, func(book *engine.OrderBook) error {
		snap = &BookSnapshot{
			Symbol:        symbol,
			BestBid:       book.BestBid(),
			BestAsk:       book.BestAsk(),
			BidSize:       book.BidSize(),
			AskSize:       book.AskSize(),
			Bids:          book.BidDepth(depth),
			Asks:          book.AskDepth(depth),
			OrderCount:    book.OrderCount(),
			PendingTrades: book.PendingTradeCount(),
			SnapshotAt:    time.Now(),
		}
		if spread, ok := book.Spread(); ok {
			snap.Spread = &spread
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Quote simulates a market order against the current book without placing
// it.
func (s *MarketService) Quote(symbol string, side domain.OrderSide, quantity int64) (*QuoteResponse, error) {
	if side != domain.OrderSideBid && side != domain.OrderSideAsk {
		return nil, &domain.ValidationError{
			Message: "side must be 'bid' or 'ask'",
		}
	}
	if quantity <= 0 {
		return nil, &domain.ValidationError{
			Message: "quantity must be a positive integer",
		}
	}
	if quantity > domain.MaxOrderQuantity {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("quantity must be at most %d", domain.MaxOrderQuantity),
		}
	}

	var resp *QuoteResponse
	err := s.withBook(symbol, false, func(book *engine.OrderBook) error {
		resp = &QuoteResponse{
			Symbol:      symbol,
			Side:        side,
			QuotedAt:    time.Now(),
			QuoteResult: *book.Quote(side, quantity),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
