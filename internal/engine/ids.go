package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// TradeIDGenerator names trades. IDs must be unique; they need not be
// random.
type TradeIDGenerator interface {
	NextTradeID(symbol string) string
}

// UUIDGenerator produces "<SYMBOL>-<uuid>" trade IDs.
type UUIDGenerator struct{}

// NextTradeID implements TradeIDGenerator.
func (UUIDGenerator) NextTradeID(symbol string) string {
	return symbol + "-" + uuid.NewString()
}

// SequenceGenerator produces "<SYMBOL>-<n>" trade IDs from a monotonic
// counter. A single generator may be shared by many books.
type SequenceGenerator struct {
	n atomic.Uint64
}

// NewSequenceGenerator creates a generator whose first ID ends in 1.
func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{}
}

// NextTradeID implements TradeIDGenerator.
func (g *SequenceGenerator) NextTradeID(symbol string) string {
	return fmt.Sprintf("%s-%010d", symbol, g.n.Add(1))
}

// NewTradeIDGenerator returns the generator for a configured scheme:
// "uuid" or "sequence".
func NewTradeIDGenerator(scheme string) (TradeIDGenerator, error) {
	switch scheme {
	case "uuid":
		return UUIDGenerator{}, nil
	case "sequence":
		return NewSequenceGenerator(), nil
	}
	return nil, fmt.Errorf("unknown trade id scheme %q, must be one of: uuid, sequence", scheme)
}
