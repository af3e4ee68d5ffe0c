package engine

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/efreitasn/lobster/internal/domain"
)

// BatchMatcher runs a match pass over every book and returns the trades.
type BatchMatcher interface {
	MatchAll() []*domain.Trade
}

// BatchRunner periodically runs a match pass over all books, the way a
// simulation driver calls processOrders once per step.
type BatchRunner struct {
	interval time.Duration
	matcher  BatchMatcher
	logger   *slog.Logger
	passes   atomic.Int64
	trades   atomic.Int64
}

// NewBatchRunner creates a BatchRunner. A nil logger discards output.
func NewBatchRunner(interval time.Duration, matcher BatchMatcher, logger *slog.Logger) *BatchRunner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BatchRunner{
		interval: interval,
		matcher:  matcher,
		logger:   logger,
	}
}

// Start launches a background goroutine that ticks at the configured
// interval and runs a match pass. It stops when ctx is cancelled. A
// non-positive interval disables the runner.
func (b *BatchRunner) Start(ctx context.Context) {
	if b.interval <= 0 {
		b.logger.Info("batch matching disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				b.tick(t)
			}
		}
	}()
}

// tick runs one match pass.
func (b *BatchRunner) tick(now time.Time) {
	trades := b.matcher.MatchAll()
	b.passes.Add(1)
	if len(trades) == 0 {
		return
	}
	b.trades.Add(int64(len(trades)))
	b.logger.Debug("batch match pass",
		slog.Int("trades", len(trades)),
		slog.Time("at", now),
	)
}

// Passes returns the number of completed match passes.
func (b *BatchRunner) Passes() int64 {
	return b.passes.Load()
}

// TradeCount returns the number of trades produced by all passes.
func (b *BatchRunner) TradeCount() int64 {
	return b.trades.Load()
}
