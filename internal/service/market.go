package service

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/efreitasn/lobster/internal/domain"
	"github.com/efreitasn/lobster/internal/engine"
	"github.com/google/uuid"
)

// EventDispatcher receives book events for asynchronous notification.
// SymbolUnregistered is called with the registry lock held and must not
// call back into the MarketService.
type EventDispatcher interface {
	DispatchTrades(trades []*domain.Trade)
	DispatchOrderCancelled(order domain.Order)
	SymbolUnregistered(symbol string)
}

// SubmitOrderRequest represents the input for order submission.
type SubmitOrderRequest struct {
	OrderID  string // generated when empty
	ClientID string
	Symbol   string
	Side     domain.OrderSide
	Type     domain.OrderType
	Price    *float64 // required for limit, must be nil for market
	Quantity int64
}

// MarketService is the concurrency boundary around an engine.Registry.
// Membership changes take the registry lock exclusively; every book
// operation holds it shared plus the book's own lock, exclusive for
// mutations and shared for queries.
type MarketService struct {
	mu       sync.RWMutex
	registry *engine.Registry
	locks    map[string]*sync.RWMutex

	events       EventDispatcher
	logger       *slog.Logger
	defaultDepth int
	maxDepth     int
}

// MarketOption configures a MarketService.
type MarketOption func(*MarketService)

// WithEventDispatcher sets the dispatcher notified of trades, cancels and
// symbol removals.
func WithEventDispatcher(d EventDispatcher) MarketOption {
	return func(s *MarketService) {
		s.events = d
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) MarketOption {
	return func(s *MarketService) {
		s.logger = l
	}
}

// WithDepthLimits sets the depth used when a book request names none and
// the largest depth a request may ask for.
func WithDepthLimits(defaultDepth, maxDepth int) MarketOption {
	return func(s *MarketService) {
		s.defaultDepth = defaultDepth
		s.maxDepth = maxDepth
	}
}

// NewMarketService creates a MarketService over registry. The service
// takes ownership of the registry; callers must not use it directly
// afterwards.
func NewMarketService(registry *engine.Registry, opts ...MarketOption) *MarketService {
	s := &MarketService{
		registry:     registry,
		locks:        make(map[string]*sync.RWMutex),
		events:       noopDispatcher{},
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		defaultDepth: 10,
		maxDepth:     50,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, symbol := range registry.Symbols() {
		s.locks[symbol] = &sync.RWMutex{}
	}
	return s
}

// SetEventDispatcher replaces the dispatcher. It exists for wiring cycles
// where the dispatcher needs the service to be constructed first.
func (s *MarketService) SetEventDispatcher(d EventDispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d == nil {
		d = noopDispatcher{}
	}
	s.events = d
}

// RegisterSymbol creates an empty book for symbol.
func (s *MarketService) RegisterSymbol(symbol string) error {
	if err := domain.ValidateSymbol(symbol); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.AddOrderBook(symbol); err != nil {
		return err
	}
	s.locks[symbol] = &sync.RWMutex{}
	s.logger.Info("symbol registered", slog.String("symbol", symbol))
	return nil
}

// UnregisterSymbol removes symbol's book with all its resting orders and
// buffered trades. The dispatcher is told while the registry lock is
// still held, so no WithSymbol caller can observe the symbol in between.
func (s *MarketService) UnregisterSymbol(symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.RemoveOrderBook(symbol); err != nil {
		return err
	}
	delete(s.locks, symbol)
	s.events.SymbolUnregistered(symbol)

	s.logger.Info("symbol unregistered", slog.String("symbol", symbol))
	return nil
}

// HasSymbol reports whether symbol is registered.
func (s *MarketService) HasSymbol(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.HasOrderBook(symbol)
}

// WithSymbol runs fn while symbol is registered and cannot be
// unregistered. fn must not call back into the service's membership
// operations.
func (s *MarketService) WithSymbol(symbol string, fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.registry.HasOrderBook(symbol) {
		return fmt.Errorf("%w: %s", domain.ErrSymbolNotFound, symbol)
	}
	return fn()
}

// Symbols returns the registered symbols in ascending order.
func (s *MarketService) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Symbols()
}

// withBook runs fn while holding the registry lock shared and symbol's
// book lock, exclusively when write is set.
func (s *MarketService) withBook(symbol string, write bool, fn func(*engine.OrderBook) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lock, ok := s.locks[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSymbolNotFound, symbol)
	}
	book, err := s.registry.Book(symbol)
	if err != nil {
		return err
	}

	if write {
		lock.Lock()
		defer lock.Unlock()
	} else {
		lock.RLock()
		defer lock.RUnlock()
	}
	return fn(book)
}

// SubmitOrder builds an order from req and places it on its symbol's book.
// Limit orders rest until a match pass; market orders sweep immediately
// and their trades are reported by the next match pass. A market order
// that could only be partly filled returns ErrInsufficientLiquidity along
// with the order; its fills stand.
func (s *MarketService) SubmitOrder(req SubmitOrderRequest) (domain.Order, error) {
	order, err := buildOrder(req)
	if err != nil {
		return domain.Order{}, err
	}

	err = s.withBook(order.Symbol, true, func(*engine.OrderBook) error {
		return s.registry.PlaceOrder(order)
	})
	if err != nil {
		s.logger.Debug("order rejected",
			slog.String("order_id", order.OrderID),
			slog.String("symbol", order.Symbol),
			slog.String("error", err.Error()),
		)
		return *order, err
	}

	s.logger.Debug("order accepted",
		slog.String("order_id", order.OrderID),
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
		slog.String("type", string(order.Type)),
		slog.Int64("price", order.Price),
		slog.Int64("quantity", order.Quantity),
	)
	return *order, nil
}

func buildOrder(req SubmitOrderRequest) (*domain.Order, error) {
	if err := domain.ValidateSymbol(req.Symbol); err != nil {
		return nil, err
	}

	var price int64
	switch req.Type {
	case domain.OrderTypeLimit:
		if req.Price == nil {
			return nil, &domain.ValidationError{Message: "price is required for limit orders"}
		}
		cents, err := domain.DollarsToCents(*req.Price)
		if err != nil {
			return nil, err
		}
		price = cents
	case domain.OrderTypeMarket:
		if req.Price != nil {
			return nil, &domain.ValidationError{Message: "price must not be set for market orders"}
		}
	default:
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("Unknown order type: %s. Must be one of: limit, market", req.Type),
		}
	}

	id := req.OrderID
	if id == "" {
		id = uuid.New().String()
	}
	return domain.NewOrder(id, req.ClientID, req.Symbol, req.Side, req.Type, price, req.Quantity)
}

// CancelOrder removes a resting order and notifies cancel subscribers.
func (s *MarketService) CancelOrder(symbol, orderID string) error {
	var cancelled domain.Order
	err := s.withBook(symbol, true, func(book *engine.OrderBook) error {
		o, ok := book.GetOrder(orderID)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
		}
		if err := s.registry.CancelOrder(symbol, orderID); err != nil {
			return err
		}
		cancelled = o
		return nil
	})
	if err != nil {
		return err
	}

	s.dispatcher().DispatchOrderCancelled(cancelled)
	s.logger.Debug("order cancelled",
		slog.String("order_id", orderID),
		slog.String("symbol", symbol),
		slog.Int64("remaining", cancelled.Quantity),
	)
	return nil
}

// GetOrder returns a copy of a resting order.
func (s *MarketService) GetOrder(symbol, orderID string) (domain.Order, error) {
	var order domain.Order
	err := s.withBook(symbol, false, func(*engine.OrderBook) error {
		o, ok, err := s.registry.GetOrder(symbol, orderID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
		}
		order = o
		return nil
	})
	return order, err
}

// OrderExists reports whether the order rests on symbol's book. Unknown
// symbols yield false.
func (s *MarketService) OrderExists(symbol, orderID string) bool {
	var exists bool
	_ = s.withBook(symbol, false, func(*engine.OrderBook) error {
		exists = s.registry.HasOrder(symbol, orderID)
		return nil
	})
	return exists
}

// Match runs a match pass on one book and dispatches the trades.
func (s *MarketService) Match(symbol string) ([]*domain.Trade, error) {
	var trades []*domain.Trade
	err := s.withBook(symbol, true, func(*engine.OrderBook) error {
		var err error
		trades, err = s.registry.MatchOrders(symbol)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(trades)
	return trades, nil
}

// MatchAll runs a match pass on every book, in ascending symbol order,
// and dispatches the trades. It holds the registry lock exclusively so
// the pass sees a stable set of books.
func (s *MarketService) MatchAll() []*domain.Trade {
	s.mu.Lock()
	trades := s.registry.ProcessOrders()
	s.mu.Unlock()

	s.publish(trades)
	return trades
}

func (s *MarketService) publish(trades []*domain.Trade) {
	if len(trades) == 0 {
		return
	}
	s.dispatcher().DispatchTrades(trades)
	s.logger.Debug("trades executed", slog.Int("count", len(trades)))
}

func (s *MarketService) dispatcher() EventDispatcher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events
}

// ClearBook empties symbol's book, keeping the symbol registered.
func (s *MarketService) ClearBook(symbol string) error {
	err := s.withBook(symbol, true, func(*engine.OrderBook) error {
		return s.registry.ClearBook(symbol)
	})
	if err == nil {
		s.logger.Info("book cleared", slog.String("symbol", symbol))
	}
	return err
}

type noopDispatcher struct{}

func (noopDispatcher) DispatchTrades([]*domain.Trade)      {}
func (noopDispatcher) DispatchOrderCancelled(domain.Order) {}
func (noopDispatcher) SymbolUnregistered(string)           {}
