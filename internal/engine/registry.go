package engine

import (
	"fmt"
	"sort"

	"github.com/efreitasn/lobster/internal/domain"
)

// Registry maps symbols to order books and routes each call to the
// book it names. Like OrderBook it is not safe for concurrent use.
type Registry struct {
	books map[string]*OrderBook
	opts  []Option
}

// NewRegistry creates an empty Registry. opts are applied to every book
// it creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		books: make(map[string]*OrderBook),
		opts:  opts,
	}
}

// AddOrderBook registers a new, empty book for symbol.
func (r *Registry) AddOrderBook(symbol string) error {
	if _, ok := r.books[symbol]; ok {
		return fmt.Errorf("%w: %s", domain.ErrSymbolAlreadyExists, symbol)
	}
	r.books[symbol] = NewOrderBook(symbol, r.opts...)
	return nil
}

// RemoveOrderBook drops the book for symbol along with its resting
// orders and buffered trades.
func (r *Registry) RemoveOrderBook(symbol string) error {
	if _, ok := r.books[symbol]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrSymbolNotFound, symbol)
	}
	delete(r.books, symbol)
	return nil
}

// HasOrderBook reports whether symbol is registered.
func (r *Registry) HasOrderBook(symbol string) bool {
	_, ok := r.books[symbol]
	return ok
}

// Symbols returns the registered symbols in ascending order.
func (r *Registry) Symbols() []string {
	symbols := make([]string, 0, len(r.books))
	for s := range r.books {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// Book returns the book for symbol.
func (r *Registry) Book(symbol string) (*OrderBook, error) {
	book, ok := r.books[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSymbolNotFound, symbol)
	}
	return book, nil
}

// PlaceOrder adds the order to the book of its symbol.
func (r *Registry) PlaceOrder(order *domain.Order) error {
	if order == nil {
		return &domain.ValidationError{Message: "order is required"}
	}
	book, err := r.Book(order.Symbol)
	if err != nil {
		return err
	}
	return book.AddOrder(order)
}

// CancelOrder cancels a resting order on symbol's book.
func (r *Registry) CancelOrder(symbol, orderID string) error {
	book, err := r.Book(symbol)
	if err != nil {
		return err
	}
	return book.CancelOrder(orderID)
}

// MatchOrders runs a match pass on symbol's book.
func (r *Registry) MatchOrders(symbol string) ([]*domain.Trade, error) {
	book, err := r.Book(symbol)
	if err != nil {
		return nil, err
	}
	return book.MatchOrders(), nil
}

// ProcessOrders runs a match pass on every book and concatenates the
// trades in ascending symbol order.
func (r *Registry) ProcessOrders() []*domain.Trade {
	var all []*domain.Trade
	for _, symbol := range r.Symbols() {
		all = append(all, r.books[symbol].MatchOrders()...)
	}
	return all
}

// ClearBook empties symbol's book without unregistering it.
func (r *Registry) ClearBook(symbol string) error {
	book, err := r.Book(symbol)
	if err != nil {
		return err
	}
	book.Clear()
	return nil
}

// BestBid returns the best bid of symbol, 0 if none.
func (r *Registry) BestBid(symbol string) (int64, error) {
	book, err := r.Book(symbol)
	if err != nil {
		return 0, err
	}
	return book.BestBid(), nil
}

// BestAsk returns the best ask of symbol, 0 if none.
func (r *Registry) BestAsk(symbol string) (int64, error) {
	book, err := r.Book(symbol)
	if err != nil {
		return 0, err
	}
	return book.BestAsk(), nil
}

// BidSize returns the resting bid quantity of symbol.
func (r *Registry) BidSize(symbol string) (int64, error) {
	book, err := r.Book(symbol)
	if err != nil {
		return 0, err
	}
	return book.BidSize(), nil
}

// AskSize returns the resting ask quantity of symbol.
func (r *Registry) AskSize(symbol string) (int64, error) {
	book, err := r.Book(symbol)
	if err != nil {
		return 0, err
	}
	return book.AskSize(), nil
}

// BidDepth returns up to levels bid levels of symbol.
func (r *Registry) BidDepth(symbol string, levels int) ([]DepthLevel, error) {
	book, err := r.Book(symbol)
	if err != nil {
		return nil, err
	}
	return book.BidDepth(levels), nil
}

// AskDepth returns up to levels ask levels of symbol.
func (r *Registry) AskDepth(symbol string, levels int) ([]DepthLevel, error) {
	book, err := r.Book(symbol)
	if err != nil {
		return nil, err
	}
	return book.AskDepth(levels), nil
}

// HasOrder reports whether the order rests on symbol's book. An unknown
// symbol yields false rather than an error.
func (r *Registry) HasOrder(symbol, orderID string) bool {
	book, ok := r.books[symbol]
	if !ok {
		return false
	}
	return book.HasOrder(orderID)
}

// GetOrder returns a copy of a resting order; ok is false when the order
// is not on the book.
func (r *Registry) GetOrder(symbol, orderID string) (order domain.Order, ok bool, err error) {
	book, err := r.Book(symbol)
	if err != nil {
		return domain.Order{}, false, err
	}
	order, ok = book.GetOrder(orderID)
	return order, ok, nil
}
