package service

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/efreitasn/lobster/internal/domain"
	"github.com/efreitasn/lobster/internal/store"
	"github.com/google/uuid"
)

// Valid webhook event types.
var validWebhookEvents = map[string]bool{
	domain.EventTradeExecuted:  true,
	domain.EventOrderCancelled: true,
}

// SymbolChecker reports whether a symbol is currently registered.
// WithSymbol runs fn while the symbol is guaranteed to stay registered,
// or returns ErrSymbolNotFound without calling fn.
type SymbolChecker interface {
	HasSymbol(symbol string) bool
	WithSymbol(symbol string, fn func() error) error
}

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	Symbol string
	URL    string
	Events []string
}

// WebhookService handles webhook CRUD and event dispatch.
type WebhookService struct {
	store   *store.WebhookStore
	symbols SymbolChecker
	client  *http.Client
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewWebhookService creates a new WebhookService with the given dependencies.
func NewWebhookService(
	webhookStore *store.WebhookStore,
	symbols SymbolChecker,
	webhookTimeout time.Duration,
	logger *slog.Logger,
) *WebhookService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &WebhookService{
		store:   webhookStore,
		symbols: symbols,
		client: &http.Client{
			Timeout: webhookTimeout,
		},
		logger: logger,
	}
}

// Upsert validates the request and creates or updates webhook subscriptions.
// Returns the resulting webhooks, whether any new subscriptions were created, and any error.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]domain.Webhook, bool, error) {
	if err := domain.ValidateSymbol(req.Symbol); err != nil {
		return nil, false, err
	}
	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	// Deduplicate events while preserving order and validating.
	seen := make(map[string]bool, len(req.Events))
	events := make([]string, 0, len(req.Events))
	for _, event := range req.Events {
		if !validWebhookEvents[event] {
			return nil, false, &domain.ValidationError{
				Message: "Unknown event type: " + event + ". Must be one of: trade.executed, order.cancelled",
			}
		}
		if !seen[event] {
			seen[event] = true
			events = append(events, event)
		}
	}

	// The store write happens while the symbol is pinned so an unregister
	// cannot slip in between the check and the write.
	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]domain.Webhook, 0, len(events))
	err = s.symbols.WithSymbol(req.Symbol, func() error {
		for _, event := range events {
			stored, created := s.store.Upsert(domain.Webhook{
				WebhookID: uuid.New().String(),
				Symbol:    req.Symbol,
				Event:     event,
				URL:       req.URL,
				CreatedAt: now,
				UpdatedAt: now,
			})
			anyCreated = anyCreated || created
			webhooks = append(webhooks, stored)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return webhooks, anyCreated, nil
}

// List returns the subscriptions of one symbol, or all of them when
// symbol is empty.
func (s *WebhookService) List(symbol string) ([]domain.Webhook, error) {
	if symbol == "" {
		return s.store.List(), nil
	}
	if !s.symbols.HasSymbol(symbol) {
		return nil, domain.ErrSymbolNotFound
	}
	return s.store.ListBySymbol(symbol), nil
}

// Get returns one webhook subscription by ID.
func (s *WebhookService) Get(webhookID string) (domain.Webhook, error) {
	return s.store.Get(webhookID)
}

// Delete removes a webhook subscription by ID.
func (s *WebhookService) Delete(webhookID string) error {
	return s.store.Delete(webhookID)
}

// SymbolUnregistered drops every subscription of a removed symbol.
func (s *WebhookService) SymbolUnregistered(symbol string) {
	if n := s.store.DeleteBySymbol(symbol); n > 0 {
		s.logger.Info("webhooks removed with symbol",
			slog.String("symbol", symbol),
			slog.Int("count", n),
		)
	}
}

// tradeExecutedPayload is the JSON payload for trade.executed webhooks.
type tradeExecutedPayload struct {
	Event     string            `json:"event"`
	Timestamp string            `json:"timestamp"`
	Data      tradeExecutedData `json:"data"`
}

type tradeExecutedData struct {
	TradeID     string  `json:"trade_id"`
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
	BuyOrderID  string  `json:"buy_order_id"`
	SellOrderID string  `json:"sell_order_id"`
	ExecutedAt  string  `json:"executed_at"`
}

// orderCancelledPayload is the JSON payload for order.cancelled webhooks.
type orderCancelledPayload struct {
	Event     string             `json:"event"`
	Timestamp string             `json:"timestamp"`
	Data      orderCancelledData `json:"data"`
}

type orderCancelledData struct {
	OrderID           string  `json:"order_id"`
	ClientID          string  `json:"client_id,omitempty"`
	Symbol            string  `json:"symbol"`
	Side              string  `json:"side"`
	Price             float64 `json:"price"`
	CancelledQuantity int64   `json:"cancelled_quantity"`
}

// DispatchTrades sends one trade.executed notification per trade to the
// subscription of the trade's symbol. Fire-and-forget.
func (s *WebhookService) DispatchTrades(trades []*domain.Trade) {
	for _, trade := range trades {
		wh, ok := s.store.GetBySymbolEvent(trade.Symbol, domain.EventTradeExecuted)
		if !ok {
			continue
		}
		payload := tradeExecutedPayload{
			Event:     domain.EventTradeExecuted,
			Timestamp: time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
			Data: tradeExecutedData{
				TradeID:     trade.TradeID,
				Symbol:      trade.Symbol,
				Price:       domain.CentsToDollars(trade.Price),
				Quantity:    trade.Quantity,
				BuyOrderID:  trade.BuyOrderID,
				SellOrderID: trade.SellOrderID,
				ExecutedAt:  trade.ExecutedAt.UTC().Format(time.RFC3339Nano),
			},
		}
		s.goDeliver(wh, payload)
	}
}

// DispatchOrderCancelled sends an order.cancelled notification for a
// cancelled resting order. Fire-and-forget.
func (s *WebhookService) DispatchOrderCancelled(order domain.Order) {
	wh, ok := s.store.GetBySymbolEvent(order.Symbol, domain.EventOrderCancelled)
	if !ok {
		return
	}
	payload := orderCancelledPayload{
		Event:     domain.EventOrderCancelled,
		Timestamp: time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
		Data: orderCancelledData{
			OrderID:           order.OrderID,
			ClientID:          order.ClientID,
			Symbol:            order.Symbol,
			Side:              string(order.Side),
			Price:             domain.CentsToDollars(order.Price),
			CancelledQuantity: order.Quantity,
		},
	}
	s.goDeliver(wh, payload)
}

// Wait blocks until every in-flight delivery has finished.
func (s *WebhookService) Wait() {
	s.wg.Wait()
}

func (s *WebhookService) goDeliver(wh domain.Webhook, payload any) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.deliver(wh, payload)
	}()
}

// deliver sends the webhook payload via HTTP POST with the required headers.
// Failures are logged and dropped.
func (s *WebhookService) deliver(wh domain.Webhook, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("webhook payload encoding failed", slog.String("error", err.Error()))
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("webhook request build failed",
			slog.String("webhook_id", wh.WebhookID),
			slog.String("error", err.Error()),
		)
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.New().String())
	req.Header.Set("X-Webhook-Id", wh.WebhookID)
	req.Header.Set("X-Event-Type", wh.Event)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("webhook delivery failed",
			slog.String("webhook_id", wh.WebhookID),
			slog.String("event", wh.Event),
			slog.String("error", err.Error()),
		)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		s.logger.Warn("webhook endpoint rejected delivery",
			slog.String("webhook_id", wh.WebhookID),
			slog.String("event", wh.Event),
			slog.Int("status", resp.StatusCode),
		)
	}
}
