package store

import (
	"sort"
	"sync"

	"github.com/efreitasn/lobster/internal/domain"
)

// WebhookStore is a thread-safe in-memory store for webhooks.
// Primary index: webhook_id → webhook.
// Secondary index: symbol → event → webhook.
//
// Callers only ever see copies; stored webhooks are never shared.
type WebhookStore struct {
	mu       sync.RWMutex
	webhooks map[string]*domain.Webhook            // webhook_id → webhook
	bySymbol map[string]map[string]*domain.Webhook // symbol → event → webhook
}

// NewWebhookStore creates an empty WebhookStore.
func NewWebhookStore() *WebhookStore {
	return &WebhookStore{
		webhooks: make(map[string]*domain.Webhook),
		bySymbol: make(map[string]map[string]*domain.Webhook),
	}
}

// Upsert inserts or updates a subscription keyed by (symbol, event). An
// existing subscription keeps its webhook_id; only URL and UpdatedAt
// change, and only when the URL differs. It returns the stored webhook and
// whether a new subscription was created.
func (s *WebhookStore) Upsert(w domain.Webhook) (domain.Webhook, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.bySymbol[w.Symbol][w.Event]; ok {
		if existing.URL != w.URL {
			existing.URL = w.URL
			existing.UpdatedAt = w.UpdatedAt
		}
		return *existing, false
	}

	stored := w
	s.webhooks[w.WebhookID] = &stored
	if s.bySymbol[w.Symbol] == nil {
		s.bySymbol[w.Symbol] = make(map[string]*domain.Webhook)
	}
	s.bySymbol[w.Symbol][w.Event] = &stored
	return stored, true
}

// Get retrieves a webhook by ID. It returns domain.ErrWebhookNotFound if
// the webhook does not exist.
func (s *WebhookStore) Get(id string) (domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.webhooks[id]
	if !ok {
		return domain.Webhook{}, domain.ErrWebhookNotFound
	}
	return *w, nil
}

// ListBySymbol returns the webhooks of one symbol ordered by event.
func (s *WebhookStore) ListBySymbol(symbol string) []domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Webhook, 0, len(s.bySymbol[symbol]))
	for _, w := range s.bySymbol[symbol] {
		result = append(result, *w)
	}
	sortWebhooks(result)
	return result
}

// List returns every webhook ordered by symbol, then event.
func (s *WebhookStore) List() []domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Webhook, 0, len(s.webhooks))
	for _, w := range s.webhooks {
		result = append(result, *w)
	}
	sortWebhooks(result)
	return result
}

// Delete removes a webhook by ID from both indexes. It returns
// domain.ErrWebhookNotFound if the webhook does not exist.
func (s *WebhookStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks[id]
	if !ok {
		return domain.ErrWebhookNotFound
	}
	delete(s.webhooks, id)
	if events, ok := s.bySymbol[w.Symbol]; ok {
		delete(events, w.Event)
		if len(events) == 0 {
			delete(s.bySymbol, w.Symbol)
		}
	}
	return nil
}

// DeleteBySymbol removes every subscription of a symbol and returns how
// many were removed.
func (s *WebhookStore) DeleteBySymbol(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.bySymbol[symbol]
	for _, w := range events {
		delete(s.webhooks, w.WebhookID)
	}
	delete(s.bySymbol, symbol)
	return len(events)
}

// GetBySymbolEvent returns the subscription for a symbol and event.
func (s *WebhookStore) GetBySymbolEvent(symbol, event string) (domain.Webhook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.bySymbol[symbol][event]
	if !ok {
		return domain.Webhook{}, false
	}
	return *w, true
}

func sortWebhooks(ws []domain.Webhook) {
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].Symbol != ws[j].Symbol {
			return ws[i].Symbol < ws[j].Symbol
		}
		return ws[i].Event < ws[j].Event
	})
}
