package domain

import "time"

// Webhook event names.
const (
	EventTradeExecuted  = "trade.executed"
	EventOrderCancelled = "order.cancelled"
)

// Webhook represents a subscription to an event notification for one symbol.
type Webhook struct {
	WebhookID string
	Symbol    string
	Event     string
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
}
