package handler

import (
	"net/http"

	"github.com/efreitasn/lobster/internal/domain"
	"github.com/efreitasn/lobster/internal/service"
	"github.com/go-chi/chi/v5"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	market *service.MarketService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(market *service.MarketService) *OrderHandler {
	return &OrderHandler{market: market}
}

// submitOrderRequest is the JSON request body for POST /orders.
type submitOrderRequest struct {
	OrderID  string   `json:"order_id"`
	ClientID string   `json:"client_id"`
	Symbol   string   `json:"symbol"`
	Side     string   `json:"side"`
	Type     string   `json:"type"`
	Price    *float64 `json:"price"`
	Quantity int64    `json:"quantity"`
}

// orderResponse is the JSON representation of an order. Price is null for
// market orders.
type orderResponse struct {
	OrderID   string   `json:"order_id"`
	ClientID  string   `json:"client_id"`
	Symbol    string   `json:"symbol"`
	Side      string   `json:"side"`
	Type      string   `json:"type"`
	Price     *float64 `json:"price"`
	Quantity  int64    `json:"quantity"`
	CreatedAt string   `json:"created_at"`
}

// SubmitOrder handles POST /orders. Accepted orders get 202: limit orders
// wait for a match pass and market order trades are reported by the next
// one.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.market.SubmitOrder(service.SubmitOrderRequest{
		OrderID:  req.OrderID,
		ClientID: req.ClientID,
		Symbol:   req.Symbol,
		Side:     domain.OrderSide(req.Side),
		Type:     domain.OrderType(req.Type),
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, buildOrderResponse(order))
}

// GetOrder handles GET /symbols/{symbol}/orders/{order_id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	orderID := chi.URLParam(r, "order_id")

	order, err := h.market.GetOrder(symbol, orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// CancelOrder handles DELETE /symbols/{symbol}/orders/{order_id}.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	orderID := chi.URLParam(r, "order_id")

	if err := h.market.CancelOrder(symbol, orderID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func buildOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		OrderID:   o.OrderID,
		ClientID:  o.ClientID,
		Symbol:    o.Symbol,
		Side:      string(o.Side),
		Type:      string(o.Type),
		Price:     optionalDollars(o.Price),
		Quantity:  o.Quantity,
		CreatedAt: o.CreatedAt.UTC().Format(timeFormat),
	}
}
