package handler

import (
	"net/http"
	"strconv"

	"github.com/efreitasn/lobster/internal/domain"
	"github.com/efreitasn/lobster/internal/engine"
	"github.com/efreitasn/lobster/internal/service"
	"github.com/go-chi/chi/v5"
)

// MarketHandler handles symbol, book, quote and match endpoints.
type MarketHandler struct {
	market *service.MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(market *service.MarketService) *MarketHandler {
	return &MarketHandler{market: market}
}

type registerSymbolRequest struct {
	Symbol string `json:"symbol"`
}

type symbolResponse struct {
	Symbol string `json:"symbol"`
}

type symbolListResponse struct {
	Symbols []string `json:"symbols"`
}

// bookLevelResponse is a single price level in the book response.
type bookLevelResponse struct {
	Price         float64 `json:"price"`
	TotalQuantity int64   `json:"total_quantity"`
	OrderCount    int     `json:"order_count"`
}

// bookResponse is the JSON response for GET /symbols/{symbol}/book.
type bookResponse struct {
	Symbol        string              `json:"symbol"`
	BestBid       *float64            `json:"best_bid"`
	BestAsk       *float64            `json:"best_ask"`
	BidSize       int64               `json:"bid_size"`
	AskSize       int64               `json:"ask_size"`
	Spread        *float64            `json:"spread"`
	Bids          []bookLevelResponse `json:"bids"`
	Asks          []bookLevelResponse `json:"asks"`
	OrderCount    int                 `json:"order_count"`
	PendingTrades int                 `json:"pending_trades"`
	SnapshotAt    string              `json:"snapshot_at"`
}

// quoteLevelResponse is a single price level in the quote response.
type quoteLevelResponse struct {
	Price      float64 `json:"price"`
	Quantity   int64   `json:"quantity"`
	OrderCount int     `json:"order_count"`
}

// quoteResponse is the JSON response for GET /symbols/{symbol}/quote.
type quoteResponse struct {
	Symbol            string               `json:"symbol"`
	Side              string               `json:"side"`
	QuantityRequested int64                `json:"quantity_requested"`
	QuantityAvailable int64                `json:"quantity_available"`
	FullyFillable     bool                 `json:"fully_fillable"`
	EstimatedAvgPrice *float64             `json:"estimated_average_price"`
	EstimatedTotal    *float64             `json:"estimated_total"`
	PriceLevels       []quoteLevelResponse `json:"price_levels"`
	QuotedAt          string               `json:"quoted_at"`
}

// tradeResponse is a single trade.
type tradeResponse struct {
	TradeID     string  `json:"trade_id"`
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
	BuyOrderID  string  `json:"buy_order_id"`
	SellOrderID string  `json:"sell_order_id"`
	ExecutedAt  string  `json:"executed_at"`
}

type tradeListResponse struct {
	Trades []tradeResponse `json:"trades"`
}

// ListSymbols handles GET /symbols.
func (h *MarketHandler) ListSymbols(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, symbolListResponse{Symbols: h.market.Symbols()})
}

// RegisterSymbol handles POST /symbols.
func (h *MarketHandler) RegisterSymbol(w http.ResponseWriter, r *http.Request) {
	var req registerSymbolRequest
	if err := ParseJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.market.RegisterSymbol(req.Symbol); err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, symbolResponse{Symbol: req.Symbol})
}

// UnregisterSymbol handles DELETE /symbols/{symbol}.
func (h *MarketHandler) UnregisterSymbol(w http.ResponseWriter, r *http.Request) {
	if err := h.market.UnregisterSymbol(chi.URLParam(r, "symbol")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetBook handles GET /symbols/{symbol}/book.
func (h *MarketHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	depth := 0
	if d := r.URL.Query().Get("depth"); d != "" {
		v, err := strconv.Atoi(d)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "depth must be an integer")
			return
		}
		if v == 0 {
			v = -1 // an explicit 0 is out of range, not "use the default"
		}
		depth = v
	}

	snap, err := h.market.GetBook(symbol, depth)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, bookResponse{
		Symbol:        snap.Symbol,
		BestBid:       optionalDollars(snap.BestBid),
		BestAsk:       optionalDollars(snap.BestAsk),
		BidSize:       snap.BidSize,
		AskSize:       snap.AskSize,
		Spread:        dollarsPtr(snap.Spread),
		Bids:          buildBookLevels(snap.Bids),
		Asks:          buildBookLevels(snap.Asks),
		OrderCount:    snap.OrderCount,
		PendingTrades: snap.PendingTrades,
		SnapshotAt:    snap.SnapshotAt.UTC().Format(timeFormat),
	})
}

// GetQuote handles GET /symbols/{symbol}/quote?side=&quantity=.
func (h *MarketHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	side := r.URL.Query().Get("side")

	quantity, err := strconv.ParseInt(r.URL.Query().Get("quantity"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "quantity must be a positive integer")
		return
	}

	q, err := h.market.Quote(symbol, domain.OrderSide(side), quantity)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	levels := make([]quoteLevelResponse, len(q.PriceLevels))
	for i, pl := range q.PriceLevels {
		levels[i] = quoteLevelResponse{
			Price:      domain.CentsToDollars(pl.Price),
			Quantity:   pl.Quantity,
			OrderCount: pl.OrderCount,
		}
	}

	WriteJSON(w, http.StatusOK, quoteResponse{
		Symbol:            q.Symbol,
		Side:              string(q.Side),
		QuantityRequested: q.QuantityRequested,
		QuantityAvailable: q.QuantityAvailable,
		FullyFillable:     q.FullyFillable,
		EstimatedAvgPrice: dollarsPtr(q.EstimatedAvgPrice),
		EstimatedTotal:    dollarsPtr(q.EstimatedTotal),
		PriceLevels:       levels,
		QuotedAt:          q.QuotedAt.UTC().Format(timeFormat),
	})
}

// Match handles POST /symbols/{symbol}/match.
func (h *MarketHandler) Match(w http.ResponseWriter, r *http.Request) {
	trades, err := h.market.Match(chi.URLParam(r, "symbol"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tradeListResponse{Trades: buildTradeResponses(trades)})
}

// MatchAll handles POST /match.
func (h *MarketHandler) MatchAll(w http.ResponseWriter, r *http.Request) {
	trades := h.market.MatchAll()
	WriteJSON(w, http.StatusOK, tradeListResponse{Trades: buildTradeResponses(trades)})
}

// ClearBook handles POST /symbols/{symbol}/clear.
func (h *MarketHandler) ClearBook(w http.ResponseWriter, r *http.Request) {
	if err := h.market.ClearBook(chi.URLParam(r, "symbol")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func buildBookLevels(levels []engine.DepthLevel) []bookLevelResponse {
	result := make([]bookLevelResponse, len(levels))
	for i, l := range levels {
		result[i] = bookLevelResponse{
			Price:         domain.CentsToDollars(l.Price),
			TotalQuantity: l.Quantity,
			OrderCount:    l.OrderCount,
		}
	}
	return result
}

func buildTradeResponses(trades []*domain.Trade) []tradeResponse {
	result := make([]tradeResponse, len(trades))
	for i, t := range trades {
		result[i] = tradeResponse{
			TradeID:     t.TradeID,
			Symbol:      t.Symbol,
			Price:       domain.CentsToDollars(t.Price),
			Quantity:    t.Quantity,
			BuyOrderID:  t.BuyOrderID,
			SellOrderID: t.SellOrderID,
			ExecutedAt:  t.ExecutedAt.UTC().Format(timeFormat),
		}
	}
	return result
}
