package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fmarinho/futx/internal/domain"
	"github.com/fmarinho/futx/internal/service"
)

// MarketHandler handles HTTP requests for book, trade and contract
// endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// bookResponse is the JSON response for GET /orderbook/{symbol}: every
// resting order, both sides in priority order.
type bookResponse struct {
	Symbol     string          `json:"symbol"`
	Bids       []orderResponse `json:"bids"`
	Asks       []orderResponse `json:"asks"`
	SnapshotAt string          `json:"snapshot_at"`
}

// depthLevelResponse is one aggregated price level.
type depthLevelResponse struct {
	Price         float64 `json:"price"`
	TotalQuantity int64   `json:"total_quantity"`
	OrderCount    int     `json:"order_count"`
}

// depthResponse is the JSON response for GET /orderbook/{symbol}/depth.
type depthResponse struct {
	Symbol     string               `json:"symbol"`
	Bids       []depthLevelResponse `json:"bids"`
	Asks       []depthLevelResponse `json:"asks"`
	Spread     *float64             `json:"spread"`
	SnapshotAt string               `json:"snapshot_at"`
}

// tradesResponse is the JSON response for GET /trades.
type tradesResponse struct {
	Trades []tradeResponse `json:"trades"`
}

// contractsResponse is the JSON response for GET /contracts.
type contractsResponse struct {
	Symbols []string `json:"symbols"`
}

// priceResponse is the JSON response for GET /contracts/{symbol}/price.
type priceResponse struct {
	Symbol         string   `json:"symbol"`
	CurrentPrice   *float64 `json:"current_price"`
	Window         string   `json:"window"`
	TradesInWindow int      `json:"trades_in_window"`
	LastTradeAt    *string  `json:"last_trade_at"`
}

// quoteLevelResponse is one price level in the quote response.
type quoteLevelResponse struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

// quoteResponse is the JSON response for GET /contracts/{symbol}/quote.
type quoteResponse struct {
	Symbol            string               `json:"symbol"`
	Side              string               `json:"side"`
	QuantityRequested int64                `json:"quantity_requested"`
	QuantityAvailable int64                `json:"quantity_available"`
	FullyFillable     bool                 `json:"fully_fillable"`
	EstimatedAvgPrice *float64             `json:"estimated_avg_price"`
	EstimatedTotal    *float64             `json:"estimated_total"`
	PriceLevels       []quoteLevelResponse `json:"price_levels"`
	QuotedAt          string               `json:"quoted_at"`
}

// GetBook handles GET /orderbook/{symbol}.
func (h *MarketHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	snap, err := h.marketSvc.GetBook(symbol)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	resp := bookResponse{
		Symbol:     snap.Symbol,
		Bids:       make([]orderResponse, len(snap.Bids)),
		Asks:       make([]orderResponse, len(snap.Asks)),
		SnapshotAt: snap.SnapshotAt.UTC().Format(timeFormat),
	}
	for i, o := range snap.Bids {
		resp.Bids[i] = buildOrderResponse(o)
	}
	for i, o := range snap.Asks {
		resp.Asks[i] = buildOrderResponse(o)
	}

	WriteJSON(w, http.StatusOK, resp)
}

// GetDepth handles GET /orderbook/{symbol}/depth?levels=.
func (h *MarketHandler) GetDepth(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	levels := 10
	if l := r.URL.Query().Get("levels"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "levels must be an integer")
			return
		}
		levels = v
	}

	snap, err := h.marketSvc.GetDepth(symbol, levels)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	resp := depthResponse{
		Symbol:     snap.Symbol,
		Bids:       make([]depthLevelResponse, len(snap.Bids)),
		Asks:       make([]depthLevelResponse, len(snap.Asks)),
		SnapshotAt: snap.SnapshotAt.UTC().Format(timeFormat),
	}
	for i, lv := range snap.Bids {
		resp.Bids[i] = depthLevelResponse{
			Price:         domain.CentsToDollars(lv.Price),
			TotalQuantity: lv.TotalQuantity,
			OrderCount:    lv.OrderCount,
		}
	}
	for i, lv := range snap.Asks {
		resp.Asks[i] = depthLevelResponse{
			Price:         domain.CentsToDollars(lv.Price),
			TotalQuantity: lv.TotalQuantity,
			OrderCount:    lv.OrderCount,
		}
	}
	if snap.Spread != nil {
		s := domain.CentsToDollars(*snap.Spread)
		resp.Spread = &s
	}

	WriteJSON(w, http.StatusOK, resp)
}

// GetTrades handles GET /trades?symbol=&owner=. Both filters are
// optional; results are in execution order, oldest first.
func (h *MarketHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	owner := r.URL.Query().Get("owner")

	trades, err := h.marketSvc.GetTrades(symbol, owner)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, tradesResponse{
		Trades: buildTradeResponses(trades),
	})
}

// ListContracts handles GET /contracts.
func (h *MarketHandler) ListContracts(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, contractsResponse{
		Symbols: h.marketSvc.ListContracts(),
	})
}

// GetPrice handles GET /contracts/{symbol}/price.
func (h *MarketHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	report, err := h.marketSvc.GetPrice(symbol)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	resp := priceResponse{
		Symbol:         report.Symbol,
		Window:         report.Window,
		TradesInWindow: report.TradesInWindow,
	}
	if report.CurrentPrice != nil {
		p := domain.CentsToDollars(*report.CurrentPrice)
		resp.CurrentPrice = &p
	}
	if report.LastTradeAt != nil {
		s := report.LastTradeAt.UTC().Format(timeFormat)
		resp.LastTradeAt = &s
	}

	WriteJSON(w, http.StatusOK, resp)
}

// GetQuote handles GET /contracts/{symbol}/quote?side=&quantity=.
func (h *MarketHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	side := r.URL.Query().Get("side")

	quantity, err := strconv.ParseInt(r.URL.Query().Get("quantity"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "quantity must be a positive integer")
		return
	}

	report, err := h.marketSvc.GetQuote(symbol, domain.OrderSide(side), quantity)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	resp := quoteResponse{
		Symbol:            report.Symbol,
		Side:              string(report.Side),
		QuantityRequested: report.QuantityRequested,
		QuantityAvailable: report.QuantityAvailable,
		FullyFillable:     report.FullyFillable,
		PriceLevels:       make([]quoteLevelResponse, len(report.PriceLevels)),
		QuotedAt:          report.QuotedAt.UTC().Format(timeFormat),
	}
	if report.EstimatedAvgPrice != nil {
		p := domain.CentsToDollars(*report.EstimatedAvgPrice)
		resp.EstimatedAvgPrice = &p
	}
	if report.EstimatedTotal != nil {
		t := domain.CentsToDollars(*report.EstimatedTotal)
		resp.EstimatedTotal = &t
	}
	for i, lv := range report.PriceLevels {
		resp.PriceLevels[i] = quoteLevelResponse{
			Price:    domain.CentsToDollars(lv.Price),
			Quantity: lv.Quantity,
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}

// mapMarketError maps domain errors to HTTP responses for market data
// endpoints. Here an unknown symbol is a missing resource, not a
// malformed order, hence 404.
func mapMarketError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrSymbolNotFound):
		WriteError(w, http.StatusNotFound, "symbol_not_found", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
