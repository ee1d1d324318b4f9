package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fmarinho/futx/internal/domain"
	"github.com/fmarinho/futx/internal/service"
)

const timeFormat = "2006-01-02T15:04:05Z"

// ownerHeader carries the requester's identity on endpoints that need it.
// Authentication itself is an upstream concern; by the time a request
// reaches this service the header is trusted.
const ownerHeader = "X-Owner"

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// submitOrderRequest is the JSON request body for POST /orders.
type submitOrderRequest struct {
	Symbol    string   `json:"symbol"`
	Side      string   `json:"side"`
	Price     *float64 `json:"price"`
	Quantity  int64    `json:"quantity"`
	Owner     string   `json:"owner"`
	ExpiresAt *string  `json:"expires_at"`
}

// orderResponse is the JSON representation of an order. Nullable fields
// use pointers and are always present.
type orderResponse struct {
	OrderID           string          `json:"order_id"`
	Owner             string          `json:"owner"`
	Side              string          `json:"side"`
	Symbol            string          `json:"symbol"`
	Price             float64         `json:"price"`
	Quantity          int64           `json:"quantity"`
	FilledQuantity    int64           `json:"filled_quantity"`
	RemainingQuantity int64           `json:"remaining_quantity"`
	CancelledQuantity int64           `json:"cancelled_quantity"`
	Status            string          `json:"status"`
	SubmittedAt       string          `json:"submitted_at"`
	ExpiresAt         *string         `json:"expires_at"`
	CancelledAt       *string         `json:"cancelled_at"`
	ExpiredAt         *string         `json:"expired_at"`
	AveragePrice      *float64        `json:"average_price"`
	Trades            []tradeResponse `json:"trades"`
}

// tradeResponse is the JSON representation of a trade.
type tradeResponse struct {
	TradeID     string  `json:"trade_id"`
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
	BuyOrderID  string  `json:"buy_order_id"`
	SellOrderID string  `json:"sell_order_id"`
	BuyOwner    string  `json:"buy_owner"`
	SellOwner   string  `json:"sell_owner"`
	ExecutedAt  string  `json:"executed_at"`
}

// cancelOrderResponse is the JSON response for DELETE /orders/{order_id}.
// Cancelled is false when the order was already filled, cancelled or
// expired — the request is a no-op, not an error.
type cancelOrderResponse struct {
	Cancelled bool          `json:"cancelled"`
	Order     orderResponse `json:"order"`
}

// listOrdersResponse is the JSON response for GET /accounts/{owner}/orders.
type listOrdersResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

// SubmitOrder handles POST /orders.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "expires_at must be a valid RFC 3339 timestamp")
			return
		}
		expiresAt = &t
	}

	order, err := h.orderSvc.SubmitOrder(service.SubmitOrderRequest{
		Owner:     req.Owner,
		Side:      domain.OrderSide(req.Side),
		Symbol:    req.Symbol,
		Price:     req.Price,
		Quantity:  req.Quantity,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

// GetOrder handles GET /orders/{order_id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	order, err := h.orderSvc.GetOrder(orderID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// CancelOrder handles DELETE /orders/{order_id}. The requester identifies
// itself via the X-Owner header; cancelling someone else's order is 403.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")
	requester := r.Header.Get(ownerHeader)

	res, err := h.orderSvc.CancelOrder(orderID, requester)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, cancelOrderResponse{
		Cancelled: res.Cancelled,
		Order:     buildOrderResponse(res.Order),
	})
}

// ListOrders handles GET /accounts/{owner}/orders.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	var status *domain.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.OrderStatus(s)
		status = &st
	}

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "page must be an integer")
			return
		}
		page = v
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be an integer")
			return
		}
		limit = v
	}

	orders, total, err := h.orderSvc.ListOrders(owner, status, page, limit)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	resp := listOrdersResponse{
		Orders: make([]orderResponse, len(orders)),
		Total:  total,
		Page:   page,
		Limit:  limit,
	}
	for i, o := range orders {
		resp.Orders[i] = buildOrderResponse(o)
	}

	WriteJSON(w, http.StatusOK, resp)
}

// buildOrderResponse converts a domain order to its JSON representation.
func buildOrderResponse(o *domain.Order) orderResponse {
	var avgPrice *float64
	if avg, ok := o.AveragePrice(); ok {
		v := domain.CentsToDollars(avg)
		avgPrice = &v
	}

	resp := orderResponse{
		OrderID:           o.OrderID,
		Owner:             o.Owner,
		Side:              string(o.Side),
		Symbol:            o.Symbol,
		Price:             domain.CentsToDollars(o.Price),
		Quantity:          o.Quantity,
		FilledQuantity:    o.FilledQuantity,
		RemainingQuantity: o.RemainingQuantity,
		CancelledQuantity: o.CancelledQuantity,
		Status:            string(o.Status),
		SubmittedAt:       o.SubmittedAt.UTC().Format(timeFormat),
		AveragePrice:      avgPrice,
		Trades:            buildTradeResponses(o.Trades),
	}

	if o.ExpiresAt != nil {
		s := o.ExpiresAt.UTC().Format(timeFormat)
		resp.ExpiresAt = &s
	}
	if o.CancelledAt != nil {
		s := o.CancelledAt.UTC().Format(timeFormat)
		resp.CancelledAt = &s
	}
	if o.ExpiredAt != nil {
		s := o.ExpiredAt.UTC().Format(timeFormat)
		resp.ExpiredAt = &s
	}

	return resp
}

// buildTradeResponses converts domain trades to response trades.
func buildTradeResponses(trades []*domain.Trade) []tradeResponse {
	result := make([]tradeResponse, len(trades))
	for i, t := range trades {
		result[i] = buildTradeResponse(t)
	}
	return result
}

func buildTradeResponse(t *domain.Trade) tradeResponse {
	return tradeResponse{
		TradeID:     t.TradeID,
		Symbol:      t.Symbol,
		Price:       domain.CentsToDollars(t.Price),
		Quantity:    t.Quantity,
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		BuyOwner:    t.BuyOwner,
		SellOwner:   t.SellOwner,
		ExecutedAt:  t.ExecutedAt.UTC().Format(timeFormat),
	}
}

// mapOrderError maps domain errors to HTTP responses for order endpoints.
// An unknown symbol on submission is a validation failure (the order
// never touches the book), hence 400 rather than 404.
func mapOrderError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrSymbolNotFound):
		WriteError(w, http.StatusBadRequest, "invalid_order", "unknown contract symbol")
	case errors.Is(err, domain.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, domain.ErrNotOrderOwner):
		WriteError(w, http.StatusForbidden, "forbidden", "order belongs to a different owner")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
