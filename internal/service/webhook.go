package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/fmarinho/futx/internal/domain"
	"github.com/fmarinho/futx/internal/store"
)

// Valid webhook event types.
var validWebhookEvents = map[string]bool{
	"trade.executed":  true,
	"order.cancelled": true,
	"order.expired":   true,
}

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	Owner  string
	URL    string
	Events []string
}

// WebhookService handles webhook CRUD and event dispatch. Deliveries are
// fire-and-forget HTTP POSTs made from their own goroutines; the matching
// engine's book locks are never held across a delivery.
type WebhookService struct {
	store  *store.WebhookStore
	client *http.Client
}

// NewWebhookService creates a new WebhookService.
func NewWebhookService(webhookStore *store.WebhookStore, timeout time.Duration) *WebhookService {
	return &WebhookService{
		store: webhookStore,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Upsert validates the request and creates or updates webhook
// subscriptions, one per (owner, event) pair. Returns the resulting
// webhooks and whether any new subscriptions were created.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]*domain.Webhook, bool, error) {
	if !ownerRegex.MatchString(req.Owner) {
		return nil, false, &domain.ValidationError{Message: "owner must match ^[a-zA-Z0-9_-]{1,64}$"}
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

	// Deduplicate while preserving order and validating.
	seen := make(map[string]bool, len(req.Events))
	dedupedEvents := make([]string, 0, len(req.Events))
	for _, event := range req.Events {
		if !validWebhookEvents[event] {
			return nil, false, &domain.ValidationError{
				Message: "Unknown event type: " + event + ". Must be one of: trade.executed, order.cancelled, order.expired",
			}
		}
		if !seen[event] {
			seen[event] = true
			dedupedEvents = append(dedupedEvents, event)
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]*domain.Webhook, 0, len(dedupedEvents))

	for _, event := range dedupedEvents {
		w := &domain.Webhook{
			WebhookID: uuid.New().String(),
			Owner:     req.Owner,
			Event:     event,
			URL:       req.URL,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if s.store.Upsert(w) {
			anyCreated = true
			webhooks = append(webhooks, w)
		} else if existing := s.store.GetByOwnerEvent(req.Owner, event); existing != nil {
			webhooks = append(webhooks, existing)
		}
	}

	return webhooks, anyCreated, nil
}

// List returns all webhook subscriptions for an owner.
func (s *WebhookService) List(owner string) ([]*domain.Webhook, error) {
	if !ownerRegex.MatchString(owner) {
		return nil, &domain.ValidationError{Message: "owner must match ^[a-zA-Z0-9_-]{1,64}$"}
	}
	return s.store.ListByOwner(owner), nil
}

// Delete removes a webhook subscription by ID.
func (s *WebhookService) Delete(webhookID string) error {
	return s.store.Delete(webhookID)
}

// tradeExecutedPayload is the JSON payload for trade.executed webhooks.
type tradeExecutedPayload struct {
	Event     string            `json:"event"`
	Timestamp string            `json:"timestamp"`
	Data      tradeExecutedData `json:"data"`
}

type tradeExecutedData struct {
	TradeID                string  `json:"trade_id"`
	Owner                  string  `json:"owner"`
	OrderID                string  `json:"order_id"`
	Symbol                 string  `json:"symbol"`
	Side                   string  `json:"side"`
	TradePrice             float64 `json:"trade_price"`
	TradeQuantity          int64   `json:"trade_quantity"`
	OrderStatus            string  `json:"order_status"`
	OrderFilledQuantity    int64   `json:"order_filled_quantity"`
	OrderRemainingQuantity int64   `json:"order_remaining_quantity"`
}

// orderEventPayload is the JSON payload for order.cancelled and
// order.expired webhooks.
type orderEventPayload struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Data      orderEventData `json:"data"`
}

type orderEventData struct {
	Owner             string  `json:"owner"`
	OrderID           string  `json:"order_id"`
	Symbol            string  `json:"symbol"`
	Side              string  `json:"side"`
	Price             float64 `json:"price"`
	Quantity          int64   `json:"quantity"`
	FilledQuantity    int64   `json:"filled_quantity"`
	CancelledQuantity int64   `json:"cancelled_quantity"`
	RemainingQuantity int64   `json:"remaining_quantity"`
	Status            string  `json:"status"`
}

// DispatchTradeExecuted dispatches a trade.executed notification to one
// side of a trade. order is that owner's side of the execution.
// Fire-and-forget; delivery errors are ignored.
func (s *WebhookService) DispatchTradeExecuted(owner string, trade *domain.Trade, order *domain.Order) {
	wh := s.store.GetByOwnerEvent(owner, "trade.executed")
	if wh == nil {
		return
	}

	payload := tradeExecutedPayload{
		Event:     "trade.executed",
		Timestamp: trade.ExecutedAt.UTC().Truncate(time.Second).Format(time.RFC3339),
		Data: tradeExecutedData{
			TradeID:                trade.TradeID,
			Owner:                  owner,
			OrderID:                order.OrderID,
			Symbol:                 order.Symbol,
			Side:                   string(order.Side),
			TradePrice:             domain.CentsToDollars(trade.Price),
			TradeQuantity:          trade.Quantity,
			OrderStatus:            string(order.Status),
			OrderFilledQuantity:    order.FilledQuantity,
			OrderRemainingQuantity: order.RemainingQuantity,
		},
	}

	go s.deliver(wh, "trade.executed", payload)
}

// DispatchOrderCancelled dispatches an order.cancelled notification to
// the order's owner. Fire-and-forget.
func (s *WebhookService) DispatchOrderCancelled(order *domain.Order) {
	wh := s.store.GetByOwnerEvent(order.Owner, "order.cancelled")
	if wh == nil {
		return
	}
	go s.deliver(wh, "order.cancelled", buildOrderEventPayload("order.cancelled", order))
}

// DispatchOrderExpired dispatches an order.expired notification to the
// order's owner. Fire-and-forget.
func (s *WebhookService) DispatchOrderExpired(order *domain.Order) {
	wh := s.store.GetByOwnerEvent(order.Owner, "order.expired")
	if wh == nil {
		return
	}
	go s.deliver(wh, "order.expired", buildOrderEventPayload("order.expired", order))
}

func buildOrderEventPayload(event string, order *domain.Order) orderEventPayload {
	return orderEventPayload{
		Event:     event,
		Timestamp: time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
		Data: orderEventData{
			Owner:             order.Owner,
			OrderID:           order.OrderID,
			Symbol:            order.Symbol,
			Side:              string(order.Side),
			Price:             domain.CentsToDollars(order.Price),
			Quantity:          order.Quantity,
			FilledQuantity:    order.FilledQuantity,
			CancelledQuantity: order.CancelledQuantity,
			RemainingQuantity: order.RemainingQuantity,
			Status:            string(order.Status),
		},
	}
}

// deliver sends the webhook payload via HTTP POST. Errors are silently
// ignored (fire-and-forget).
func (s *WebhookService) deliver(wh *domain.Webhook, eventType string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", eventType)

	resp, err := s.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
