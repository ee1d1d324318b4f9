package service

import (
	"regexp"
	"time"

	"github.com/fmarinho/futx/internal/domain"
	"github.com/fmarinho/futx/internal/engine"
	"github.com/fmarinho/futx/internal/store"
)

var (
	ownerRegex  = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	symbolRegex = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,11}$`)
)

// ValidOrderStatuses lists all valid order status values for validation.
var ValidOrderStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusOpen:      true,
	domain.OrderStatusFilled:    true,
	domain.OrderStatusCancelled: true,
	domain.OrderStatusExpired:   true,
}

// SubmitOrderRequest represents the input for order submission.
type SubmitOrderRequest struct {
	Owner     string
	Side      domain.OrderSide
	Symbol    string
	Price     *float64
	Quantity  int64
	ExpiresAt *time.Time // nil means good-till-cancelled
}

// OrderService handles order submission, retrieval, cancellation and
// listing. It owns all request validation; the matcher only ever sees
// well-formed orders (and re-checks the arithmetic invariants itself).
type OrderService struct {
	matcher    *engine.Matcher
	expiry     *engine.ExpiryManager
	orders     *store.OrderStore
	ledger     *store.TradeLedger
	webhookSvc *WebhookService
	contracts  *domain.ContractRegistry
}

// NewOrderService creates a new OrderService with the given dependencies.
// webhookSvc may be nil, in which case no notifications are dispatched.
func NewOrderService(
	matcher *engine.Matcher,
	expiry *engine.ExpiryManager,
	orders *store.OrderStore,
	ledger *store.TradeLedger,
	webhookSvc *WebhookService,
	contracts *domain.ContractRegistry,
) *OrderService {
	return &OrderService{
		matcher:    matcher,
		expiry:     expiry,
		orders:     orders,
		ledger:     ledger,
		webhookSvc: webhookSvc,
		contracts:  contracts,
	}
}

// SubmitOrder validates the request, runs the matching engine, and
// dispatches notifications for any trades executed. The returned order
// carries its final status and the trades it participated in.
func (s *OrderService) SubmitOrder(req SubmitOrderRequest) (*domain.Order, error) {
	if !ownerRegex.MatchString(req.Owner) {
		return nil, &domain.ValidationError{
			Message: "owner must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	if req.Side != domain.OrderSideBuy && req.Side != domain.OrderSideSell {
		return nil, &domain.ValidationError{
			Message: "side must be 'buy' or 'sell'",
		}
	}
	if !symbolRegex.MatchString(req.Symbol) {
		return nil, &domain.ValidationError{
			Message: "symbol must match ^[A-Z][A-Z0-9]{0,11}$",
		}
	}
	if !s.contracts.Exists(req.Symbol) {
		return nil, domain.ErrSymbolNotFound
	}
	if req.Quantity <= 0 {
		return nil, &domain.ValidationError{
			Message: "quantity must be a positive integer",
		}
	}
	if req.Price == nil {
		return nil, &domain.ValidationError{
			Message: "price is required",
		}
	}
	if *req.Price <= 0 {
		return nil, &domain.ValidationError{
			Message: "price must be greater than 0",
		}
	}
	priceCents, err := domain.DollarsToCents(*req.Price)
	if err != nil {
		return nil, &domain.ValidationError{
			Message: "price must have at most 2 decimal places",
		}
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return nil, &domain.ValidationError{
			Message: "expires_at must be a future timestamp",
		}
	}

	order := &domain.Order{
		Owner:     req.Owner,
		Side:      req.Side,
		Symbol:    req.Symbol,
		Price:     priceCents,
		Quantity:  req.Quantity,
		ExpiresAt: req.ExpiresAt,
	}

	trades, err := s.matcher.Submit(order)
	if err != nil {
		return nil, err
	}

	// Only orders that actually rest need expiry tracking.
	if order.Status == domain.OrderStatusOpen && order.ExpiresAt != nil {
		s.expiry.Add(order)
	}

	// Notifications happen outside the book lock, fire-and-forget.
	s.dispatchTradeWebhooks(trades)

	return order, nil
}

// dispatchTradeWebhooks notifies both sides of every trade. Each trade
// record carries both order ids, so the counterparty's order is a direct
// lookup. A self-trade notifies the owner once per side order.
func (s *OrderService) dispatchTradeWebhooks(trades []*domain.Trade) {
	if s.webhookSvc == nil {
		return
	}

	for _, trade := range trades {
		if buyOrder, err := s.orders.Get(trade.BuyOrderID); err == nil {
			s.webhookSvc.DispatchTradeExecuted(trade.BuyOwner, trade, buyOrder)
		}
		if sellOrder, err := s.orders.Get(trade.SellOrderID); err == nil {
			s.webhookSvc.DispatchTradeExecuted(trade.SellOwner, trade, sellOrder)
		}
	}
}

// GetOrder retrieves an order by ID with all its trades.
func (s *OrderService) GetOrder(orderID string) (*domain.Order, error) {
	return s.orders.Get(orderID)
}

// CancelOrder cancels an open order on behalf of the requester. The
// result reports Cancelled=false when the order was already terminal;
// that is a success, not an error.
func (s *OrderService) CancelOrder(orderID, requester string) (*engine.CancelResult, error) {
	if requester == "" {
		return nil, &domain.ValidationError{
			Message: "requesting owner is required",
		}
	}

	res, err := s.matcher.Cancel(orderID, requester)
	if err != nil {
		return nil, err
	}

	if res.Cancelled {
		s.expiry.Remove(orderID)
		if s.webhookSvc != nil {
			s.webhookSvc.DispatchOrderCancelled(res.Order)
		}
	}

	return res, nil
}

// ListOrders returns a paginated list of an owner's orders with optional
// status filtering.
func (s *OrderService) ListOrders(owner string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	if !ownerRegex.MatchString(owner) {
		return nil, 0, &domain.ValidationError{
			Message: "owner must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	if status != nil && !ValidOrderStatuses[*status] {
		return nil, 0, &domain.ValidationError{
			Message: "Invalid status filter: '" + string(*status) + "'. Must be one of: open, filled, cancelled, expired",
		}
	}
	if page < 1 {
		return nil, 0, &domain.ValidationError{
			Message: "page must be >= 1",
		}
	}
	if limit < 1 || limit > 100 {
		return nil, 0, &domain.ValidationError{
			Message: "limit must be between 1 and 100",
		}
	}

	orders, total := s.orders.ListByOwner(owner, status, page, limit)
	return orders, total, nil
}
