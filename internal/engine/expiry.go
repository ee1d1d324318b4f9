package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fmarinho/futx/internal/domain"
)

// WebhookDispatcher lets the engine announce expirations without
// depending on the service layer directly.
type WebhookDispatcher interface {
	DispatchOrderExpired(order *domain.Order)
}

// ExpiryManager tracks resting good-till-date orders sorted by expires_at
// and periodically expires the ones whose time has passed. Orders without
// an expires_at are good-till-cancelled and never enter the manager.
type ExpiryManager struct {
	interval   time.Duration
	books      *BookManager
	dispatcher WebhookDispatcher

	mu     sync.Mutex      // protects active
	active []*domain.Order // sorted by expires_at ASC
}

// NewExpiryManager creates a new ExpiryManager. dispatcher may be nil.
func NewExpiryManager(interval time.Duration, books *BookManager, dispatcher WebhookDispatcher) *ExpiryManager {
	return &ExpiryManager{
		interval:   interval,
		books:      books,
		dispatcher: dispatcher,
		active:     make([]*domain.Order, 0),
	}
}

// Add inserts a resting order into the sorted active slice, maintaining
// expires_at ASC order. Orders without expires_at are ignored.
func (e *ExpiryManager) Add(order *domain.Order) {
	if order.ExpiresAt == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	expiresAt := *order.ExpiresAt
	idx := sort.Search(len(e.active), func(i int) bool {
		return e.active[i].ExpiresAt.After(expiresAt)
	})
	e.active = append(e.active, nil)
	copy(e.active[idx+1:], e.active[idx:])
	e.active[idx] = order
}

// Remove deletes an order from the active slice by order ID. Called when
// an order leaves the book for any reason other than expiry.
func (e *ExpiryManager) Remove(orderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, o := range e.active {
		if o.OrderID == orderID {
			e.active = append(e.active[:i], e.active[i+1:]...)
			return
		}
	}
}

// Start launches a background goroutine that ticks at the configured
// interval and expires due orders. It stops when ctx is cancelled.
func (e *ExpiryManager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				e.Tick(t)
			}
		}
	}()
}

// Tick expires every tracked order whose expires_at is at or before now.
// Exported so tests can drive expiry deterministically.
func (e *ExpiryManager) Tick(now time.Time) {
	// Collect due orders under the manager lock; the slice is sorted, so
	// due orders form a prefix.
	e.mu.Lock()
	var due []*domain.Order
	cutoff := 0
	for cutoff < len(e.active) {
		o := e.active[cutoff]
		if o.ExpiresAt == nil || o.ExpiresAt.After(now) {
			break
		}
		due = append(due, o)
		cutoff++
	}
	if cutoff > 0 {
		e.active = e.active[cutoff:]
	}
	e.mu.Unlock()

	for _, order := range due {
		e.expire(order, now)
	}
}

// expire transitions a single order to expired under its symbol's book
// lock, racing fills and cancels deterministically: whichever terminal
// transition happens first wins, the loser is a no-op.
func (e *ExpiryManager) expire(order *domain.Order, now time.Time) {
	book := e.books.GetOrCreate(order.Symbol)

	book.mu.Lock()
	if order.Terminal() {
		book.mu.Unlock()
		return
	}

	book.Remove(order.OrderID)
	order.CancelledQuantity = order.RemainingQuantity
	order.RemainingQuantity = 0
	order.Status = domain.OrderStatusExpired
	expiredAt := now
	order.ExpiredAt = &expiredAt
	book.mu.Unlock()

	// Notification happens outside the book lock.
	if e.dispatcher != nil {
		e.dispatcher.DispatchOrderExpired(order)
	}
}
