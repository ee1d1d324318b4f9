package engine

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fmarinho/futx/internal/domain"
	"github.com/fmarinho/futx/internal/store"
)

// CancelResult reports the outcome of a cancellation request. Cancelled
// is false when the order had already reached a terminal state — the
// caller asked for something that is already true, which is not an error.
type CancelResult struct {
	Order     *domain.Order
	Cancelled bool
}

// QuotePriceLevel represents a single price level in a sweep simulation.
type QuotePriceLevel struct {
	Price    int64
	Quantity int64
}

// QuoteResult holds the result of a read-only book sweep simulation.
type QuoteResult struct {
	QuantityAvailable int64
	FullyFillable     bool
	EstimatedAvgPrice *int64 // nil when no liquidity
	EstimatedTotal    *int64 // nil when no liquidity
	PriceLevels       []QuotePriceLevel
}

// Matcher implements continuous double-auction matching with price-time
// priority. All book mutation for a symbol happens under that symbol's
// write lock, held for the whole validate-match-rest pass, so at most one
// matching operation is in flight per symbol at any instant.
type Matcher struct {
	books     *BookManager
	orders    *store.OrderStore
	ledger    *store.TradeLedger
	contracts *domain.ContractRegistry
	seq       atomic.Uint64
}

// NewMatcher creates a new Matcher with the given dependencies.
func NewMatcher(
	books *BookManager,
	orders *store.OrderStore,
	ledger *store.TradeLedger,
	contracts *domain.ContractRegistry,
) *Matcher {
	return &Matcher{
		books:     books,
		orders:    orders,
		ledger:    ledger,
		contracts: contracts,
	}
}

// Books exposes the book manager for read-only consumers (market data).
func (m *Matcher) Books() *BookManager {
	return m.books
}

// Submit processes an incoming limit order through the matching engine:
// validate, match against the opposite side while prices cross, then rest
// any unfilled remainder on the book.
//
// The caller provides an Order with Owner, Side, Symbol, Price and
// Quantity set. The matcher assigns OrderID, Sequence and SubmittedAt and
// manages all status transitions. Execution price is always the resting
// order's price. Self-trading is not prevented; that is a policy layer,
// not a matching rule.
//
// The match loop is bounded by the size of the opposite side at entry and
// performs no I/O, so the per-symbol lock is never held indefinitely.
func (m *Matcher) Submit(order *domain.Order) ([]*domain.Trade, error) {
	// Step 1: validate. A rejected order has no partial effect.
	if !m.contracts.Exists(order.Symbol) {
		return nil, domain.ErrSymbolNotFound
	}
	if order.Price <= 0 {
		return nil, &domain.ValidationError{Message: "price must be greater than 0"}
	}
	if order.Quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}

	book := m.books.GetOrCreate(order.Symbol)

	book.mu.Lock()
	defer book.mu.Unlock()

	// Acceptance: assign identity and the time-priority sequence number.
	// The sequence is assigned under the book lock relative to other
	// orders for this symbol, so FIFO at a price level is exact.
	order.OrderID = uuid.New().String()
	order.Sequence = m.seq.Add(1)
	order.SubmittedAt = time.Now()
	order.RemainingQuantity = order.Quantity
	order.FilledQuantity = 0
	order.CancelledQuantity = 0
	order.Status = domain.OrderStatusOpen
	order.Trades = []*domain.Trade{}

	m.orders.Create(order)

	// Step 2: match while the incoming order has quantity left and the
	// best opposite order crosses.
	executedAt := time.Now()
	var trades []*domain.Trade

	for order.RemainingQuantity > 0 {
		entry, found := book.BestOpposite(order.Side)
		if !found {
			break
		}

		// Crossing is strict: a buy matches asks priced at or below it,
		// a sell matches bids priced at or above it.
		if order.Side == domain.OrderSideBuy {
			if order.Price < entry.Price {
				break
			}
		} else {
			if order.Price > entry.Price {
				break
			}
		}

		resting := entry.Order

		fillQty := order.RemainingQuantity
		if resting.RemainingQuantity < fillQty {
			fillQty = resting.RemainingQuantity
		}

		// The passive side sets the execution price.
		trade := m.buildTrade(order, resting, entry.Price, fillQty, executedAt)

		order.RemainingQuantity -= fillQty
		order.FilledQuantity += fillQty
		resting.RemainingQuantity -= fillQty
		resting.FilledQuantity += fillQty

		if order.RemainingQuantity == 0 {
			order.Status = domain.OrderStatusFilled
		}
		if resting.RemainingQuantity == 0 {
			resting.Status = domain.OrderStatusFilled
			book.Remove(resting.OrderID)
		}

		order.Trades = append(order.Trades, trade)
		resting.Trades = append(resting.Trades, trade)
		trades = append(trades, trade)

		m.ledger.Append(trade)
	}

	// Step 3: rest the remainder, if any, at its original limit price.
	if order.RemainingQuantity > 0 {
		book.Insert(BookEntry{
			Price:    order.Price,
			Sequence: order.Sequence,
			OrderID:  order.OrderID,
			Order:    order,
		})
	}

	return trades, nil
}

// buildTrade creates the single trade record for a fill, oriented by the
// sides of the two orders involved.
func (m *Matcher) buildTrade(incoming, resting *domain.Order, price, qty int64, executedAt time.Time) *domain.Trade {
	t := &domain.Trade{
		TradeID:    uuid.New().String(),
		Symbol:     incoming.Symbol,
		Price:      price,
		Quantity:   qty,
		ExecutedAt: executedAt,
	}
	if incoming.Side == domain.OrderSideBuy {
		t.BuyOrderID = incoming.OrderID
		t.BuyOwner = incoming.Owner
		t.SellOrderID = resting.OrderID
		t.SellOwner = resting.Owner
	} else {
		t.BuyOrderID = resting.OrderID
		t.BuyOwner = resting.Owner
		t.SellOrderID = incoming.OrderID
		t.SellOwner = incoming.Owner
	}
	return t
}

// Cancel removes an open order from the book and marks it cancelled.
//
// Cancellation serializes against matching on the same symbol's lock, so
// a cancel racing a fill resolves deterministically: if the fill won, the
// order is already terminal and the result reports Cancelled=false rather
// than an error. Unknown orders return ErrOrderNotFound; a requester who
// is not the owner gets ErrNotOrderOwner.
func (m *Matcher) Cancel(orderID, requester string) (*CancelResult, error) {
	order, err := m.orders.Get(orderID)
	if err != nil {
		return nil, err
	}

	// Owner is immutable after acceptance, so this check needs no lock.
	if requester != "" && requester != order.Owner {
		return nil, domain.ErrNotOrderOwner
	}

	book := m.books.GetOrCreate(order.Symbol)
	book.mu.Lock()
	defer book.mu.Unlock()

	// Status can only change under this lock; re-check now that we hold it.
	if order.Terminal() {
		return &CancelResult{Order: order, Cancelled: false}, nil
	}

	book.Remove(order.OrderID)

	now := time.Now()
	order.CancelledQuantity = order.RemainingQuantity
	order.RemainingQuantity = 0
	order.Status = domain.OrderStatusCancelled
	order.CancelledAt = &now

	return &CancelResult{Order: order, Cancelled: true}, nil
}

// SimulateSweep performs a read-only walk of one side of the book to
// estimate what sweeping the given quantity would cost, without mutating
// anything. Buy quotes walk the asks (lowest first); sell quotes walk the
// bids (highest first).
func (m *Matcher) SimulateSweep(symbol string, side domain.OrderSide, quantity int64) *QuoteResult {
	book := m.books.GetOrCreate(symbol)

	book.mu.RLock()
	defer book.mu.RUnlock()

	result := &QuoteResult{
		PriceLevels: make([]QuotePriceLevel, 0),
	}

	remaining := quantity
	var totalCost int64

	walkFn := func(entry BookEntry) bool {
		if remaining <= 0 {
			return false
		}
		fillQty := entry.Order.RemainingQuantity
		if fillQty > remaining {
			fillQty = remaining
		}
		totalCost += entry.Price * fillQty
		result.QuantityAvailable += fillQty
		remaining -= fillQty

		if n := len(result.PriceLevels); n > 0 && result.PriceLevels[n-1].Price == entry.Price {
			result.PriceLevels[n-1].Quantity += fillQty
		} else {
			result.PriceLevels = append(result.PriceLevels, QuotePriceLevel{
				Price:    entry.Price,
				Quantity: fillQty,
			})
		}
		return true
	}

	if side == domain.OrderSideBuy {
		book.WalkAsks(walkFn)
	} else {
		book.WalkBids(walkFn)
	}

	if result.QuantityAvailable > 0 {
		avgPrice := totalCost / result.QuantityAvailable
		result.EstimatedAvgPrice = &avgPrice
		result.EstimatedTotal = &totalCost
	}
	result.FullyFillable = result.QuantityAvailable >= quantity

	return result
}
