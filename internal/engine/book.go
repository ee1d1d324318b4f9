package engine

import (
	"sync"

	"github.com/google/btree"

	"github.com/fmarinho/futx/internal/domain"
)

// BookEntry represents a single order resting on the book. Price and
// Sequence are copied out of the order so the B-tree comparison functions
// never touch mutable order state.
type BookEntry struct {
	Price    int64
	Sequence uint64
	OrderID  string
	Order    *domain.Order
}

// PriceLevel represents an aggregated price level in the order book.
type PriceLevel struct {
	Price         int64
	TotalQuantity int64
	OrderCount    int
}

// bidLess defines ordering for the bid side: price descending, then
// sequence ascending. Min() therefore returns the best bid (highest
// price, earliest acceptance). Sequence numbers are unique, so no
// further tie-break is needed.
func bidLess(a, b BookEntry) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	return a.Sequence < b.Sequence
}

// askLess defines ordering for the ask side: price ascending, then
// sequence ascending. Min() returns the best ask (lowest price,
// earliest acceptance).
func askLess(a, b BookEntry) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.Sequence < b.Sequence
}

// OrderBook maintains the resting buy and sell orders for a single
// symbol using B-trees keyed by price-time priority, with a secondary
// index for O(log n) removal by order ID.
//
// Every order present is open with remaining quantity > 0; the matcher
// removes entries the moment they fill, cancel, or expire.
type OrderBook struct {
	symbol string
	mu     sync.RWMutex
	bids   *btree.BTreeG[BookEntry]
	asks   *btree.BTreeG[BookEntry]
	index  map[string]BookEntry // order_id → entry
}

// NewOrderBook creates an order book for the given symbol.
func NewOrderBook(symbol string) *OrderBook {
	const degree = 32
	return &OrderBook{
		symbol: symbol,
		bids:   btree.NewG[BookEntry](degree, bidLess),
		asks:   btree.NewG[BookEntry](degree, askLess),
		index:  make(map[string]BookEntry),
	}
}

// RLock acquires the read lock on the order book.
func (ob *OrderBook) RLock() {
	ob.mu.RLock()
}

// RUnlock releases the read lock on the order book.
func (ob *OrderBook) RUnlock() {
	ob.mu.RUnlock()
}

// Insert adds an entry to the side matching its order.
func (ob *OrderBook) Insert(entry BookEntry) {
	if entry.Order.Side == domain.OrderSideBuy {
		ob.bids.ReplaceOrInsert(entry)
	} else {
		ob.asks.ReplaceOrInsert(entry)
	}
	ob.index[entry.OrderID] = entry
}

// Remove deletes an order from the book by order ID. Removing an absent
// order is a no-op, which keeps cancellation idempotent when it races a
// fill.
func (ob *OrderBook) Remove(orderID string) {
	entry, ok := ob.index[orderID]
	if !ok {
		return
	}
	delete(ob.index, orderID)
	if entry.Order.Side == domain.OrderSideBuy {
		ob.bids.Delete(entry)
	} else {
		ob.asks.Delete(entry)
	}
}

// Contains reports whether an order currently rests on the book.
func (ob *OrderBook) Contains(orderID string) bool {
	_, ok := ob.index[orderID]
	return ok
}

// BestBid returns the highest-priority bid (highest price, earliest sequence).
func (ob *OrderBook) BestBid() (BookEntry, bool) {
	return ob.bids.Min()
}

// BestAsk returns the highest-priority ask (lowest price, earliest sequence).
func (ob *OrderBook) BestAsk() (BookEntry, bool) {
	return ob.asks.Min()
}

// BestOpposite returns the best-priced resting order on the side an
// incoming order of the given side would match against.
func (ob *OrderBook) BestOpposite(side domain.OrderSide) (BookEntry, bool) {
	if side == domain.OrderSideBuy {
		return ob.BestAsk()
	}
	return ob.BestBid()
}

// SnapshotBids returns the resting buy orders in priority order.
// The slice is freshly allocated; the orders themselves are shared.
func (ob *OrderBook) SnapshotBids() []*domain.Order {
	return snapshotSide(ob.bids)
}

// SnapshotAsks returns the resting sell orders in priority order.
func (ob *OrderBook) SnapshotAsks() []*domain.Order {
	return snapshotSide(ob.asks)
}

func snapshotSide(tree *btree.BTreeG[BookEntry]) []*domain.Order {
	out := make([]*domain.Order, 0, tree.Len())
	tree.Ascend(func(entry BookEntry) bool {
		out = append(out, entry.Order)
		return true
	})
	return out
}

// TopBids returns up to n aggregated price levels from the bid side,
// ordered by price descending.
func (ob *OrderBook) TopBids(n int) []PriceLevel {
	return topLevels(ob.bids, n)
}

// TopAsks returns up to n aggregated price levels from the ask side,
// ordered by price ascending.
func (ob *OrderBook) TopAsks(n int) []PriceLevel {
	return topLevels(ob.asks, n)
}

// topLevels walks the tree in priority order and aggregates entries into
// at most n price levels.
func topLevels(tree *btree.BTreeG[BookEntry], n int) []PriceLevel {
	if n <= 0 {
		return nil
	}
	levels := make([]PriceLevel, 0, n)
	tree.Ascend(func(entry BookEntry) bool {
		if len(levels) > 0 && levels[len(levels)-1].Price == entry.Price {
			levels[len(levels)-1].TotalQuantity += entry.Order.RemainingQuantity
			levels[len(levels)-1].OrderCount++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, PriceLevel{
			Price:         entry.Price,
			TotalQuantity: entry.Order.RemainingQuantity,
			OrderCount:    1,
		})
		return true
	})
	return levels
}

// WalkAsks iterates asks in priority order (lowest price first). The
// callback returns true to continue, false to stop.
func (ob *OrderBook) WalkAsks(fn func(BookEntry) bool) {
	ob.asks.Ascend(fn)
}

// WalkBids iterates bids in priority order (highest price first).
func (ob *OrderBook) WalkBids(fn func(BookEntry) bool) {
	ob.bids.Ascend(fn)
}

// BidCount returns the number of individual buy orders on the book.
func (ob *OrderBook) BidCount() int {
	return ob.bids.Len()
}

// AskCount returns the number of individual sell orders on the book.
func (ob *OrderBook) AskCount() int {
	return ob.asks.Len()
}

// BookManager is a thread-safe map of symbol → OrderBook. Each book has
// its own lock, so matching on different symbols proceeds in parallel
// while matching within one symbol is strictly serialized.
type BookManager struct {
	mu    sync.RWMutex
	books map[string]*OrderBook
}

// NewBookManager creates a new BookManager.
func NewBookManager() *BookManager {
	return &BookManager{
		books: make(map[string]*OrderBook),
	}
}

// GetOrCreate returns the order book for the given symbol, creating one
// if it doesn't already exist.
func (bm *BookManager) GetOrCreate(symbol string) *OrderBook {
	bm.mu.RLock()
	book, ok := bm.books[symbol]
	bm.mu.RUnlock()
	if ok {
		return book
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	// Double-check after acquiring write lock.
	if book, ok = bm.books[symbol]; ok {
		return book
	}
	book = NewOrderBook(symbol)
	bm.books[symbol] = book
	return book
}
