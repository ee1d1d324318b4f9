package store

import (
	"sync"

	"github.com/fmarinho/futx/internal/domain"
)

// TradeLedger is the append-only record of executions for the lifetime of
// the process. Trades are held in global execution order with secondary
// indexes by symbol and by owner. Readers always receive a copied,
// point-in-time prefix of the ledger: a query never observes a torn
// record and never consumes a shared cursor, so re-running it re-derives
// the same sequence plus whatever executed since.
type TradeLedger struct {
	mu       sync.RWMutex
	trades   []*domain.Trade            // global execution order
	bySymbol map[string][]*domain.Trade // symbol → trades (chronological)
	byOwner  map[string][]*domain.Trade // owner → trades (chronological)
}

// NewTradeLedger creates an empty TradeLedger.
func NewTradeLedger() *TradeLedger {
	return &TradeLedger{
		trades:   make([]*domain.Trade, 0),
		bySymbol: make(map[string][]*domain.Trade),
		byOwner:  make(map[string][]*domain.Trade),
	}
}

// Append records a trade. Trades are immutable once appended.
func (l *TradeLedger) Append(t *domain.Trade) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.trades = append(l.trades, t)
	l.bySymbol[t.Symbol] = append(l.bySymbol[t.Symbol], t)
	l.byOwner[t.BuyOwner] = append(l.byOwner[t.BuyOwner], t)
	if t.SellOwner != t.BuyOwner {
		l.byOwner[t.SellOwner] = append(l.byOwner[t.SellOwner], t)
	}
}

// All returns every trade in execution order.
func (l *TradeLedger) All() []*domain.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyTrades(l.trades)
}

// BySymbol returns all trades for a symbol in execution order.
func (l *TradeLedger) BySymbol(symbol string) []*domain.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyTrades(l.bySymbol[symbol])
}

// ByOwner returns all trades in which the owner was on either side, in
// execution order. A self-trade appears once.
func (l *TradeLedger) ByOwner(owner string) []*domain.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyTrades(l.byOwner[owner])
}

// Query returns trades filtered by symbol and/or owner, in execution
// order. Empty filter values match everything.
func (l *TradeLedger) Query(symbol, owner string) []*domain.Trade {
	switch {
	case symbol == "" && owner == "":
		return l.All()
	case owner == "":
		return l.BySymbol(symbol)
	case symbol == "":
		return l.ByOwner(owner)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*domain.Trade, 0)
	for _, t := range l.bySymbol[symbol] {
		if t.Involves(owner) {
			out = append(out, t)
		}
	}
	return out
}

// copyTrades returns a fresh slice so callers cannot mutate the ledger's
// internal state. Returns an empty slice rather than nil.
func copyTrades(trades []*domain.Trade) []*domain.Trade {
	out := make([]*domain.Trade, len(trades))
	copy(out, trades)
	return out
}
