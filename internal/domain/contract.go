package domain

import (
	"sort"
	"sync"
)

// ContractRegistry tracks the futures contracts this venue accepts orders
// for. Contract metadata (expiry, tick size, reference pricing) lives with
// an external collaborator; the matching core only needs to know which
// symbols exist, so the registry is a thread-safe symbol set seeded at
// startup.
type ContractRegistry struct {
	mu      sync.RWMutex
	symbols map[string]bool
}

// NewContractRegistry creates a registry containing the given symbols.
func NewContractRegistry(symbols []string) *ContractRegistry {
	r := &ContractRegistry{
		symbols: make(map[string]bool, len(symbols)),
	}
	for _, s := range symbols {
		r.symbols[s] = true
	}
	return r
}

// Register adds a symbol to the registry. Safe for concurrent use.
func (r *ContractRegistry) Register(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.symbols[symbol] = true
}

// Exists returns true if orders may be submitted for the symbol.
func (r *ContractRegistry) Exists(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.symbols[symbol]
}

// List returns all registered symbols in lexicographic order.
func (r *ContractRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.symbols))
	for s := range r.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
