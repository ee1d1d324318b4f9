package domain

import "time"

// Trade represents a matched execution between a buy and a sell order.
// The price is always the resting order's limit price. Trades are
// immutable once created and the ledger holding them is append-only.
type Trade struct {
	TradeID     string
	Symbol      string
	Price       int64 // cents; the resting side's price
	Quantity    int64
	BuyOrderID  string
	SellOrderID string
	BuyOwner    string
	SellOwner   string
	ExecutedAt  time.Time
}

// Involves reports whether the given owner was on either side of the trade.
func (t *Trade) Involves(owner string) bool {
	return t.BuyOwner == owner || t.SellOwner == owner
}
