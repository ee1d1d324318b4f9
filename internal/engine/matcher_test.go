package engine

import (
	"errors"
	"testing"

	"github.com/fmarinho/futx/internal/domain"
	"github.com/fmarinho/futx/internal/store"
)

// newTestMatcher creates a Matcher with fresh stores and a small contract
// universe for testing.
func newTestMatcher() (*Matcher, *store.OrderStore, *store.TradeLedger) {
	books := NewBookManager()
	orders := store.NewOrderStore()
	ledger := store.NewTradeLedger()
	contracts := domain.NewContractRegistry([]string{"GOLDZ26", "OILF27"})
	m := NewMatcher(books, orders, ledger, contracts)
	return m, orders, ledger
}

// newOrder creates an order struct not yet submitted to the matcher.
func newOrder(owner string, side domain.OrderSide, symbol string, price, qty int64) *domain.Order {
	return &domain.Order{
		Owner:    owner,
		Side:     side,
		Symbol:   symbol,
		Price:    price,
		Quantity: qty,
	}
}

func TestSubmit_EmptyBook_BuyRests(t *testing.T) {
	m, _, _ := newTestMatcher()

	// Buy 100 @ $410 against an empty book.
	order := newOrder("alice", domain.OrderSideBuy, "GOLDZ26", 41000, 100)
	trades, err := m.Submit(order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 0 {
		t.Errorf("expected 0 trades, got %d", len(trades))
	}
	if order.Status != domain.OrderStatusOpen {
		t.Errorf("expected status open, got %s", order.Status)
	}
	if order.RemainingQuantity != 100 {
		t.Errorf("expected remaining 100, got %d", order.RemainingQuantity)
	}
	if order.OrderID == "" {
		t.Error("expected order_id to be assigned")
	}
	if order.Sequence == 0 {
		t.Error("expected a sequence number to be assigned")
	}

	book := m.books.GetOrCreate("GOLDZ26")
	bids := book.SnapshotBids()
	if len(bids) != 1 || bids[0].OrderID != order.OrderID {
		t.Fatalf("expected the order on the bid side, got %d bids", len(bids))
	}
	if book.AskCount() != 0 {
		t.Errorf("expected empty ask side, got %d", book.AskCount())
	}
}

func TestSubmit_PartialFillAgainstRestingBid(t *testing.T) {
	m, _, _ := newTestMatcher()

	bid := newOrder("alice", domain.OrderSideBuy, "GOLDZ26", 41000, 100)
	if _, err := m.Submit(bid); err != nil {
		t.Fatalf("bid error: %v", err)
	}

	// Sell 60 @ $405 crosses the resting bid at $410.
	ask := newOrder("bob", domain.OrderSideSell, "GOLDZ26", 40500, 60)
	trades, err := m.Submit(ask)
	if err != nil {
		t.Fatalf("ask error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	// The resting bid sets the execution price.
	if trades[0].Price != 41000 {
		t.Errorf("expected execution price 41000, got %d", trades[0].Price)
	}
	if trades[0].Quantity != 60 {
		t.Errorf("expected trade quantity 60, got %d", trades[0].Quantity)
	}
	if trades[0].BuyOwner != "alice" || trades[0].SellOwner != "bob" {
		t.Errorf("wrong trade orientation: buy=%s sell=%s", trades[0].BuyOwner, trades[0].SellOwner)
	}

	if bid.RemainingQuantity != 40 {
		t.Errorf("expected bid remaining 40, got %d", bid.RemainingQuantity)
	}
	if bid.Status != domain.OrderStatusOpen {
		t.Errorf("partially filled bid should stay open, got %s", bid.Status)
	}
	if ask.Status != domain.OrderStatusFilled {
		t.Errorf("expected ask filled, got %s", ask.Status)
	}

	book := m.books.GetOrCreate("GOLDZ26")
	if book.AskCount() != 0 {
		t.Errorf("expected no residual ask, got %d", book.AskCount())
	}
	if book.BidCount() != 1 {
		t.Errorf("expected bid still resting, got %d", book.BidCount())
	}
}

func TestSubmit_ExactFillRemovesRestingOrder(t *testing.T) {
	m, _, _ := newTestMatcher()

	bid := newOrder("alice", domain.OrderSideBuy, "GOLDZ26", 41000, 100)
	if _, err := m.Submit(bid); err != nil {
		t.Fatalf("bid error: %v", err)
	}
	if _, err := m.Submit(newOrder("bob", domain.OrderSideSell, "GOLDZ26", 40500, 60)); err != nil {
		t.Fatalf("first ask error: %v", err)
	}

	// Sell the remaining 40 at exactly the bid price.
	ask := newOrder("carol", domain.OrderSideSell, "GOLDZ26", 41000, 40)
	trades, err := m.Submit(ask)
	if err != nil {
		t.Fatalf("ask error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Price != 41000 || trades[0].Quantity != 40 {
		t.Errorf("expected 40 @ 41000, got %d @ %d", trades[0].Quantity, trades[0].Price)
	}
	if bid.Status != domain.OrderStatusFilled {
		t.Errorf("expected bid filled, got %s", bid.Status)
	}
	if bid.RemainingQuantity != 0 {
		t.Errorf("expected bid remaining 0, got %d", bid.RemainingQuantity)
	}

	book := m.books.GetOrCreate("GOLDZ26")
	if book.BidCount() != 0 || book.AskCount() != 0 {
		t.Errorf("expected empty book, got bids=%d asks=%d", book.BidCount(), book.AskCount())
	}
}

func TestSubmit_TimePriorityAtSamePrice(t *testing.T) {
	m, _, _ := newTestMatcher()

	first := newOrder("alice", domain.OrderSideBuy, "GOLDZ26", 40000, 50)
	second := newOrder("bob", domain.OrderSideBuy, "GOLDZ26", 40000, 50)
	if _, err := m.Submit(first); err != nil {
		t.Fatalf("first bid error: %v", err)
	}
	if _, err := m.Submit(second); err != nil {
		t.Fatalf("second bid error: %v", err)
	}

	ask := newOrder("carol", domain.OrderSideSell, "GOLDZ26", 40000, 50)
	trades, err := m.Submit(ask)
	if err != nil {
		t.Fatalf("ask error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].BuyOrderID != first.OrderID {
		t.Errorf("expected the earlier bid to fill first")
	}
	if first.Status != domain.OrderStatusFilled {
		t.Errorf("expected first bid filled, got %s", first.Status)
	}
	if second.Status != domain.OrderStatusOpen || second.RemainingQuantity != 50 {
		t.Errorf("expected second bid untouched, got status=%s remaining=%d", second.Status, second.RemainingQuantity)
	}
}

func TestSubmit_PricePriorityBeforeTimePriority(t *testing.T) {
	m, _, _ := newTestMatcher()

	cheap := newOrder("alice", domain.OrderSideSell, "GOLDZ26", 40500, 10)
	expensive := newOrder("bob", domain.OrderSideSell, "GOLDZ26", 40000, 10)
	if _, err := m.Submit(cheap); err != nil {
		t.Fatalf("first ask error: %v", err)
	}
	if _, err := m.Submit(expensive); err != nil {
		t.Fatalf("second ask error: %v", err)
	}

	// The later but better-priced ask must fill first.
	buy := newOrder("carol", domain.OrderSideBuy, "GOLDZ26", 41000, 10)
	trades, err := m.Submit(buy)
	if err != nil {
		t.Fatalf("buy error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].SellOrderID != expensive.OrderID {
		t.Error("expected the lower-priced ask to fill first despite later submission")
	}
	if trades[0].Price != 40000 {
		t.Errorf("expected execution at 40000, got %d", trades[0].Price)
	}
}

func TestSubmit_SweepsMultiplePriceLevels(t *testing.T) {
	m, _, ledger := newTestMatcher()

	if _, err := m.Submit(newOrder("a", domain.OrderSideSell, "GOLDZ26", 40000, 30)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Submit(newOrder("b", domain.OrderSideSell, "GOLDZ26", 40100, 30)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Submit(newOrder("c", domain.OrderSideSell, "GOLDZ26", 40200, 30)); err != nil {
		t.Fatal(err)
	}

	buy := newOrder("d", domain.OrderSideBuy, "GOLDZ26", 40100, 100)
	trades, err := m.Submit(buy)
	if err != nil {
		t.Fatalf("buy error: %v", err)
	}

	// Only the two crossing levels trade; the remainder rests.
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].Price != 40000 || trades[1].Price != 40100 {
		t.Errorf("expected fills at 40000 then 40100, got %d then %d", trades[0].Price, trades[1].Price)
	}
	if buy.FilledQuantity != 60 || buy.RemainingQuantity != 40 {
		t.Errorf("expected filled=60 remaining=40, got filled=%d remaining=%d", buy.FilledQuantity, buy.RemainingQuantity)
	}
	if buy.Status != domain.OrderStatusOpen {
		t.Errorf("expected the remainder to rest open, got %s", buy.Status)
	}

	book := m.books.GetOrCreate("GOLDZ26")
	if book.BidCount() != 1 {
		t.Errorf("expected 1 resting bid, got %d", book.BidCount())
	}
	if book.AskCount() != 1 {
		t.Errorf("expected the 40200 ask untouched, got %d asks", book.AskCount())
	}
	if got := len(ledger.BySymbol("GOLDZ26")); got != 2 {
		t.Errorf("expected 2 trades in ledger, got %d", got)
	}
}

func TestSubmit_NoCrossBelowAsk(t *testing.T) {
	m, _, _ := newTestMatcher()

	if _, err := m.Submit(newOrder("a", domain.OrderSideSell, "GOLDZ26", 41000, 10)); err != nil {
		t.Fatal(err)
	}

	buy := newOrder("b", domain.OrderSideBuy, "GOLDZ26", 40900, 10)
	trades, err := m.Submit(buy)
	if err != nil {
		t.Fatalf("buy error: %v", err)
	}
	if len(trades) != 0 {
		t.Errorf("bid below ask must not trade, got %d trades", len(trades))
	}

	book := m.books.GetOrCreate("GOLDZ26")
	if book.BidCount() != 1 || book.AskCount() != 1 {
		t.Errorf("expected both orders resting, got bids=%d asks=%d", book.BidCount(), book.AskCount())
	}
}

func TestSubmit_SelfTradeAllowed(t *testing.T) {
	m, _, _ := newTestMatcher()

	if _, err := m.Submit(newOrder("alice", domain.OrderSideSell, "GOLDZ26", 40000, 10)); err != nil {
		t.Fatal(err)
	}

	buy := newOrder("alice", domain.OrderSideBuy, "GOLDZ26", 40000, 10)
	trades, err := m.Submit(buy)
	if err != nil {
		t.Fatalf("buy error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("self-trade must match, got %d trades", len(trades))
	}
	if trades[0].BuyOwner != "alice" || trades[0].SellOwner != "alice" {
		t.Errorf("expected alice on both sides, got buy=%s sell=%s", trades[0].BuyOwner, trades[0].SellOwner)
	}
}

func TestSubmit_UnknownSymbolRejected(t *testing.T) {
	m, orders, _ := newTestMatcher()

	order := newOrder("alice", domain.OrderSideBuy, "UNLISTED", 40000, 10)
	_, err := m.Submit(order)
	if !errors.Is(err, domain.ErrSymbolNotFound) {
		t.Fatalf("expected ErrSymbolNotFound, got %v", err)
	}
	// Rejection must have no partial effect.
	if order.OrderID != "" {
		t.Error("rejected order must not be assigned an id")
	}
	if _, total := orders.ListByOwner("alice", nil, 1, 10); total != 0 {
		t.Error("rejected order must not be stored")
	}
}

func TestSubmit_NonPositivePriceOrQuantityRejected(t *testing.T) {
	m, _, _ := newTestMatcher()

	var validationErr *domain.ValidationError

	_, err := m.Submit(newOrder("alice", domain.OrderSideBuy, "GOLDZ26", 0, 10))
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error for zero price, got %v", err)
	}

	_, err = m.Submit(newOrder("alice", domain.OrderSideBuy, "GOLDZ26", 40000, 0))
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error for zero quantity, got %v", err)
	}

	_, err = m.Submit(newOrder("alice", domain.OrderSideBuy, "GOLDZ26", -100, -5))
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error for negative values, got %v", err)
	}
}

func TestCancel_OpenOrder(t *testing.T) {
	m, _, _ := newTestMatcher()

	order := newOrder("alice", domain.OrderSideBuy, "GOLDZ26", 40000, 10)
	if _, err := m.Submit(order); err != nil {
		t.Fatal(err)
	}

	res, err := m.Cancel(order.OrderID, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Cancelled {
		t.Error("expected cancelled=true for an open order")
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Errorf("expected status cancelled, got %s", order.Status)
	}
	if order.RemainingQuantity != 0 || order.CancelledQuantity != 10 {
		t.Errorf("expected remaining=0 cancelled=10, got remaining=%d cancelled=%d",
			order.RemainingQuantity, order.CancelledQuantity)
	}
	if order.CancelledAt == nil {
		t.Error("expected cancelled_at to be set")
	}

	book := m.books.GetOrCreate("GOLDZ26")
	if book.BidCount() != 0 {
		t.Errorf("expected order removed from book, got %d bids", book.BidCount())
	}
}

func TestCancel_IdempotentOnTerminalOrders(t *testing.T) {
	m, _, ledger := newTestMatcher()

	order := newOrder("alice", domain.OrderSideBuy, "GOLDZ26", 40000, 10)
	if _, err := m.Submit(order); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Cancel(order.OrderID, "alice"); err != nil {
		t.Fatal(err)
	}

	// Second cancel: no-op, not an error.
	res, err := m.Cancel(order.OrderID, "alice")
	if err != nil {
		t.Fatalf("repeat cancel must not error: %v", err)
	}
	if res.Cancelled {
		t.Error("expected cancelled=false on repeat cancel")
	}

	// Cancel of a filled order: same no-op semantics, ledger untouched.
	filled := newOrder("bob", domain.OrderSideSell, "GOLDZ26", 39000, 5)
	if _, err := m.Submit(filled); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Submit(newOrder("carol", domain.OrderSideBuy, "GOLDZ26", 39000, 5)); err != nil {
		t.Fatal(err)
	}
	before := len(ledger.All())

	res, err = m.Cancel(filled.OrderID, "bob")
	if err != nil {
		t.Fatalf("cancel of filled order must not error: %v", err)
	}
	if res.Cancelled {
		t.Error("expected cancelled=false for a filled order")
	}
	if filled.Status != domain.OrderStatusFilled {
		t.Errorf("cancel must not change a filled order's status, got %s", filled.Status)
	}
	if after := len(ledger.All()); after != before {
		t.Errorf("cancel must not mutate the ledger: before=%d after=%d", before, after)
	}
}

func TestCancel_UnknownOrder(t *testing.T) {
	m, _, _ := newTestMatcher()

	_, err := m.Cancel("no-such-order", "alice")
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestCancel_WrongOwnerForbidden(t *testing.T) {
	m, _, _ := newTestMatcher()

	order := newOrder("alice", domain.OrderSideBuy, "GOLDZ26", 40000, 10)
	if _, err := m.Submit(order); err != nil {
		t.Fatal(err)
	}

	_, err := m.Cancel(order.OrderID, "mallory")
	if !errors.Is(err, domain.ErrNotOrderOwner) {
		t.Fatalf("expected ErrNotOrderOwner, got %v", err)
	}
	if order.Status != domain.OrderStatusOpen {
		t.Errorf("forbidden cancel must not mutate the order, got %s", order.Status)
	}
}

func TestSubmit_SymbolsMatchIndependently(t *testing.T) {
	m, _, _ := newTestMatcher()

	if _, err := m.Submit(newOrder("a", domain.OrderSideSell, "GOLDZ26", 40000, 10)); err != nil {
		t.Fatal(err)
	}

	// A crossing buy on a different symbol must not touch the gold book.
	buy := newOrder("b", domain.OrderSideBuy, "OILF27", 40000, 10)
	trades, err := m.Submit(buy)
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 0 {
		t.Errorf("expected no cross-symbol matching, got %d trades", len(trades))
	}
	if m.books.GetOrCreate("GOLDZ26").AskCount() != 1 {
		t.Error("gold ask must still rest")
	}
	if m.books.GetOrCreate("OILF27").BidCount() != 1 {
		t.Error("oil bid must rest on its own book")
	}
}

func TestSimulateSweep(t *testing.T) {
	m, _, _ := newTestMatcher()

	if _, err := m.Submit(newOrder("a", domain.OrderSideSell, "GOLDZ26", 40000, 30)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Submit(newOrder("b", domain.OrderSideSell, "GOLDZ26", 40100, 30)); err != nil {
		t.Fatal(err)
	}

	res := m.SimulateSweep("GOLDZ26", domain.OrderSideBuy, 50)
	if res.QuantityAvailable != 50 {
		t.Errorf("expected 50 available, got %d", res.QuantityAvailable)
	}
	if !res.FullyFillable {
		t.Error("expected fully fillable")
	}
	if len(res.PriceLevels) != 2 {
		t.Fatalf("expected 2 price levels, got %d", len(res.PriceLevels))
	}
	wantTotal := int64(30*40000 + 20*40100)
	if res.EstimatedTotal == nil || *res.EstimatedTotal != wantTotal {
		t.Errorf("expected total %d, got %v", wantTotal, res.EstimatedTotal)
	}

	// Simulation must not mutate the book.
	book := m.books.GetOrCreate("GOLDZ26")
	if book.AskCount() != 2 {
		t.Errorf("simulation mutated the book: %d asks", book.AskCount())
	}

	// More than the book holds: partial availability.
	res = m.SimulateSweep("GOLDZ26", domain.OrderSideBuy, 100)
	if res.QuantityAvailable != 60 || res.FullyFillable {
		t.Errorf("expected 60 available and not fully fillable, got %d/%v",
			res.QuantityAvailable, res.FullyFillable)
	}

	// Empty side: no liquidity.
	res = m.SimulateSweep("GOLDZ26", domain.OrderSideSell, 10)
	if res.QuantityAvailable != 0 || res.EstimatedAvgPrice != nil {
		t.Errorf("expected no liquidity on the bid side")
	}
}
