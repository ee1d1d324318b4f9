package service

import (
	"fmt"
	"time"

	"github.com/fmarinho/futx/internal/domain"
	"github.com/fmarinho/futx/internal/engine"
	"github.com/fmarinho/futx/internal/store"
)

// BookSnapshot is a point-in-time view of a symbol's resting orders in
// priority order, best price first on both sides.
type BookSnapshot struct {
	Symbol     string
	Bids       []*domain.Order
	Asks       []*domain.Order
	SnapshotAt time.Time
}

// DepthLevel represents an aggregated price level in the depth response.
type DepthLevel struct {
	Price         int64
	TotalQuantity int64
	OrderCount    int
}

// DepthSnapshot represents the top N aggregated price levels per side.
type DepthSnapshot struct {
	Symbol     string
	Bids       []DepthLevel
	Asks       []DepthLevel
	Spread     *int64 // nil if either side empty
	SnapshotAt time.Time
}

// PriceReport is the VWAP-based reference price for a symbol.
type PriceReport struct {
	Symbol         string
	CurrentPrice   *int64 // nil when no trades ever
	Window         string
	TradesInWindow int
	LastTradeAt    *time.Time // nil when no trades ever
}

// QuoteReport is the result of simulating a sweep of one book side.
type QuoteReport struct {
	Symbol            string
	Side              domain.OrderSide
	QuantityRequested int64
	QuantityAvailable int64
	FullyFillable     bool
	EstimatedAvgPrice *int64 // nil when no liquidity
	EstimatedTotal    *int64 // nil when no liquidity
	PriceLevels       []engine.QuotePriceLevel
	QuotedAt          time.Time
}

// MarketService serves read-only market data: book snapshots, depth,
// trade history, reference prices and sweep quotes.
type MarketService struct {
	ledger     *store.TradeLedger
	books      *engine.BookManager
	matcher    *engine.Matcher
	vwapWindow time.Duration
	contracts  *domain.ContractRegistry
}

// NewMarketService creates a new MarketService with the given dependencies.
func NewMarketService(
	ledger *store.TradeLedger,
	books *engine.BookManager,
	matcher *engine.Matcher,
	vwapWindow time.Duration,
	contracts *domain.ContractRegistry,
) *MarketService {
	return &MarketService{
		ledger:     ledger,
		books:      books,
		matcher:    matcher,
		vwapWindow: vwapWindow,
		contracts:  contracts,
	}
}

// ListContracts returns the known contract symbols.
func (s *MarketService) ListContracts() []string {
	return s.contracts.List()
}

// GetBook returns every resting order for a symbol, both sides in
// priority order.
func (s *MarketService) GetBook(symbol string) (*BookSnapshot, error) {
	if !s.contracts.Exists(symbol) {
		return nil, domain.ErrSymbolNotFound
	}

	book := s.books.GetOrCreate(symbol)

	book.RLock()
	defer book.RUnlock()

	return &BookSnapshot{
		Symbol:     symbol,
		Bids:       book.SnapshotBids(),
		Asks:       book.SnapshotAsks(),
		SnapshotAt: time.Now(),
	}, nil
}

// GetDepth returns the top N aggregated price levels of the book.
func (s *MarketService) GetDepth(symbol string, levels int) (*DepthSnapshot, error) {
	if !s.contracts.Exists(symbol) {
		return nil, domain.ErrSymbolNotFound
	}
	if levels < 1 || levels > 50 {
		return nil, &domain.ValidationError{
			Message: "levels must be between 1 and 50",
		}
	}

	book := s.books.GetOrCreate(symbol)

	book.RLock()
	defer book.RUnlock()

	topBids := book.TopBids(levels)
	topAsks := book.TopAsks(levels)

	bids := make([]DepthLevel, len(topBids))
	for i, pl := range topBids {
		bids[i] = DepthLevel{Price: pl.Price, TotalQuantity: pl.TotalQuantity, OrderCount: pl.OrderCount}
	}
	asks := make([]DepthLevel, len(topAsks))
	for i, pl := range topAsks {
		asks[i] = DepthLevel{Price: pl.Price, TotalQuantity: pl.TotalQuantity, OrderCount: pl.OrderCount}
	}

	snap := &DepthSnapshot{
		Symbol:     symbol,
		Bids:       bids,
		Asks:       asks,
		SnapshotAt: time.Now(),
	}

	if len(topBids) > 0 && len(topAsks) > 0 {
		spread := topAsks[0].Price - topBids[0].Price
		snap.Spread = &spread
	}

	return snap, nil
}

// GetTrades returns trades filtered by optional symbol and owner, in
// execution order (oldest first). A symbol filter must reference a known
// contract.
func (s *MarketService) GetTrades(symbol, owner string) ([]*domain.Trade, error) {
	if symbol != "" && !s.contracts.Exists(symbol) {
		return nil, domain.ErrSymbolNotFound
	}
	return s.ledger.Query(symbol, owner), nil
}

// GetPrice returns the reference price for a symbol: VWAP over the
// configured window, falling back to the last trade's price when the
// window is empty, and a nil price when no trade has ever executed.
func (s *MarketService) GetPrice(symbol string) (*PriceReport, error) {
	if !s.contracts.Exists(symbol) {
		return nil, domain.ErrSymbolNotFound
	}

	trades := s.ledger.BySymbol(symbol)
	windowStart := time.Now().Add(-s.vwapWindow)

	report := &PriceReport{
		Symbol: symbol,
		Window: formatWindow(s.vwapWindow),
	}

	if len(trades) == 0 {
		return report, nil
	}

	lastTrade := trades[len(trades)-1]
	report.LastTradeAt = &lastTrade.ExecutedAt

	// Walk backwards from the tail until executed_at leaves the window.
	var sumPriceQty, sumQty int64
	var tradesInWindow int
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		if t.ExecutedAt.Before(windowStart) {
			break
		}
		sumPriceQty += t.Price * t.Quantity
		sumQty += t.Quantity
		tradesInWindow++
	}

	report.TradesInWindow = tradesInWindow

	if sumQty > 0 {
		vwap := sumPriceQty / sumQty
		report.CurrentPrice = &vwap
	} else {
		report.CurrentPrice = &lastTrade.Price
	}

	return report, nil
}

// GetQuote simulates sweeping the book for the given quantity and returns
// the estimate without placing an order.
func (s *MarketService) GetQuote(symbol string, side domain.OrderSide, quantity int64) (*QuoteReport, error) {
	if !s.contracts.Exists(symbol) {
		return nil, domain.ErrSymbolNotFound
	}
	if side != domain.OrderSideBuy && side != domain.OrderSideSell {
		return nil, &domain.ValidationError{
			Message: "side must be 'buy' or 'sell'",
		}
	}
	if quantity <= 0 {
		return nil, &domain.ValidationError{
			Message: "quantity must be a positive integer",
		}
	}

	result := s.matcher.SimulateSweep(symbol, side, quantity)

	return &QuoteReport{
		Symbol:            symbol,
		Side:              side,
		QuantityRequested: quantity,
		QuantityAvailable: result.QuantityAvailable,
		FullyFillable:     result.FullyFillable,
		EstimatedAvgPrice: result.EstimatedAvgPrice,
		EstimatedTotal:    result.EstimatedTotal,
		PriceLevels:       result.PriceLevels,
		QuotedAt:          time.Now(),
	}, nil
}

// formatWindow renders a duration as a compact window label like "5m".
func formatWindow(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	minutes := int(d.Minutes())
	if d == time.Duration(minutes)*time.Minute && minutes > 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return d.String()
}
