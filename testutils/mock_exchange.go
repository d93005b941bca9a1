package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/evdnx/voltrail/types"
)

// ErrMock is returned by the mocks when a call is configured to fail.
var ErrMock = errors.New("mock failure")

// MockExchange is an in-memory exchange. It is safe for concurrent use since
// the screener fans out against it.
type MockExchange struct {
	mu sync.Mutex

	TickerList []types.Ticker
	Prices     map[string]float64
	Series     map[string][]types.Candle
	Filters    map[string]types.SymbolFilters
	Wallet     map[string]types.Balance
	History    map[string][]types.HistoricalOrder

	// Fail makes the named method fail for the symbol ("" matches calls
	// without a symbol), e.g. Fail["Price"]["BTCUSDT"] = true.
	Fail map[string]map[string]bool

	Buys  []types.Order
	Sells []types.Order
	calls map[string]int
}

// NewMockExchange returns an empty exchange.
func NewMockExchange() *MockExchange {
	return &MockExchange{
		Prices:  make(map[string]float64),
		Series:  make(map[string][]types.Candle),
		Filters: make(map[string]types.SymbolFilters),
		Wallet:  make(map[string]types.Balance),
		History: make(map[string][]types.HistoricalOrder),
		Fail:    make(map[string]map[string]bool),
		calls:   make(map[string]int),
	}
}

// FailOn configures method to fail for symbol.
func (m *MockExchange) FailOn(method, symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail[method] == nil {
		m.Fail[method] = make(map[string]bool)
	}
	m.Fail[method][symbol] = true
}

// SetCloses installs a candle series built from closes.
func (m *MockExchange) SetCloses(symbol string, closes ...float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	candles := make([]types.Candle, len(closes))
	for i, c := range closes {
		candles[i] = types.Candle{Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	m.Series[symbol] = candles
}

// Calls returns how often method was invoked.
func (m *MockExchange) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (m *MockExchange) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *MockExchange) enter(method, symbol string) error {
	m.calls[method]++
	if m.Fail[method][symbol] {
		return ErrMock
	}
	return nil
}

func (m *MockExchange) Tickers(context.Context) ([]types.Ticker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Tickers", ""); err != nil {
		return nil, err
	}
	return append([]types.Ticker(nil), m.TickerList...), nil
}

func (m *MockExchange) Price(_ context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Price", symbol); err != nil {
		return 0, err
	}
	p, ok := m.Prices[symbol]
	if !ok {
		return 0, ErrMock
	}
	return p, nil
}

func (m *MockExchange) Candles(_ context.Context, symbol, _ string, lookback int) ([]types.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Candles", symbol); err != nil {
		return nil, err
	}
	s, ok := m.Series[symbol]
	if !ok {
		return nil, ErrMock
	}
	if lookback > 0 && len(s) > lookback {
		s = s[len(s)-lookback:]
	}
	return append([]types.Candle(nil), s...), nil
}

func (m *MockExchange) SymbolFilters(_ context.Context, symbol string) (types.SymbolFilters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SymbolFilters", symbol); err != nil {
		return types.SymbolFilters{}, err
	}
	f, ok := m.Filters[symbol]
	if !ok {
		return types.SymbolFilters{}, ErrMock
	}
	return f, nil
}

func (m *MockExchange) Balances(context.Context) (map[string]types.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Balances", ""); err != nil {
		return nil, err
	}
	out := make(map[string]types.Balance, len(m.Wallet))
	for k, v := range m.Wallet {
		out[k] = v
	}
	return out, nil
}

func (m *MockExchange) OrderHistory(_ context.Context, symbol string) ([]types.HistoricalOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("OrderHistory", symbol); err != nil {
		return nil, err
	}
	return append([]types.HistoricalOrder(nil), m.History[symbol]...), nil
}

func (m *MockExchange) MarketBuy(_ context.Context, symbol string, qty float64) (types.Fill, error) {
	return m.market("MarketBuy", symbol, types.Buy, qty)
}

func (m *MockExchange) MarketSell(_ context.Context, symbol string, qty float64) (types.Fill, error) {
	return m.market("MarketSell", symbol, types.Sell, qty)
}

// market fills in full at the configured price and moves the wallet.
func (m *MockExchange) market(method, symbol string, side types.Side, qty float64) (types.Fill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(method, symbol); err != nil {
		return types.Fill{}, err
	}
	price := m.Prices[symbol]
	o := types.Order{Symbol: symbol, Side: side, Qty: qty, Price: price}
	if side == types.Buy {
		m.Buys = append(m.Buys, o)
	} else {
		m.Sells = append(m.Sells, o)
	}
	return types.Fill{
		Symbol:      symbol,
		Side:        side,
		Status:      types.StatusFilled,
		OrderID:     int64(len(m.Buys) + len(m.Sells)),
		ExecutedQty: qty,
		Price:       price,
		QuoteQty:    qty * price,
	}, nil
}
