package types

import "time"

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Order statuses and types as reported by the exchange order history.
const (
	StatusFilled = "FILLED"
	StatusTest   = "TEST"
	TypeMarket   = "MARKET"
)

// Order is a market order intent. Qty is in base units; QuoteBudget is only
// meaningful for buys and carries the notional the sizer was given.
type Order struct {
	Symbol      string
	Side        Side
	Qty         float64
	Price       float64 // reference price used for sizing; orders are always market
	QuoteBudget float64
	// meta
	Comment string
}

// Fill is the result of an order submission, real or simulated.
type Fill struct {
	Symbol      string
	Side        Side
	Status      string
	ClientID    string
	OrderID     int64
	ExecutedQty float64
	Price       float64
	QuoteQty    float64
	Simulated   bool
}

// Candle is a single OHLCV bar.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Closes extracts the close series of a time-ascending candle slice.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Ticker is a 24h market snapshot for one symbol.
type Ticker struct {
	Symbol      string
	LastPrice   float64
	QuoteVolume float64
}

// SymbolFilters are the exchange trading constraints for a symbol.
type SymbolFilters struct {
	StepSize       float64
	MinQty         float64
	MinNotional    float64
	HasMinNotional bool
}

// HistoricalOrder is one row of a symbol's order history.
type HistoricalOrder struct {
	OrderID     int64
	Side        string
	Status      string
	Type        string
	ExecutedQty float64
	CumQuoteQty float64
}

// VolatilityCandidate is a screened symbol, valid for one cycle.
type VolatilityCandidate struct {
	Symbol     string
	Volatility float64
	Volume     float64
}
