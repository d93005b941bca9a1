// Package exchange is the market data and order gateway. The engine only
// depends on the Client interface; Binance is the one concrete venue.
package exchange

import (
	"context"
	"errors"

	"github.com/evdnx/voltrail/types"
)

// ErrAdapter wraps every failure coming out of a Client implementation.
var ErrAdapter = errors.New("exchange adapter failure")

// Client is everything the decision engine needs from a spot exchange.
type Client interface {
	Tickers(ctx context.Context) ([]types.Ticker, error)
	Price(ctx context.Context, symbol string) (float64, error)
	// Candles returns the most recent lookback bars, time-ascending.
	Candles(ctx context.Context, symbol, interval string, lookback int) ([]types.Candle, error)
	SymbolFilters(ctx context.Context, symbol string) (types.SymbolFilters, error)
	Balances(ctx context.Context) (map[string]types.Balance, error)
	// OrderHistory returns the full order history of symbol, oldest first.
	OrderHistory(ctx context.Context, symbol string) ([]types.HistoricalOrder, error)
	MarketBuy(ctx context.Context, symbol string, qty float64) (types.Fill, error)
	MarketSell(ctx context.Context, symbol string, qty float64) (types.Fill, error)
}

// Wallet fetches balances and turns them into a cycle snapshot.
func Wallet(ctx context.Context, c Client, quote string, ignore []string) (types.Wallet, error) {
	balances, err := c.Balances(ctx)
	if err != nil {
		return types.Wallet{}, err
	}
	return types.NewWallet(balances, quote, ignore), nil
}
