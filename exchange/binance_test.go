package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evdnx/voltrail/config"
	"github.com/evdnx/voltrail/logger"
	"github.com/evdnx/voltrail/types"
)

func TestParseFiltersPrefersFirstNotional(t *testing.T) {
	raw := []map[string]interface{}{
		{"filterType": "PRICE_FILTER", "tickSize": "0.01"},
		{"filterType": "LOT_SIZE", "stepSize": "0.00100000", "minQty": "0.00100000", "maxQty": "9000"},
		{"filterType": "NOTIONAL", "minNotional": "5.00000000"},
		{"filterType": "MIN_NOTIONAL", "minNotional": "10.00000000"},
	}
	f, err := parseFilters(raw)
	require.NoError(t, err)
	assert.Equal(t, 0.001, f.StepSize)
	assert.Equal(t, 0.001, f.MinQty)
	assert.True(t, f.HasMinNotional)
	assert.Equal(t, 5.0, f.MinNotional)
}

func TestParseFiltersWithoutNotional(t *testing.T) {
	f, err := parseFilters([]map[string]interface{}{
		{"filterType": "LOT_SIZE", "stepSize": "1", "minQty": "1"},
	})
	require.NoError(t, err)
	assert.False(t, f.HasMinNotional)
}

func TestParseFiltersRequiresLotSize(t *testing.T) {
	_, err := parseFilters([]map[string]interface{}{{"filterType": "NOTIONAL", "minNotional": "5"}})
	assert.True(t, errors.Is(err, ErrAdapter))
}

func TestPaginateNeverRepeatsAnOrder(t *testing.T) {
	history := make([]types.HistoricalOrder, 0, 7)
	for id := int64(1); id <= 7; id++ {
		history = append(history, types.HistoricalOrder{OrderID: id, Side: "BUY"})
	}
	var calls []int64
	fetch := func(_ context.Context, fromID int64) ([]types.HistoricalOrder, error) {
		calls = append(calls, fromID)
		var page []types.HistoricalOrder
		for _, o := range history {
			if o.OrderID >= fromID && len(page) < 3 {
				page = append(page, o)
			}
		}
		return page, nil
	}

	got, err := paginate(context.Background(), 3, fetch)
	require.NoError(t, err)
	require.Len(t, got, 7)
	for i, o := range got {
		assert.Equal(t, int64(i+1), o.OrderID)
	}
	assert.Equal(t, []int64{0, 4, 7}, calls)
}

func TestPaginatePropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := paginate(context.Background(), 10, func(context.Context, int64) ([]types.HistoricalOrder, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestFormatQuantity(t *testing.T) {
	assert.Equal(t, "0.00001", FormatQuantity(0.00001))
	assert.Equal(t, "3.33", FormatQuantity(3.33))
	assert.Equal(t, "12", FormatQuantity(12))
}

func newTestBinance(t *testing.T, h http.HandlerFunc) *Binance {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := config.Default().Exchange
	cfg.Timeout = 2 * time.Second
	b := NewBinance("", "", cfg, logger.Nop())
	b.SetBaseURL(srv.URL)
	return b
}

func TestBinancePublicEndpoints(t *testing.T) {
	b := newTestBinance(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v3/ticker/price":
			_, _ = w.Write([]byte(`[{"symbol":"BTCUSDT","price":"64250.10"}]`))
		case "/api/v3/ticker/24hr":
			_, _ = w.Write([]byte(`[
				{"symbol":"BTCUSDT","lastPrice":"64250.10","quoteVolume":"1500000000.0"},
				{"symbol":"ETHBTC","lastPrice":"0.05","quoteVolume":"900.5"}
			]`))
		case "/api/v3/exchangeInfo":
			_, _ = w.Write([]byte(`{"symbols":[{"symbol":"BTCUSDT","filters":[
				{"filterType":"LOT_SIZE","stepSize":"0.00001000","minQty":"0.00001000","maxQty":"9000.0"},
				{"filterType":"NOTIONAL","minNotional":"5.00000000"}
			]}]}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	price, err := b.Price(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 64250.10, price)

	tickers, err := b.Tickers(ctx)
	require.NoError(t, err)
	require.Len(t, tickers, 2)
	assert.Equal(t, types.Ticker{Symbol: "ETHBTC", LastPrice: 0.05, QuoteVolume: 900.5}, tickers[1])

	f, err := b.SymbolFilters(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, types.SymbolFilters{StepSize: 0.00001, MinQty: 0.00001, MinNotional: 5, HasMinNotional: true}, f)
}

func TestBinanceWrapsTransportErrors(t *testing.T) {
	b := newTestBinance(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"code":-1,"msg":"nope"}`))
	})
	_, err := b.Price(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, ErrAdapter)
}
