package exchange

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/evdnx/voltrail/config"
	"github.com/evdnx/voltrail/logger"
	"github.com/evdnx/voltrail/types"
)

// Binance implements Client on top of the go-binance spot REST client. Every
// call waits on a shared rate limiter and runs under its own timeout.
type Binance struct {
	client   *binance.Client
	limiter  *rate.Limiter
	timeout  time.Duration
	pageSize int
	log      logger.Logger
}

// NewBinance builds a spot client. An empty key pair is fine for the public
// market data endpoints.
func NewBinance(apiKey, apiSecret string, cfg config.ExchangeSettings, log logger.Logger) *Binance {
	if cfg.Testnet {
		binance.UseTestnet = true
	}
	client := binance.NewClient(apiKey, apiSecret)
	client.HTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:    32,
			MaxConnsPerHost: 16,
			IdleConnTimeout: 90 * time.Second,
		},
		Timeout: cfg.Timeout,
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}
	pageSize := cfg.OrderPageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	if log == nil {
		log = logger.Nop()
	}

	log.Info("binance_client_initialized",
		logger.Bool("testnet", cfg.Testnet),
		logger.Int("requests_per_second", rps),
		logger.Duration("timeout", cfg.Timeout),
	)
	return &Binance{
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		timeout:  cfg.Timeout,
		pageSize: pageSize,
		log:      log,
	}
}

// SetBaseURL points the client at another endpoint.
func (b *Binance) SetBaseURL(u string) { b.client.BaseURL = u }

// call rate limits and bounds a single request.
func (b *Binance) call(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("%w: rate limiter: %v", ErrAdapter, err)
	}
	if b.timeout <= 0 {
		cctx, cancel := context.WithCancel(ctx)
		return cctx, cancel, nil
	}
	cctx, cancel := context.WithTimeout(ctx, b.timeout)
	return cctx, cancel, nil
}

func (b *Binance) Tickers(ctx context.Context) ([]types.Ticker, error) {
	cctx, cancel, err := b.call(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	stats, err := b.client.NewListPriceChangeStatsService().Do(cctx)
	if err != nil {
		return nil, fmt.Errorf("%w: 24h stats: %v", ErrAdapter, err)
	}
	out := make([]types.Ticker, 0, len(stats))
	for _, s := range stats {
		last, err1 := strconv.ParseFloat(s.LastPrice, 64)
		vol, err2 := strconv.ParseFloat(s.QuoteVolume, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, types.Ticker{Symbol: s.Symbol, LastPrice: last, QuoteVolume: vol})
	}
	return out, nil
}

func (b *Binance) Price(ctx context.Context, symbol string) (float64, error) {
	cctx, cancel, err := b.call(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(cctx)
	if err != nil {
		return 0, fmt.Errorf("%w: price %s: %v", ErrAdapter, symbol, err)
	}
	for _, p := range prices {
		if p.Symbol != symbol {
			continue
		}
		v, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: price %s: %v", ErrAdapter, symbol, err)
		}
		return v, nil
	}
	return 0, fmt.Errorf("%w: price %s: symbol not returned", ErrAdapter, symbol)
}

func (b *Binance) Candles(ctx context.Context, symbol, interval string, lookback int) ([]types.Candle, error) {
	if lookback <= 0 {
		return nil, nil
	}
	cctx, cancel, err := b.call(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	klines, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(lookback).
		Do(cctx)
	if err != nil {
		return nil, fmt.Errorf("%w: klines %s: %v", ErrAdapter, symbol, err)
	}
	out := make([]types.Candle, 0, len(klines))
	for _, k := range klines {
		c, err := parseKline(k)
		if err != nil {
			return nil, fmt.Errorf("%w: klines %s: %v", ErrAdapter, symbol, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func parseKline(k *binance.Kline) (types.Candle, error) {
	vals := [5]float64{}
	for i, s := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return types.Candle{}, err
		}
		vals[i] = v
	}
	return types.Candle{
		OpenTime: time.UnixMilli(k.OpenTime).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}, nil
}

func (b *Binance) SymbolFilters(ctx context.Context, symbol string) (types.SymbolFilters, error) {
	cctx, cancel, err := b.call(ctx)
	if err != nil {
		return types.SymbolFilters{}, err
	}
	defer cancel()

	info, err := b.client.NewExchangeInfoService().Symbol(symbol).Do(cctx)
	if err != nil {
		return types.SymbolFilters{}, fmt.Errorf("%w: exchange info %s: %v", ErrAdapter, symbol, err)
	}
	for _, s := range info.Symbols {
		if s.Symbol == symbol {
			return parseFilters(s.Filters)
		}
	}
	return types.SymbolFilters{}, fmt.Errorf("%w: exchange info %s: symbol not listed", ErrAdapter, symbol)
}

// parseFilters reads LOT_SIZE and the notional floor out of the raw filter
// list. NOTIONAL replaced MIN_NOTIONAL on newer symbols; either counts.
func parseFilters(raw []map[string]interface{}) (types.SymbolFilters, error) {
	var (
		f      types.SymbolFilters
		hasLot bool
	)
	for _, m := range raw {
		switch m["filterType"] {
		case "LOT_SIZE":
			step, err := filterFloat(m, "stepSize")
			if err != nil {
				return f, fmt.Errorf("%w: LOT_SIZE: %v", ErrAdapter, err)
			}
			minQty, err := filterFloat(m, "minQty")
			if err != nil {
				return f, fmt.Errorf("%w: LOT_SIZE: %v", ErrAdapter, err)
			}
			f.StepSize, f.MinQty, hasLot = step, minQty, true
		case "MIN_NOTIONAL", "NOTIONAL":
			if f.HasMinNotional {
				continue
			}
			v, err := filterFloat(m, "minNotional")
			if err != nil {
				continue
			}
			f.MinNotional, f.HasMinNotional = v, true
		}
	}
	if !hasLot {
		return f, fmt.Errorf("%w: LOT_SIZE filter missing", ErrAdapter)
	}
	return f, nil
}

func filterFloat(m map[string]interface{}, key string) (float64, error) {
	switch v := m[key].(type) {
	case string:
		return strconv.ParseFloat(v, 64)
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("%s: unexpected value %v", key, m[key])
	}
}

func (b *Binance) Balances(ctx context.Context) (map[string]types.Balance, error) {
	cctx, cancel, err := b.call(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	acct, err := b.client.NewGetAccountService().Do(cctx)
	if err != nil {
		return nil, fmt.Errorf("%w: account: %v", ErrAdapter, err)
	}
	out := make(map[string]types.Balance, len(acct.Balances))
	for _, bal := range acct.Balances {
		free, err1 := strconv.ParseFloat(bal.Free, 64)
		locked, err2 := strconv.ParseFloat(bal.Locked, 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: account: bad balance for %s", ErrAdapter, bal.Asset)
		}
		out[bal.Asset] = types.Balance{Free: free, Locked: locked}
	}
	return out, nil
}

func (b *Binance) OrderHistory(ctx context.Context, symbol string) ([]types.HistoricalOrder, error) {
	return paginate(ctx, b.pageSize, func(ctx context.Context, fromID int64) ([]types.HistoricalOrder, error) {
		cctx, cancel, err := b.call(ctx)
		if err != nil {
			return nil, err
		}
		defer cancel()

		svc := b.client.NewListOrdersService().Symbol(symbol).Limit(b.pageSize)
		if fromID > 0 {
			svc = svc.OrderID(fromID)
		}
		orders, err := svc.Do(cctx)
		if err != nil {
			return nil, fmt.Errorf("%w: orders %s: %v", ErrAdapter, symbol, err)
		}
		page := make([]types.HistoricalOrder, 0, len(orders))
		for _, o := range orders {
			exec, _ := strconv.ParseFloat(o.ExecutedQuantity, 64)
			quote, _ := strconv.ParseFloat(o.CummulativeQuoteQuantity, 64)
			page = append(page, types.HistoricalOrder{
				OrderID:     o.OrderID,
				Side:        string(o.Side),
				Status:      string(o.Status),
				Type:        string(o.Type),
				ExecutedQty: exec,
				CumQuoteQty: quote,
			})
		}
		return page, nil
	})
}

type pageFunc func(ctx context.Context, fromID int64) ([]types.HistoricalOrder, error)

// paginate walks pages keyed by order id. The next page starts one past the
// last id seen, so no order is returned twice.
func paginate(ctx context.Context, pageSize int, fetch pageFunc) ([]types.HistoricalOrder, error) {
	var (
		all    []types.HistoricalOrder
		fromID int64
	)
	for {
		page, err := fetch(ctx, fromID)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize || len(page) == 0 {
			return all, nil
		}
		next := page[len(page)-1].OrderID + 1
		if next <= fromID {
			return all, nil
		}
		fromID = next
	}
}

func (b *Binance) MarketBuy(ctx context.Context, symbol string, qty float64) (types.Fill, error) {
	return b.market(ctx, symbol, binance.SideTypeBuy, qty)
}

func (b *Binance) MarketSell(ctx context.Context, symbol string, qty float64) (types.Fill, error) {
	return b.market(ctx, symbol, binance.SideTypeSell, qty)
}

func (b *Binance) market(ctx context.Context, symbol string, side binance.SideType, qty float64) (types.Fill, error) {
	cctx, cancel, err := b.call(ctx)
	if err != nil {
		return types.Fill{}, err
	}
	defer cancel()

	res, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(binance.OrderTypeMarket).
		Quantity(FormatQuantity(qty)).
		Do(cctx)
	if err != nil {
		return types.Fill{}, fmt.Errorf("%w: market %s %s: %v", ErrAdapter, side, symbol, err)
	}

	exec, _ := strconv.ParseFloat(res.ExecutedQuantity, 64)
	quote, _ := strconv.ParseFloat(res.CummulativeQuoteQuantity, 64)
	fill := types.Fill{
		Symbol:      symbol,
		Side:        types.Side(side),
		Status:      string(res.Status),
		ClientID:    res.ClientOrderID,
		OrderID:     res.OrderID,
		ExecutedQty: exec,
		QuoteQty:    quote,
	}
	switch {
	case exec > 0 && quote > 0:
		fill.Price = quote / exec
	case len(res.Fills) > 0:
		fill.Price, _ = strconv.ParseFloat(res.Fills[0].Price, 64)
	}
	return fill, nil
}

// FormatQuantity renders qty without exponent notation or trailing zeros.
func FormatQuantity(qty float64) string {
	return decimal.NewFromFloat(qty).String()
}
