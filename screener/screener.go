// Package screener ranks tradable symbols by recent volatility. Candle
// fetches fan out over a bounded worker pool; every result is collected and
// sorted by the calling goroutine.
package screener

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/evdnx/voltrail/exchange"
	"github.com/evdnx/voltrail/indicator"
	"github.com/evdnx/voltrail/logger"
	"github.com/evdnx/voltrail/metrics"
	"github.com/evdnx/voltrail/types"
)

// Request carries the per-cycle screening parameters.
type Request struct {
	Quote         string
	Blacklist     map[string]struct{}
	Held          types.Wallet
	HeldThreshold float64
	MinVolume     float64
	WindowHours   int
	Limit         int
}

// Screener produces ranked volatility candidates.
type Screener struct {
	Client   exchange.Client
	Log      logger.Logger
	Interval string
	Workers  int
	// Filters are evaluated in order for every symbol with a volatility.
	Filters []Filter
	// Enforce drops candidates a filter rejects. When false the verdict is
	// only logged.
	Enforce bool
	// Volatility defaults to indicator.HistoricalVolatility.
	Volatility func(closes []float64) (float64, error)
}

// New returns a screener with the default volatility estimator.
func New(c exchange.Client, log logger.Logger, interval string, workers int) *Screener {
	if log == nil {
		log = logger.Nop()
	}
	if workers <= 0 {
		workers = 1
	}
	return &Screener{
		Client:     c,
		Log:        log,
		Interval:   interval,
		Workers:    workers,
		Volatility: indicator.HistoricalVolatility,
	}
}

// Eligible applies the cheap ticker-level filters: quote pair, liquidity,
// blacklist and existing positions.
func Eligible(tickers []types.Ticker, req Request) []types.Ticker {
	out := make([]types.Ticker, 0, len(tickers))
	for _, t := range tickers {
		if !strings.HasSuffix(t.Symbol, req.Quote) || t.Symbol == req.Quote {
			continue
		}
		if t.QuoteVolume < req.MinVolume {
			continue
		}
		asset := types.BaseAsset(t.Symbol, req.Quote)
		if blacklisted(req.Blacklist, t.Symbol, asset) {
			continue
		}
		if bal, ok := req.Held.Assets[asset]; ok && bal.Free >= req.HeldThreshold {
			continue
		}
		out = append(out, t)
	}
	return out
}

func blacklisted(list map[string]struct{}, symbol, asset string) bool {
	if _, ok := list[symbol]; ok {
		return true
	}
	_, ok := list[asset]
	return ok
}

// Rank screens tickers and returns at most req.Limit candidates, highest
// volatility first. Symbols that fail any fetch or computation are dropped;
// the call itself never fails.
func (s *Screener) Rank(ctx context.Context, tickers []types.Ticker, req Request) []types.VolatilityCandidate {
	eligible := Eligible(tickers, req)
	vol := s.Volatility
	if vol == nil {
		vol = indicator.HistoricalVolatility
	}

	var (
		mu  sync.Mutex
		out = make([]types.VolatilityCandidate, 0, len(eligible))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)
	for _, t := range eligible {
		g.Go(func() error {
			c, ok := s.evaluate(gctx, t, req.WindowHours, vol)
			if ok {
				mu.Lock()
				out = append(out, c)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sortCandidates(out)
	if req.Limit >= 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	metrics.CandidatesRanked.Set(float64(len(out)))
	return out
}

func (s *Screener) evaluate(ctx context.Context, t types.Ticker, window int, vol func([]float64) (float64, error)) (types.VolatilityCandidate, bool) {
	candles, err := s.Client.Candles(ctx, t.Symbol, s.Interval, window)
	if err != nil {
		s.drop(t.Symbol, "candles", err)
		return types.VolatilityCandidate{}, false
	}
	v, err := vol(types.Closes(candles))
	if err != nil {
		s.drop(t.Symbol, "volatility", err)
		return types.VolatilityCandidate{}, false
	}

	for _, f := range s.Filters {
		ok, err := f.Allow(ctx, t.Symbol)
		if err != nil {
			s.drop(t.Symbol, f.Name(), err)
			return types.VolatilityCandidate{}, false
		}
		if !ok {
			s.Log.Debug("filter_rejected",
				logger.String("symbol", t.Symbol),
				logger.String("filter", f.Name()),
				logger.Bool("enforced", s.Enforce),
			)
			if s.Enforce {
				return types.VolatilityCandidate{}, false
			}
		}
	}
	return types.VolatilityCandidate{Symbol: t.Symbol, Volatility: v, Volume: t.QuoteVolume}, true
}

func (s *Screener) drop(symbol, stage string, err error) {
	metrics.SymbolErrors.WithLabelValues("screen").Inc()
	s.Log.Debug("symbol_dropped",
		logger.String("symbol", symbol),
		logger.String("stage", stage),
		logger.Err(err),
	)
}

// sortCandidates orders by volatility descending, then symbol ascending so
// equal inputs always produce the same ranking.
func sortCandidates(cs []types.VolatilityCandidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Volatility != cs[j].Volatility {
			return cs[i].Volatility > cs[j].Volatility
		}
		return cs[i].Symbol < cs[j].Symbol
	})
}
