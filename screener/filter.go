package screener

import (
	"context"
	"fmt"

	"github.com/evdnx/goti"

	"github.com/evdnx/voltrail/exchange"
	"github.com/evdnx/voltrail/indicator"
	"github.com/evdnx/voltrail/types"
)

// Filter is a candidate predicate evaluated after volatility is known. An
// error drops the symbol from the ranking.
type Filter interface {
	Name() string
	Allow(ctx context.Context, symbol string) (bool, error)
}

// TrendMomentum passes symbols whose latest close is above the SMA of the
// last SMAWindow bars and whose RSI is below RSIMax.
type TrendMomentum struct {
	Client    exchange.Client
	Interval  string
	SMAWindow int
	RSIPeriod int
	RSIMax    float64
}

func (f TrendMomentum) Name() string { return "trend_momentum" }

func (f TrendMomentum) Allow(ctx context.Context, symbol string) (bool, error) {
	candles, err := f.Client.Candles(ctx, symbol, f.Interval, f.SMAWindow)
	if err != nil {
		return false, err
	}
	up, err := indicator.SMASignal(types.Closes(candles))
	if err != nil {
		return false, fmt.Errorf("sma %s: %w", symbol, err)
	}
	if !up {
		return false, nil
	}

	// Twice the period gives the smoothing room to settle.
	candles, err = f.Client.Candles(ctx, symbol, f.Interval, 2*f.RSIPeriod)
	if err != nil {
		return false, err
	}
	rsi, err := indicator.RSI(types.Closes(candles), f.RSIPeriod)
	if err != nil {
		return false, fmt.Errorf("rsi %s: %w", symbol, err)
	}
	return rsi < f.RSIMax, nil
}

// BollingerBreak rejects symbols trading above their upper band.
type BollingerBreak struct {
	Client   exchange.Client
	Interval string
	Window   int
}

func (f BollingerBreak) Name() string { return "bollinger" }

func (f BollingerBreak) Allow(ctx context.Context, symbol string) (bool, error) {
	candles, err := f.Client.Candles(ctx, symbol, f.Interval, f.Window)
	if err != nil {
		return false, err
	}
	b, err := indicator.Bollinger(types.Closes(candles))
	if err != nil {
		return false, fmt.Errorf("bollinger %s: %w", symbol, err)
	}
	return b.Last <= b.Upper, nil
}

// HMAConfirm replays the window through a goti indicator suite and passes
// symbols whose Hull moving average crossed up. A bearish cross rejects;
// with neither signal the net drift of the last hmaDriftBars closes decides.
type HMAConfirm struct {
	Client   exchange.Client
	Interval string
	Window   int
}

const hmaDriftBars = 8

func (f HMAConfirm) Name() string { return "hma_confirm" }

func (f HMAConfirm) Allow(ctx context.Context, symbol string) (bool, error) {
	candles, err := f.Client.Candles(ctx, symbol, f.Interval, f.Window)
	if err != nil {
		return false, err
	}
	if len(candles) < 2 {
		return false, fmt.Errorf("hma %s: %w", symbol, indicator.ErrInsufficientData)
	}
	suite, err := goti.NewIndicatorSuiteWithConfig(goti.DefaultConfig())
	if err != nil {
		return false, fmt.Errorf("hma %s: %w", symbol, err)
	}
	closes := make([]float64, 0, len(candles))
	for _, c := range candles {
		if err := suite.Add(c.High, c.Low, c.Close, c.Volume); err != nil {
			return false, fmt.Errorf("hma %s: %w", symbol, err)
		}
		closes = append(closes, c.Close)
	}

	if ok, err := suite.GetHMA().IsBullishCrossover(); err == nil && ok {
		return true, nil
	}
	if ok, err := suite.GetHMA().IsBearishCrossover(); err == nil && ok {
		return false, nil
	}
	return drift(closes, hmaDriftBars) > 0, nil
}

// drift is the change between the last close and the close bars earlier,
// clamped to the start of the series.
func drift(closes []float64, bars int) float64 {
	if len(closes) < 2 {
		return 0
	}
	from := len(closes) - 1 - bars
	if from < 0 {
		from = 0
	}
	return closes[len(closes)-1] - closes[from]
}
