// Package indicator contains the pure price-series functions the screener
// ranks and filters symbols with. All functions consume a time-ascending
// close series and never fetch data themselves.
package indicator

import (
	"errors"
	"math"
)

var (
	// ErrInsufficientData is returned when the series is too short for the
	// requested computation.
	ErrInsufficientData = errors.New("indicator: insufficient data")
	// ErrInvalidPrice is returned when a close that has to be divided by is
	// zero, negative or not finite.
	ErrInvalidPrice = errors.New("indicator: invalid price")
	// ErrInvalidPeriod is returned for non-positive look-back periods.
	ErrInvalidPeriod = errors.New("indicator: invalid period")
)

// Returns computes simple period-over-period returns c[i+1]/c[i] - 1.
func Returns(closes []float64) ([]float64, error) {
	if len(closes) < 2 {
		return nil, ErrInsufficientData
	}
	out := make([]float64, len(closes)-1)
	for i := 0; i < len(closes)-1; i++ {
		if closes[i] <= 0 || math.IsNaN(closes[i]) || math.IsInf(closes[i], 0) {
			return nil, ErrInvalidPrice
		}
		out[i] = closes[i+1]/closes[i] - 1
	}
	return out, nil
}

// HistoricalVolatility returns the sample standard deviation (divisor n-1)
// of simple returns over the whole series. Two closes give a single return,
// which has no observable dispersion, so the result is 0.
func HistoricalVolatility(closes []float64) (float64, error) {
	rets, err := Returns(closes)
	if err != nil {
		return 0, err
	}
	if len(rets) < 2 {
		return 0, nil
	}
	return math.Sqrt(sumSquares(rets) / float64(len(rets)-1)), nil
}

// PopulationVolatility is HistoricalVolatility with divisor n, the estimator
// numpy's std applies by default.
func PopulationVolatility(closes []float64) (float64, error) {
	rets, err := Returns(closes)
	if err != nil {
		return 0, err
	}
	return stddev(rets), nil
}

// SMA returns the arithmetic mean of the window.
func SMA(closes []float64) (float64, error) {
	if len(closes) < 2 {
		return 0, ErrInsufficientData
	}
	return mean(closes), nil
}

// SMASignal reports whether the latest close is above the window mean.
func SMASignal(closes []float64) (bool, error) {
	avg, err := SMA(closes)
	if err != nil {
		return false, err
	}
	return closes[len(closes)-1] > avg, nil
}

// RSI computes the Relative Strength Index with Wilder smoothing. The first
// period deltas seed the averages; every later delta is folded in with
// avg = (avg*(period-1) + v) / period. A zero average loss saturates to 100.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, ErrInvalidPeriod
	}
	if len(closes) < period+1 {
		return 0, ErrInsufficientData
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		gain, loss := split(closes[i] - closes[i-1])
		avgGain += gain
		avgLoss += loss
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		gain, loss := split(closes[i] - closes[i-1])
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// Bands holds a Bollinger envelope.
type Bands struct {
	Lower  float64
	Middle float64
	Upper  float64
	Last   float64
}

// Bollinger returns sma ± 2·stddev over the full window together with the
// latest close.
func Bollinger(closes []float64) (Bands, error) {
	if len(closes) < 2 {
		return Bands{}, ErrInsufficientData
	}
	mid := mean(closes)
	sd := stddev(closes)
	return Bands{
		Lower:  mid - 2*sd,
		Middle: mid,
		Upper:  mid + 2*sd,
		Last:   closes[len(closes)-1],
	}, nil
}

func split(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sumSquares(xs []float64) float64 {
	m := mean(xs)
	acc := 0.0
	for _, x := range xs {
		d := x - m
		acc += d * d
	}
	return acc
}

// stddev is the population deviation.
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return math.Sqrt(sumSquares(xs) / float64(len(xs)))
}
