package screener

import (
	"github.com/evdnx/voltrail/config"
	"github.com/evdnx/voltrail/exchange"
	"github.com/evdnx/voltrail/indicator"
)

// FiltersFrom builds the filter chain named by the settings. The trend and
// momentum filter is always present; the others are opt-in.
func FiltersFrom(c exchange.Client, interval string, fs config.FilterSettings) []Filter {
	out := []Filter{TrendMomentum{
		Client:    c,
		Interval:  interval,
		SMAWindow: fs.SMAWindowHours,
		RSIPeriod: fs.RSIPeriod,
		RSIMax:    fs.RSIMax,
	}}
	if fs.Bollinger {
		out = append(out, BollingerBreak{Client: c, Interval: interval, Window: fs.BollingerHours})
	}
	if fs.HMAConfirm {
		out = append(out, HMAConfirm{Client: c, Interval: interval, Window: fs.HMAWindowHours})
	}
	return out
}

// Estimator maps engine.volatility_estimator to its function.
func Estimator(name string) func(closes []float64) (float64, error) {
	if name == config.EstimatorPopulation {
		return indicator.PopulationVolatility
	}
	return indicator.HistoricalVolatility
}

// Configure applies the filter and estimator settings to s.
func (s *Screener) Configure(eng config.EngineSettings, fs config.FilterSettings) {
	s.Filters = FiltersFrom(s.Client, eng.CandleInterval, fs)
	s.Enforce = fs.Enforce
	s.Volatility = Estimator(eng.Estimator)
}
