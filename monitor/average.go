package monitor

import (
	"github.com/evdnx/voltrail/config"
	"github.com/evdnx/voltrail/types"
)

// AveragePrice derives the average purchase price from order history. With
// config.AvgFilled only FILLED buys count; config.AvgFilledOrMarket also
// counts market buys whatever their reported status. Without any qualifying
// quantity fallback is returned and ok is false.
func AveragePrice(orders []types.HistoricalOrder, variant string, fallback float64) (avg float64, ok bool) {
	var spent, qty float64
	for _, o := range orders {
		if o.Side != string(types.Buy) {
			continue
		}
		counts := o.Status == types.StatusFilled
		if variant == config.AvgFilledOrMarket && o.Type == types.TypeMarket {
			counts = true
		}
		if !counts {
			continue
		}
		spent += o.CumQuoteQty
		qty += o.ExecutedQty
	}
	if qty <= 0 {
		return fallback, false
	}
	return spent / qty, true
}
