package monitor

import (
	"math"
	"math/rand"
	"testing"

	"github.com/evdnx/voltrail/config"
	"github.com/evdnx/voltrail/types"
)

const eps = 1e-9

/*
Avg 100, price rises to 140. pnl is 40 % which arms the stop;
140*0.7 = 98 is below the 107 floor, so the stop is clamped to 107.
*/
func TestObserve_ActivationClampsToFloor(t *testing.T) {
	tr := NewTracker()
	d := tr.Observe("SOLUSDT", 140, 100, DefaultParams(1000))

	if !d.Activated || !d.State.Active {
		t.Fatalf("expected trailing to activate, got %+v", d)
	}
	if math.Abs(d.State.StopPrice-107) > eps || !d.Clamped {
		t.Fatalf("expected clamped stop 107, got %v (clamped=%v)", d.State.StopPrice, d.Clamped)
	}
	if d.ProfitTake || d.StopHit {
		t.Fatalf("no sell expected, got %+v", d)
	}
	if tr.Phase("SOLUSDT") != Active {
		t.Fatalf("expected active phase, got %v", tr.Phase("SOLUSDT"))
	}
}

/*
After arming at 140, the price drops to 106 which is at or below the 107
stop. The stop fires and the state returns to tracking while the high-water
and stop values are retained.
*/
func TestObserve_StopFiresAndDeactivates(t *testing.T) {
	tr := NewTracker()
	tr.Observe("SOLUSDT", 140, 100, DefaultParams(1000))
	d := tr.Observe("SOLUSDT", 106, 100, DefaultParams(1000))

	if !d.StopHit {
		t.Fatalf("expected stop to fire, got %+v", d)
	}
	if d.State.Active || tr.Phase("SOLUSDT") != Tracking {
		t.Fatalf("expected tracking after stop, got %+v", d.State)
	}
	st, _ := tr.Get("SOLUSDT")
	if st.HighWater != 140 || math.Abs(st.StopPrice-107) > eps || !st.HasStop {
		t.Fatalf("high-water and stop must be retained, got %+v", st)
	}

	// Below the activation threshold nothing re-arms.
	d = tr.Observe("SOLUSDT", 105, 100, DefaultParams(1000))
	if d.Activated || d.StopHit || d.State.Active {
		t.Fatalf("expected a quiet observation, got %+v", d)
	}
}

func TestObserve_TrailsHighWater(t *testing.T) {
	tr := NewTracker()
	tr.Observe("ETHUSDT", 140, 100, DefaultParams(1000))
	d := tr.Observe("ETHUSDT", 200, 100, DefaultParams(1000))
	if d.Clamped || math.Abs(d.State.StopPrice-140) > eps {
		t.Fatalf("expected stop 200*0.7=140, got %v", d.State.StopPrice)
	}
	d = tr.Observe("ETHUSDT", 150, 100, DefaultParams(1000))
	if d.State.HighWater != 200 || math.Abs(d.State.StopPrice-140) > eps || d.StopHit {
		t.Fatalf("stop must not move down with price, got %+v", d.State)
	}
}

func TestObserve_ProfitTakeIndependentOfTrailing(t *testing.T) {
	tr := NewTracker()
	d := tr.Observe("XRPUSDT", 112, 100, DefaultParams(10))
	if !d.ProfitTake || d.State.Active {
		t.Fatalf("expected profit take without trailing, got %+v", d)
	}
}

func TestObserve_BothTriggersInOneCycle(t *testing.T) {
	tr := NewTracker()
	tr.Observe("ADAUSDT", 200, 100, DefaultParams(1000))
	d := tr.Observe("ADAUSDT", 130, 100, DefaultParams(20))
	if !d.ProfitTake || !d.StopHit {
		t.Fatalf("expected both triggers, got %+v", d)
	}
}

func TestObserve_NoHistoryMeansZeroPnl(t *testing.T) {
	tr := NewTracker()
	d := tr.Observe("DOGEUSDT", 0.2, 0, DefaultParams(10))
	if d.PnlPercent != 0 || d.AvgPrice != 0.2 {
		t.Fatalf("expected pnl 0 at the current price, got %+v", d)
	}
}

// The stop never sits below avg*1.07 while armed, and never above
// highWater*0.7 unless the floor is what put it there.
func TestObserve_StopInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 50; run++ {
		tr := NewTracker()
		avg := 10 + rng.Float64()*90
		price := avg
		for step := 0; step < 200; step++ {
			price *= 1 + (rng.Float64()-0.45)*0.2
			d := tr.Observe("SYM", price, avg, DefaultParams(1e9))
			if !d.State.Active && !d.StopHit {
				continue
			}
			if d.State.StopPrice < avg*1.07-eps {
				t.Fatalf("stop %v below floor %v", d.State.StopPrice, avg*1.07)
			}
			if !d.Clamped && d.State.StopPrice > d.State.HighWater*0.7+eps {
				t.Fatalf("stop %v above trail %v", d.State.StopPrice, d.State.HighWater*0.7)
			}
		}
	}
}

func TestTrackerRemove(t *testing.T) {
	tr := NewTracker()
	tr.Observe("A", 140, 100, DefaultParams(1000))
	tr.Observe("B", 100, 100, DefaultParams(1000))
	if tr.Len() != 2 || tr.ActiveCount() != 1 {
		t.Fatalf("unexpected tracker size %d / %d", tr.Len(), tr.ActiveCount())
	}
	tr.Remove("A")
	if tr.Phase("A") != Idle || tr.Len() != 1 {
		t.Fatalf("expected A to be gone")
	}
}

/*
BUY 1.0 @ 100 and BUY 1.0 @ 120 average to 110. Cancelled and
sell orders do not count.
*/
func TestAveragePrice(t *testing.T) {
	orders := []types.HistoricalOrder{
		{OrderID: 1, Side: "BUY", Status: "FILLED", Type: "LIMIT", ExecutedQty: 1, CumQuoteQty: 100},
		{OrderID: 2, Side: "BUY", Status: "FILLED", Type: "MARKET", ExecutedQty: 1, CumQuoteQty: 120},
		{OrderID: 3, Side: "SELL", Status: "FILLED", Type: "MARKET", ExecutedQty: 1, CumQuoteQty: 500},
		{OrderID: 4, Side: "BUY", Status: "CANCELED", Type: "LIMIT", ExecutedQty: 0, CumQuoteQty: 0},
	}
	avg, ok := AveragePrice(orders, config.AvgFilled, 1)
	if !ok || avg != 110 {
		t.Fatalf("expected 110, got %v (ok=%v)", avg, ok)
	}
}

func TestAveragePriceVariants(t *testing.T) {
	orders := []types.HistoricalOrder{
		{Side: "BUY", Status: "FILLED", Type: "LIMIT", ExecutedQty: 1, CumQuoteQty: 100},
		{Side: "BUY", Status: "EXPIRED", Type: "MARKET", ExecutedQty: 1, CumQuoteQty: 130},
	}
	if avg, _ := AveragePrice(orders, config.AvgFilled, 0); avg != 100 {
		t.Fatalf("filled variant: expected 100, got %v", avg)
	}
	if avg, _ := AveragePrice(orders, config.AvgFilledOrMarket, 0); avg != 115 {
		t.Fatalf("filled_or_market variant: expected 115, got %v", avg)
	}
	if avg, ok := AveragePrice(nil, config.AvgFilled, 42); ok || avg != 42 {
		t.Fatalf("expected fallback 42, got %v (ok=%v)", avg, ok)
	}
}
