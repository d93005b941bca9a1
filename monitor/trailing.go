package monitor

import "sort"

// Phase is the trailing-stop lifecycle of one symbol.
type Phase int

const (
	// Idle means no state has been recorded for the symbol.
	Idle Phase = iota
	// Tracking means the position is watched but the stop is not armed.
	Tracking
	// Active means the trailing stop is armed.
	Active
)

func (p Phase) String() string {
	switch p {
	case Tracking:
		return "tracking"
	case Active:
		return "active"
	default:
		return "idle"
	}
}

// TrailingState is the only state kept across cycles. HighWater and
// StopPrice survive a deactivation; only Active is cleared.
type TrailingState struct {
	HighWater float64
	Active    bool
	StopPrice float64
	HasStop   bool
}

// Params are the thresholds for one observation, all in percent.
type Params struct {
	ProfitTarget float64
	Activation   float64
	Trailing     float64
	MinStop      float64
}

// DefaultParams returns the 30 / 30 / 7 trailing defaults with the given
// profit target.
func DefaultParams(profitTarget float64) Params {
	return Params{ProfitTarget: profitTarget, Activation: 30, Trailing: 30, MinStop: 7}
}

// Decision is the outcome of one observation.
type Decision struct {
	Symbol     string
	Price      float64
	AvgPrice   float64
	PnlPercent float64
	// ProfitTake fires when pnl reached the profit target.
	ProfitTake bool
	// StopHit fires when an armed stop was touched; the stop is disarmed.
	StopHit bool
	// Activated is set on the observation that armed the stop.
	Activated bool
	// Clamped is set when the stop sits on the minimum-profit floor.
	Clamped bool
	State   TrailingState
}

// Tracker owns the per-symbol trailing state. It is driven by the control
// loop only and is not safe for concurrent use.
type Tracker struct {
	states map[string]*TrailingState
}

func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]*TrailingState)}
}

// Observe runs one transition for symbol. The steps are applied in a fixed
// order: pnl, profit target, high-water, activation, stop, stop execution.
func (t *Tracker) Observe(symbol string, price, avg float64, p Params) Decision {
	if avg <= 0 {
		avg = price
	}
	st, ok := t.states[symbol]
	if !ok {
		st = &TrailingState{}
		t.states[symbol] = st
	}

	d := Decision{Symbol: symbol, Price: price, AvgPrice: avg}
	if avg > 0 {
		d.PnlPercent = (price - avg) / avg * 100
	}

	if d.PnlPercent >= p.ProfitTarget {
		d.ProfitTake = true
	}

	if price > st.HighWater {
		st.HighWater = price
	}

	if !st.Active && d.PnlPercent >= p.Activation {
		st.Active = true
		d.Activated = true
	}

	if st.Active {
		stop := st.HighWater * (1 - p.Trailing/100)
		floor := avg * (1 + p.MinStop/100)
		if stop < floor {
			stop = floor
			d.Clamped = true
		}
		st.StopPrice = stop
		st.HasStop = true

		if price <= st.StopPrice {
			d.StopHit = true
			st.Active = false
		}
	}

	d.State = *st
	return d
}

// Get returns the state of symbol.
func (t *Tracker) Get(symbol string) (TrailingState, bool) {
	st, ok := t.states[symbol]
	if !ok {
		return TrailingState{}, false
	}
	return *st, true
}

// Phase reports where symbol is in its lifecycle.
func (t *Tracker) Phase(symbol string) Phase {
	st, ok := t.states[symbol]
	switch {
	case !ok:
		return Idle
	case st.Active:
		return Active
	default:
		return Tracking
	}
}

// Remove drops all state for symbol, typically once its position is gone.
func (t *Tracker) Remove(symbol string) { delete(t.states, symbol) }

// Len is the number of tracked symbols.
func (t *Tracker) Len() int { return len(t.states) }

// ActiveCount is the number of armed stops.
func (t *Tracker) ActiveCount() int {
	n := 0
	for _, st := range t.states {
		if st.Active {
			n++
		}
	}
	return n
}

// Symbols lists tracked symbols, sorted.
func (t *Tracker) Symbols() []string {
	out := make([]string, 0, len(t.states))
	for s := range t.states {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
