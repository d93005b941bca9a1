package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evdnx/voltrail/config"
	"github.com/evdnx/voltrail/testutils"
	"github.com/evdnx/voltrail/types"
)

type fixture struct {
	ex     *testutils.MockExchange
	store  *testutils.MockStore
	notify *testutils.MockNotifier
	log    *testutils.MockLogger
	eng    *Engine
	sleeps []time.Duration
}

func zigzag(amplitude float64) []float64 {
	out := make([]float64, 30)
	for i := range out {
		out[i] = 10
		if i%2 == 1 {
			out[i] = 10 * (1 + amplitude)
		}
	}
	return out
}

func enabled() config.Snapshot {
	return config.Snapshot{Enabled: true, StrategyTag: "volatility", CapitalFraction: 0.1, MinVolume: 1000,
		IntervalSeconds: 60, MaxCandidates: 5, VolatilityWindowHours: 24, MaxOpenPositions: 3, ProfitTargetPercent: 50}
}

func newFixture(t *testing.T, snaps ...config.Snapshot) *fixture {
	t.Helper()
	ex := testutils.NewMockExchange()
	ex.Wallet["USDT"] = types.Balance{Free: 1000}
	ex.Wallet["SOL"] = types.Balance{Free: 2}
	ex.Prices["SOLUSDT"] = 100
	ex.History["SOLUSDT"] = []types.HistoricalOrder{
		{OrderID: 1, Side: "BUY", Status: "FILLED", Type: "MARKET", ExecutedQty: 2, CumQuoteQty: 200},
	}
	ex.TickerList = []types.Ticker{
		{Symbol: "AAAUSDT", LastPrice: 10, QuoteVolume: 5e6},
		{Symbol: "BBBUSDT", LastPrice: 10, QuoteVolume: 5e6},
		{Symbol: "CCCUSDT", LastPrice: 10, QuoteVolume: 5e6},
		{Symbol: "SOLUSDT", LastPrice: 100, QuoteVolume: 9e9},
		{Symbol: "ETHBTC", LastPrice: 0.05, QuoteVolume: 9e9},
	}
	for sym, amp := range map[string]float64{"AAAUSDT": 0.2, "BBBUSDT": 0.1, "CCCUSDT": 0.05} {
		ex.SetCloses(sym, zigzag(amp)...)
		ex.Prices[sym] = 10
		ex.Filters[sym] = types.SymbolFilters{StepSize: 0.01, MinQty: 0.01, MinNotional: 5, HasMinNotional: true}
	}

	if len(snaps) == 0 {
		snaps = []config.Snapshot{enabled()}
	}
	st := testutils.NewMockStore(snaps...)
	n := testutils.NewMockNotifier()
	log := testutils.NewMockLogger()
	f := &fixture{ex: ex, store: st, notify: n, log: log}
	f.eng = New(config.Default(), st, ex, n, log)
	return f
}

// stopAfter makes the engine's sleep record its duration and cancel the
// loop after n waits.
func (f *fixture) stopAfter(n int, cancel context.CancelFunc) {
	f.eng.Sleep = func(ctx context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		if len(f.sleeps) >= n {
			cancel()
		}
		return ctx.Err()
	}
}

func TestRunCycleBuysTopCandidatesUpToCap(t *testing.T) {
	f := newFixture(t)
	rep, err := f.eng.RunCycle(context.Background(), enabled())
	require.NoError(t, err)

	require.Len(t, rep.Ranked, 3)
	assert.Equal(t, "AAAUSDT", rep.Ranked[0].Symbol)
	assert.Equal(t, "CCCUSDT", rep.Ranked[2].Symbol)
	assert.Equal(t, 1, rep.OpenPositions)
	assert.Equal(t, 2, rep.Buys)
	require.Len(t, f.ex.Buys, 2)
	assert.Equal(t, "AAAUSDT", f.ex.Buys[0].Symbol)
	assert.Equal(t, "BBBUSDT", f.ex.Buys[1].Symbol)
	assert.Equal(t, 1, rep.Monitor.Observed)

	lines := f.store.Lines()
	assert.Contains(t, lines, "Volatility window: 24 hrs")
	assert.Contains(t, lines, "Test mode: OFF!")
	assert.Contains(t, lines, "Top volatile cryptos:")
	var ranked int
	for _, l := range lines {
		if strings.HasPrefix(l, "1. AAA - Volatility: ") || strings.HasPrefix(l, "3. CCC - Volatility: ") {
			ranked++
		}
	}
	assert.Equal(t, 2, ranked)
	assert.Equal(t, 1, f.store.Clears())
}

func TestRunCycleFailedBuyDoesNotCount(t *testing.T) {
	f := newFixture(t)
	delete(f.ex.Filters, "AAAUSDT")
	snap := enabled()
	snap.MaxOpenPositions = 3

	rep, err := f.eng.RunCycle(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Buys)
	require.Len(t, f.ex.Buys, 2)
	assert.Equal(t, "BBBUSDT", f.ex.Buys[0].Symbol)
	assert.Equal(t, "CCCUSDT", f.ex.Buys[1].Symbol)
	assert.True(t, f.log.Has("buy_failed"))
}

func TestRunCycleAtCapBuysNothing(t *testing.T) {
	f := newFixture(t)
	snap := enabled()
	snap.MaxOpenPositions = 1

	rep, err := f.eng.RunCycle(context.Background(), snap)
	require.NoError(t, err)
	assert.Zero(t, rep.Buys)
	assert.Empty(t, f.ex.Buys)
	assert.True(t, f.log.Has("position_cap_reached"))
}

func TestRunCycleDustDoesNotHoldPositionSlots(t *testing.T) {
	f := newFixture(t)
	delete(f.ex.Wallet, "SOL")
	for _, asset := range []string{"XDUST", "YDUST", "ZDUST"} {
		f.ex.Wallet[asset] = types.Balance{Free: 0.00001}
	}

	rep, err := f.eng.RunCycle(context.Background(), enabled())
	require.NoError(t, err)
	assert.Zero(t, rep.OpenPositions)
	assert.Equal(t, 3, rep.Buys)
	assert.Len(t, f.ex.Buys, 3)
	assert.Zero(t, rep.Monitor.Observed)
	assert.Zero(t, f.eng.Monitor.Tracker.Len())
}

func TestRunCycleBlacklistFailureSkipsBuyPhase(t *testing.T) {
	f := newFixture(t)
	f.store.BlackErr = testutils.ErrMock

	rep, err := f.eng.RunCycle(context.Background(), enabled())
	require.NoError(t, err)
	assert.True(t, rep.BuyPhaseSkipped)
	assert.Equal(t, 1, rep.Monitor.Observed, "positions are still managed")
	assert.Zero(t, f.ex.Calls("Tickers"))
	assert.Empty(t, f.ex.Buys)
}

func TestRunCycleBlacklistExcludesAsset(t *testing.T) {
	f := newFixture(t)
	f.store.Blacklist["AAA"] = struct{}{}

	rep, err := f.eng.RunCycle(context.Background(), enabled())
	require.NoError(t, err)
	require.Len(t, rep.Ranked, 2)
	assert.Equal(t, "BBBUSDT", rep.Ranked[0].Symbol)
}

func TestRunCycleWalletFailureAbortsCycle(t *testing.T) {
	f := newFixture(t)
	f.ex.FailOn("Balances", "")

	_, err := f.eng.RunCycle(context.Background(), enabled())
	require.ErrorIs(t, err, testutils.ErrMock)
	assert.Zero(t, f.ex.Calls("Price"))
}

func TestRunDisabledBacksOff(t *testing.T) {
	off := enabled()
	off.Enabled = false
	f := newFixture(t, off)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.stopAfter(2, cancel)

	require.NoError(t, f.eng.Run(ctx))
	assert.Equal(t, []time.Duration{time.Minute, time.Minute}, f.sleeps)
	assert.Zero(t, f.ex.Calls("Balances"))
	assert.Equal(t, []string{"Running...", "Stopped"}, f.store.Statuses())
	assert.Empty(t, f.notify.Messages())
}

func TestRunInvalidConfigBacksOff(t *testing.T) {
	f := newFixture(t)
	f.store.ConfigErr = fmt.Errorf("%w: capital_fraction missing", config.ErrInvalidConfig)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.stopAfter(1, cancel)

	require.NoError(t, f.eng.Run(ctx))
	assert.Equal(t, []time.Duration{time.Minute}, f.sleeps)
	assert.Equal(t, []string{"error"}, f.log.Levels("config_rejected"))
	assert.Contains(t, f.store.Lines(), "Configuration rejected: invalid configuration: capital_fraction missing")
	assert.Zero(t, f.ex.TotalCalls())
}

func TestRunEnabledRereadsConfigEveryCycle(t *testing.T) {
	second := enabled()
	second.IntervalSeconds = 5
	f := newFixture(t, enabled(), second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.stopAfter(2, cancel)

	require.NoError(t, f.eng.Run(ctx))
	assert.Equal(t, []time.Duration{time.Minute, 5 * time.Second}, f.sleeps)
	assert.Equal(t, 2, f.store.Reads())
}

type panicBuyer struct{}

func (panicBuyer) Buy(context.Context, config.Snapshot, string, *types.Wallet) (types.Fill, error) {
	panic("order book exploded")
}

func TestRunPanicIsFatal(t *testing.T) {
	f := newFixture(t)
	f.eng.Trader = panicBuyer{}
	f.stopAfter(10, func() {})

	err := f.eng.Run(context.Background())
	require.ErrorIs(t, err, ErrFatal)
	assert.Contains(t, err.Error(), "order book exploded")
	assert.Equal(t, []string{fatalSubject}, f.notify.Subjects())
	assert.Equal(t, []string{"Running...", "Stopped"}, f.store.Statuses())
	assert.Empty(t, f.sleeps)
}

func TestDryRunForcesTestMode(t *testing.T) {
	f := newFixture(t)
	f.eng.DryRun = true

	rep, err := f.eng.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Buys)
	assert.Zero(t, f.ex.Calls("MarketBuy"))
	assert.Equal(t, []string{"Simulated buy", "Simulated buy"}, f.notify.Subjects())
	assert.Contains(t, f.store.Lines(), "Test mode: ON")
}

func TestRunOnceSurfacesConfigError(t *testing.T) {
	f := newFixture(t)
	f.store.ConfigErr = config.ErrInvalidConfig

	_, err := f.eng.RunOnce(context.Background())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	off := enabled()
	off.Enabled = false
	f = newFixture(t, off)
	rep, err := f.eng.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.ID)
}
