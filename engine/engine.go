// Package engine runs the decision loop: re-read the operator configuration,
// manage open positions, screen the market and buy the most volatile symbols
// up to the position cap, then sleep and repeat.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/evdnx/voltrail/config"
	"github.com/evdnx/voltrail/exchange"
	"github.com/evdnx/voltrail/executor"
	"github.com/evdnx/voltrail/logger"
	"github.com/evdnx/voltrail/metrics"
	"github.com/evdnx/voltrail/monitor"
	"github.com/evdnx/voltrail/notify"
	"github.com/evdnx/voltrail/screener"
	"github.com/evdnx/voltrail/store"
	"github.com/evdnx/voltrail/types"
)

// ErrFatal ends the loop. Nothing else does.
var ErrFatal = errors.New("fatal error in decision loop")

const fatalSubject = "Fatal error in trading robot"

// Buyer opens a position in symbol.
type Buyer interface {
	Buy(ctx context.Context, snap config.Snapshot, symbol string, wallet *types.Wallet) (types.Fill, error)
}

// Report describes one completed cycle.
type Report struct {
	ID              string
	Monitor         monitor.Summary
	Ranked          []types.VolatilityCandidate
	OpenPositions   int
	Buys            int
	BuyPhaseSkipped bool
}

// Engine owns every component of the loop. It is driven from one goroutine.
type Engine struct {
	Store    store.Store
	Client   exchange.Client
	Monitor  *monitor.Monitor
	Screener *screener.Screener
	Trader   Buyer
	Notifier notify.Notifier
	Log      logger.Logger
	Settings config.Settings
	// DryRun forces test mode regardless of the store.
	DryRun bool
	// Sleep waits between iterations and returns ctx.Err() when cancelled.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New wires the trader, monitor and screener over one exchange client. The
// store is used for both configuration and the journal.
func New(cfg config.Settings, st store.Store, c exchange.Client, n notify.Notifier, log logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	if n == nil {
		n = notify.Nop{}
	}
	quote := cfg.Engine.QuoteAsset
	trader := executor.NewTrader(c, n, log, quote)
	mon := monitor.New(c, trader, log, quote, cfg.Engine, cfg.Trailing)
	mon.Journal = st
	return &Engine{
		Store:    st,
		Client:   c,
		Monitor:  mon,
		Screener: screener.New(c, log, cfg.Engine.CandleInterval, cfg.Engine.ScreenWorkers),
		Trader:   trader,
		Notifier: notify.NewSafe(n, log),
		Log:      log,
		Settings: cfg,
		Sleep:    sleep,
	}
}

// Run loops until ctx is cancelled or a cycle fails fatally. The status cell
// reads "Running..." while the loop is alive and "Stopped" afterwards.
func (e *Engine) Run(ctx context.Context) (err error) {
	e.setStatus(ctx, store.StatusRunning)
	e.Log.Info("engine_started", logger.Bool("dry_run", e.DryRun))
	defer func() {
		final := context.WithoutCancel(ctx)
		if err != nil {
			e.Log.Error("engine_fatal", logger.Err(err))
			_ = e.Notifier.Notify(final, fatalSubject,
				fmt.Sprintf("A fatal error occurred in the robot: %v\n\nThe robot has been shut down.", err))
		}
		e.setStatus(final, store.StatusStopped)
		e.Log.Info("engine_stopped")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		wait, err := e.iterate(ctx)
		if err != nil {
			return err
		}
		if e.Sleep(ctx, wait) != nil {
			return nil
		}
	}
}

// RunOnce performs a single iteration without sleeping. Configuration errors
// are returned to the caller.
func (e *Engine) RunOnce(ctx context.Context) (Report, error) {
	snap, err := e.readConfig(ctx)
	if err != nil {
		return Report{}, err
	}
	if !snap.Enabled {
		metrics.CyclesTotal.WithLabelValues("disabled").Inc()
		e.Log.Info("engine_disabled")
		return Report{}, nil
	}
	return e.safeCycle(ctx, snap)
}

// iterate runs one loop step and returns how long to wait before the next.
func (e *Engine) iterate(ctx context.Context) (time.Duration, error) {
	backoff := e.Settings.Engine.DisabledBackoff

	snap, err := e.readConfig(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil
		}
		metrics.CyclesTotal.WithLabelValues("invalid_config").Inc()
		e.Log.Error("config_rejected", logger.Err(err), logger.Duration("backoff", backoff))
		e.journal(ctx, fmt.Sprintf("Configuration rejected: %v", err))
		return backoff, nil
	}
	if !snap.Enabled {
		metrics.CyclesTotal.WithLabelValues("disabled").Inc()
		e.Log.Info("engine_disabled", logger.Duration("backoff", backoff))
		return backoff, nil
	}

	if _, err := e.safeCycle(ctx, snap); err != nil {
		if errors.Is(err, ErrFatal) {
			return 0, err
		}
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		e.Log.Error("cycle_failed", logger.Err(err))
	}
	wait := time.Duration(snap.IntervalSeconds) * time.Second
	e.Log.Info("cycle_waiting", logger.Duration("interval", wait))
	return wait, nil
}

func (e *Engine) readConfig(ctx context.Context) (config.Snapshot, error) {
	snap, err := e.Store.ReadConfig(ctx)
	if err != nil {
		return snap, err
	}
	if e.DryRun {
		snap.TestMode = true
	}
	return snap, nil
}

// safeCycle turns a panic escaping the cycle into ErrFatal.
func (e *Engine) safeCycle(ctx context.Context, snap config.Snapshot) (rep Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrFatal, r)
		}
	}()
	return e.RunCycle(ctx, snap)
}

// RunCycle executes one full analysis cycle with a validated snapshot. Only
// a wallet failure before the monitor aborts it; every later failure is
// isolated to its symbol or skips the buy phase.
func (e *Engine) RunCycle(ctx context.Context, snap config.Snapshot) (Report, error) {
	start := time.Now()
	rep := Report{ID: uuid.NewString()}
	log := e.Log
	quote := e.Settings.Engine.QuoteAsset
	log.Info("cycle_started", logger.String("cycle_id", rep.ID), logger.String("strategy", snap.StrategyTag),
		logger.Bool("test_mode", snap.TestMode))

	if err := e.Store.ClearLog(ctx); err != nil {
		log.Warn("journal_clear_failed", logger.Err(err))
	}
	e.writeSummary(ctx, snap)

	e.journal(ctx, "Starting sell analysis...")
	wallet, err := exchange.Wallet(ctx, e.Client, quote, e.Settings.Engine.IgnoreAssets)
	if err != nil {
		return rep, fmt.Errorf("wallet snapshot: %w", err)
	}
	metrics.QuoteBalance.Set(wallet.Quote.Free)
	rep.Monitor = e.Monitor.Run(ctx, snap, &wallet)

	e.journal(ctx, "Starting market analysis and buys, please wait...")
	defer func() {
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
		metrics.CyclesTotal.WithLabelValues("completed").Inc()
		log.Info("cycle_completed", logger.String("cycle_id", rep.ID), logger.Int("buys", rep.Buys),
			logger.Int("sells", rep.Monitor.Sells), logger.Bool("buy_phase_skipped", rep.BuyPhaseSkipped),
			logger.Duration("elapsed", time.Since(start)))
	}()

	blacklist, err := e.Store.ReadBlacklist(ctx)
	if err != nil {
		e.skipBuys(&rep, "blacklist_read_failed", err)
		return rep, nil
	}
	tickers, err := e.Client.Tickers(ctx)
	if err != nil {
		e.skipBuys(&rep, "tickers_fetch_failed", err)
		return rep, nil
	}
	fresh, err := exchange.Wallet(ctx, e.Client, quote, e.Settings.Engine.IgnoreAssets)
	if err != nil {
		e.skipBuys(&rep, "wallet_refresh_failed", err)
		return rep, nil
	}
	metrics.QuoteBalance.Set(fresh.Quote.Free)

	rep.Ranked = e.Screener.Rank(ctx, tickers, screener.Request{
		Quote:         quote,
		Blacklist:     blacklist,
		Held:          fresh,
		HeldThreshold: e.Settings.Engine.HeldThreshold,
		MinVolume:     snap.MinVolume,
		WindowHours:   snap.VolatilityWindowHours,
		Limit:         snap.MaxCandidates,
	})
	e.journal(ctx, "Top volatile cryptos:")
	for i, c := range rep.Ranked {
		e.journal(ctx, fmt.Sprintf("%d. %s - Volatility: %.2f%%", i+1, types.BaseAsset(c.Symbol, quote), c.Volatility*100))
	}

	count := fresh.Positions(e.Settings.Engine.HeldThreshold)
	rep.OpenPositions = count
	metrics.PositionsOpen.Set(float64(count))
	if count >= snap.MaxOpenPositions {
		log.Info("position_cap_reached", logger.Int("open", count), logger.Int("max", snap.MaxOpenPositions))
		return rep, nil
	}
	for _, c := range rep.Ranked {
		if count >= snap.MaxOpenPositions {
			log.Info("position_cap_reached", logger.Int("open", count), logger.Int("max", snap.MaxOpenPositions))
			break
		}
		if ctx.Err() != nil {
			break
		}
		fill, err := e.Trader.Buy(ctx, snap, c.Symbol, &fresh)
		if err != nil {
			metrics.SymbolErrors.WithLabelValues("buy").Inc()
			log.Warn("buy_failed", logger.String("symbol", c.Symbol), logger.Err(err))
			continue
		}
		count++
		rep.Buys++
		e.journal(ctx, fmt.Sprintf("Bought %s - Volatility: %.4f - qty: %.6f", types.BaseAsset(c.Symbol, quote),
			c.Volatility, fill.ExecutedQty))
	}
	return rep, nil
}

func (e *Engine) skipBuys(rep *Report, event string, err error) {
	metrics.SymbolErrors.WithLabelValues("cycle").Inc()
	e.Log.Warn(event, logger.String("cycle_id", rep.ID), logger.Err(err))
	rep.BuyPhaseSkipped = true
}

func (e *Engine) writeSummary(ctx context.Context, snap config.Snapshot) {
	quote := e.Settings.Engine.QuoteAsset
	e.journal(ctx, fmt.Sprintf("Volatility window: %d hrs", snap.VolatilityWindowHours))
	e.journal(ctx, fmt.Sprintf("Minimum volume considered: %.2f", snap.MinVolume))
	e.journal(ctx, fmt.Sprintf("%% of %s balance used per buy: %.2f%%", quote, snap.CapitalFraction*100))
	e.journal(ctx, fmt.Sprintf("Profit target: %.2f%%", snap.ProfitTargetPercent))
	if snap.TestMode {
		e.journal(ctx, "Test mode: ON")
	} else {
		e.journal(ctx, "Test mode: OFF!")
	}
}

func (e *Engine) journal(ctx context.Context, line string) {
	if err := e.Store.AppendLog(ctx, line); err != nil {
		e.Log.Debug("journal_append_failed", logger.Err(err))
	}
}

func (e *Engine) setStatus(ctx context.Context, status string) {
	if err := e.Store.SetStatus(ctx, status); err != nil {
		e.Log.Warn("status_write_failed", logger.String("status", status), logger.Err(err))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
