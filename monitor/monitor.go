// Package monitor manages open positions: it derives the average entry price
// from order history, runs the trailing-stop state machine and issues the
// resulting sells.
package monitor

import (
	"context"
	"fmt"

	"github.com/evdnx/voltrail/config"
	"github.com/evdnx/voltrail/exchange"
	"github.com/evdnx/voltrail/executor"
	"github.com/evdnx/voltrail/logger"
	"github.com/evdnx/voltrail/metrics"
	"github.com/evdnx/voltrail/types"
)

// Seller exits a position.
type Seller interface {
	Sell(ctx context.Context, snap config.Snapshot, symbol string, held types.Balance, price float64, reason string, wallet *types.Wallet) (executor.SellResult, error)
}

// Journal receives human readable event lines.
type Journal interface {
	AppendLog(ctx context.Context, line string) error
}

// Summary counts what happened in one pass.
type Summary struct {
	Observed int
	Skipped  int
	Sells    int
	Removed  int
}

// Monitor walks the held assets once per cycle.
type Monitor struct {
	Client   exchange.Client
	Seller   Seller
	Tracker  *Tracker
	Journal  Journal
	Log      logger.Logger
	Quote    string
	Trailing config.TrailingSettings
	Variant  string
	Policy   string

	// Threshold is the smallest total balance treated as a position.
	Threshold float64
}

// New builds a monitor with a fresh tracker.
func New(c exchange.Client, s Seller, log logger.Logger, quote string, eng config.EngineSettings, tr config.TrailingSettings) *Monitor {
	if log == nil {
		log = logger.Nop()
	}
	return &Monitor{
		Client:    c,
		Seller:    s,
		Tracker:   NewTracker(),
		Log:       log,
		Quote:     quote,
		Trailing:  tr,
		Variant:   eng.AvgPriceVariant,
		Policy:    eng.ExitPolicy,
		Threshold: eng.HeldThreshold,
	}
}

func (m *Monitor) params(snap config.Snapshot) Params {
	return Params{
		ProfitTarget: snap.ProfitTargetPercent,
		Activation:   m.Trailing.ActivationPercent,
		Trailing:     m.Trailing.TrailingPercent,
		MinStop:      m.Trailing.MinStopPercent,
	}
}

// Run processes every held asset sequentially. A failure on one symbol is
// logged and skipped.
func (m *Monitor) Run(ctx context.Context, snap config.Snapshot, wallet *types.Wallet) Summary {
	var sum Summary
	assets := wallet.Open(m.Threshold)
	m.prune(assets, &sum)

	if len(assets) == 0 {
		m.Log.Info("no_positions_held")
	}
	for _, asset := range assets {
		if ctx.Err() != nil {
			break
		}
		if m.observe(ctx, snap, asset, wallet, &sum) {
			sum.Observed++
		} else {
			sum.Skipped++
		}
	}
	metrics.TrailingActive.Set(float64(m.Tracker.ActiveCount()))
	return sum
}

func (m *Monitor) observe(ctx context.Context, snap config.Snapshot, asset string, wallet *types.Wallet, sum *Summary) bool {
	symbol := types.Symbol(asset, m.Quote)

	price, err := m.Client.Price(ctx, symbol)
	if err != nil {
		m.skip(symbol, "price_fetch_failed", err)
		return false
	}
	history, err := m.Client.OrderHistory(ctx, symbol)
	if err != nil {
		m.skip(symbol, "order_history_failed", err)
		return false
	}
	avg, fromHistory := AveragePrice(history, m.Variant, price)
	if !fromHistory {
		m.Log.Debug("no_buy_history", logger.String("symbol", symbol))
	}

	d := m.Tracker.Observe(symbol, price, avg, m.params(snap))
	m.Log.Info("position_observed",
		logger.String("symbol", symbol),
		logger.Float64("price", price),
		logger.Float64("avg_price", d.AvgPrice),
		logger.Float64("pnl_pct", d.PnlPercent),
		logger.Float64("high_water", d.State.HighWater),
		logger.Bool("trailing_active", d.State.Active),
		logger.Float64("stop_price", d.State.StopPrice),
	)
	if d.Activated {
		m.Log.Info("trailing_activated", logger.String("symbol", symbol), logger.Float64("stop_price", d.State.StopPrice))
		m.journal(ctx, fmt.Sprintf("Trailing stop armed for %s at %.6f", asset, d.State.StopPrice))
	}

	attempted := false
	if d.ProfitTake {
		m.Log.Info("profit_target_reached", logger.String("symbol", symbol), logger.Float64("pnl_pct", d.PnlPercent))
		m.journal(ctx, fmt.Sprintf("Profit of %.2f%% reached for %s, selling", d.PnlPercent, asset))
		m.sell(ctx, snap, symbol, asset, price, executor.ReasonProfitTake, wallet, sum)
		attempted = true
	}
	if d.StopHit {
		m.Log.Info("trailing_stop_hit", logger.String("symbol", symbol), logger.Float64("stop_price", d.State.StopPrice))
		if attempted && m.Policy != config.ExitBoth {
			m.Log.Debug("stop_sell_skipped", logger.String("symbol", symbol), logger.String("policy", m.Policy))
		} else {
			m.journal(ctx, fmt.Sprintf("Trailing stop hit for %s at %.6f, selling", asset, price))
			m.sell(ctx, snap, symbol, asset, price, executor.ReasonTrailingStop, wallet, sum)
		}
	}
	return true
}

func (m *Monitor) sell(ctx context.Context, snap config.Snapshot, symbol, asset string, price float64, reason string, wallet *types.Wallet, sum *Summary) {
	if m.Seller == nil {
		return
	}
	held := wallet.Assets[asset]
	res, err := m.Seller.Sell(ctx, snap, symbol, held, price, reason, wallet)
	if err != nil {
		m.skip(symbol, "sell_failed", err)
		return
	}
	sum.Sells++
	if res.Closed {
		m.Tracker.Remove(symbol)
		sum.Removed++
		m.Log.Info("trailing_state_removed", logger.String("symbol", symbol))
	}
}

// prune drops trailing state for symbols no longer held, e.g. sold by hand
// or reduced to dust.
func (m *Monitor) prune(held []string, sum *Summary) {
	keep := make(map[string]struct{}, len(held))
	for _, asset := range held {
		keep[types.Symbol(asset, m.Quote)] = struct{}{}
	}
	for _, symbol := range m.Tracker.Symbols() {
		if _, ok := keep[symbol]; ok {
			continue
		}
		m.Tracker.Remove(symbol)
		sum.Removed++
		m.Log.Info("trailing_state_removed", logger.String("symbol", symbol), logger.String("reason", "not_held"))
	}
}

func (m *Monitor) skip(symbol, event string, err error) {
	metrics.SymbolErrors.WithLabelValues("monitor").Inc()
	m.Log.Warn(event, logger.String("symbol", symbol), logger.Err(err))
}

func (m *Monitor) journal(ctx context.Context, line string) {
	if m.Journal == nil {
		return
	}
	_ = m.Journal.AppendLog(ctx, line)
}
