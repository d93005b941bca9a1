package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/evdnx/voltrail/config"
	"github.com/evdnx/voltrail/exchange"
	"github.com/evdnx/voltrail/logger"
	"github.com/evdnx/voltrail/metrics"
	"github.com/evdnx/voltrail/notify"
	"github.com/evdnx/voltrail/risk"
	"github.com/evdnx/voltrail/types"
)

// Sell reasons.
const (
	ReasonProfitTake   = "profit_take"
	ReasonTrailingStop = "trailing_stop"
	ReasonEntry        = "entry"
)

// SellResult describes a completed sell.
type SellResult struct {
	Fill types.Fill
	// Closed is set when a live sell left only dust behind.
	Closed bool
}

// Trader runs the full buy and sell flow for one symbol: test mode, sizing,
// validation, submission, notification and metrics.
type Trader struct {
	Client   exchange.Client
	Live     Executor
	Paper    Executor
	Notifier notify.Notifier
	Log      logger.Logger
	Quote    string
}

// NewTrader wires a trader over one exchange client.
func NewTrader(c exchange.Client, n notify.Notifier, log logger.Logger, quote string) *Trader {
	if log == nil {
		log = logger.Nop()
	}
	return &Trader{
		Client:   c,
		Live:     NewLiveExecutor(c),
		Paper:    NewPaperExecutor(),
		Notifier: notify.NewSafe(n, log),
		Log:      log,
		Quote:    quote,
	}
}

// Buy spends snap.CapitalFraction of the free quote balance on symbol. The
// wallet is updated in place on success.
func (t *Trader) Buy(ctx context.Context, snap config.Snapshot, symbol string, wallet *types.Wallet) (types.Fill, error) {
	asset := types.BaseAsset(symbol, t.Quote)
	budget := wallet.Quote.Free * snap.CapitalFraction

	if snap.TestMode {
		fill, err := t.Paper.Submit(ctx, types.Order{
			Symbol:      symbol,
			Side:        types.Buy,
			QuoteBudget: budget,
			Comment:     ReasonEntry,
		})
		if err != nil {
			return fill, err
		}
		_ = t.Notifier.Notify(ctx, "Simulated buy",
			fmt.Sprintf("[TEST MODE] Simulated buy: %s - amount: %.6f", asset, budget))
		t.Log.Info("order_simulated", logger.String("symbol", symbol), logger.String("side", string(types.Buy)),
			logger.Float64("quote_budget", budget), logger.String("client_id", fill.ClientID))
		metrics.OrdersSubmitted.WithLabelValues(string(types.Buy), ReasonEntry, snap.StrategyTag).Inc()
		return fill, nil
	}

	if budget <= 0 {
		return types.Fill{}, t.reject(types.Buy, symbol, fmt.Errorf("%s: %w", symbol, risk.ErrNoBudget))
	}
	price, err := t.Client.Price(ctx, symbol)
	if err != nil {
		return types.Fill{}, err
	}
	filters, err := t.Client.SymbolFilters(ctx, symbol)
	if err != nil {
		return types.Fill{}, err
	}
	qty, _, err := risk.BuyQuantity(symbol, wallet.Quote.Free, snap.CapitalFraction, price, filters)
	if err != nil {
		return types.Fill{}, t.reject(types.Buy, symbol, err)
	}

	o := types.Order{Symbol: symbol, Side: types.Buy, Qty: qty, Price: price, QuoteBudget: budget, Comment: ReasonEntry}
	fill, err := t.submit(ctx, o, snap.StrategyTag)
	if err != nil {
		return fill, err
	}
	wallet.Apply(asset, fill)
	_ = t.Notifier.Notify(ctx, "Buy executed", t.summary("Buy executed", asset, fill, *wallet))
	return fill, nil
}

// Sell exits the whole position in symbol. held is the wallet balance of the
// base asset and price the reference price observed by the monitor.
func (t *Trader) Sell(ctx context.Context, snap config.Snapshot, symbol string, held types.Balance, price float64, reason string, wallet *types.Wallet) (SellResult, error) {
	asset := types.BaseAsset(symbol, t.Quote)

	if snap.TestMode {
		fill, err := t.Paper.Submit(ctx, types.Order{
			Symbol:  symbol,
			Side:    types.Sell,
			Qty:     held.Free,
			Price:   price,
			Comment: reason,
		})
		if err != nil {
			return SellResult{Fill: fill}, err
		}
		_ = t.Notifier.Notify(ctx, "Simulated sell",
			fmt.Sprintf("[TEST MODE] Simulated sell: %s - quantity: %.6f", asset, held.Free))
		t.Log.Info("order_simulated", logger.String("symbol", symbol), logger.String("side", string(types.Sell)),
			logger.Float64("qty", held.Free), logger.String("reason", reason), logger.String("client_id", fill.ClientID))
		metrics.OrdersSubmitted.WithLabelValues(string(types.Sell), reason, snap.StrategyTag).Inc()
		return SellResult{Fill: fill}, nil
	}

	filters, err := t.Client.SymbolFilters(ctx, symbol)
	if err != nil {
		return SellResult{}, err
	}
	qty := risk.SellQuantity(held, filters)
	if err := risk.ValidateOrder(symbol, qty, price, filters); err != nil {
		return SellResult{}, t.reject(types.Sell, symbol, err)
	}

	fill, err := t.submit(ctx, types.Order{Symbol: symbol, Side: types.Sell, Qty: qty, Price: price, Comment: reason}, snap.StrategyTag)
	if err != nil {
		return SellResult{Fill: fill}, err
	}
	if wallet != nil {
		wallet.Apply(asset, fill)
	}
	remaining := held.Total() - fill.ExecutedQty
	res := SellResult{Fill: fill, Closed: risk.IsDust(remaining, price, filters)}

	summaryWallet := types.Wallet{}
	if wallet != nil {
		summaryWallet = *wallet
	}
	_ = t.Notifier.Notify(ctx, "Sell executed", t.summary("Sell executed", asset, fill, summaryWallet))
	return res, nil
}

// submit wraps the live executor with logging and metrics.
func (t *Trader) submit(ctx context.Context, o types.Order, strategy string) (types.Fill, error) {
	fill, err := t.Live.Submit(ctx, o)
	if err != nil {
		t.Log.Error("order_submit_failed",
			logger.String("symbol", o.Symbol),
			logger.String("side", string(o.Side)),
			logger.Float64("qty", o.Qty),
			logger.Err(err),
		)
		return fill, err
	}
	t.Log.Info("order_submitted",
		logger.String("symbol", o.Symbol),
		logger.String("side", string(o.Side)),
		logger.Float64("qty", fill.ExecutedQty),
		logger.Float64("price", fill.Price),
		logger.String("ctx", o.Comment),
	)
	metrics.OrdersSubmitted.WithLabelValues(string(o.Side), o.Comment, strategy).Inc()
	return fill, nil
}

func (t *Trader) reject(side types.Side, symbol string, err error) error {
	reason := risk.RejectReason(err)
	level := t.Log.Warn
	if !errors.Is(err, risk.ErrValidationRejected) {
		level = t.Log.Error
	}
	level("order_rejected",
		logger.String("symbol", symbol),
		logger.String("side", string(side)),
		logger.String("reason", reason),
		logger.Err(err),
	)
	metrics.OrdersRejected.WithLabelValues(string(side), reason).Inc()
	return err
}

func (t *Trader) summary(title, asset string, f types.Fill, w types.Wallet) string {
	return fmt.Sprintf("====== %s ======\nAsset: %s\nExecuted quantity: %.6f\nTotal %s in wallet: %.6f\nAvailable %s balance: %.2f\n",
		title, asset, f.ExecutedQty, asset, w.Assets[asset].Total(), t.Quote, w.Quote.Free)
}
