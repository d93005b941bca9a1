package types

import (
	"sort"
	"strings"
)

// Balance is the free and locked amount of one asset.
type Balance struct {
	Free   float64
	Locked float64
}

// Total returns free + locked.
func (b Balance) Total() float64 { return b.Free + b.Locked }

// Wallet is a per-cycle snapshot of held assets. Assets excludes the quote
// currency and the ignore list; Quote carries the quote balance on its own.
type Wallet struct {
	QuoteAsset string
	Quote      Balance
	Assets     map[string]Balance
}

// NewWallet builds a snapshot from raw exchange balances. Assets whose total
// is zero are dropped.
func NewWallet(balances map[string]Balance, quote string, ignore []string) Wallet {
	skip := make(map[string]struct{}, len(ignore))
	for _, a := range ignore {
		skip[strings.ToUpper(a)] = struct{}{}
	}
	w := Wallet{QuoteAsset: quote, Assets: make(map[string]Balance)}
	for asset, bal := range balances {
		if asset == quote {
			w.Quote = bal
			continue
		}
		if _, ok := skip[asset]; ok {
			continue
		}
		if bal.Total() <= 0 {
			continue
		}
		w.Assets[asset] = bal
	}
	return w
}

// Held returns the assets whose free balance is at least threshold, sorted.
func (w Wallet) Held(threshold float64) []string {
	out := make([]string, 0, len(w.Assets))
	for asset, bal := range w.Assets {
		if bal.Free >= threshold {
			out = append(out, asset)
		}
	}
	sort.Strings(out)
	return out
}

// Positions counts assets whose total balance reaches threshold. Smaller
// remainders are dust left by step-floored sells and do not hold a slot.
func (w Wallet) Positions(threshold float64) int {
	return len(w.Open(threshold))
}

// Open returns the assets whose total balance reaches threshold, sorted.
func (w Wallet) Open(threshold float64) []string {
	out := make([]string, 0, len(w.Assets))
	for asset, bal := range w.Assets {
		if bal.Total() > 0 && bal.Total() >= threshold {
			out = append(out, asset)
		}
	}
	sort.Strings(out)
	return out
}

// Apply reflects a fill in the snapshot. It is only used to render the
// post-trade wallet line in notifications.
func (w *Wallet) Apply(asset string, f Fill) {
	if w.Assets == nil {
		w.Assets = make(map[string]Balance)
	}
	bal := w.Assets[asset]
	quote := f.QuoteQty
	if quote == 0 {
		quote = f.ExecutedQty * f.Price
	}
	switch f.Side {
	case Buy:
		bal.Free += f.ExecutedQty
		w.Quote.Free -= quote
	case Sell:
		bal.Free -= f.ExecutedQty
		if bal.Free < 0 {
			bal.Free = 0
		}
		w.Quote.Free += quote
	}
	w.Assets[asset] = bal
}

// Symbol joins a base asset with the quote currency.
func Symbol(asset, quote string) string { return asset + quote }

// BaseAsset strips the quote suffix from a symbol.
func BaseAsset(symbol, quote string) string { return strings.TrimSuffix(symbol, quote) }
