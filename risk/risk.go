package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/evdnx/voltrail/types"
	"github.com/shopspring/decimal"
)

var (
	// ErrValidationRejected marks an order that failed exchange constraints.
	// It is never retried.
	ErrValidationRejected = errors.New("order rejected by validation")
	ErrBelowMinQty        = fmt.Errorf("%w: quantity below minimum", ErrValidationRejected)
	ErrBelowMinNotional   = fmt.Errorf("%w: notional below minimum", ErrValidationRejected)
	ErrNoBudget           = fmt.Errorf("%w: no budget available", ErrValidationRejected)
	ErrOverBudget         = fmt.Errorf("%w: notional exceeds budget", ErrValidationRejected)
	ErrInvalidPrice       = fmt.Errorf("%w: invalid price", ErrValidationRejected)
)

// TryAdjustQuantity floors raw to a multiple of step and rounds it to the
// precision step implies. ok is false when the adjustment could not be
// computed, in which case raw is returned untouched.
func TryAdjustQuantity(raw, step float64) (qty float64, ok bool) {
	if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) ||
		math.IsNaN(raw) || math.IsInf(raw, 0) {
		return raw, false
	}
	decimals := int32(math.Round(-math.Log10(step)))
	if decimals < 0 {
		decimals = 0
	}
	s := decimal.NewFromFloat(step)
	q := decimal.NewFromFloat(raw).Div(s).Floor().Mul(s).Round(decimals)
	out, _ := q.Float64()
	if out < 0 {
		return raw, false
	}
	return out, true
}

// AdjustQuantity is the best-effort form of TryAdjustQuantity: on failure the
// caller gets the unadjusted quantity back.
func AdjustQuantity(raw, step float64) float64 {
	qty, _ := TryAdjustQuantity(raw, step)
	return qty
}

// ValidateOrder checks qty against the symbol's minimum quantity and, when the
// exchange publishes one, its minimum notional.
func ValidateOrder(symbol string, qty, price float64, f types.SymbolFilters) error {
	if qty < f.MinQty || qty <= 0 {
		return fmt.Errorf("%s: qty %v < min %v: %w", symbol, qty, f.MinQty, ErrBelowMinQty)
	}
	if f.HasMinNotional && price*qty < f.MinNotional {
		return fmt.Errorf("%s: notional %v < min %v: %w", symbol, price*qty, f.MinNotional, ErrBelowMinNotional)
	}
	return nil
}

// BuyQuantity sizes a market buy: fraction of the free quote balance, divided
// by price, adjusted to the step size and validated.
func BuyQuantity(symbol string, quoteFree, fraction, price float64, f types.SymbolFilters) (qty, budget float64, err error) {
	budget = quoteFree * fraction
	if budget <= 0 {
		return 0, budget, fmt.Errorf("%s: %w", symbol, ErrNoBudget)
	}
	if price <= 0 || math.IsNaN(price) {
		return 0, budget, fmt.Errorf("%s: price %v: %w", symbol, price, ErrInvalidPrice)
	}
	qty = AdjustQuantity(budget/price, f.StepSize)
	if err := ValidateOrder(symbol, qty, price, f); err != nil {
		return qty, budget, err
	}
	// Exact decimal product; float rounding would reject an order spending the
	// whole budget.
	notional := decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(price))
	if notional.GreaterThan(decimal.NewFromFloat(budget)) {
		return qty, budget, fmt.Errorf("%s: %s > %v: %w", symbol, notional, budget, ErrOverBudget)
	}
	return qty, budget, nil
}

// SellQuantity returns the full held quantity adjusted down to the step size
// and capped at the free balance.
func SellQuantity(held types.Balance, f types.SymbolFilters) float64 {
	qty := AdjustQuantity(held.Total(), f.StepSize)
	if qty > held.Free {
		qty = AdjustQuantity(held.Free, f.StepSize)
		if qty > held.Free {
			qty = held.Free
		}
	}
	return qty
}

// IsDust reports whether qty is too small to be traded again, i.e. the
// position can be considered closed.
func IsDust(qty, price float64, f types.SymbolFilters) bool {
	q := AdjustQuantity(qty, f.StepSize)
	if q <= 0 || q < f.MinQty {
		return true
	}
	return f.HasMinNotional && q*price < f.MinNotional
}

// RejectReason maps a validation error onto a short metric label.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrBelowMinQty):
		return "min_qty"
	case errors.Is(err, ErrBelowMinNotional):
		return "min_notional"
	case errors.Is(err, ErrNoBudget):
		return "no_budget"
	case errors.Is(err, ErrOverBudget):
		return "over_budget"
	case errors.Is(err, ErrInvalidPrice):
		return "invalid_price"
	default:
		return "other"
	}
}
