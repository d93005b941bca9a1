package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/evdnx/voltrail/exchange"
	"github.com/evdnx/voltrail/types"
)

// Executor turns an order intent into a fill.
type Executor interface {
	Submit(ctx context.Context, o types.Order) (types.Fill, error)
}

// LiveExecutor places market orders on the exchange.
type LiveExecutor struct {
	Client exchange.Client
}

func NewLiveExecutor(c exchange.Client) *LiveExecutor { return &LiveExecutor{Client: c} }

func (l *LiveExecutor) Submit(ctx context.Context, o types.Order) (types.Fill, error) {
	if o.Qty <= 0 {
		return types.Fill{}, fmt.Errorf("live executor: non-positive quantity %v for %s", o.Qty, o.Symbol)
	}
	switch o.Side {
	case types.Buy:
		return l.Client.MarketBuy(ctx, o.Symbol, o.Qty)
	case types.Sell:
		return l.Client.MarketSell(ctx, o.Symbol, o.Qty)
	default:
		return types.Fill{}, fmt.Errorf("live executor: unknown side %q", o.Side)
	}
}

// PaperExecutor never talks to the exchange. Every order is filled in full at
// its reference price and tagged TEST. An order without a quantity is
// reported at its quote budget.
type PaperExecutor struct {
	mu    sync.Mutex
	fills []types.Fill
}

func NewPaperExecutor() *PaperExecutor { return &PaperExecutor{} }

func (p *PaperExecutor) Submit(_ context.Context, o types.Order) (types.Fill, error) {
	f := types.Fill{
		Symbol:      o.Symbol,
		Side:        o.Side,
		Status:      types.StatusTest,
		ClientID:    "test-" + uuid.NewString(),
		ExecutedQty: o.Qty,
		Price:       o.Price,
		QuoteQty:    o.Qty * o.Price,
		Simulated:   true,
	}
	if f.QuoteQty == 0 {
		f.QuoteQty = o.QuoteBudget
	}
	p.mu.Lock()
	p.fills = append(p.fills, f)
	p.mu.Unlock()
	return f, nil
}

// Fills returns a copy of every simulated fill so far.
func (p *PaperExecutor) Fills() []types.Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.Fill, len(p.fills))
	copy(out, p.fills)
	return out
}
