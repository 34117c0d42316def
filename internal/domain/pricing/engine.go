// Package pricing converts reference-currency prices into display amounts and
// applies discount codes.
package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/starlighttrader/storefront/internal/domain/catalog"
	"github.com/starlighttrader/storefront/internal/domain/currency"
)

// RateSource fetches the live INR to USD conversion rate.
type RateSource interface {
	Rate(ctx context.Context) (decimal.Decimal, error)
}

var (
	// FallbackRate is used whenever the live rate is unavailable (1 USD = 85 INR).
	FallbackRate = decimal.NewFromInt(1).DivRound(decimal.NewFromInt(85), 16)

	roundStep = decimal.NewFromInt(5)
)

// Engine holds the current conversion rate and computes display prices.
type Engine struct {
	source RateSource

	mu   sync.RWMutex
	rate decimal.Decimal
}

// NewEngine returns an Engine primed with the fallback rate, so prices can be
// served before the first refresh completes.
func NewEngine(source RateSource) *Engine {
	return &Engine{source: source, rate: FallbackRate}
}

// Rate returns the conversion rate currently in use.
func (e *Engine) Rate() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rate
}

// Refresh fetches a fresh rate. Any failure, including a non-positive rate,
// installs the fallback rate instead; pricing never blocks on the upstream.
func (e *Engine) Refresh(ctx context.Context) {
	rate := FallbackRate
	if e.source != nil {
		r, err := e.source.Rate(ctx)
		switch {
		case err != nil:
			zctx.From(ctx).Warn("Exchange rate fetch failed, using fallback", zap.Error(err))
		case !r.IsPositive():
			zctx.From(ctx).Warn("Exchange rate is not positive, using fallback", zap.Stringer("rate", r))
		default:
			rate = r
		}
	}

	e.mu.Lock()
	e.rate = rate
	e.mu.Unlock()
}

// Run refreshes the rate immediately and then on every interval tick until
// ctx is cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	e.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.Refresh(ctx)
		}
	}
}

// DisplayPrice converts a reference-currency price into target. Reference
// prices are returned unchanged; converted prices are rounded up to the next
// multiple of five.
func (e *Engine) DisplayPrice(price decimal.Decimal, target currency.Code) decimal.Decimal {
	if target == currency.Reference {
		return price
	}
	return CeilToStep(price.Mul(e.Rate()))
}

// ProductPrice returns the display price of p. When discounted is set and p
// is the promoted product, the promotional price is converted instead.
func (e *Engine) ProductPrice(p catalog.Product, promo catalog.Promotion, target currency.Code, discounted bool) decimal.Decimal {
	price := p.Price
	if discounted && promo.OnSale(p) {
		price = promo.DiscountedPrice
	}
	return e.DisplayPrice(price, target)
}

// CeilToStep rounds v up to the nearest multiple of five. Negative values
// clamp to zero.
func CeilToStep(v decimal.Decimal) decimal.Decimal {
	if !v.IsPositive() {
		return decimal.Zero
	}
	return v.Div(roundStep).Ceil().Mul(roundStep)
}
