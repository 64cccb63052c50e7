package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/quantisle/papertrader/models"
)

// guardedProvider pairs one provider with its circuit breaker
type guardedProvider struct {
	provider models.CandleProvider
	breaker  *gobreaker.CircuitBreaker
}

// FallbackChain tries providers in priority order, each guarded by its
// own circuit breaker, so a flapping upstream stops eating retries and
// the next provider gets the request instead.
type FallbackChain struct {
	providers []guardedProvider
	logger    zerolog.Logger
}

// NewFallbackChain guards the given providers in priority order
func NewFallbackChain(providers ...models.CandleProvider) *FallbackChain {
	chain := &FallbackChain{
		logger: log.With().Str("component", "marketdata_fallback").Logger(),
	}
	for _, p := range providers {
		chain.providers = append(chain.providers, guardedProvider{
			provider: p,
			breaker:  gobreaker.NewCircuitBreaker(breakerSettings(p.Name())),
		})
	}
	return chain
}

// breakerSettings trips a provider on three straight failures, or on a
// 50% failure ratio once it has seen a meaningful request volume
func breakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.5
		},
	}
}

// Name identifies the chain when it is itself used as a provider
func (c *FallbackChain) Name() string {
	return "fallback-chain"
}

// Candles asks each healthy provider in turn until one delivers. All
// providers failing (or tripped) aggregates every error into one.
func (c *FallbackChain) Candles(ctx context.Context, symbol, interval string, count int) ([]models.Candle, error) {
	if len(c.providers) == 0 {
		return nil, errors.New("no providers configured")
	}

	var errs []error
	for _, guarded := range c.providers {
		result, err := guarded.breaker.Execute(func() (interface{}, error) {
			return guarded.provider.Candles(ctx, symbol, interval, count)
		})
		if err != nil {
			c.logger.Warn().Err(err).Str("provider", guarded.provider.Name()).Msg("Provider failed, trying next")
			errs = append(errs, fmt.Errorf("%s: %w", guarded.provider.Name(), err))
			continue
		}
		return result.([]models.Candle), nil
	}
	return nil, fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}
