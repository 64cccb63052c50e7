package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantisle/papertrader/internal/config"
	"github.com/quantisle/papertrader/internal/execution"
	"github.com/quantisle/papertrader/internal/marketdata"
	"github.com/quantisle/papertrader/internal/strategy"
	"github.com/quantisle/papertrader/models"
)

// windowDays is how much history each poll fetches; enough for the
// regime classifier's floor plus indicator warm-up on hourly bars
const windowDays = 10

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Loading configuration")
	}
	setupLogger(cfg.LogLevel)

	adaptive, err := config.LoadAdaptiveFile(cfg.StrategyFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Loading strategy configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider := buildProvider(cfg)
	selector := strategy.NewSelector(nil, nil)
	portfolio := models.NewPortfolio(cfg.InitialCapital)
	execCtx := &execution.Context{
		FeeRate:    cfg.FeeRate,
		SessionKey: cfg.SessionKey,
		Recorder:   selector,
		Adaptive:   adaptive,
	}

	log.Info().
		Str("symbol", cfg.Symbol).
		Str("interval", cfg.Interval).
		Dur("poll", cfg.PollInterval).
		Msg("Paper trader started")

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	evaluate(ctx, cfg, adaptive, provider, selector, portfolio, execCtx)
	for {
		select {
		case <-ctx.Done():
			log.Info().
				Float64("final_value", portfolio.TotalValue).
				Int("trades", portfolio.TradeCount).
				Msg("Paper trader stopped")
			return
		case <-ticker.C:
			evaluate(ctx, cfg, adaptive, provider, selector, portfolio, execCtx)
		}
	}
}

func evaluate(
	ctx context.Context,
	cfg *config.AppConfig,
	adaptive *models.AdaptiveConfig,
	provider models.CandleProvider,
	selector *strategy.Selector,
	portfolio *models.Portfolio,
	execCtx *execution.Context,
) {
	fetchCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	count := models.CandlesForWindow(cfg.Interval, windowDays)
	candles, err := provider.Candles(fetchCtx, cfg.Symbol, cfg.Interval, count)
	if err != nil {
		log.Error().Err(err).Msg("Fetching candles, skipping tick")
		return
	}

	index := len(candles) - 1
	sig := selector.Generate(candles, adaptive, index, cfg.SessionKey)

	price := candles[index].Close
	execCtx.Strategy = activeStrategy(adaptive, sig.ActiveStrategy)
	trade := execution.ExecuteTrade(sig, sig.Confidence, price, portfolio, execCtx)

	event := log.Info().
		Str("action", string(sig.Action)).
		Float64("signal", sig.Signal).
		Float64("confidence", sig.Confidence).
		Str("strategy", sig.ActiveStrategy).
		Float64("price", price).
		Float64("portfolio_value", portfolio.TotalValue)
	if sig.Reason != "" {
		event = event.Str("hold_reason", sig.Reason)
	}
	if trade != nil {
		event = event.Str("trade_id", trade.ID).Float64("amount", trade.Amount)
	}
	event.Msg("Evaluated bar")
}

func activeStrategy(adaptive *models.AdaptiveConfig, name string) *models.StrategyConfig {
	if name == adaptive.Bullish.Name {
		return &adaptive.Bullish
	}
	return &adaptive.Bearish
}

func buildProvider(cfg *config.AppConfig) models.CandleProvider {
	primary := marketdata.NewClient(marketdata.ClientOptions{
		Name:           "primary",
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.APIBaseURL,
		RequestTimeout: cfg.RequestTimeout,
	})
	if cfg.FallbackBaseURL == "" {
		return marketdata.NewFallbackChain(primary)
	}
	fallback := marketdata.NewClient(marketdata.ClientOptions{
		Name:           "fallback",
		APIKey:         cfg.FallbackAPIKey,
		BaseURL:        cfg.FallbackBaseURL,
		RequestTimeout: cfg.RequestTimeout,
	})
	return marketdata.NewFallbackChain(primary, fallback)
}

func setupLogger(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
