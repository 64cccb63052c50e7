package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantisle/papertrader/internal/backtest"
	"github.com/quantisle/papertrader/internal/config"
	"github.com/quantisle/papertrader/internal/marketdata"
	"github.com/quantisle/papertrader/internal/storage"
	"github.com/quantisle/papertrader/models"
)

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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	provider := buildProvider(cfg)
	count := models.CandlesForWindow(cfg.Interval, cfg.BacktestDays)
	candles, err := provider.Candles(ctx, cfg.Symbol, cfg.Interval, count)
	if err != nil {
		log.Fatal().Err(err).Msg("Fetching historical candles")
	}
	log.Info().Int("candles", len(candles)).Str("symbol", cfg.Symbol).Msg("Historical data loaded")

	engine := backtest.NewEngine(nil, adaptive, cfg.FeeRate)
	engine.Reset()

	started := time.Now()
	result, err := engine.Run(candles, cfg.Symbol, cfg.Interval, cfg.SessionKey, cfg.InitialCapital)
	if err != nil {
		log.Fatal().Err(err).Msg("Running backtest")
	}

	fmt.Print(result.Report())

	if cfg.DatabaseURL != "" {
		persist(cfg, result, started)
	}
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

func persist(cfg *config.AppConfig, result *backtest.Result, started time.Time) {
	store, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		log.Error().Err(err).Msg("Opening storage, skipping persistence")
		return
	}
	defer store.Close()

	runID, err := store.SaveRun(&storage.RunRecord{
		Symbol:         result.Symbol,
		Interval:       result.Interval,
		StartedAt:      started,
		FinishedAt:     time.Now(),
		InitialCapital: result.Portfolio.InitialCapital,
		FinalValue:     result.Portfolio.TotalValue,
		TradeCount:     result.Portfolio.TradeCount,
		WinCount:       result.Portfolio.WinCount,
		Metrics:        result.Metrics,
	})
	if err != nil {
		log.Error().Err(err).Msg("Saving run")
		return
	}
	if err := store.SaveTrades(runID, result.Trades); err != nil {
		log.Error().Err(err).Msg("Saving trades")
	}
}

func setupLogger(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
