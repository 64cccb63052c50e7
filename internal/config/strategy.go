package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quantisle/papertrader/models"
)

// LoadAdaptiveFile reads and validates an AdaptiveConfig from a YAML
// file. An empty path yields the documented defaults, so the engine is
// runnable with no files at all.
func LoadAdaptiveFile(path string) (*models.AdaptiveConfig, error) {
	if path == "" {
		return DefaultAdaptiveConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading strategy file: %w", err)
	}

	cfg := DefaultAdaptiveConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing strategy file: %w", err)
	}
	if err := ValidateAdaptiveConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid strategy file %s: %w", path, err)
	}
	return cfg, nil
}

// ValidateAdaptiveConfig rejects configurations the engine cannot run
func ValidateAdaptiveConfig(cfg *models.AdaptiveConfig) error {
	if err := validateStrategy("bullish", &cfg.Bullish); err != nil {
		return err
	}
	if err := validateStrategy("bearish", &cfg.Bearish); err != nil {
		return err
	}
	if cfg.RegimeConfidenceThreshold < 0 || cfg.RegimeConfidenceThreshold > 1 {
		return fmt.Errorf("regime_confidence_threshold must be in [0,1], got %v", cfg.RegimeConfidenceThreshold)
	}
	if cfg.RegimePersistencePeriods < 1 {
		return fmt.Errorf("regime_persistence_periods must be >= 1, got %d", cfg.RegimePersistencePeriods)
	}
	if cfg.MaxVolatility < 0 || cfg.MaxVolatility > 1 {
		return fmt.Errorf("max_volatility must be in [0,1], got %v", cfg.MaxVolatility)
	}
	if cfg.CircuitBreakerWinRate < 0 || cfg.CircuitBreakerWinRate > 1 {
		return fmt.Errorf("circuit_breaker_win_rate must be in [0,1], got %v", cfg.CircuitBreakerWinRate)
	}
	if cfg.CircuitBreakerLookback < 0 {
		return fmt.Errorf("circuit_breaker_lookback must be >= 0, got %d", cfg.CircuitBreakerLookback)
	}
	if cfg.WhipsawMaxChanges > 0 && cfg.WhipsawDetectionPeriods < 2 {
		return fmt.Errorf("whipsaw_detection_periods must be >= 2 when whipsaw detection is on, got %d", cfg.WhipsawDetectionPeriods)
	}
	if cfg.StopLoss != nil && cfg.StopLoss.Enabled && cfg.StopLoss.ATRMultiplier <= 0 {
		return fmt.Errorf("stop_loss.atr_multiplier must be > 0 when enabled")
	}
	if cfg.Kelly != nil && cfg.Kelly.Enabled && cfg.Kelly.MaxMultiplier < cfg.Kelly.MinMultiplier {
		return fmt.Errorf("kelly.max_multiplier below kelly.min_multiplier")
	}
	return nil
}

func validateStrategy(label string, s *models.StrategyConfig) error {
	if s.Name == "" {
		return fmt.Errorf("%s strategy needs a name", label)
	}
	if s.BuyThreshold <= s.SellThreshold {
		return fmt.Errorf("%s strategy buy_threshold must exceed sell_threshold", label)
	}
	if s.MaxPositionFraction <= 0 || s.MaxPositionFraction > 1 {
		return fmt.Errorf("%s strategy max_position_fraction must be in (0,1], got %v", label, s.MaxPositionFraction)
	}
	for i, ind := range s.Indicators {
		if ind.Weight < 0 {
			return fmt.Errorf("%s strategy indicator %d has negative weight", label, i)
		}
		if ind.Kind == "" {
			return fmt.Errorf("%s strategy indicator %d has no kind", label, i)
		}
	}
	return nil
}

// DefaultAdaptiveConfig is the tuned baseline: a momentum-leaning
// bullish book, a mean-reversion-leaning bearish book, and moderate
// risk gates.
func DefaultAdaptiveConfig() *models.AdaptiveConfig {
	return &models.AdaptiveConfig{
		Bullish: models.StrategyConfig{
			Name:      "bullish",
			Timeframe: "1h",
			Indicators: []models.IndicatorConfig{
				{Kind: models.IndicatorEMA, Weight: 0.3, Params: models.IndicatorParams{Period: 20}},
				{Kind: models.IndicatorMACD, Weight: 0.3, Params: models.IndicatorParams{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9}},
				{Kind: models.IndicatorRSI, Weight: 0.2, Params: models.IndicatorParams{Period: 14}},
				{Kind: models.IndicatorOBV, Weight: 0.2, Params: models.IndicatorParams{Period: 10}},
			},
			BuyThreshold:        0.15,
			SellThreshold:       -0.25,
			MaxPositionFraction: 0.5,
		},
		Bearish: models.StrategyConfig{
			Name:      "bearish",
			Timeframe: "1h",
			Indicators: []models.IndicatorConfig{
				{Kind: models.IndicatorRSI, Weight: 0.35, Params: models.IndicatorParams{Period: 14}},
				{Kind: models.IndicatorBollinger, Weight: 0.35, Params: models.IndicatorParams{Period: 20, StdDev: 2}},
				{Kind: models.IndicatorSMA, Weight: 0.3, Params: models.IndicatorParams{Period: 50}},
			},
			BuyThreshold:        0.35,
			SellThreshold:       -0.15,
			MaxPositionFraction: 0.25,
		},
		RegimeConfidenceThreshold:     0.4,
		RegimePersistencePeriods:      3,
		MomentumConfirmationThreshold: 0.1,
		MaxVolatility:                 0.85,
		CircuitBreakerWinRate:         0.35,
		CircuitBreakerLookback:        10,
		WhipsawDetectionPeriods:       8,
		WhipsawMaxChanges:             4,
		DynamicPositionSizing:         true,
		MaxBullishPosition:            1.5,
		MinBearishPosition:            0.5,
		Kelly: &models.KellyConfig{
			Enabled:              true,
			MinTrades:            10,
			FractionalMultiplier: 0.5,
			MaxKellyFraction:     0.5,
			MinMultiplier:        0.25,
			MaxMultiplier:        1.5,
		},
		StopLoss: &models.StopLossConfig{
			Enabled:       true,
			ATRPeriod:     14,
			ATRMultiplier: 2.0,
			Trailing:      true,
		},
	}
}
