package risk

import (
	"github.com/quantisle/papertrader/internal/indicators"
	"github.com/quantisle/papertrader/models"
)

// defaultMinTrades is the sample floor below which the Kelly edge
// estimate is statistical noise
const defaultMinTrades = 10

// KellyResult summarizes the trade sample behind a Kelly fraction
type KellyResult struct {
	KellyPercentage float64 `json:"kelly_percentage"` // clamped f*
	WinRate         float64 `json:"win_rate"`
	AvgWin          float64 `json:"avg_win"`
	AvgLoss         float64 `json:"avg_loss"` // positive magnitude
	SampleSize      int     `json:"sample_size"`
}

// CalculateKellyCriterion estimates the Kelly fraction from the realized
// P&L of closed trades. Only sells carry realized P&L; buys are skipped.
// Returns nil while the sample is below the configured minimum, which
// callers treat as "no opinion yet", not an error.
func CalculateKellyCriterion(trades []models.Trade, cfg *models.KellyConfig) *KellyResult {
	minTrades := defaultMinTrades
	if cfg != nil && cfg.MinTrades > 0 {
		minTrades = cfg.MinTrades
	}

	var wins, losses []float64
	for _, t := range trades {
		if t.Type != models.TradeSell {
			continue
		}
		switch {
		case t.PnL > 0:
			wins = append(wins, t.PnL)
		case t.PnL < 0:
			losses = append(losses, -t.PnL)
		}
	}

	sample := len(wins) + len(losses)
	if sample < minTrades {
		return nil
	}

	p := float64(len(wins)) / float64(sample)
	avgWin := indicators.Mean(wins)
	avgLoss := indicators.Mean(losses)

	// f* = p - (1-p)/(W/L). All-win and all-loss samples degenerate to
	// the corresponding extreme without dividing by zero.
	var kelly float64
	switch {
	case avgLoss == 0:
		kelly = p
	case avgWin == 0:
		kelly = 0
	default:
		kelly = p - (1-p)/(avgWin/avgLoss)
	}

	maxFraction := 0.5
	if cfg != nil && cfg.MaxKellyFraction > 0 {
		maxFraction = cfg.MaxKellyFraction
	}

	return &KellyResult{
		KellyPercentage: indicators.Clamp(kelly, 0, maxFraction),
		WinRate:         p,
		AvgWin:          avgWin,
		AvgLoss:         avgLoss,
		SampleSize:      sample,
	}
}

// KellyMultiplier converts a Kelly result into a position-size multiplier:
// fractional Kelly (f* x fractional multiplier) relative to the strategy's
// base position fraction, clamped to the configured multiplier band.
// A nil result or disabled config sizes at 1.0.
func KellyMultiplier(result *KellyResult, cfg *models.KellyConfig, basePositionFraction float64) float64 {
	if result == nil || cfg == nil || !cfg.Enabled || basePositionFraction <= 0 {
		return 1.0
	}

	fractional := cfg.FractionalMultiplier
	if fractional <= 0 {
		fractional = 0.5 // half-Kelly
	}

	minMult := cfg.MinMultiplier
	maxMult := cfg.MaxMultiplier
	if maxMult <= 0 {
		maxMult = 1.5
	}

	return indicators.Clamp(result.KellyPercentage*fractional/basePositionFraction, minMult, maxMult)
}
