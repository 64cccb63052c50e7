package risk

import (
	"github.com/quantisle/papertrader/models"
)

// Exit reasons reported by the stop-loss engine
const (
	ExitReasonStopLoss     = "stop-loss"
	ExitReasonTrailingStop = "trailing-stop"
)

// StopCheck is the per-bar verdict for one open position
type StopCheck struct {
	Position   *models.OpenPosition
	ShouldExit bool
	StopPrice  float64
	Reason     string
}

// StopLossPrice computes the initial stop for a long entry. A disabled
// config or a zero ATR yields 0, the "no stop" sentinel.
func StopLossPrice(entryPrice, atr float64, cfg *models.StopLossConfig) float64 {
	if cfg == nil || !cfg.Enabled || atr <= 0 {
		return 0
	}
	stop := entryPrice - atr*cfg.ATRMultiplier
	if stop < 0 {
		return 0
	}
	return stop
}

// NewOpenPosition opens stop tracking for a buy fill. Nil when stops are
// disabled, so callers can append the result unconditionally.
func NewOpenPosition(buyTrade *models.Trade, entryPrice, atr float64, cfg *models.StopLossConfig) *models.OpenPosition {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return &models.OpenPosition{
		BuyTrade:      buyTrade,
		EntryPrice:    entryPrice,
		StopLossPrice: StopLossPrice(entryPrice, atr, cfg),
		HighestPrice:  entryPrice,
		ATRAtEntry:    atr,
	}
}

// UpdateStopLoss advances one position by one bar: trail the stop if
// configured, then test the exit. The stop price never moves down; a
// falling candidate stop is ignored.
func UpdateStopLoss(position *models.OpenPosition, currentPrice, atr float64, cfg *models.StopLossConfig) StopCheck {
	check := StopCheck{Position: position}
	if position == nil || cfg == nil || !cfg.Enabled {
		return check
	}

	if cfg.Trailing && currentPrice > position.HighestPrice {
		position.HighestPrice = currentPrice
		trailATR := atr
		if trailATR <= 0 {
			trailATR = position.ATRAtEntry
		}
		candidate := position.HighestPrice - trailATR*cfg.ATRMultiplier
		if candidate > position.StopLossPrice {
			position.StopLossPrice = candidate
			position.Trailed = true
		}
	}

	check.StopPrice = position.StopLossPrice
	if position.StopLossPrice > 0 && currentPrice <= position.StopLossPrice {
		check.ShouldExit = true
		check.Reason = ExitReasonStopLoss
		if position.Trailed {
			check.Reason = ExitReasonTrailingStop
		}
	}
	return check
}

// CheckStopLosses sweeps every open position at the current bar. Each
// position is judged on its own stop; positions do not interact.
func CheckStopLosses(positions []*models.OpenPosition, currentPrice, atr float64, cfg *models.StopLossConfig) []StopCheck {
	if len(positions) == 0 {
		return nil
	}
	checks := make([]StopCheck, 0, len(positions))
	for _, pos := range positions {
		checks = append(checks, UpdateStopLoss(pos, currentPrice, atr, cfg))
	}
	return checks
}

// VolatilityAdjustedSize shrinks a base position size as short-term ATR
// outruns its long-term baseline, and nudges it up in quiet tape.
func VolatilityAdjustedSize(baseSize, shortATR, longATR float64) float64 {
	if longATR <= 0 || shortATR <= 0 {
		return baseSize
	}
	ratio := shortATR / longATR
	if ratio > 1.5 {
		return baseSize / ratio
	}
	if ratio < 0.7 {
		return baseSize * 1.2
	}
	return baseSize
}
