package signal

import (
	"github.com/quantisle/papertrader/internal/indicators"
	"github.com/quantisle/papertrader/models"
)

// Parameter fallbacks applied when a config leaves a knob at zero.
const (
	defaultMAPeriod     = 20
	defaultFastPeriod   = 12
	defaultSlowPeriod   = 26
	defaultSignalPeriod = 9
	defaultRSIPeriod    = 14
	defaultBBPeriod     = 20
	defaultBBWidth      = 2.0
	defaultVWAPPeriod   = 20
	defaultOBVPeriod    = 10

	// histScale window: MACD histograms are normalized against the recent
	// price range so the score survives across instruments of any scale
	rangeLookback = 20
)

// Score maps one configured indicator at a bar index to [-1, 1].
// An indicator whose warm-up period has not elapsed contributes 0.
func Score(cfg models.IndicatorConfig, candles []models.Candle, index int) float64 {
	if index < 0 || index >= len(candles) {
		return 0
	}

	window := candles[:index+1]
	closes := indicators.Closes(window)
	price := closes[len(closes)-1]

	switch cfg.Kind {
	case models.IndicatorSMA:
		period := intOr(cfg.Params.Period, defaultMAPeriod)
		if len(closes) < period {
			return 0
		}
		return maScore(price, indicators.SMA(closes, period))

	case models.IndicatorEMA:
		period := intOr(cfg.Params.Period, defaultMAPeriod)
		if len(closes) < period {
			return 0
		}
		return maScore(price, indicators.EMA(closes, period))

	case models.IndicatorVWAP:
		period := intOr(cfg.Params.Period, defaultVWAPPeriod)
		if len(window) < period {
			return 0
		}
		return maScore(price, indicators.VWAP(window, period))

	case models.IndicatorMACD:
		fast := intOr(cfg.Params.FastPeriod, defaultFastPeriod)
		slow := intOr(cfg.Params.SlowPeriod, defaultSlowPeriod)
		signalPeriod := intOr(cfg.Params.SignalPeriod, defaultSignalPeriod)
		if len(closes) < slow+signalPeriod {
			return 0
		}
		_, _, hist := indicators.MACD(closes, fast, slow, signalPeriod)
		return histScore(hist, closes)

	case models.IndicatorVolumeMACD:
		fast := intOr(cfg.Params.FastPeriod, defaultFastPeriod)
		slow := intOr(cfg.Params.SlowPeriod, defaultSlowPeriod)
		signalPeriod := intOr(cfg.Params.SignalPeriod, defaultSignalPeriod)
		if len(window) < slow+signalPeriod {
			return 0
		}
		_, _, hist := indicators.VolumeWeightedMACD(window, fast, slow, signalPeriod)
		return histScore(hist, closes)

	case models.IndicatorRSI:
		period := intOr(cfg.Params.Period, defaultRSIPeriod)
		if len(closes) < period+1 {
			return 0
		}
		return rsiScore(indicators.RSI(closes, period))

	case models.IndicatorBollinger:
		period := intOr(cfg.Params.Period, defaultBBPeriod)
		width := floatOr(cfg.Params.StdDev, defaultBBWidth)
		if len(closes) < period {
			return 0
		}
		upper, _, lower := indicators.Bollinger(closes, period, width)
		return bollingerScore(price, upper, lower)

	case models.IndicatorOBV:
		period := intOr(cfg.Params.Period, defaultOBVPeriod)
		if len(window) < period+1 {
			return 0
		}
		return indicators.OBVDelta(window, period)
	}

	// Unknown indicator kinds contribute nothing
	return 0
}

// Blended is the weighted average of all configured indicator scores,
// normalized by total weight. Weights need not sum to 1. An empty list
// or zero total weight yields 0.
func Blended(strategy *models.StrategyConfig, candles []models.Candle, index int) float64 {
	if strategy == nil || len(strategy.Indicators) == 0 {
		return 0
	}

	var weighted, totalWeight float64
	for _, ind := range strategy.Indicators {
		if ind.Weight <= 0 {
			continue
		}
		weighted += Score(ind, candles, index) * ind.Weight
		totalWeight += ind.Weight
	}
	if totalWeight == 0 {
		return 0
	}
	return weighted / totalWeight
}

// maScore: price above the average is bullish, 10% displacement saturates
func maScore(price, ma float64) float64 {
	if ma == 0 {
		return 0
	}
	return indicators.Clamp((price-ma)/ma*10, -1, 1)
}

// histScore normalizes a MACD histogram by a tenth of the recent price
// range. A degenerate (flat) range scores 0.
func histScore(hist float64, closes []float64) float64 {
	scale := priceRange(closes, rangeLookback) / 10
	if scale == 0 {
		return 0
	}
	return indicators.Clamp(hist/scale, -1, 1)
}

func priceRange(closes []float64, lookback int) float64 {
	if len(closes) == 0 {
		return 0
	}
	start := len(closes) - lookback
	if start < 0 {
		start = 0
	}
	lo, hi := closes[start], closes[start]
	for _, c := range closes[start:] {
		if c < lo {
			lo = c
		}
		if c > hi {
			hi = c
		}
	}
	return hi - lo
}

// rsiScore: overbought is bearish, oversold is bullish, the middle band
// is silent
func rsiScore(rsi float64) float64 {
	switch {
	case rsi > 70:
		return -(rsi - 70) / 30
	case rsi < 30:
		return (30 - rsi) / 30
	default:
		return 0
	}
}

// bollingerScore: touching the upper band is fully bearish, the lower
// band fully bullish, interpolated linearly in between
func bollingerScore(price, upper, lower float64) float64 {
	if price >= upper {
		return -1
	}
	if price <= lower {
		return 1
	}
	band := upper - lower
	if band == 0 {
		return 0
	}
	position := (price - lower) / band
	return 1 - 2*position
}

func intOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func floatOr(v, fallback float64) float64 {
	if v <= 0 {
		return fallback
	}
	return v
}
