package indicators

import (
	"github.com/quantisle/papertrader/models"
)

// VWAP calculates the volume weighted average price of the last period
// bars using typical price (H+L+C)/3. Falls back to the last close when
// the window carries no volume.
func VWAP(candles []models.Candle, period int) float64 {
	if len(candles) == 0 {
		return 0
	}

	start := len(candles) - period
	if period <= 0 || start < 0 {
		start = 0
	}

	var priceVolume, volume float64
	for i := start; i < len(candles); i++ {
		typical := (candles[i].High + candles[i].Low + candles[i].Close) / 3
		priceVolume += typical * candles[i].Volume
		volume += candles[i].Volume
	}

	if volume == 0 {
		return candles[len(candles)-1].Close
	}
	return priceVolume / volume
}

// OBV calculates the cumulative on-balance volume over the whole series
func OBV(candles []models.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}
	if candles[len(candles)-1].Volume == 0 {
		return 0 // No volume data available
	}

	obv := candles[0].Volume
	for i := 1; i < len(candles); i++ {
		if candles[i].Close > candles[i-1].Close {
			obv += candles[i].Volume
		} else if candles[i].Close < candles[i-1].Close {
			obv -= candles[i].Volume
		}
		// Unchanged close leaves OBV untouched
	}
	return obv
}

// OBVDelta reports the net signed volume over the last period bars as a
// fraction of the total volume traded in that window. Bounded in [-1, 1]
// by construction, zero when the window carries no volume.
func OBVDelta(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < 2 {
		return 0
	}

	start := len(candles) - period
	if start < 1 {
		start = 1
	}

	var net, total float64
	for i := start; i < len(candles); i++ {
		v := candles[i].Volume
		total += v
		if candles[i].Close > candles[i-1].Close {
			net += v
		} else if candles[i].Close < candles[i-1].Close {
			net -= v
		}
	}

	if total == 0 {
		return 0
	}
	return net / total
}

// VolumeWeightedMACD calculates MACD over volume weighted moving averages
// so heavily traded bars dominate the lines. Returns zeros when the series
// carries no volume at all.
func VolumeWeightedMACD(candles []models.Candle, fastPeriod, slowPeriod, signalPeriod int) (float64, float64, float64) {
	if len(candles) < slowPeriod+signalPeriod {
		return 0, 0, 0
	}

	priceVolume := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	hasVolume := false
	for i, candle := range candles {
		priceVolume[i] = candle.Close * candle.Volume
		volumes[i] = candle.Volume
		if candle.Volume > 0 {
			hasVolume = true
		}
	}
	if !hasVolume {
		return 0, 0, 0
	}

	fastPV := emaSeries(priceVolume, fastPeriod)
	fastV := emaSeries(volumes, fastPeriod)
	slowPV := emaSeries(priceVolume, slowPeriod)
	slowV := emaSeries(volumes, slowPeriod)

	macdHistory := make([]float64, 0, len(candles)-slowPeriod+1)
	for i := slowPeriod - 1; i < len(candles); i++ {
		var fast, slow float64
		if fastV[i] > 0 {
			fast = fastPV[i] / fastV[i]
		}
		if slowV[i] > 0 {
			slow = slowPV[i] / slowV[i]
		}
		macdHistory = append(macdHistory, fast-slow)
	}

	signal := emaSeries(macdHistory, signalPeriod)

	macdLine := macdHistory[len(macdHistory)-1]
	signalLine := signal[len(signal)-1]
	return macdLine, signalLine, macdLine - signalLine
}
