package indicators

import (
	"math"

	"github.com/quantisle/papertrader/models"
)

// Closes extracts the close series from candles
func Closes(candles []models.Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, candle := range candles {
		closes[i] = candle.Close
	}
	return closes
}

// SMA calculates the simple moving average of the last period closes
func SMA(closes []float64, period int) float64 {
	if len(closes) == 0 {
		return 0
	}
	if period <= 0 || len(closes) < period {
		return closes[len(closes)-1] // Return last close if not enough data
	}

	var sum float64
	for i := len(closes) - period; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(period)
}

// EMA calculates the exponential moving average, seeded with the SMA of
// the first period closes
func EMA(closes []float64, period int) float64 {
	if len(closes) == 0 {
		return 0
	}
	if period <= 1 || len(closes) < period {
		return closes[len(closes)-1] // Return last close if not enough data
	}

	series := emaSeries(closes, period)
	return series[len(series)-1]
}

// emaSeries returns the running EMA at every index. The prefix before the
// seed window settles is an expanding mean, so every index is defined.
func emaSeries(prices []float64, period int) []float64 {
	n := len(prices)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if period <= 1 || n < period {
		copy(out, prices)
		return out
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
		out[i] = sum / float64(i+1)
	}

	multiplier := 2.0 / float64(period+1)
	for i := period; i < n; i++ {
		out[i] = (prices[i]-out[i-1])*multiplier + out[i-1]
	}
	return out
}

// MACD calculates the MACD line, signal line and histogram for the last bar
func MACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int) (float64, float64, float64) {
	// Cannot calculate MACD with insufficient data
	if len(closes) < slowPeriod+signalPeriod {
		return 0, 0, 0
	}

	fast := emaSeries(closes, fastPeriod)
	slow := emaSeries(closes, slowPeriod)

	macdHistory := make([]float64, 0, len(closes)-slowPeriod+1)
	for i := slowPeriod - 1; i < len(closes); i++ {
		macdHistory = append(macdHistory, fast[i]-slow[i])
	}

	signal := emaSeries(macdHistory, signalPeriod)

	macdLine := macdHistory[len(macdHistory)-1]
	signalLine := signal[len(signal)-1]
	return macdLine, signalLine, macdLine - signalLine
}

// RSI calculates the relative strength index with Wilder smoothing
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50.0 // Neutral value if not enough data
	}

	var gains, losses float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		var gain, loss float64
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgGain == 0 && avgLoss == 0 {
		return 50.0 // Flat series has no direction
	}
	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// Bollinger calculates the Bollinger Bands for the last bar
func Bollinger(closes []float64, period int, width float64) (float64, float64, float64) {
	if len(closes) == 0 {
		return 0, 0, 0
	}
	if period <= 0 || len(closes) < period {
		last := closes[len(closes)-1]
		return last, last, last // Return last close if not enough data
	}

	var sum float64
	for i := len(closes) - period; i < len(closes); i++ {
		sum += closes[i]
	}
	middle := sum / float64(period)

	var variance float64
	for i := len(closes) - period; i < len(closes); i++ {
		variance += math.Pow(closes[i]-middle, 2)
	}
	sd := math.Sqrt(variance / float64(period))

	upper := middle + (sd * width)
	lower := middle - (sd * width)
	return upper, middle, lower
}

// ATR calculates the average true range over the last period bars
func ATR(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}

	trueRanges := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		// True Range is the greatest of:
		// 1. Current High - Current Low
		// 2. Abs(Current High - Previous Close)
		// 3. Abs(Current Low - Previous Close)
		highLow := candles[i].High - candles[i].Low
		highPrevClose := math.Abs(candles[i].High - candles[i-1].Close)
		lowPrevClose := math.Abs(candles[i].Low - candles[i-1].Close)

		trueRanges = append(trueRanges, math.Max(highLow, math.Max(highPrevClose, lowPrevClose)))
	}

	var sum float64
	for i := len(trueRanges) - period; i < len(trueRanges); i++ {
		sum += trueRanges[i]
	}
	return sum / float64(period)
}
