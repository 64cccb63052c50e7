package indicators

import "math"

// Mean is the arithmetic mean, zero for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev is the population standard deviation, zero for an empty slice
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	var variance float64
	for _, v := range values {
		variance += math.Pow(v-mean, 2)
	}
	return math.Sqrt(variance / float64(len(values)))
}

// Returns converts a close series into simple bar over bar returns
func Returns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}
	return returns
}

// Slope is the least squares regression slope per bar over the values
func Slope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}

	meanX := float64(n-1) / 2
	meanY := Mean(values)

	var num, den float64
	for i, v := range values {
		dx := float64(i) - meanX
		num += dx * (v - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// ROC is the fractional rate of change over the last lookback bars
func ROC(closes []float64, lookback int) float64 {
	if lookback <= 0 || len(closes) < lookback+1 {
		return 0
	}
	base := closes[len(closes)-1-lookback]
	if base == 0 {
		return 0
	}
	return (closes[len(closes)-1] - base) / base
}

// VolatilityIndex is the dispersion of the last window bar returns
// normalized to [0, 1]. A 5% per-bar standard deviation saturates the
// index. Returns 0 while the window has not filled.
func VolatilityIndex(closes []float64, window int) float64 {
	if window <= 0 || len(closes) < window+1 {
		return 0
	}
	returns := Returns(closes[len(closes)-window-1:])
	return Clamp(StdDev(returns)*20, 0, 1)
}

// Clamp bounds v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
