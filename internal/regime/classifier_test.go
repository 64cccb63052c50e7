package regime

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantisle/papertrader/models"
)

func seriesFrom(f func(i int) float64, n int) []models.Candle {
	candles := make([]models.Candle, n)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		c := f(i)
		candles[i] = models.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      c, High: c, Low: c, Close: c,
		}
	}
	return candles
}

func TestClassifyWarmupFloor(t *testing.T) {
	classifier := NewClassifier(nil)
	rising := seriesFrom(func(i int) float64 { return 100 + float64(i) }, 100)

	for _, index := range []int{0, 10, 49} {
		sig := classifier.Classify("s", rising, index)
		assert.Equal(t, models.RegimeNeutral, sig.Regime, "index %d", index)
		assert.Zero(t, sig.Confidence, "index %d", index)
	}

	// The floor never touches the cache
	assert.Zero(t, classifier.Cache().Len())

	out := classifier.Classify("s", rising, 100)
	assert.Equal(t, models.RegimeNeutral, out.Regime)
	assert.Zero(t, out.Confidence)
}

func TestClassifyDirectionalRegimes(t *testing.T) {
	classifier := NewClassifier(nil)

	// Steady 0.5% per-bar climb: trend and momentum agree upward
	bull := seriesFrom(func(i int) float64 { return 100 * math.Pow(1.005, float64(i)) }, 80)
	sig := classifier.Classify("bull", bull, 79)
	assert.Equal(t, models.RegimeBullish, sig.Regime)
	assert.Greater(t, sig.Confidence, 0.0)
	assert.Greater(t, sig.Indicators.Trend, 0.0)
	assert.Greater(t, sig.Indicators.Momentum, 0.0)

	bear := seriesFrom(func(i int) float64 { return 100 * math.Pow(0.995, float64(i)) }, 80)
	sig = classifier.Classify("bear", bear, 79)
	assert.Equal(t, models.RegimeBearish, sig.Regime)
	assert.Less(t, sig.Indicators.Trend, 0.0)

	flat := seriesFrom(func(i int) float64 { return 100 }, 80)
	sig = classifier.Classify("flat", flat, 79)
	assert.Equal(t, models.RegimeNeutral, sig.Regime)
	assert.Greater(t, sig.Confidence, 0.5) // quiet drivers mean confident neutrality
	assert.Zero(t, sig.Indicators.Volatility)
}

func TestClassifyBounds(t *testing.T) {
	classifier := NewClassifier(nil)
	wild := seriesFrom(func(i int) float64 {
		if i%2 == 0 {
			return 100
		}
		return 140
	}, 80)

	sig := classifier.Classify("wild", wild, 79)
	assert.GreaterOrEqual(t, sig.Indicators.Trend, -1.0)
	assert.LessOrEqual(t, sig.Indicators.Trend, 1.0)
	assert.GreaterOrEqual(t, sig.Indicators.Momentum, -1.0)
	assert.LessOrEqual(t, sig.Indicators.Momentum, 1.0)
	assert.GreaterOrEqual(t, sig.Indicators.Volatility, 0.0)
	assert.LessOrEqual(t, sig.Indicators.Volatility, 1.0)
	assert.GreaterOrEqual(t, sig.Confidence, 0.0)
	assert.LessOrEqual(t, sig.Confidence, 1.0)
}

func TestClassifyIdempotentThroughCache(t *testing.T) {
	classifier := NewClassifier(nil)
	rising := seriesFrom(func(i int) float64 { return 100 + float64(i) }, 120)

	first := classifier.Classify("s", rising, 80)
	require.Equal(t, 1, classifier.Cache().Len())
	second := classifier.Classify("s", rising, 80)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, classifier.Cache().Len())
}

func TestCacheIsSeriesScoped(t *testing.T) {
	cache := NewCache()
	classifier := NewClassifier(cache)

	rising := seriesFrom(func(i int) float64 { return 100 + float64(i) }, 120)
	falling := seriesFrom(func(i int) float64 { return 220 - float64(i) }, 120)

	up := classifier.Classify("up", rising, 80)
	down := classifier.Classify("down", falling, 80)
	assert.NotEqual(t, up.Regime, down.Regime)
	assert.Equal(t, 2, cache.Len())

	// A colliding key would serve another series' result: the documented
	// reason Clear must run between runs
	stale := classifier.Classify("up", falling, 80)
	assert.Equal(t, up, stale)

	cache.Clear()
	assert.Zero(t, cache.Len())
	fresh := classifier.Classify("up", falling, 80)
	assert.Equal(t, down.Regime, fresh.Regime)
}
