package regime

import (
	"math"

	"github.com/quantisle/papertrader/internal/indicators"
	"github.com/quantisle/papertrader/models"
)

const (
	// MinHistory is the hard floor: below this many bars of history every
	// classification is neutral with zero confidence.
	MinHistory = 50

	trendWindow      = 50
	volatilityWindow = 20

	// agreementThreshold is what trend and momentum must both clear, with
	// the same sign, before a directional regime is declared
	agreementThreshold = 0.1
)

// Classifier labels market regimes from price history. All state lives in
// the injected cache, so one classifier can serve many series as long as
// the callers key them distinctly.
type Classifier struct {
	cache *Cache
}

// NewClassifier wraps the given cache; a nil cache gets a fresh one
func NewClassifier(cache *Cache) *Classifier {
	if cache == nil {
		cache = NewCache()
	}
	return &Classifier{cache: cache}
}

// Cache exposes the underlying classification cache for reset hooks
func (c *Classifier) Cache() *Cache {
	return c.cache
}

// Classify labels the regime at a bar index. Indices inside the warm-up
// floor return a neutral signal with zero confidence rather than an error.
func (c *Classifier) Classify(seriesID string, candles []models.Candle, index int) models.RegimeSignal {
	if index < MinHistory || index >= len(candles) {
		return models.RegimeSignal{Regime: models.RegimeNeutral}
	}

	if sig, ok := c.cache.Get(seriesID, index); ok {
		return sig
	}

	sig := classify(candles[:index+1])
	c.cache.Put(seriesID, index, sig)
	return sig
}

func classify(window []models.Candle) models.RegimeSignal {
	closes := indicators.Closes(window)

	trend := trendScore(closes)
	momentum := momentumScore(closes)
	volatility := indicators.VolatilityIndex(closes, volatilityWindow)

	regime := models.RegimeNeutral
	switch {
	case trend > agreementThreshold && momentum > agreementThreshold:
		regime = models.RegimeBullish
	case trend < -agreementThreshold && momentum < -agreementThreshold:
		regime = models.RegimeBearish
	}

	// Directional confidence grows with the magnitude of agreement;
	// neutral confidence grows as both drivers go quiet
	strength := (math.Abs(trend) + math.Abs(momentum)) / 2
	confidence := strength
	if regime == models.RegimeNeutral {
		confidence = 1 - strength
	}

	return models.RegimeSignal{
		Regime:     regime,
		Confidence: indicators.Clamp(confidence, 0, 1),
		Indicators: models.RegimeIndicators{
			Trend:      trend,
			Momentum:   momentum,
			Volatility: volatility,
		},
	}
}

// trendScore is the least squares slope of the last trendWindow closes,
// taken as a per-bar percentage of the window mean. Sustained drift of 1%
// per bar saturates the score.
func trendScore(closes []float64) float64 {
	window := closes
	if len(window) > trendWindow {
		window = window[len(window)-trendWindow:]
	}
	mean := indicators.Mean(window)
	if mean == 0 {
		return 0
	}
	return indicators.Clamp(indicators.Slope(window)/mean*100, -1, 1)
}

// momentumScore blends the rate of change over 5, 10 and 20 bars with the
// shorter horizons weighted more heavily. A 10% blended move saturates.
func momentumScore(closes []float64) float64 {
	blended := indicators.ROC(closes, 5)*0.5 +
		indicators.ROC(closes, 10)*0.3 +
		indicators.ROC(closes, 20)*0.2
	return indicators.Clamp(blended*10, -1, 1)
}
