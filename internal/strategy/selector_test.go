package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantisle/papertrader/internal/regime"
	"github.com/quantisle/papertrader/models"
)

// fallingCandles produce an oversold RSI(3) at the tail so the bearish
// and bullish books below both see a maximal buy score
func fallingCandles(n int) []models.Candle {
	candles := make([]models.Candle, n)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		c := 1000 - float64(i)
		candles[i] = models.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      c, High: c, Low: c, Close: c,
		}
	}
	return candles
}

func testAdaptiveConfig() *models.AdaptiveConfig {
	rsi := []models.IndicatorConfig{
		{Kind: models.IndicatorRSI, Weight: 1, Params: models.IndicatorParams{Period: 3}},
	}
	return &models.AdaptiveConfig{
		Bullish: models.StrategyConfig{
			Name: "bull", Indicators: rsi,
			BuyThreshold: 0.5, SellThreshold: -0.5, MaxPositionFraction: 0.5,
		},
		Bearish: models.StrategyConfig{
			Name: "bear", Indicators: rsi,
			BuyThreshold: 0.5, SellThreshold: -0.5, MaxPositionFraction: 0.25,
		},
		RegimeConfidenceThreshold:     0.3,
		RegimePersistencePeriods:      1,
		MomentumConfirmationThreshold: 0.2,
		MaxVolatility:                 0.8,
		CircuitBreakerWinRate:         0.4,
		CircuitBreakerLookback:        5,
		WhipsawDetectionPeriods:       6,
		WhipsawMaxChanges:             3,
	}
}

// primeRegime plants a classification in the cache so the selector sees
// a chosen regime without needing a price series that produces it
func primeRegime(c *regime.Classifier, key string, index int, sig models.RegimeSignal) {
	c.Cache().Put(key, index, sig)
}

func bullishRegime(confidence, momentum, volatility float64) models.RegimeSignal {
	return models.RegimeSignal{
		Regime:     models.RegimeBullish,
		Confidence: confidence,
		Indicators: models.RegimeIndicators{Trend: 0.5, Momentum: momentum, Volatility: volatility},
	}
}

func TestGenerateBullishBuy(t *testing.T) {
	selector := NewSelector(nil, nil)
	candles := fallingCandles(60)
	cfg := testAdaptiveConfig()

	primeRegime(selector.Classifier(), "s1", 59, bullishRegime(0.9, 0.5, 0.1))

	sig := selector.Generate(candles, cfg, 59, "s1")
	assert.Equal(t, models.ActionBuy, sig.Action)
	assert.Equal(t, "bull", sig.ActiveStrategy)
	assert.True(t, sig.MomentumConfirmed)
	assert.Equal(t, 1.0, sig.PositionSizeMultiplier)
	assert.Empty(t, sig.Reason)
}

func TestVolatilityFilterForcesHold(t *testing.T) {
	selector := NewSelector(nil, nil)
	candles := fallingCandles(60)
	cfg := testAdaptiveConfig()

	primeRegime(selector.Classifier(), "s1", 59, bullishRegime(0.9, 0.5, 0.95))

	sig := selector.Generate(candles, cfg, 59, "s1")
	assert.Equal(t, models.ActionHold, sig.Action)
	assert.Equal(t, HoldReasonVolatility, sig.Reason)
	assert.Zero(t, sig.Signal)
}

func TestCircuitBreakerForcesHold(t *testing.T) {
	selector := NewSelector(nil, nil)
	candles := fallingCandles(60)
	cfg := testAdaptiveConfig()

	// One win in a full five-outcome window: 20% < 40% threshold
	for _, win := range []bool{true, false, false, false, false} {
		selector.RecordOutcome("s1", win, cfg)
	}
	primeRegime(selector.Classifier(), "s1", 59, bullishRegime(0.9, 0.5, 0.1))

	sig := selector.Generate(candles, cfg, 59, "s1")
	assert.Equal(t, models.ActionHold, sig.Action)
	assert.Equal(t, HoldReasonCircuitBreaker, sig.Reason)

	// A different session is unaffected
	primeRegime(selector.Classifier(), "s2", 59, bullishRegime(0.9, 0.5, 0.1))
	sig = selector.Generate(candles, cfg, 59, "s2")
	assert.Equal(t, models.ActionBuy, sig.Action)
}

func TestCircuitBreakerNeedsFullWindow(t *testing.T) {
	selector := NewSelector(nil, nil)
	candles := fallingCandles(60)
	cfg := testAdaptiveConfig()

	// Three straight losses, but the five-outcome window is not full
	for i := 0; i < 3; i++ {
		selector.RecordOutcome("s1", false, cfg)
	}
	primeRegime(selector.Classifier(), "s1", 59, bullishRegime(0.9, 0.5, 0.1))

	sig := selector.Generate(candles, cfg, 59, "s1")
	assert.Equal(t, models.ActionBuy, sig.Action)
}

func TestWhipsawForcesHold(t *testing.T) {
	selector := NewSelector(nil, nil)
	candles := fallingCandles(60)
	cfg := testAdaptiveConfig()

	// Alternate the classified regime across bars 54..59: five label
	// changes in a six-bar window clears the three-change limit
	for i := 54; i <= 59; i++ {
		sig := bullishRegime(0.9, 0.5, 0.1)
		if i%2 == 0 {
			sig.Regime = models.RegimeBearish
		}
		primeRegime(selector.Classifier(), "s1", i, sig)
	}

	var last models.TradingSignal
	for i := 54; i <= 59; i++ {
		last = selector.Generate(candles, cfg, i, "s1")
	}
	assert.Equal(t, models.ActionHold, last.Action)
	assert.Equal(t, HoldReasonWhipsaw, last.Reason)
}

func TestRegimePersistenceFallsBackToBearish(t *testing.T) {
	selector := NewSelector(nil, nil)
	candles := fallingCandles(60)
	cfg := testAdaptiveConfig()
	cfg.RegimePersistencePeriods = 3

	// Two neutral bars then one bullish bar: only one bullish in the
	// last three, so the bullish book stays shelved
	primeRegime(selector.Classifier(), "s1", 57, models.RegimeSignal{Regime: models.RegimeNeutral, Confidence: 0.9})
	primeRegime(selector.Classifier(), "s1", 58, models.RegimeSignal{Regime: models.RegimeNeutral, Confidence: 0.9})
	primeRegime(selector.Classifier(), "s1", 59, bullishRegime(0.9, 0.5, 0.1))

	selector.Generate(candles, cfg, 57, "s1")
	selector.Generate(candles, cfg, 58, "s1")
	sig := selector.Generate(candles, cfg, 59, "s1")
	assert.Equal(t, "bear", sig.ActiveStrategy)
	assert.Equal(t, models.ActionBuy, sig.Action) // still trades, just conservatively
}

func TestLowConfidenceFallsBackToBearish(t *testing.T) {
	selector := NewSelector(nil, nil)
	candles := fallingCandles(60)
	cfg := testAdaptiveConfig()

	primeRegime(selector.Classifier(), "s1", 59, bullishRegime(0.1, 0.5, 0.1))

	sig := selector.Generate(candles, cfg, 59, "s1")
	assert.Equal(t, "bear", sig.ActiveStrategy)
}

func TestMomentumConfirmationGate(t *testing.T) {
	selector := NewSelector(nil, nil)
	candles := fallingCandles(60)
	cfg := testAdaptiveConfig()

	// Bullish and confident, but momentum below the confirmation bar
	primeRegime(selector.Classifier(), "s1", 59, bullishRegime(0.9, 0.05, 0.1))

	sig := selector.Generate(candles, cfg, 59, "s1")
	assert.False(t, sig.MomentumConfirmed)
	assert.Equal(t, "bear", sig.ActiveStrategy)
}

func TestWarmupFloorTradesConservatively(t *testing.T) {
	selector := NewSelector(nil, nil)
	candles := fallingCandles(60)
	cfg := testAdaptiveConfig()

	// Below the classifier's history floor everything is neutral
	sig := selector.Generate(candles, cfg, 30, "s1")
	assert.Equal(t, "bear", sig.ActiveStrategy)
}

func TestDynamicPositionSizing(t *testing.T) {
	selector := NewSelector(nil, nil)
	candles := fallingCandles(60)
	cfg := testAdaptiveConfig()
	cfg.DynamicPositionSizing = true
	cfg.MaxBullishPosition = 1.5
	cfg.MinBearishPosition = 0.5

	primeRegime(selector.Classifier(), "bull-s", 59, bullishRegime(1.0, 0.5, 0.1))
	sig := selector.Generate(candles, cfg, 59, "bull-s")
	assert.InDelta(t, 1.5, sig.PositionSizeMultiplier, 1e-9)

	bearish := models.RegimeSignal{
		Regime:     models.RegimeBearish,
		Confidence: 1.0,
		Indicators: models.RegimeIndicators{Trend: -0.5, Momentum: -0.5, Volatility: 0.1},
	}
	primeRegime(selector.Classifier(), "bear-s", 59, bearish)
	sig = selector.Generate(candles, cfg, 59, "bear-s")
	assert.InDelta(t, 0.5, sig.PositionSizeMultiplier, 1e-9)
	assert.GreaterOrEqual(t, sig.PositionSizeMultiplier, 0.0)
	assert.LessOrEqual(t, sig.PositionSizeMultiplier, 2.0)
}

func TestGenerateDegenerateInputs(t *testing.T) {
	selector := NewSelector(nil, nil)
	candles := fallingCandles(60)

	sig := selector.Generate(candles, nil, 59, "s1")
	assert.Equal(t, models.ActionHold, sig.Action)

	sig = selector.Generate(candles, testAdaptiveConfig(), 99, "s1")
	assert.Equal(t, models.ActionHold, sig.Action)
}

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()

	a := store.Get("a", 5)
	a.RecordOutcome(true)
	assert.Same(t, a, store.Get("a", 5))

	b := store.Get("b", 5)
	assert.NotSame(t, a, b)

	store.Clear("a")
	assert.NotSame(t, a, store.Get("a", 5))

	store.Get("c", 5).RecordOutcome(false)
	store.ClearAll()
	fresh := store.Get("c", 5)
	_, full := fresh.WinRate()
	assert.False(t, full)
	assert.Zero(t, fresh.RegimeChanges(10))
}

func TestSessionStateWindows(t *testing.T) {
	s := &SessionState{lookback: 3}

	for _, win := range []bool{false, false, true, true, true} {
		s.RecordOutcome(win)
	}
	// Window trimmed to the last three outcomes, all wins
	rate, full := s.WinRate()
	assert.True(t, full)
	assert.Equal(t, 1.0, rate)

	for _, r := range []models.Regime{
		models.RegimeNeutral, models.RegimeBullish, models.RegimeBullish, models.RegimeBearish,
	} {
		s.RecordRegime(r)
	}
	assert.Equal(t, 2, s.RegimeChanges(4))
	assert.Equal(t, 1, s.RegimeChanges(2))
	assert.True(t, s.RegimePersisted(models.RegimeBearish, 1))
	assert.False(t, s.RegimePersisted(models.RegimeBearish, 2))
	assert.True(t, s.RegimePersisted(models.RegimeBullish, 0))
}

func TestSessionStoreShrinkingLookback(t *testing.T) {
	store := NewSessionStore()

	s := store.Get("k", 5)
	for _, win := range []bool{false, false, false, true, true} {
		s.RecordOutcome(win)
	}
	rate, full := s.WinRate()
	assert.True(t, full)
	assert.InDelta(t, 0.4, rate, 1e-9)

	// Shrinking the lookback re-trims to the newest outcomes
	s = store.Get("k", 2)
	rate, full = s.WinRate()
	assert.True(t, full)
	assert.Equal(t, 1.0, rate)

	// Growing it leaves the window partial until it refills
	s = store.Get("k", 4)
	_, full = s.WinRate()
	assert.False(t, full)
}
