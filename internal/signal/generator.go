package signal

import (
	"math"

	"github.com/quantisle/papertrader/internal/indicators"
	"github.com/quantisle/papertrader/models"
)

// volWindow is the return window feeding the confidence dampener
const volWindow = 20

// Generate evaluates one fixed strategy at a bar index: blend the
// indicator scores, compare against the strategy thresholds and attach
// the execution confidence. Out-of-range indices yield a hold signal.
func Generate(candles []models.Candle, strategy *models.StrategyConfig, index int) models.TradingSignal {
	sig := models.TradingSignal{
		Action:                 models.ActionHold,
		PositionSizeMultiplier: 1.0,
	}
	if strategy != nil {
		sig.ActiveStrategy = strategy.Name
	}
	if strategy == nil || index < 0 || index >= len(candles) {
		return sig
	}
	sig.Timestamp = candles[index].Timestamp

	// No configured indicators means no opinion, whatever the thresholds say
	if len(strategy.Indicators) == 0 {
		return sig
	}
	sig.Signal = Blended(strategy, candles, index)
	sig.Confidence = Confidence(sig.Signal, candles, index)

	switch {
	case sig.Signal >= strategy.BuyThreshold:
		sig.Action = models.ActionBuy
	case sig.Signal <= strategy.SellThreshold:
		sig.Action = models.ActionSell
	}
	return sig
}

// Confidence derives the execution confidence for a signal value: the
// signal magnitude, dampened as recent volatility rises. Calm tape
// executes at full conviction, violent tape at half.
func Confidence(signalValue float64, candles []models.Candle, index int) float64 {
	if index < 0 || index >= len(candles) {
		return 0
	}
	closes := indicators.Closes(candles[:index+1])
	vol := indicators.VolatilityIndex(closes, volWindow)
	return indicators.Clamp(math.Abs(signalValue)*(1-0.5*vol), 0, 1)
}
