package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantisle/papertrader/models"
)

func TestStopLossPrice(t *testing.T) {
	cfg := &models.StopLossConfig{Enabled: true, ATRMultiplier: 2.0}

	assert.Equal(t, 900.0, StopLossPrice(1000, 50, cfg))

	// Disabled, absent or ATR-less configs return the inactive sentinel
	assert.Zero(t, StopLossPrice(1000, 50, nil))
	assert.Zero(t, StopLossPrice(1000, 50, &models.StopLossConfig{Enabled: false, ATRMultiplier: 2}))
	assert.Zero(t, StopLossPrice(1000, 0, cfg))

	// A stop below zero makes no sense for a price
	assert.Zero(t, StopLossPrice(10, 50, cfg))
}

func TestNewOpenPosition(t *testing.T) {
	buy := &models.Trade{Type: models.TradeBuy, Price: 1000, Amount: 0.5}
	cfg := &models.StopLossConfig{Enabled: true, ATRMultiplier: 2.0}

	pos := NewOpenPosition(buy, 1000, 50, cfg)
	require.NotNil(t, pos)
	assert.Equal(t, 900.0, pos.StopLossPrice)
	assert.Equal(t, 1000.0, pos.HighestPrice)
	assert.Equal(t, 50.0, pos.ATRAtEntry)
	assert.Same(t, buy, pos.BuyTrade)

	assert.Nil(t, NewOpenPosition(buy, 1000, 50, nil))
	assert.Nil(t, NewOpenPosition(buy, 1000, 50, &models.StopLossConfig{Enabled: false}))
}

func TestFixedStopScenario(t *testing.T) {
	// Entry 1000, ATR 50, multiplier 2, no trailing: stop sits at 900
	cfg := &models.StopLossConfig{Enabled: true, ATRMultiplier: 2.0, Trailing: false}
	pos := NewOpenPosition(&models.Trade{}, 1000, 50, cfg)
	require.Equal(t, 900.0, pos.StopLossPrice)

	check := UpdateStopLoss(pos, 890, 50, cfg)
	assert.True(t, check.ShouldExit)
	assert.Equal(t, ExitReasonStopLoss, check.Reason)

	pos = NewOpenPosition(&models.Trade{}, 1000, 50, cfg)
	check = UpdateStopLoss(pos, 950, 50, cfg)
	assert.False(t, check.ShouldExit)
	assert.Empty(t, check.Reason)

	// Without trailing, new highs never move the stop
	check = UpdateStopLoss(pos, 1200, 50, cfg)
	assert.Equal(t, 900.0, pos.StopLossPrice)
	assert.False(t, check.ShouldExit)
}

func TestTrailingStopMonotonic(t *testing.T) {
	cfg := &models.StopLossConfig{Enabled: true, ATRMultiplier: 2.0, Trailing: true}
	pos := NewOpenPosition(&models.Trade{}, 1000, 50, cfg)

	prices := []float64{1010, 990, 1050, 1040, 1100, 950, 1100, 1200}
	lastStop := pos.StopLossPrice
	for _, price := range prices {
		UpdateStopLoss(pos, price, 50, cfg)
		assert.GreaterOrEqual(t, pos.StopLossPrice, lastStop, "stop moved down at price %v", price)
		lastStop = pos.StopLossPrice
	}

	// Highest price 1200 trails the stop to 1100
	assert.Equal(t, 1100.0, pos.StopLossPrice)
	assert.True(t, pos.Trailed)

	// Once trailed, an exit reports as a trailing stop
	check := UpdateStopLoss(pos, 1090, 50, cfg)
	assert.True(t, check.ShouldExit)
	assert.Equal(t, ExitReasonTrailingStop, check.Reason)
}

func TestTrailingFallsBackToEntryATR(t *testing.T) {
	cfg := &models.StopLossConfig{Enabled: true, ATRMultiplier: 2.0, Trailing: true}
	pos := NewOpenPosition(&models.Trade{}, 1000, 50, cfg)

	// Current-bar ATR unavailable: the entry ATR keeps the trail sized
	UpdateStopLoss(pos, 1100, 0, cfg)
	assert.Equal(t, 1000.0, pos.StopLossPrice)
}

func TestCheckStopLossesIndependent(t *testing.T) {
	cfg := &models.StopLossConfig{Enabled: true, ATRMultiplier: 2.0}
	a := NewOpenPosition(&models.Trade{}, 1000, 50, cfg) // stop 900
	b := NewOpenPosition(&models.Trade{}, 950, 10, cfg)  // stop 930

	checks := CheckStopLosses([]*models.OpenPosition{a, b}, 920, 50, cfg)
	require.Len(t, checks, 2)
	assert.False(t, checks[0].ShouldExit)
	assert.True(t, checks[1].ShouldExit)

	assert.Nil(t, CheckStopLosses(nil, 920, 50, cfg))
}

func TestVolatilityAdjustedSize(t *testing.T) {
	// Calm market: slight size increase
	assert.InDelta(t, 120.0, VolatilityAdjustedSize(100, 5, 10), 1e-9)
	// Normal market: unchanged
	assert.Equal(t, 100.0, VolatilityAdjustedSize(100, 10, 10))
	// Stressed market: size shrinks with the ratio
	assert.InDelta(t, 50.0, VolatilityAdjustedSize(100, 20, 10), 1e-9)
	// Degenerate ATRs leave the base size untouched
	assert.Equal(t, 100.0, VolatilityAdjustedSize(100, 0, 10))
}
