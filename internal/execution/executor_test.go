package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantisle/papertrader/models"
)

func buySignal(mult float64) models.TradingSignal {
	return models.TradingSignal{
		Timestamp:              time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Signal:                 0.8,
		Action:                 models.ActionBuy,
		PositionSizeMultiplier: mult,
	}
}

func sellSignal(mult float64) models.TradingSignal {
	sig := buySignal(mult)
	sig.Action = models.ActionSell
	sig.Signal = -0.8
	return sig
}

func TestBuySellRoundTrip(t *testing.T) {
	portfolio := models.NewPortfolio(500)
	ctx := &Context{FeeRate: 0.001}

	// 500 quote at half confidence buys 250 worth: 0.1 units at 2500
	buy := ExecuteTrade(buySignal(1.0), 0.5, 2500, portfolio, ctx)
	require.NotNil(t, buy)
	assert.InDelta(t, 0.1, buy.Amount, 1e-9)
	assert.InDelta(t, 0.25, buy.Fee, 1e-9)
	assert.InDelta(t, 0.1, portfolio.BaseBalance, 1e-9)
	assert.InDelta(t, 249.75, portfolio.QuoteBalance, 1e-9)
	assert.Equal(t, 1, portfolio.TradeCount)
	assert.Zero(t, portfolio.WinCount)

	// Sell the whole lot at 2600: pnl = (2600-2500)*0.1 minus the fee
	sell := ExecuteTrade(sellSignal(2.0), 1.0, 2600, portfolio, ctx)
	require.NotNil(t, sell)
	assert.InDelta(t, 0.1, sell.Amount, 1e-9)
	assert.InDelta(t, 250.0, sell.CostBasis, 1e-9)
	assert.InDelta(t, 10.0-0.26, sell.PnL, 1e-9)
	assert.Equal(t, 1, portfolio.WinCount)
	assert.Equal(t, 2, portfolio.TradeCount)
	assert.Zero(t, portfolio.BaseBalance)

	require.Len(t, ctx.Trades, 2)
	assert.NotEqual(t, ctx.Trades[0].ID, ctx.Trades[1].ID)
}

func TestPortfolioBalanceInvariant(t *testing.T) {
	portfolio := models.NewPortfolio(10000)
	ctx := &Context{FeeRate: 0.002}

	prices := []float64{100, 110, 95, 120}
	signals := []models.TradingSignal{buySignal(1.0), buySignal(0.5), sellSignal(1.0), sellSignal(1.5)}

	for i, sig := range signals {
		ExecuteTrade(sig, 0.7, prices[i], portfolio, ctx)
		assert.InDelta(t, portfolio.QuoteBalance+portfolio.BaseBalance*prices[i],
			portfolio.TotalValue, 1e-9, "invariant broken after trade %d", i)
	}
}

func TestHoldAndInvalidTrades(t *testing.T) {
	portfolio := models.NewPortfolio(1000)
	ctx := &Context{}

	hold := models.TradingSignal{Action: models.ActionHold}
	assert.Nil(t, ExecuteTrade(hold, 1.0, 100, portfolio, ctx))

	// Zero confidence sizes to zero
	assert.Nil(t, ExecuteTrade(buySignal(1.0), 0, 100, portfolio, ctx))

	// Nothing held, nothing to sell
	assert.Nil(t, ExecuteTrade(sellSignal(1.0), 1.0, 100, portfolio, ctx))

	// Dust trades are rejected rather than filled
	tiny := models.NewPortfolio(0.5)
	assert.Nil(t, ExecuteTrade(buySignal(1.0), 1.0, 100, tiny, ctx))

	assert.Nil(t, ExecuteTrade(buySignal(1.0), 1.0, 0, portfolio, ctx))
	assert.Nil(t, ExecuteTrade(buySignal(1.0), 1.0, 100, nil, ctx))
	assert.Nil(t, ExecuteTrade(buySignal(1.0), 1.0, 100, portfolio, nil))

	assert.Empty(t, ctx.Trades)
	assert.Equal(t, 0, portfolio.TradeCount)
}

func TestBuyRejectsOverBalanceSize(t *testing.T) {
	portfolio := models.NewPortfolio(1000)
	ctx := &Context{FeeRate: 0.001}

	// Full fraction, doubled size, full confidence wants 2000 quote
	assert.Nil(t, ExecuteTrade(buySignal(2.0), 1.0, 100, portfolio, ctx))
	assert.InDelta(t, 1000.0, portfolio.QuoteBalance, 1e-9)
	assert.Zero(t, portfolio.BaseBalance)
	assert.Equal(t, 0, portfolio.TradeCount)
	assert.Empty(t, ctx.Trades)

	// Even the fee alone pushing past the balance rejects the fill
	assert.Nil(t, ExecuteTrade(buySignal(1.0), 1.0, 100, portfolio, ctx))
	assert.InDelta(t, 1000.0, portfolio.QuoteBalance, 1e-9)

	// A size the balance covers with fees still fills
	buy := ExecuteTrade(buySignal(0.9), 1.0, 100, portfolio, ctx)
	require.NotNil(t, buy)
	assert.InDelta(t, 900.0, buy.QuoteAmount, 1e-9)
	assert.GreaterOrEqual(t, portfolio.QuoteBalance, 0.0)
}

func TestMaxPositionFraction(t *testing.T) {
	portfolio := models.NewPortfolio(1000)
	ctx := NewContext(&models.StrategyConfig{Name: "s", MaxPositionFraction: 0.25})
	ctx.FeeRate = 0.001

	buy := ExecuteTrade(buySignal(1.0), 1.0, 100, portfolio, ctx)
	require.NotNil(t, buy)
	assert.InDelta(t, 250.0, buy.QuoteAmount, 1e-9)
}

func TestFIFOAcrossLots(t *testing.T) {
	portfolio := models.NewPortfolio(1000)
	ctx := &Context{}

	// Two buys at rising prices: 2 units at 100, then ~1.63 units at 110
	ExecuteTrade(buySignal(1.0), 0.2, 100, portfolio, ctx)
	ExecuteTrade(buySignal(1.0), 0.25, 110, portfolio, ctx)
	require.Len(t, ctx.Trades, 2)
	first := ctx.Trades[0].Amount
	second := ctx.Trades[1].Amount

	// Sell everything at 120: basis is the sum of both lots in order
	sell := ExecuteTrade(sellSignal(2.0), 1.0, 120, portfolio, ctx)
	require.NotNil(t, sell)
	assert.InDelta(t, first*100+second*110, sell.CostBasis, 1e-9)
	assert.InDelta(t, (first+second)*120-sell.CostBasis, sell.PnL, 1e-9)
}

func TestPartialLotConsumption(t *testing.T) {
	var q LotQueue
	q.Push(2, 100)
	q.Push(1, 110)

	// Half of the first lot
	assert.InDelta(t, 100.0, q.Consume(1, 0), 1e-9)
	assert.InDelta(t, 2.0, q.Open(), 1e-9)

	// The rest of the first lot and half of the second
	assert.InDelta(t, 100+0.5*110, q.Consume(1.5, 0), 1e-9)
	assert.InDelta(t, 0.5, q.Open(), 1e-9)

	// Overconsumption falls back to the given price
	assert.InDelta(t, 0.5*110+0.5*120, q.Consume(1, 120), 1e-9)
	assert.Zero(t, q.Open())

	q.Push(1, 50)
	q.Reset()
	assert.Zero(t, q.Open())
}

type recorderSpy struct {
	keys []string
	wins []bool
}

func (r *recorderSpy) RecordOutcome(sessionKey string, win bool, cfg *models.AdaptiveConfig) {
	r.keys = append(r.keys, sessionKey)
	r.wins = append(r.wins, win)
}

func TestSellFeedsOutcomeRecorder(t *testing.T) {
	portfolio := models.NewPortfolio(500)
	spy := &recorderSpy{}
	ctx := &Context{
		SessionKey: "sess",
		Recorder:   spy,
		Adaptive:   &models.AdaptiveConfig{CircuitBreakerLookback: 5},
	}

	ExecuteTrade(buySignal(1.0), 0.5, 2500, portfolio, ctx)
	assert.Empty(t, spy.wins) // buys are not outcomes

	ExecuteTrade(sellSignal(2.0), 1.0, 2600, portfolio, ctx)
	require.Len(t, spy.wins, 1)
	assert.True(t, spy.wins[0])
	assert.Equal(t, "sess", spy.keys[0])

	ExecuteTrade(buySignal(1.0), 0.5, 2600, portfolio, ctx)
	ExecuteTrade(sellSignal(2.0), 1.0, 2400, portfolio, ctx)
	require.Len(t, spy.wins, 2)
	assert.False(t, spy.wins[1])
}

func TestExecuteStopExit(t *testing.T) {
	portfolio := models.NewPortfolio(500)
	ctx := &Context{}

	buy := ExecuteTrade(buySignal(1.0), 0.5, 2500, portfolio, ctx)
	require.NotNil(t, buy)

	pos := &models.OpenPosition{BuyTrade: buy, EntryPrice: 2500, StopLossPrice: 2400}
	exitTime := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	exit := ExecuteStopExit(pos, 2390, exitTime, "stop-loss", portfolio, ctx)
	require.NotNil(t, exit)
	assert.Equal(t, "stop-loss", exit.Reason)
	assert.Equal(t, exitTime, exit.Timestamp)
	assert.InDelta(t, buy.Amount, exit.Amount, 1e-9)
	assert.Less(t, exit.PnL, 0.0)
	assert.Zero(t, portfolio.BaseBalance)

	// Stop exits on empty inventory do nothing
	assert.Nil(t, ExecuteStopExit(pos, 2390, exitTime, "stop-loss", portfolio, ctx))
}
