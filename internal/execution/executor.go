package execution

import (
	"time"

	"github.com/google/uuid"

	"github.com/quantisle/papertrader/models"
)

// DefaultFeeRate is the proportional fee applied per fill when the
// context does not set one
const DefaultFeeRate = 0.001

// minTradeValue rejects dust fills whose fees would dwarf them
const minTradeValue = 1.0

// OutcomeRecorder receives the win/loss verdict of every sell that
// realizes P&L. The adaptive selector's circuit breaker feeds on this,
// so wiring it here means no caller can forget to record an outcome.
type OutcomeRecorder interface {
	RecordOutcome(sessionKey string, win bool, cfg *models.AdaptiveConfig)
}

// Context carries the per-session execution state the executor mutates:
// the trade ledger, the FIFO lot queue behind realized P&L, and the
// optional outcome feedback loop.
type Context struct {
	Strategy *models.StrategyConfig
	Trades   []models.Trade
	Lots     LotQueue
	FeeRate  float64

	SessionKey string
	Recorder   OutcomeRecorder
	Adaptive   *models.AdaptiveConfig
}

// NewContext prepares an execution context for one session
func NewContext(strategy *models.StrategyConfig) *Context {
	return &Context{Strategy: strategy, FeeRate: DefaultFeeRate}
}

// ExecuteTrade applies one signal to the portfolio at the given price.
// The portfolio is mutated in place and the fill is appended to the
// context ledger. Nil means nothing happened: a hold signal, a zero
// size, or a size the balances cannot cover.
func ExecuteTrade(signal models.TradingSignal, confidence, price float64, portfolio *models.Portfolio, ctx *Context) *models.Trade {
	if portfolio == nil || ctx == nil || price <= 0 {
		return nil
	}

	switch signal.Action {
	case models.ActionBuy:
		return executeBuy(signal, confidence, price, portfolio, ctx)
	case models.ActionSell:
		return executeSell(signal, confidence, price, portfolio, ctx)
	}
	return nil
}

func executeBuy(signal models.TradingSignal, confidence, price float64, portfolio *models.Portfolio, ctx *Context) *models.Trade {
	maxFraction := 1.0
	if ctx.Strategy != nil && ctx.Strategy.MaxPositionFraction > 0 {
		maxFraction = ctx.Strategy.MaxPositionFraction
	}

	cost := portfolio.QuoteBalance * maxFraction * signal.PositionSizeMultiplier * confidence
	if cost < minTradeValue {
		return nil
	}

	fee := cost * ctx.feeRate()
	if cost+fee > portfolio.QuoteBalance {
		// Over-balance sizing is an invalid trade, not a partial fill
		return nil
	}
	amount := cost / price
	if amount <= 0 {
		return nil
	}

	portfolio.QuoteBalance -= cost + fee
	portfolio.BaseBalance += amount
	portfolio.MarkToMarket(price)
	portfolio.TradeCount++

	ctx.Lots.Push(amount, price)

	trade := models.Trade{
		ID:                  uuid.New().String(),
		Timestamp:           signal.Timestamp,
		Type:                models.TradeBuy,
		Price:               price,
		Amount:              amount,
		QuoteAmount:         cost,
		Fee:                 fee,
		Signal:              signal.Signal,
		Confidence:          confidence,
		PortfolioValueAfter: portfolio.TotalValue,
		Reason:              signal.Reason,
	}
	ctx.Trades = append(ctx.Trades, trade)
	return &ctx.Trades[len(ctx.Trades)-1]
}

func executeSell(signal models.TradingSignal, confidence, price float64, portfolio *models.Portfolio, ctx *Context) *models.Trade {
	maxFraction := 1.0
	if ctx.Strategy != nil && ctx.Strategy.MaxPositionFraction > 0 {
		maxFraction = ctx.Strategy.MaxPositionFraction
	}

	amount := portfolio.BaseBalance * maxFraction * signal.PositionSizeMultiplier * confidence
	if amount > portfolio.BaseBalance {
		amount = portfolio.BaseBalance
	}
	proceeds := amount * price
	if amount <= 0 || proceeds < minTradeValue {
		return nil
	}

	fee := proceeds * ctx.feeRate()
	costBasis := ctx.Lots.Consume(amount, price)
	pnl := proceeds - fee - costBasis

	portfolio.BaseBalance -= amount
	portfolio.QuoteBalance += proceeds - fee
	portfolio.MarkToMarket(price)
	portfolio.TradeCount++
	if pnl > 0 {
		portfolio.WinCount++
	}

	if ctx.Recorder != nil && ctx.Adaptive != nil {
		ctx.Recorder.RecordOutcome(ctx.SessionKey, pnl > 0, ctx.Adaptive)
	}

	trade := models.Trade{
		ID:                  uuid.New().String(),
		Timestamp:           signal.Timestamp,
		Type:                models.TradeSell,
		Price:               price,
		Amount:              amount,
		QuoteAmount:         proceeds - fee,
		Fee:                 fee,
		Signal:              signal.Signal,
		Confidence:          confidence,
		CostBasis:           costBasis,
		PnL:                 pnl,
		PortfolioValueAfter: portfolio.TotalValue,
		Reason:              signal.Reason,
	}
	ctx.Trades = append(ctx.Trades, trade)
	return &ctx.Trades[len(ctx.Trades)-1]
}

// ExecuteStopExit force-sells one protected position at the current
// price, bypassing the sizing pipeline: the whole protected amount goes.
func ExecuteStopExit(position *models.OpenPosition, price float64, ts time.Time, reason string, portfolio *models.Portfolio, ctx *Context) *models.Trade {
	if position == nil || portfolio == nil || ctx == nil || price <= 0 {
		return nil
	}

	amount := position.BuyTrade.Amount
	if amount > portfolio.BaseBalance {
		amount = portfolio.BaseBalance
	}
	if amount <= 0 {
		return nil
	}

	proceeds := amount * price
	fee := proceeds * ctx.feeRate()
	costBasis := ctx.Lots.Consume(amount, price)
	pnl := proceeds - fee - costBasis

	portfolio.BaseBalance -= amount
	portfolio.QuoteBalance += proceeds - fee
	portfolio.MarkToMarket(price)
	portfolio.TradeCount++
	if pnl > 0 {
		portfolio.WinCount++
	}

	if ctx.Recorder != nil && ctx.Adaptive != nil {
		ctx.Recorder.RecordOutcome(ctx.SessionKey, pnl > 0, ctx.Adaptive)
	}

	trade := models.Trade{
		ID:                  uuid.New().String(),
		Timestamp:           ts,
		Type:                models.TradeSell,
		Price:               price,
		Amount:              amount,
		QuoteAmount:         proceeds - fee,
		Fee:                 fee,
		CostBasis:           costBasis,
		PnL:                 pnl,
		PortfolioValueAfter: portfolio.TotalValue,
		Reason:              reason,
	}
	ctx.Trades = append(ctx.Trades, trade)
	return &ctx.Trades[len(ctx.Trades)-1]
}

func (c *Context) feeRate() float64 {
	if c.FeeRate <= 0 {
		return 0
	}
	return c.FeeRate
}
