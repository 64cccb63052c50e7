package backtest

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantisle/papertrader/internal/execution"
	"github.com/quantisle/papertrader/internal/indicators"
	"github.com/quantisle/papertrader/internal/regime"
	"github.com/quantisle/papertrader/internal/risk"
	"github.com/quantisle/papertrader/internal/riskmetrics"
	"github.com/quantisle/papertrader/internal/strategy"
	"github.com/quantisle/papertrader/models"
)

// dustBalance is the base-balance residue below which a position counts
// as closed. Fractional sizing can leave sub-epsilon remainders.
const dustBalance = 1e-9

// flat reports whether the base inventory is economically empty
func flat(baseBalance float64) bool {
	return baseBalance <= dustBalance
}

// Engine drives the full decision pipeline bar by bar over a historical
// series: adaptive signal, stop-loss sweep, execution, equity snapshot.
type Engine struct {
	selector *strategy.Selector
	config   *models.AdaptiveConfig
	feeRate  float64
	logger   zerolog.Logger
}

// Result is one finished backtest: the ledger, the equity curve and the
// scores derived from them
type Result struct {
	Symbol      string
	Interval    string
	Portfolio   *models.Portfolio
	Trades      []models.Trade
	EquityCurve []models.EquitySnapshot
	Metrics     models.RiskMetrics
	StopExits   int
	HeldBars    int
	SignalBars  int
}

// NewEngine builds a backtest engine around an adaptive configuration.
// A nil selector gets fresh in-process state.
func NewEngine(selector *strategy.Selector, cfg *models.AdaptiveConfig, feeRate float64) *Engine {
	if selector == nil {
		selector = strategy.NewSelector(nil, nil)
	}
	return &Engine{
		selector: selector,
		config:   cfg,
		feeRate:  feeRate,
		logger:   log.With().Str("component", "backtest").Logger(),
	}
}

// Reset clears the regime cache and all session memory. Must be called
// between independent backtests sharing this engine.
func (e *Engine) Reset() {
	e.selector.Classifier().Cache().Clear()
	e.selector.Sessions().ClearAll()
}

// Run walks the series once in timestamp order. The first tradable bar
// is the classifier's history floor; everything before it only warms up
// the indicators.
func (e *Engine) Run(candles []models.Candle, symbol, interval, sessionKey string, initialCapital float64) (*Result, error) {
	if len(candles) <= regime.MinHistory {
		return nil, fmt.Errorf("insufficient history: need more than %d candles, got %d", regime.MinHistory, len(candles))
	}
	if e.config == nil {
		return nil, fmt.Errorf("no adaptive configuration")
	}

	portfolio := models.NewPortfolio(initialCapital)
	ctx := &execution.Context{
		FeeRate:    e.feeRate,
		SessionKey: sessionKey,
		Recorder:   e.selector,
		Adaptive:   e.config,
	}

	result := &Result{
		Symbol:    symbol,
		Interval:  interval,
		Portfolio: portfolio,
	}

	var positions []*models.OpenPosition
	var atrPeriod int
	if e.config.StopLoss != nil && e.config.StopLoss.ATRPeriod > 0 {
		atrPeriod = e.config.StopLoss.ATRPeriod
	} else {
		atrPeriod = 14
	}

	for i := regime.MinHistory; i < len(candles); i++ {
		price := candles[i].Close
		atr := indicators.ATR(candles[:i+1], atrPeriod)

		// Stops fire before the strategy gets a say
		if len(positions) > 0 {
			var kept []*models.OpenPosition
			for _, check := range risk.CheckStopLosses(positions, price, atr, e.config.StopLoss) {
				if check.ShouldExit {
					if trade := execution.ExecuteStopExit(check.Position, price, candles[i].Timestamp, check.Reason, portfolio, ctx); trade != nil {
						result.StopExits++
					}
					continue
				}
				kept = append(kept, check.Position)
			}
			positions = kept
		}

		sig := e.selector.Generate(candles, e.config, i, sessionKey)
		result.SignalBars++
		if sig.Action == models.ActionHold {
			result.HeldBars++
		}

		ctx.Strategy = e.activeStrategy(sig.ActiveStrategy)
		if sig.Action == models.ActionBuy {
			sig.PositionSizeMultiplier = e.applyKelly(sig.PositionSizeMultiplier, ctx)
		}

		trade := execution.ExecuteTrade(sig, sig.Confidence, price, portfolio, ctx)
		if trade != nil && trade.Type == models.TradeBuy {
			if pos := risk.NewOpenPosition(trade, price, atr, e.config.StopLoss); pos != nil {
				positions = append(positions, pos)
			}
		}
		if trade != nil && trade.Type == models.TradeSell && flat(portfolio.BaseBalance) {
			// Nothing left for the stop engine to protect
			positions = nil
		}

		portfolio.MarkToMarket(price)
		result.EquityCurve = append(result.EquityCurve, models.EquitySnapshot{
			Timestamp: candles[i].Timestamp,
			Value:     portfolio.TotalValue,
		})
	}

	result.Trades = ctx.Trades
	result.Metrics = riskmetrics.Calculate(result.Trades, result.EquityCurve, initialCapital)

	e.logger.Info().
		Str("symbol", symbol).
		Int("bars", result.SignalBars).
		Int("trades", len(result.Trades)).
		Float64("total_return", result.Metrics.TotalReturn).
		Msg("Backtest finished")
	return result, nil
}

// applyKelly folds the Kelly multiplier into the signal's size once the
// session has enough closed trades to estimate an edge
func (e *Engine) applyKelly(multiplier float64, ctx *execution.Context) float64 {
	if e.config.Kelly == nil || !e.config.Kelly.Enabled {
		return multiplier
	}
	kelly := risk.CalculateKellyCriterion(ctx.Trades, e.config.Kelly)
	if kelly == nil {
		return multiplier
	}
	base := 0.0
	if ctx.Strategy != nil {
		base = ctx.Strategy.MaxPositionFraction
	}
	return indicators.Clamp(multiplier*risk.KellyMultiplier(kelly, e.config.Kelly, base), 0, 2)
}

func (e *Engine) activeStrategy(name string) *models.StrategyConfig {
	if name == e.config.Bullish.Name {
		return &e.config.Bullish
	}
	return &e.config.Bearish
}

// Report renders the run the way the CLI prints it
func (r *Result) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Backtest %s (%s) ===\n", r.Symbol, r.Interval)
	fmt.Fprintf(&b, "Bars evaluated:      %d (held %d)\n", r.SignalBars, r.HeldBars)
	fmt.Fprintf(&b, "Trades:              %d (stop exits %d)\n", len(r.Trades), r.StopExits)
	fmt.Fprintf(&b, "Final value:         %.2f\n", r.Portfolio.TotalValue)
	fmt.Fprintf(&b, "Total return:        %.2f%%\n", r.Metrics.TotalReturn)
	fmt.Fprintf(&b, "Win rate:            %.1f%%\n", r.Metrics.WinRate*100)
	fmt.Fprintf(&b, "Sharpe ratio:        %.3f\n", r.Metrics.SharpeRatio)
	fmt.Fprintf(&b, "Sortino ratio:       %.3f\n", r.Metrics.SortinoRatio)
	fmt.Fprintf(&b, "Max drawdown:        %.2f%% (%.1f days)\n", r.Metrics.MaxDrawdown, r.Metrics.MaxDrawdownDuration)
	fmt.Fprintf(&b, "Calmar ratio:        %.3f\n", r.Metrics.CalmarRatio)
	fmt.Fprintf(&b, "Omega ratio:         %.3f\n", r.Metrics.OmegaRatio)
	fmt.Fprintf(&b, "Ulcer index:         %.3f\n", r.Metrics.UlcerIndex)
	fmt.Fprintf(&b, "Expectancy:          %.2f\n", r.Metrics.Expectancy)
	return b.String()
}
