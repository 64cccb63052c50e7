package models

import (
	"time"
)

// Candle represents a single OHLCV price bar
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume,omitempty"`
}

// IndicatorKind identifies one indicator family the scorer understands
type IndicatorKind string

const (
	IndicatorSMA        IndicatorKind = "sma"
	IndicatorEMA        IndicatorKind = "ema"
	IndicatorMACD       IndicatorKind = "macd"
	IndicatorRSI        IndicatorKind = "rsi"
	IndicatorBollinger  IndicatorKind = "bollinger"
	IndicatorVWAP       IndicatorKind = "vwap"
	IndicatorOBV        IndicatorKind = "obv"
	IndicatorVolumeMACD IndicatorKind = "volume_macd"
)

// IndicatorParams holds the numeric knobs of a configured indicator.
// Only the fields relevant to the kind are read; zero values fall back
// to the scorer defaults.
type IndicatorParams struct {
	Period       int     `json:"period,omitempty" yaml:"period,omitempty"`
	FastPeriod   int     `json:"fast_period,omitempty" yaml:"fast_period,omitempty"`
	SlowPeriod   int     `json:"slow_period,omitempty" yaml:"slow_period,omitempty"`
	SignalPeriod int     `json:"signal_period,omitempty" yaml:"signal_period,omitempty"`
	StdDev       float64 `json:"std_dev,omitempty" yaml:"std_dev,omitempty"`
}

// IndicatorConfig is one weighted indicator inside a strategy
type IndicatorConfig struct {
	Kind   IndicatorKind   `json:"kind" yaml:"kind"`
	Weight float64         `json:"weight" yaml:"weight"`
	Params IndicatorParams `json:"params,omitempty" yaml:"params,omitempty"`
}

// StrategyConfig describes a single fixed strategy: an indicator mix and
// the thresholds that turn its blended score into actions
type StrategyConfig struct {
	Name                string            `json:"name" yaml:"name"`
	Timeframe           string            `json:"timeframe,omitempty" yaml:"timeframe,omitempty"`
	Indicators          []IndicatorConfig `json:"indicators" yaml:"indicators"`
	BuyThreshold        float64           `json:"buy_threshold" yaml:"buy_threshold"`
	SellThreshold       float64           `json:"sell_threshold" yaml:"sell_threshold"` // negative
	MaxPositionFraction float64           `json:"max_position_fraction" yaml:"max_position_fraction"`
	InitialCapital      float64           `json:"initial_capital,omitempty" yaml:"initial_capital,omitempty"`
}

// AdaptiveConfig pairs a bullish and a bearish strategy with the regime
// switching rules and the risk overlay settings
type AdaptiveConfig struct {
	Bullish StrategyConfig `json:"bullish" yaml:"bullish"`
	Bearish StrategyConfig `json:"bearish" yaml:"bearish"`

	RegimeConfidenceThreshold     float64 `json:"regime_confidence_threshold" yaml:"regime_confidence_threshold"`
	RegimePersistencePeriods      int     `json:"regime_persistence_periods" yaml:"regime_persistence_periods"`
	MomentumConfirmationThreshold float64 `json:"momentum_confirmation_threshold" yaml:"momentum_confirmation_threshold"`

	MaxVolatility           float64 `json:"max_volatility" yaml:"max_volatility"`
	CircuitBreakerWinRate   float64 `json:"circuit_breaker_win_rate" yaml:"circuit_breaker_win_rate"`
	CircuitBreakerLookback  int     `json:"circuit_breaker_lookback" yaml:"circuit_breaker_lookback"`
	WhipsawDetectionPeriods int     `json:"whipsaw_detection_periods" yaml:"whipsaw_detection_periods"`
	WhipsawMaxChanges       int     `json:"whipsaw_max_changes" yaml:"whipsaw_max_changes"`

	DynamicPositionSizing bool    `json:"dynamic_position_sizing" yaml:"dynamic_position_sizing"`
	MaxBullishPosition    float64 `json:"max_bullish_position" yaml:"max_bullish_position"` // multiplier at full bullish confidence
	MinBearishPosition    float64 `json:"min_bearish_position" yaml:"min_bearish_position"` // multiplier at full bearish confidence

	Kelly    *KellyConfig    `json:"kelly,omitempty" yaml:"kelly,omitempty"`
	StopLoss *StopLossConfig `json:"stop_loss,omitempty" yaml:"stop_loss,omitempty"`
}

// KellyConfig controls Kelly criterion position scaling
type KellyConfig struct {
	Enabled              bool    `json:"enabled" yaml:"enabled"`
	MinTrades            int     `json:"min_trades" yaml:"min_trades"`
	FractionalMultiplier float64 `json:"fractional_multiplier" yaml:"fractional_multiplier"` // e.g. 0.5 for half-Kelly
	MaxKellyFraction     float64 `json:"max_kelly_fraction" yaml:"max_kelly_fraction"`
	MinMultiplier        float64 `json:"min_multiplier" yaml:"min_multiplier"`
	MaxMultiplier        float64 `json:"max_multiplier" yaml:"max_multiplier"`
}

// StopLossConfig controls the ATR stop-loss overlay
type StopLossConfig struct {
	Enabled       bool    `json:"enabled" yaml:"enabled"`
	ATRPeriod     int     `json:"atr_period" yaml:"atr_period"`
	ATRMultiplier float64 `json:"atr_multiplier" yaml:"atr_multiplier"`
	Trailing      bool    `json:"trailing" yaml:"trailing"`
}

// Regime labels the classified market state
type Regime string

const (
	RegimeBullish Regime = "bullish"
	RegimeBearish Regime = "bearish"
	RegimeNeutral Regime = "neutral"
)

// RegimeIndicators are the bounded sub-scores behind a classification
type RegimeIndicators struct {
	Trend      float64 `json:"trend"`      // [-1, 1]
	Momentum   float64 `json:"momentum"`   // [-1, 1]
	Volatility float64 `json:"volatility"` // [0, 1]
}

// RegimeSignal is the output of the regime classifier for one bar
type RegimeSignal struct {
	Regime     Regime           `json:"regime"`
	Confidence float64          `json:"confidence"` // [0, 1]
	Indicators RegimeIndicators `json:"indicators"`
}

// Action is the trading decision carried by a signal
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// TradingSignal is one evaluated bar: the blended score, the decision and
// the context needed to audit how the decision was reached
type TradingSignal struct {
	Timestamp              time.Time `json:"timestamp"`
	Signal                 float64   `json:"signal"`     // [-1, 1]
	Confidence             float64   `json:"confidence"` // [0, 1]
	Action                 Action    `json:"action"`
	ActiveStrategy         string    `json:"active_strategy"`
	PositionSizeMultiplier float64   `json:"position_size_multiplier"` // [0, 2]
	MomentumConfirmed      bool      `json:"momentum_confirmed"`
	Reason                 string    `json:"reason,omitempty"` // set when a risk gate forced hold
}

// TradeType distinguishes the two executable trade directions
type TradeType string

const (
	TradeBuy  TradeType = "buy"
	TradeSell TradeType = "sell"
)

// Trade is one executed fill against the paper portfolio
type Trade struct {
	ID                  string    `json:"id"`
	Timestamp           time.Time `json:"timestamp"`
	Type                TradeType `json:"type"`
	Price               float64   `json:"price"`
	Amount              float64   `json:"amount"`       // base units
	QuoteAmount         float64   `json:"quote_amount"` // quote spent (buy) or received net of fee (sell)
	Fee                 float64   `json:"fee"`
	Signal              float64   `json:"signal"`
	Confidence          float64   `json:"confidence"`
	CostBasis           float64   `json:"cost_basis,omitempty"` // FIFO basis consumed by a sell
	PnL                 float64   `json:"pnl"`                  // realized, sells only
	PortfolioValueAfter float64   `json:"portfolio_value_after"`
	Reason              string    `json:"reason,omitempty"` // e.g. stop-loss exits
}

// Portfolio is the paper account state for one session
type Portfolio struct {
	QuoteBalance   float64 `json:"quote_balance"`
	BaseBalance    float64 `json:"base_balance"`
	TotalValue     float64 `json:"total_value"`
	InitialCapital float64 `json:"initial_capital"`
	TotalReturn    float64 `json:"total_return"` // percent
	TradeCount     int     `json:"trade_count"`
	WinCount       int     `json:"win_count"`
}

// NewPortfolio returns a portfolio holding only quote currency
func NewPortfolio(initialCapital float64) *Portfolio {
	return &Portfolio{
		QuoteBalance:   initialCapital,
		InitialCapital: initialCapital,
		TotalValue:     initialCapital,
	}
}

// MarkToMarket reprices holdings at the given price and refreshes the
// derived total value and return fields
func (p *Portfolio) MarkToMarket(price float64) {
	p.TotalValue = p.QuoteBalance + p.BaseBalance*price
	if p.InitialCapital > 0 {
		p.TotalReturn = (p.TotalValue - p.InitialCapital) / p.InitialCapital * 100
	}
}

// OpenPosition tracks one protected long entry for the stop-loss engine
type OpenPosition struct {
	BuyTrade      *Trade  `json:"buy_trade"`
	EntryPrice    float64 `json:"entry_price"`
	StopLossPrice float64 `json:"stop_loss_price"`
	HighestPrice  float64 `json:"highest_price"`
	ATRAtEntry    float64 `json:"atr_at_entry"`
	Trailed       bool    `json:"trailed"` // stop has been raised at least once
}

// EquitySnapshot is one point on the portfolio equity curve
type EquitySnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// RiskMetrics aggregates the risk and performance statistics of a session
type RiskMetrics struct {
	SharpeRatio         float64 `json:"sharpe_ratio"`
	SortinoRatio        float64 `json:"sortino_ratio"`
	MaxDrawdown         float64 `json:"max_drawdown"`          // percent
	MaxDrawdownDuration float64 `json:"max_drawdown_duration"` // days
	Volatility          float64 `json:"volatility"`
	CalmarRatio         float64 `json:"calmar_ratio"`
	OmegaRatio          float64 `json:"omega_ratio"`
	UlcerIndex          float64 `json:"ulcer_index"`
	WinRate             float64 `json:"win_rate"`
	AvgWin              float64 `json:"avg_win"`
	AvgLoss             float64 `json:"avg_loss"`
	WinLossRatio        float64 `json:"win_loss_ratio"`
	Expectancy          float64 `json:"expectancy"`
	TotalReturn         float64 `json:"total_return"` // percent
}
