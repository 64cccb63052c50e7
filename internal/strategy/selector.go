package strategy

import (
	"github.com/quantisle/papertrader/internal/indicators"
	"github.com/quantisle/papertrader/internal/regime"
	"github.com/quantisle/papertrader/internal/signal"
	"github.com/quantisle/papertrader/models"
)

// Hold reasons stamped on a signal when a risk gate overrides the
// indicator opinion
const (
	HoldReasonVolatility     = "volatility-filter"
	HoldReasonCircuitBreaker = "circuit-breaker"
	HoldReasonWhipsaw        = "whipsaw"
)

// Selector is the adaptive engine: it classifies the regime, runs the
// risk overlay and evaluates whichever strategy config the regime calls
// for. One selector serves many sessions; per-session memory lives in
// the injected store.
type Selector struct {
	classifier *regime.Classifier
	sessions   SessionStore
}

// NewSelector wires a selector from its collaborators; nil arguments get
// fresh in-process defaults.
func NewSelector(classifier *regime.Classifier, sessions SessionStore) *Selector {
	if classifier == nil {
		classifier = regime.NewClassifier(nil)
	}
	if sessions == nil {
		sessions = NewSessionStore()
	}
	return &Selector{classifier: classifier, sessions: sessions}
}

// Sessions exposes the session store for outcome recording and reset hooks
func (s *Selector) Sessions() SessionStore {
	return s.sessions
}

// Classifier exposes the regime classifier for cache reset hooks
func (s *Selector) Classifier() *regime.Classifier {
	return s.classifier
}

// RecordOutcome feeds one closed trade's result into a session's
// circuit-breaker window
func (s *Selector) RecordOutcome(sessionKey string, win bool, cfg *models.AdaptiveConfig) {
	s.sessions.Get(sessionKey, cfg.CircuitBreakerLookback).RecordOutcome(win)
}

// Generate evaluates one bar for one session. The decision sequence is
// fixed: classify, gate (volatility, circuit breaker, whipsaw), confirm
// (persistence, confidence, momentum), then score the selected strategy.
func (s *Selector) Generate(candles []models.Candle, cfg *models.AdaptiveConfig, index int, sessionKey string) models.TradingSignal {
	sig := models.TradingSignal{
		Action:                 models.ActionHold,
		PositionSizeMultiplier: 1.0,
	}
	if cfg == nil || index < 0 || index >= len(candles) {
		return sig
	}
	sig.Timestamp = candles[index].Timestamp

	session := s.sessions.Get(sessionKey, cfg.CircuitBreakerLookback)

	regimeSig := s.classifier.Classify(sessionKey, candles, index)
	session.RecordRegime(regimeSig.Regime)

	// Risk gates fire before any indicator is consulted. The bearish
	// strategy name is reported so audits show what would have traded.
	if cfg.MaxVolatility > 0 && regimeSig.Indicators.Volatility > cfg.MaxVolatility {
		sig.ActiveStrategy = cfg.Bearish.Name
		sig.Reason = HoldReasonVolatility
		return sig
	}
	if winRate, full := session.WinRate(); full && winRate < cfg.CircuitBreakerWinRate {
		sig.ActiveStrategy = cfg.Bearish.Name
		sig.Reason = HoldReasonCircuitBreaker
		return sig
	}
	if cfg.WhipsawMaxChanges > 0 && session.RegimeChanges(cfg.WhipsawDetectionPeriods) >= cfg.WhipsawMaxChanges {
		sig.ActiveStrategy = cfg.Bearish.Name
		sig.Reason = HoldReasonWhipsaw
		return sig
	}

	effective := regimeSig.Regime
	if !session.RegimePersisted(regimeSig.Regime, cfg.RegimePersistencePeriods) {
		effective = models.RegimeNeutral
	}
	if regimeSig.Confidence < cfg.RegimeConfidenceThreshold {
		effective = models.RegimeNeutral
	}

	// Bullish regimes additionally need momentum on side; anything else
	// trades the conservative book
	active := &cfg.Bearish
	sig.MomentumConfirmed = regimeSig.Indicators.Momentum >= cfg.MomentumConfirmationThreshold
	if effective == models.RegimeBullish && !sig.MomentumConfirmed {
		// Bullish label without momentum behind it trades the
		// conservative book at par size
		effective = models.RegimeNeutral
	}
	if effective == models.RegimeBullish {
		active = &cfg.Bullish
	}

	evaluated := signal.Generate(candles, active, index)
	sig.Signal = evaluated.Signal
	sig.Confidence = evaluated.Confidence
	sig.Action = evaluated.Action
	sig.ActiveStrategy = active.Name
	sig.PositionSizeMultiplier = positionMultiplier(cfg, effective, regimeSig.Confidence)
	return sig
}

// positionMultiplier scales conviction into size when dynamic sizing is
// on: bullish regimes stretch toward the configured maximum with
// confidence, bearish regimes shrink toward the minimum, neutral stays
// at par. Always bounded to [0, 2].
func positionMultiplier(cfg *models.AdaptiveConfig, effective models.Regime, confidence float64) float64 {
	if !cfg.DynamicPositionSizing {
		return 1.0
	}

	multiplier := 1.0
	switch effective {
	case models.RegimeBullish:
		max := cfg.MaxBullishPosition
		if max <= 0 {
			max = 1.5
		}
		multiplier = 1 + (max-1)*confidence
	case models.RegimeBearish:
		min := cfg.MinBearishPosition
		if min <= 0 {
			min = 0.5
		}
		multiplier = 1 - (1-min)*confidence
	}
	return indicators.Clamp(multiplier, 0, 2)
}
