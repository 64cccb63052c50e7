package strategy

import (
	"sync"

	"github.com/quantisle/papertrader/models"
)

// regimeHistoryCap bounds the per-session regime window. Whipsaw windows
// are short; anything beyond this is dead weight.
const regimeHistoryCap = 64

// SessionState is the per-session memory feeding the risk overlay: the
// recent regime labels and the recent trade outcomes.
type SessionState struct {
	regimes  []models.Regime
	outcomes []bool // true = win
	lookback int
}

// RecordRegime appends one bar's regime label, trimming the window
func (s *SessionState) RecordRegime(regime models.Regime) {
	s.regimes = append(s.regimes, regime)
	if len(s.regimes) > regimeHistoryCap {
		s.regimes = s.regimes[len(s.regimes)-regimeHistoryCap:]
	}
}

// RecordOutcome appends one closed trade's result, trimming to the
// circuit-breaker lookback
func (s *SessionState) RecordOutcome(win bool) {
	s.outcomes = append(s.outcomes, win)
	if s.lookback > 0 && len(s.outcomes) > s.lookback {
		s.outcomes = s.outcomes[len(s.outcomes)-s.lookback:]
	}
}

// RegimeChanges counts label transitions over the last periods entries
func (s *SessionState) RegimeChanges(periods int) int {
	window := s.regimes
	if periods > 0 && len(window) > periods {
		window = window[len(window)-periods:]
	}
	changes := 0
	for i := 1; i < len(window); i++ {
		if window[i] != window[i-1] {
			changes++
		}
	}
	return changes
}

// RegimePersisted reports whether the given label held for each of the
// last periods bars. A persistence of 1 only requires the current bar.
func (s *SessionState) RegimePersisted(regime models.Regime, periods int) bool {
	if periods <= 1 {
		return true
	}
	if len(s.regimes) < periods {
		return false
	}
	for _, r := range s.regimes[len(s.regimes)-periods:] {
		if r != regime {
			return false
		}
	}
	return true
}

// WinRate returns the rolling win rate and whether the window is full.
// The gate only engages on a full window; a short sample is no evidence.
func (s *SessionState) WinRate() (float64, bool) {
	if s.lookback <= 0 || len(s.outcomes) < s.lookback {
		return 0, false
	}
	wins := 0
	for _, win := range s.outcomes {
		if win {
			wins++
		}
	}
	return float64(wins) / float64(len(s.outcomes)), true
}

// SessionStore hands out isolated per-key session state
type SessionStore interface {
	Get(key string, lookback int) *SessionState
	Clear(key string)
	ClearAll()
}

// MemorySessionStore is the in-process SessionStore. Safe for concurrent
// sessions under distinct keys; one key must stay on one goroutine.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*SessionState
}

// NewSessionStore returns an empty in-process store
func NewSessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*SessionState)}
}

// Get returns the session for key, creating it on first use
func (m *MemorySessionStore) Get(key string, lookback int) *SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.sessions[key]
	if !ok {
		state = &SessionState{lookback: lookback}
		m.sessions[key] = state
	}
	state.lookback = lookback
	if lookback > 0 && len(state.outcomes) > lookback {
		state.outcomes = state.outcomes[len(state.outcomes)-lookback:]
	}
	return state
}

// Clear drops one session's memory
func (m *MemorySessionStore) Clear(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
}

// ClearAll drops every session. Must be called between independent
// backtests reusing session keys.
func (m *MemorySessionStore) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*SessionState)
}
