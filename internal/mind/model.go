package mind

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tokenmind/agent/internal/clock"
)

// Parameter bounds. Psychological scalars never reach exactly 1; trades
// nudge against a 0.95 ceiling and a 0 floor.
const (
	paramCeil   = 0.95
	fatigueCeil = 0.9
)

// Model owns the single mutable psychological state. The tick loop is the
// only writer during a tick; the control surface (pause/resume) may call
// SetMode from outside it, hence the mutex.
type Model struct {
	mu sync.Mutex

	clk clock.Clock

	confidence float64
	suspicion  float64
	conviction float64
	fatigue    float64
	aggression float64
	regret     float64

	riskAppetite float64
	mode         Mode

	winStreak   int
	lossStreak  int
	lastTradeAt time.Time

	convictions Convictions
}

// NewModel creates a Model at its neutral baseline.
func NewModel(clk clock.Clock) *Model {
	return &Model{
		clk:          clk,
		confidence:   0.5,
		suspicion:    0.2,
		conviction:   0.5,
		fatigue:      0.1,
		aggression:   0.3,
		regret:       0,
		riskAppetite: 0.5,
		mode:         ModeActive,
		lastTradeAt:  clk.Now(),
		convictions:  make(Convictions),
	}
}

// Tick applies one step of temporal evolution: fatigue builds during
// inactivity, transient emotions decay, confidence drifts toward baseline.
func (m *Model) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.daysSinceLastTrade() > 2 {
		m.fatigue = min(fatigueCeil, m.fatigue+0.02)
	}

	m.regret *= 0.98
	m.suspicion *= 0.99
	m.aggression *= 0.97
	m.confidence += (0.5 - m.confidence) * 0.05
	m.conviction *= 0.95
}

// UpdateFromTrade feeds a trade outcome back into the psychology. A fill
// builds confidence and conviction; a failure stings harder than a fill
// soothes.
func (m *Model) UpdateFromTrade(outcome TradeOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if outcome.Filled {
		m.confidence = min(paramCeil, m.confidence+0.08)
		m.regret = max(0, m.regret-0.05)
		m.conviction = min(paramCeil, m.conviction+0.06)
		m.riskAppetite = min(paramCeil, m.riskAppetite+0.03)
		m.lossStreak = 0
		m.winStreak++
		if outcome.TokenAddress != "" {
			m.convictions[outcome.TokenAddress] = min(paramCeil, m.convictions.Get(outcome.TokenAddress)+0.1)
		}
	} else {
		m.confidence = max(0, m.confidence-0.12)
		m.regret = min(paramCeil, m.regret+0.15)
		m.suspicion = min(paramCeil, m.suspicion+0.1)
		m.riskAppetite = max(0, m.riskAppetite-0.08)
		m.winStreak = 0
		m.lossStreak++
		if outcome.TokenAddress != "" {
			m.convictions[outcome.TokenAddress] = max(0, m.convictions.Get(outcome.TokenAddress)-0.15)
		}
	}

	m.lastTradeAt = m.clk.Now()

	slog.Debug("mind_trade_feedback",
		"filled", outcome.Filled,
		"confidence", m.confidence,
		"regret", m.regret,
		"win_streak", m.winStreak,
		"loss_streak", m.lossStreak,
	)
}

// SetMode is the sole external mutator of the operational mode. It does not
// touch any psychological parameter.
func (m *Model) SetMode(mode Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode != mode {
		slog.Info("mode_changed", "from", m.mode, "to", mode)
	}
	m.mode = mode
}

// Mode returns the current operational mode.
func (m *Model) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Snapshot returns an independent copy of the full state, moods derived.
func (m *Model) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	primary, secondary := m.deriveMood()
	return State{
		Confidence:         m.confidence,
		Suspicion:          m.suspicion,
		Conviction:         m.conviction,
		Fatigue:            m.fatigue,
		Aggression:         m.aggression,
		Regret:             m.regret,
		PrimaryMood:        primary,
		SecondaryMood:      secondary,
		RiskAppetite:       m.riskAppetite,
		Mode:               m.mode,
		WinStreak:          m.winStreak,
		LossStreak:         m.lossStreak,
		LastTradeAt:        m.lastTradeAt,
		DaysSinceLastTrade: m.daysSinceLastTrade(),
		TokenConvictions:   m.convictions.clone(),
	}
}

// Restore overwrites the model from a persisted snapshot.
func (m *Model) Restore(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.confidence = s.Confidence
	m.suspicion = s.Suspicion
	m.conviction = s.Conviction
	m.fatigue = s.Fatigue
	m.aggression = s.Aggression
	m.regret = s.Regret
	m.riskAppetite = s.RiskAppetite
	m.mode = s.Mode
	m.winStreak = s.WinStreak
	m.lossStreak = s.LossStreak
	if !s.LastTradeAt.IsZero() {
		m.lastTradeAt = s.LastTradeAt
	}
	m.convictions = s.TokenConvictions.clone()
	if m.convictions == nil {
		m.convictions = make(Convictions)
	}
}

// deriveMood walks the priority cascade top to bottom; first match wins.
// Must be called with the lock held.
func (m *Model) deriveMood() (Mood, Mood) {
	var primary Mood
	switch {
	case m.regret > 0.6:
		primary = MoodRegretful
	case m.fatigue > 0.7:
		primary = MoodFatigued
	case m.suspicion > 0.6:
		primary = MoodSuspicious
	case m.confidence > 0.7 && m.conviction > 0.6:
		primary = MoodConfident
	case m.aggression > 0.6 && m.confidence > 0.5:
		primary = MoodAggressive
	case m.conviction > 0.7:
		primary = MoodObsessed
	case m.confidence < 0.4:
		primary = MoodCautious
	default:
		primary = MoodNeutral
	}

	// Secondary mood: the strongest runner-up emotion, if it clears 0.4.
	cautiousScore := 0.0
	if m.confidence < 0.5 {
		cautiousScore = 0.8
	}
	candidates := []struct {
		mood  Mood
		score float64
	}{
		{MoodRegretful, m.regret},
		{MoodSuspicious, m.suspicion},
		{MoodCautious, cautiousScore},
		{MoodFatigued, m.fatigue},
	}

	var secondary Mood
	best := 0.4
	for _, c := range candidates {
		if c.mood == primary {
			continue
		}
		if c.score > best {
			best = c.score
			secondary = c.mood
		}
	}
	return primary, secondary
}

// daysSinceLastTrade measures inactivity. Must be called with the lock held.
func (m *Model) daysSinceLastTrade() float64 {
	return m.clk.Now().Sub(m.lastTradeAt).Hours() / 24
}
