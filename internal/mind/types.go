// Package mind maintains the agent's psychological parameters and derives
// the mood and risk posture that modulate decision thresholds.
package mind

import "time"

// Mood is the derived emotional posture.
type Mood string

const (
	MoodNeutral    Mood = "NEUTRAL"
	MoodConfident  Mood = "CONFIDENT"
	MoodCautious   Mood = "CAUTIOUS"
	MoodAggressive Mood = "AGGRESSIVE"
	MoodSuspicious Mood = "SUSPICIOUS"
	MoodRegretful  Mood = "REGRETFUL"
	MoodFatigued   Mood = "FATIGUED"
	MoodObsessed   Mood = "OBSESSED"
)

// Mode is the operational mode of the agent.
type Mode string

const (
	ModeActive    Mode = "ACTIVE"
	ModeObserving Mode = "OBSERVING"
	ModeSafeMode  Mode = "SAFE_MODE"
	ModePaused    Mode = "PAUSED"
	ModeFrozen    Mode = "FROZEN"
)

// Convictions maps token address to a persistent per-token confidence
// score, distinct from global confidence. Unseen tokens read as 0.5.
type Convictions map[string]float64

// Get returns the conviction for a token, defaulting to 0.5.
func (c Convictions) Get(token string) float64 {
	if v, ok := c[token]; ok {
		return v
	}
	return 0.5
}

// clone returns an independent copy.
func (c Convictions) clone() Convictions {
	out := make(Convictions, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// State is an immutable snapshot of the agent's psychology. Consumers only
// ever see copies; the live struct stays inside the Model.
type State struct {
	Confidence float64
	Suspicion  float64
	Conviction float64
	Fatigue    float64
	Aggression float64
	Regret     float64

	PrimaryMood   Mood
	SecondaryMood Mood // empty when no secondary applies
	RiskAppetite  float64
	Mode          Mode

	WinStreak          int
	LossStreak         int
	LastTradeAt        time.Time
	DaysSinceLastTrade float64

	TokenConvictions Convictions
}

// TradeOutcome is the slice of a trade result the mind reacts to.
type TradeOutcome struct {
	Filled       bool
	TokenAddress string
	RealizedPnL  float64
}
