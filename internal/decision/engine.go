// Package decision turns signals, psychology, and open positions into at
// most one intent per cycle.
package decision

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tokenmind/agent/internal/clock"
	"github.com/tokenmind/agent/internal/mind"
	"github.com/tokenmind/agent/internal/signal"
	"github.com/tokenmind/agent/internal/trade"
)

// Alternatives the engine considered but did not take. Informational only.
var alternativesByType = map[trade.IntentType][]string{
	trade.IntentEnter: {"wait for confirmation", "watch"},
	trade.IntentExit:  {"reduce instead", "hold"},
	trade.IntentWait:  {"force entry on weak signal", "go dormant"},
}

// Engine applies the precedence rules: Exit > Reduce > Enter > Add > Wait.
type Engine struct {
	clk                 clock.Clock
	minSignalConfidence float64
	cooldown            time.Duration

	lastIntentTime time.Time
}

// NewEngine creates a decision engine.
func NewEngine(clk clock.Clock, minSignalConfidence float64, cooldown time.Duration) *Engine {
	return &Engine{
		clk:                 clk,
		minSignalConfidence: minSignalConfidence,
		cooldown:            cooldown,
	}
}

// CanDecide reports whether the intent cooldown has elapsed.
func (e *Engine) CanDecide() bool {
	if e.lastIntentTime.IsZero() {
		return true
	}
	return e.clk.Now().Sub(e.lastIntentTime) >= e.cooldown
}

// Decide runs the precedence rules and returns exactly one intent. Every
// return — including WAIT — resets the cooldown.
func (e *Engine) Decide(signals []signal.Signal, state mind.State, positions []trade.Position) *trade.Intent {
	strong := make([]signal.Signal, 0, len(signals))
	for _, s := range signals {
		if s.Confidence >= e.minSignalConfidence {
			strong = append(strong, s)
		}
	}

	var intent *trade.Intent
	switch {
	case len(strong) == 0:
		intent = e.newIntent(trade.IntentWait, "", 0, "no strong signals", nil, state)
	default:
		intent = e.firstApplicable(strong, state, positions)
	}

	intent.Alternatives = alternativesByType[intent.Type]
	e.lastIntentTime = e.clk.Now()

	slog.Debug("intent_produced",
		"type", intent.Type,
		"token", intent.TokenAddress,
		"size_pct", intent.SizePct,
		"reason", intent.PrimaryReason,
	)
	return intent
}

// firstApplicable walks the rules in strict order; the first hit wins.
func (e *Engine) firstApplicable(signals []signal.Signal, state mind.State, positions []trade.Position) *trade.Intent {
	byToken := groupByToken(signals)

	// 1. Exit.
	for _, pos := range positions {
		tokenSignals := byToken[pos.TokenAddress]

		if pull, ok := findType(tokenSignals, signal.TypeLiquidityPull); ok && pull.Urgency > 0.7 {
			return e.newIntent(trade.IntentExit, pos.TokenAddress, 100,
				"liquidity being pulled", []string{pull.ID}, state)
		}
		if exhaustion, ok := findType(tokenSignals, signal.TypePriceExhaustion); ok && pos.UnrealizedPnLPct > 10 {
			return e.newIntent(trade.IntentExit, pos.TokenAddress, 100,
				fmt.Sprintf("taking profit at +%.1f%% into exhaustion", pos.UnrealizedPnLPct),
				[]string{exhaustion.ID}, state)
		}
		if state.TokenConvictions.Get(pos.TokenAddress) < 0.3 {
			return e.newIntent(trade.IntentExit, pos.TokenAddress, 100,
				"conviction in token lost", nil, state)
		}
	}

	// 2. Reduce.
	if state.PrimaryMood == mind.MoodSuspicious {
		for _, pos := range positions {
			if pos.UnrealizedPnLPct > 5 {
				return e.newIntent(trade.IntentReduce, pos.TokenAddress, 50,
					fmt.Sprintf("suspicious mood, locking in part of +%.1f%%", pos.UnrealizedPnLPct),
					nil, state)
			}
		}
	}

	// 3. Enter. Cautious and regretful moods sit entries out entirely.
	if state.PrimaryMood != mind.MoodCautious && state.PrimaryMood != mind.MoodRegretful {
		if best, ok := bestEntryCandidate(signals, positions); ok {
			// Higher agent confidence lowers the bar.
			threshold := 0.4 * (2 - state.Confidence)
			if best.Score() >= threshold {
				size := min(20, 10*state.RiskAppetite*best.Confidence)
				return e.newIntent(trade.IntentEnter, best.TokenAddress, size,
					fmt.Sprintf("%s signal scoring %.2f against threshold %.2f", best.Type, best.Score(), threshold),
					[]string{best.ID}, state)
			}
		}
	}

	// 4. Add.
	if state.Confidence >= 0.6 || state.PrimaryMood == mind.MoodAggressive {
		for _, pos := range positions {
			if surge, ok := findType(byToken[pos.TokenAddress], signal.TypeVolumeSurge); ok && surge.Confidence > 0.7 {
				return e.newIntent(trade.IntentAdd, pos.TokenAddress, 25,
					"volume surge on existing position", []string{surge.ID}, state)
			}
		}
	}

	// 5. Wait, carrying the considered signals as context.
	ids := make([]string, 0, len(signals))
	for _, s := range signals {
		ids = append(ids, s.ID)
	}
	return e.newIntent(trade.IntentWait, "", 0, "no rule fired", ids, state)
}

// newIntent builds a fresh intent with the state snapshot attached.
func (e *Engine) newIntent(t trade.IntentType, token string, sizePct float64, reason string, signalIDs []string, state mind.State) *trade.Intent {
	return &trade.Intent{
		ID:                  uuid.New().String(),
		Timestamp:           e.clk.Now(),
		Type:                t,
		TokenAddress:        token,
		SizePct:             sizePct,
		PrimaryReason:       reason,
		SupportingSignalIDs: signalIDs,
		StateSnapshot:       state,
	}
}

// bestEntryCandidate returns the highest-scoring entry-grade signal for a
// token with no open position. Only momentum and volume signals qualify.
func bestEntryCandidate(signals []signal.Signal, positions []trade.Position) (signal.Signal, bool) {
	held := make(map[string]struct{}, len(positions))
	for _, pos := range positions {
		held[pos.TokenAddress] = struct{}{}
	}

	var best signal.Signal
	found := false
	for _, s := range signals {
		if s.Type != signal.TypeEarlyMomentum && s.Type != signal.TypeVolumeSurge {
			continue
		}
		if s.TokenAddress == "" {
			continue
		}
		if _, ok := held[s.TokenAddress]; ok {
			continue
		}
		if !found || s.Score() > best.Score() {
			best = s
			found = true
		}
	}
	return best, found
}

// groupByToken indexes signals by token address.
func groupByToken(signals []signal.Signal) map[string][]signal.Signal {
	out := make(map[string][]signal.Signal)
	for _, s := range signals {
		out[s.TokenAddress] = append(out[s.TokenAddress], s)
	}
	return out
}

// findType returns the first signal of the given type.
func findType(signals []signal.Signal, t signal.Type) (signal.Signal, bool) {
	for _, s := range signals {
		if s.Type == t {
			return s, true
		}
	}
	return signal.Signal{}, false
}
