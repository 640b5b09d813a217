package signal

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/tokenmind/agent/internal/clock"
	"github.com/tokenmind/agent/internal/market"
)

// signalKey identifies the single live signal allowed per (type, token) pair.
type signalKey struct {
	sigType Type
	token   string
}

// Engine maintains the rolling event window and the set of live signals.
// It is single-writer: the tick loop is the only caller.
type Engine struct {
	clk            clock.Clock
	windowSize     time.Duration
	halfLife       time.Duration
	minConfidence  float64
	decayRate      float64
	reinforceBoost float64

	window    []market.Event
	active    map[signalKey]*Signal
	detectors []namedDetector
}

// Options configures an Engine.
type Options struct {
	WindowSize     time.Duration
	DecayHalfLife  time.Duration
	MinConfidence  float64
	DecayRate      float64
	ReinforceBoost float64
}

// NewEngine creates an Engine with the full detector set registered.
func NewEngine(clk clock.Clock, opts Options) *Engine {
	return &Engine{
		clk:            clk,
		windowSize:     opts.WindowSize,
		halfLife:       opts.DecayHalfLife,
		minConfidence:  opts.MinConfidence,
		decayRate:      opts.DecayRate,
		reinforceBoost: opts.ReinforceBoost,
		active:         make(map[signalKey]*Signal),
		detectors: []namedDetector{
			{"volume_surge", detectVolumeSurge},
			{"early_momentum", detectEarlyMomentum},
			{"liquidity_pull", detectLiquidityPull},
			{"price_exhaustion", detectPriceExhaustion},
			{"dormancy", detectDormancy},
			{"hype_burst", detectHypeBurst},
		},
	}
}

// ProcessEvents appends events to the rolling window, runs every detector
// against it, and reinforces or creates signals from the results. Only
// newly created signals are returned.
func (e *Engine) ProcessEvents(events []market.Event, trackedTokens []string) []Signal {
	now := e.clk.Now()

	e.window = append(e.window, events...)
	e.pruneWindow(now)

	view := windowView{Events: e.window, Tracked: trackedTokens, Now: now}

	var created []Signal
	for _, d := range e.detectors {
		for _, det := range e.runDetector(d, view) {
			if det.Confidence < e.minConfidence {
				continue
			}
			if sig := e.apply(det, now); sig != nil {
				created = append(created, *sig)
			}
		}
	}
	return created
}

// UpdateSignals re-derives every live signal's confidence from its decay
// anchor, evicts the dead ones, and returns the survivors. Confidence is a
// pure function of the anchor and the clock, so calling this twice at the
// same instant changes nothing.
func (e *Engine) UpdateSignals() []Signal {
	now := e.clk.Now()

	out := make([]Signal, 0, len(e.active))
	for key, sig := range e.active {
		sig.Confidence = e.decayedConfidence(sig, now)
		if sig.Confidence < e.minConfidence || !now.Before(sig.ExpiresAt) {
			delete(e.active, key)
			slog.Debug("signal_expired", "type", sig.Type, "token", sig.TokenAddress, "confidence", sig.Confidence)
			continue
		}
		out = append(out, *sig)
	}
	return out
}

// WindowLen reports how many events are currently in the rolling window.
func (e *Engine) WindowLen() int {
	return len(e.window)
}

// apply reinforces the live signal for the detection's key, or creates a
// new one. Returns the new signal, or nil when an existing one absorbed it.
func (e *Engine) apply(det Detection, now time.Time) *Signal {
	key := signalKey{det.Type, det.TokenAddress}

	if sig, ok := e.active[key]; ok && now.Before(sig.ExpiresAt) {
		current := e.decayedConfidence(sig, now)
		// Never below what a fresh detection would have created at.
		sig.baseConfidence = math.Min(0.99, math.Max(current+e.reinforceBoost, det.Confidence))
		sig.baseTime = now
		sig.Confidence = sig.baseConfidence
		sig.Strength = math.Max(sig.Strength, det.Strength)
		sig.Urgency = math.Max(sig.Urgency, det.Urgency)
		sig.ExpiresAt = now.Add(3 * e.halfLife)
		sig.SourceEventIDs = appendNewIDs(sig.SourceEventIDs, det.SourceEventIDs)
		slog.Debug("signal_reinforced", "type", sig.Type, "token", sig.TokenAddress, "confidence", sig.Confidence)
		return nil
	}

	sig := &Signal{
		ID:             uuid.New().String(),
		Timestamp:      now,
		Type:           det.Type,
		TokenAddress:   det.TokenAddress,
		Confidence:     det.Confidence,
		Strength:       det.Strength,
		Urgency:        det.Urgency,
		Description:    det.Description,
		SourceEventIDs: det.SourceEventIDs,
		ExpiresAt:      now.Add(3 * e.halfLife),
		DecayRate:      e.decayRate,
		baseConfidence: det.Confidence,
		baseTime:       now,
	}
	e.active[key] = sig
	slog.Debug("signal_created", "type", sig.Type, "token", sig.TokenAddress, "confidence", sig.Confidence)
	return sig
}

// decayedConfidence computes confidence at the given instant from the
// signal's anchor: base · rate^(elapsed/halfLife).
func (e *Engine) decayedConfidence(sig *Signal, now time.Time) float64 {
	elapsed := now.Sub(sig.baseTime)
	if elapsed <= 0 {
		return sig.baseConfidence
	}
	halfLives := float64(elapsed) / float64(e.halfLife)
	return sig.baseConfidence * math.Pow(sig.DecayRate, halfLives)
}

// pruneWindow drops events older than the window cutoff.
func (e *Engine) pruneWindow(now time.Time) {
	cutoff := now.Add(-e.windowSize)
	validIdx := 0
	for i, ev := range e.window {
		if ev.Timestamp.After(cutoff) {
			validIdx = i
			break
		}
		if i == len(e.window)-1 {
			validIdx = len(e.window)
		}
	}
	if validIdx > 0 {
		e.window = e.window[validIdx:]
	}
}

// runDetector isolates a single detector: a panic is logged and yields no
// detections, and the other detectors still run against an intact window.
func (e *Engine) runDetector(d namedDetector, view windowView) (out []Detection) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("detector_panic", "detector", d.name, "panic", fmt.Sprint(r))
			out = nil
		}
	}()
	return d.run(view)
}

// appendNewIDs appends ids not already present.
func appendNewIDs(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		seen[id] = struct{}{}
	}
	for _, id := range incoming {
		if _, ok := seen[id]; !ok {
			existing = append(existing, id)
		}
	}
	return existing
}
