// Package risk is the single authority allowed to approve, shrink, or
// reject an intent before execution. It never changes an intent's type.
package risk

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/tokenmind/agent/internal/mind"
	"github.com/tokenmind/agent/internal/trade"
)

// Limits is the risk policy the guardrails enforce.
type Limits struct {
	MaxPositionSizePct  float64
	MaxTotalExposurePct float64
	MaxDailyLossPct     float64
	DailyTradeLimit     int // 0 disables the limit
}

// CheckResult is the guardrails' verdict on one intent.
type CheckResult struct {
	Approved        bool
	Reason          string
	AdjustedSizePct float64
}

// Guardrails tracks the daily ledger and applies the policy. It has no
// clock: the caller invokes ResetDaily at each calendar-day boundary.
type Guardrails struct {
	mu     sync.Mutex
	limits Limits

	dailyTrades   []trade.Result
	dailyPnL      float64
	dayStartValue float64
}

// NewGuardrails creates guardrails with the day baseline set to the
// starting portfolio value.
func NewGuardrails(limits Limits, startValue float64) *Guardrails {
	return &Guardrails{limits: limits, dayStartValue: startValue}
}

// CheckIntent vetoes, shrinks, or passes the intent. The intent's approval
// fields are set here and nowhere else.
func (g *Guardrails) CheckIntent(intent *trade.Intent, positions []trade.Position, capital float64) CheckResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	res := g.check(intent, positions, capital)

	intent.RiskApproved = res.Approved
	intent.RiskBlockReason = ""
	if !res.Approved {
		intent.RiskBlockReason = res.Reason
		slog.Info("intent_blocked", "type", intent.Type, "token", intent.TokenAddress, "reason", res.Reason)
	}
	intent.AdjustedSizePct = res.AdjustedSizePct

	return res
}

// check holds the decision ladder. Must be called with the lock held.
func (g *Guardrails) check(intent *trade.Intent, positions []trade.Position, capital float64) CheckResult {
	// Observing intents carry no risk.
	if intent.Type == trade.IntentWait || intent.Type == trade.IntentWatch {
		return CheckResult{Approved: true}
	}

	if g.limits.DailyTradeLimit > 0 && len(g.dailyTrades) >= g.limits.DailyTradeLimit {
		return CheckResult{Reason: fmt.Sprintf("daily trade limit of %d reached", g.limits.DailyTradeLimit)}
	}

	// The loss breach vetoes every trading intent. Re-evaluated on every
	// call, never cached.
	if g.shouldEnterSafeMode() {
		return CheckResult{Reason: fmt.Sprintf("safe mode: daily loss %.2f%% breached limit %.2f%%",
			g.dailyLossPct(), g.limits.MaxDailyLossPct)}
	}

	// An operator-forced safe mode vetoes capital increases even when the
	// daily loss threshold itself has not been breached.
	if intent.Type.IncreasesExposure() && intent.StateSnapshot.Mode == mind.ModeSafeMode {
		return CheckResult{Reason: "safe mode active: capital-increasing intents rejected"}
	}

	adjusted := 0.0
	if intent.Type.IncreasesExposure() {
		if intent.SizePct <= 0 {
			return CheckResult{Reason: "entry intent without a position size"}
		}
		if intent.SizePct > g.limits.MaxPositionSizePct {
			adjusted = g.limits.MaxPositionSizePct
		}
	}

	if intent.Type == trade.IntentEnter {
		exposure := totalExposurePct(positions, capital)
		if exposure >= g.limits.MaxTotalExposurePct {
			return CheckResult{Reason: fmt.Sprintf("exposure %.1f%% at or above limit %.1f%%",
				exposure, g.limits.MaxTotalExposurePct)}
		}
	}

	if adjusted > 0 {
		return CheckResult{
			Approved:        true,
			Reason:          fmt.Sprintf("size clamped from %.1f%% to %.1f%%", intent.SizePct, adjusted),
			AdjustedSizePct: adjusted,
		}
	}
	return CheckResult{Approved: true}
}

// RecordTrade appends a result to the daily ledger. This is the only way
// the daily counters grow.
func (g *Guardrails) RecordTrade(res trade.Result) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.dailyTrades = append(g.dailyTrades, res)
	g.dailyPnL += res.RealizedPnL
}

// ResetDaily clears the ledger and PnL accumulator and records the fresh
// day's baseline portfolio value. Called exactly once per day boundary.
func (g *Guardrails) ResetDaily(dayStartValue float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.dailyTrades = nil
	g.dailyPnL = 0
	g.dayStartValue = dayStartValue
}

// InSafeMode reports whether the daily loss threshold is breached.
func (g *Guardrails) InSafeMode() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shouldEnterSafeMode()
}

// DailyTradeCount returns the number of trades recorded today.
func (g *Guardrails) DailyTradeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.dailyTrades)
}

// DailyPnL returns today's accumulated realized PnL.
func (g *Guardrails) DailyPnL() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dailyPnL
}

// shouldEnterSafeMode is a pure function of the accumulated daily PnL.
// Must be called with the lock held.
func (g *Guardrails) shouldEnterSafeMode() bool {
	return g.dailyLossPct() >= g.limits.MaxDailyLossPct
}

// dailyLossPct expresses today's loss as a positive percentage of the
// day-start portfolio value. Gains report as zero loss.
func (g *Guardrails) dailyLossPct() float64 {
	if g.dayStartValue <= 0 || g.dailyPnL >= 0 {
		return 0
	}
	return -g.dailyPnL / g.dayStartValue * 100
}

// totalExposurePct sums position market values against capital.
func totalExposurePct(positions []trade.Position, capital float64) float64 {
	if capital <= 0 {
		return 0
	}
	var total float64
	for _, pos := range positions {
		total += pos.MarketValue()
	}
	return total / capital * 100
}
