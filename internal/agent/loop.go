// Package agent runs the core decision loop: events in, at most one
// risk-checked intent out per tick.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tokenmind/agent/internal/clock"
	"github.com/tokenmind/agent/internal/config"
	"github.com/tokenmind/agent/internal/decision"
	"github.com/tokenmind/agent/internal/ingest"
	"github.com/tokenmind/agent/internal/market"
	"github.com/tokenmind/agent/internal/metrics"
	"github.com/tokenmind/agent/internal/mind"
	"github.com/tokenmind/agent/internal/paper"
	"github.com/tokenmind/agent/internal/risk"
	"github.com/tokenmind/agent/internal/signal"
	"github.com/tokenmind/agent/internal/store"
	"github.com/tokenmind/agent/internal/trade"
)

// maxEventsPerTick bounds how much of the backlog one tick will absorb.
const maxEventsPerTick = 1000

// Loop owns every core component and drives them sequentially. No two
// ticks ever run concurrently: Run executes them one at a time and a stop
// request takes effect only after the in-flight tick completes.
type Loop struct {
	clk     clock.Clock
	source  *ingest.Source
	signals *signal.Engine
	psyche  *mind.Model
	decider *decision.Engine
	guards  *risk.Guardrails
	sim     *paper.Simulator
	tracker *metrics.Tracker
	db      *store.Store // nil disables persistence

	tickInterval time.Duration
	tracked      []string

	running atomic.Bool

	// Observer-visible caches, refreshed once per tick.
	mu          sync.RWMutex
	prices      map[string]float64
	lastSignals []signal.Signal
	lastIntent  *trade.Intent
	currentDay  string

	onResult func(trade.Result) // external feedback consumer, may be nil
}

// New wires a Loop from configuration.
func New(cfg *config.Config, clk clock.Clock, source *ingest.Source, db *store.Store) *Loop {
	limits := risk.Limits{
		MaxPositionSizePct:  cfg.MaxPositionSizePct,
		MaxTotalExposurePct: cfg.MaxTotalExposurePct,
		MaxDailyLossPct:     cfg.MaxDailyLossPct,
		DailyTradeLimit:     cfg.DailyTradeLimit,
	}

	return &Loop{
		clk:    clk,
		source: source,
		signals: signal.NewEngine(clk, signal.Options{
			WindowSize:     cfg.WindowSize,
			DecayHalfLife:  cfg.DecayHalfLife,
			MinConfidence:  cfg.MinConfidence,
			DecayRate:      cfg.DecayRate,
			ReinforceBoost: cfg.ReinforceBoost,
		}),
		psyche:       mind.NewModel(clk),
		decider:      decision.NewEngine(clk, cfg.MinSignalConfidence, cfg.IntentCooldown),
		guards:       risk.NewGuardrails(limits, cfg.InitialCapital),
		sim:          paper.NewSimulator(clk, cfg.InitialCapital, cfg.SlippagePct),
		tracker:      metrics.NewTracker(),
		db:           db,
		tickInterval: cfg.TickInterval,
		tracked:      append([]string(nil), cfg.TrackedTokens...),
		prices:       make(map[string]float64),
		currentDay:   clk.Now().Format("2006-01-02"),
	}
}

// SetResultHook registers the external consumer of trade results (memory,
// narration). Must be called before Run.
func (l *Loop) SetResultHook(fn func(trade.Result)) {
	l.onResult = fn
}

// Restore loads persisted state, if any, into the mind and the book.
func (l *Loop) Restore() error {
	if l.db == nil {
		return nil
	}

	state, capital, positions, tracked, found, err := l.db.LoadSnapshot()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !found {
		return nil
	}

	l.psyche.Restore(state)
	l.sim.Restore(capital, positions)
	if len(tracked) > 0 {
		l.tracked = tracked
	}

	slog.Info("state_restored",
		"mode", state.Mode,
		"capital", capital,
		"positions", len(positions),
		"tracked_tokens", len(l.tracked),
	)
	return nil
}

// Run drives ticks until the context is cancelled or Stop is called. A
// panicking tick is logged and the loop continues with the next one.
func (l *Loop) Run(ctx context.Context) {
	l.running.Store(true)
	slog.Info("loop_started", "tick_interval", l.tickInterval, "tracked_tokens", len(l.tracked))

	ticker := time.NewTicker(l.tickInterval)
	defer ticker.Stop()

	for l.running.Load() {
		select {
		case <-ctx.Done():
			l.shutdown()
			return
		case <-ticker.C:
			l.safeTick(ctx)
		}
	}
	l.shutdown()
}

// Stop requests a cooperative stop; the loop exits after the tick in
// flight, never mid-tick.
func (l *Loop) Stop() {
	l.running.Store(false)
}

// Tick runs one full pass through the pipeline.
func (l *Loop) Tick(ctx context.Context) {
	now := l.clk.Now()
	l.rollDayIfNeeded(now)

	// 1. Ingest.
	events := l.source.Drain(maxEventsPerTick)
	l.tracker.AddEvents(len(events))
	l.absorbPrices(events)

	// 2. Signals.
	created := l.signals.ProcessEvents(events, l.trackedTokens())
	for _, s := range created {
		l.tracker.IncrementSignal(string(s.Type))
	}
	active := l.signals.UpdateSignals()

	l.mu.Lock()
	l.lastSignals = active
	l.mu.Unlock()

	// 3. Psychology.
	l.psyche.Tick()

	// 4. Mark the book before any decision reads it.
	l.sim.UpdatePositions(l.pricesCopy())

	// Automatic, sticky safe-mode flip; only a manual Resume or
	// SetSafeMode(false) clears it.
	state := l.psyche.Snapshot()
	if l.guards.InSafeMode() && state.Mode == mind.ModeActive {
		l.psyche.SetMode(mind.ModeSafeMode)
		state = l.psyche.Snapshot()
	}

	if state.Mode == mind.ModePaused || state.Mode == mind.ModeFrozen {
		slog.Debug("tick_skipped", "mode", state.Mode)
		l.tracker.TickCompleted()
		return
	}

	// 5. Decision, behind the cooldown.
	if !l.decider.CanDecide() {
		l.tracker.TickCompleted()
		return
	}
	positions := l.sim.Positions()
	intent := l.decider.Decide(active, state, positions)
	l.tracker.IncrementIntent(string(intent.Type))

	l.mu.Lock()
	l.lastIntent = intent
	l.mu.Unlock()

	// 6. Risk.
	verdict := l.guards.CheckIntent(intent, positions, l.sim.Capital())
	if !verdict.Approved {
		l.tracker.IncrementBlocked()
		l.tracker.TickCompleted()
		return
	}

	// 7. Execution and feedback.
	if intent.Type.Executable() {
		l.execute(ctx, intent)
	}

	l.tracker.TickCompleted()
	slog.Debug("tick_complete",
		"events", len(events),
		"active_signals", len(active),
		"intent", intent.Type,
		"total_value", l.sim.TotalValue(),
	)
}

// execute forwards an approved intent to the simulator and fans the result
// back into psychology, risk ledger, metrics, and persistence.
func (l *Loop) execute(ctx context.Context, intent *trade.Intent) {
	price := l.priceFor(intent.TokenAddress)

	result := l.sim.Execute(ctx, intent, price)

	l.guards.RecordTrade(result)
	l.psyche.UpdateFromTrade(result.Outcome())
	l.tracker.RecordTrade(result.Status == trade.StatusFilled, result.RealizedPnL)

	if l.db != nil {
		if err := l.db.AppendTrade(result); err != nil {
			slog.Error("trade_persist_failed", "error", err)
		}
		l.persistSnapshot()
	}

	if l.onResult != nil {
		l.onResult(result)
	}

	slog.Info("trade_executed",
		"type", result.Type,
		"token", result.TokenAddress,
		"status", result.Status,
		"filled", result.FilledAmount,
		"price", result.Price,
		"realized_pnl", result.RealizedPnL,
		"error", result.Error,
	)
}

// Pause halts decision-making after the current tick.
func (l *Loop) Pause() {
	l.psyche.SetMode(mind.ModePaused)
}

// Resume returns the agent to active operation, clearing pause and manual
// safe mode. A same-day loss breach still vetoes entries at the guardrails.
func (l *Loop) Resume() {
	l.psyche.SetMode(mind.ModeActive)
}

// SetSafeMode toggles the capital-preserving mode by hand.
func (l *Loop) SetSafeMode(enabled bool) {
	if enabled {
		l.psyche.SetMode(mind.ModeSafeMode)
		return
	}
	if l.psyche.Mode() == mind.ModeSafeMode {
		l.psyche.SetMode(mind.ModeActive)
	}
}

// State returns a snapshot of the agent's psychology.
func (l *Loop) State() mind.State {
	return l.psyche.Snapshot()
}

// Positions returns copies of the open positions.
func (l *Loop) Positions() []trade.Position {
	return l.sim.Positions()
}

// Signals returns the active signals as of the last tick.
func (l *Loop) Signals() []signal.Signal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]signal.Signal(nil), l.lastSignals...)
}

// LastIntent returns a copy of the most recent intent, if any.
func (l *Loop) LastIntent() (trade.Intent, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.lastIntent == nil {
		return trade.Intent{}, false
	}
	return *l.lastIntent, true
}

// Metrics returns the current metrics snapshot.
func (l *Loop) Metrics() metrics.Snapshot {
	return l.tracker.Snapshot()
}

// SetIngestStatus records which event source is feeding the loop.
func (l *Loop) SetIngestStatus(status string) {
	l.tracker.SetIngestStatus(status)
}

// TotalValue returns free capital plus position value.
func (l *Loop) TotalValue() float64 {
	return l.sim.TotalValue()
}

// safeTick contains a single tick's panic so the loop survives it.
func (l *Loop) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tick_panic", "panic", fmt.Sprint(r))
		}
	}()
	l.Tick(ctx)
}

// shutdown flushes state before the loop exits.
func (l *Loop) shutdown() {
	l.persistSnapshot()
	slog.Info("loop_stopped", "total_value", l.sim.TotalValue())
}

// persistSnapshot writes the durable state; failures are logged, never fatal.
func (l *Loop) persistSnapshot() {
	if l.db == nil {
		return
	}
	if err := l.db.SaveSnapshot(l.psyche.Snapshot(), l.sim.Capital(), l.sim.Positions(), l.trackedTokens()); err != nil {
		slog.Error("snapshot_persist_failed", "error", err)
	}
}

// rollDayIfNeeded resets the daily risk ledger at a calendar-day boundary.
func (l *Loop) rollDayIfNeeded(now time.Time) {
	day := now.Format("2006-01-02")

	l.mu.Lock()
	changed := day != l.currentDay
	if changed {
		l.currentDay = day
	}
	l.mu.Unlock()

	if changed {
		l.guards.ResetDaily(l.sim.TotalValue())
		slog.Info("daily_reset", "day", day, "day_start_value", l.sim.TotalValue())
	}
}

// absorbPrices keeps the latest quote per token from the price events.
func (l *Loop) absorbPrices(events []market.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range events {
		if ev.Type == market.EventPriceChange && ev.Price != nil && ev.Price.Price > 0 {
			l.prices[ev.TokenAddress] = ev.Price.Price
		}
	}
}

// pricesCopy returns an independent copy of the price cache.
func (l *Loop) pricesCopy() map[string]float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]float64, len(l.prices))
	for k, v := range l.prices {
		out[k] = v
	}
	return out
}

// priceFor returns the last seen price for a token, zero when unknown.
func (l *Loop) priceFor(token string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.prices[token]
}

// trackedTokens returns the tracked token list.
func (l *Loop) trackedTokens() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.tracked...)
}
