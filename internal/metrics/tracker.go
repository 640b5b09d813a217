// Package metrics provides real-time counters for external observers.
package metrics

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time view of the tracker. External consumers
// (dashboards, narrators) only ever receive these copies.
type Snapshot struct {
	EventsTotal    int64
	SignalsByType  map[string]int64
	IntentsByType  map[string]int64
	IntentsBlocked int64
	TradesFilled   int64
	TradesFailed   int64
	RealizedPnL    float64
	TicksCompleted int64
	LastTickAt     time.Time
	Uptime         time.Duration
	IngestStatus   string
}

// Tracker provides thread-safe metrics tracking.
type Tracker struct {
	mu             sync.RWMutex
	eventsTotal    int64
	signalsByType  map[string]int64
	intentsByType  map[string]int64
	intentsBlocked int64
	tradesFilled   int64
	tradesFailed   int64
	realizedPnL    float64
	ticksCompleted int64
	lastTickAt     time.Time
	startTime      time.Time
	ingestStatus   string
}

// NewTracker creates a Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		signalsByType: make(map[string]int64),
		intentsByType: make(map[string]int64),
		startTime:     time.Now(),
		ingestStatus:  "disconnected",
	}
}

// AddEvents adds to the processed-event counter.
func (t *Tracker) AddEvents(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.eventsTotal += int64(n)
}

// IncrementSignal increments the counter for a signal type.
func (t *Tracker) IncrementSignal(signalType string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.signalsByType[signalType]++
}

// IncrementIntent increments the counter for an intent type.
func (t *Tracker) IncrementIntent(intentType string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.intentsByType[intentType]++
}

// IncrementBlocked counts a risk-rejected intent.
func (t *Tracker) IncrementBlocked() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.intentsBlocked++
}

// RecordTrade counts a fill or failure and accumulates realized PnL.
func (t *Tracker) RecordTrade(filled bool, realizedPnL float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if filled {
		t.tradesFilled++
		t.realizedPnL += realizedPnL
	} else {
		t.tradesFailed++
	}
}

// TickCompleted marks the end of one loop cycle.
func (t *Tracker) TickCompleted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ticksCompleted++
	t.lastTickAt = time.Now()
}

// SetIngestStatus sets the event-source connection status.
func (t *Tracker) SetIngestStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ingestStatus = status
}

// Snapshot returns a point-in-time copy of all counters.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	signalsCopy := make(map[string]int64, len(t.signalsByType))
	for k, v := range t.signalsByType {
		signalsCopy[k] = v
	}
	intentsCopy := make(map[string]int64, len(t.intentsByType))
	for k, v := range t.intentsByType {
		intentsCopy[k] = v
	}

	return Snapshot{
		EventsTotal:    t.eventsTotal,
		SignalsByType:  signalsCopy,
		IntentsByType:  intentsCopy,
		IntentsBlocked: t.intentsBlocked,
		TradesFilled:   t.tradesFilled,
		TradesFailed:   t.tradesFailed,
		RealizedPnL:    t.realizedPnL,
		TicksCompleted: t.ticksCompleted,
		LastTickAt:     t.lastTickAt,
		Uptime:         time.Since(t.startTime),
		IngestStatus:   t.ingestStatus,
	}
}
