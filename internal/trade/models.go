// Package trade defines the shared models that flow between the decision
// engine, risk guardrails, and execution.
package trade

import (
	"time"

	"github.com/tokenmind/agent/internal/mind"
)

// IntentType is the action the decision engine wants to take this cycle.
type IntentType string

const (
	IntentWatch  IntentType = "WATCH"
	IntentEnter  IntentType = "ENTER"
	IntentAdd    IntentType = "ADD"
	IntentReduce IntentType = "REDUCE"
	IntentExit   IntentType = "EXIT"
	IntentFreeze IntentType = "FREEZE"
	IntentWait   IntentType = "WAIT"
)

// Executable reports whether the intent reaches the simulator at all.
// WAIT and WATCH never trade and are always risk-approved.
func (t IntentType) Executable() bool {
	return t == IntentEnter || t == IntentAdd || t == IntentReduce || t == IntentExit
}

// IncreasesExposure reports whether the intent commits more capital.
func (t IntentType) IncreasesExposure() bool {
	return t == IntentEnter || t == IntentAdd
}

// Intent is produced fresh each decision cycle. Only the risk guardrails
// ever mutate one, and only its approval fields.
type Intent struct {
	ID                  string
	Timestamp           time.Time
	Type                IntentType
	TokenAddress        string
	SizePct             float64
	PrimaryReason       string
	Alternatives        []string
	SupportingSignalIDs []string
	StateSnapshot       mind.State

	RiskApproved    bool
	RiskBlockReason string
	AdjustedSizePct float64 // non-zero when the guardrails shrank the request
}

// EffectiveSizePct returns the size the executor should use: the clamped
// size when the guardrails adjusted it, the requested size otherwise.
func (i Intent) EffectiveSizePct() float64 {
	if i.AdjustedSizePct > 0 {
		return i.AdjustedSizePct
	}
	return i.SizePct
}

// Status is the terminal state of a simulated fill.
type Status string

const (
	StatusFilled Status = "FILLED"
	StatusFailed Status = "FAILED"
)

// Result is the immutable record of one simulated fill.
type Result struct {
	ID              string
	IntentID        string
	SignalIDs       []string
	Type            IntentType
	TokenAddress    string
	RequestedAmount float64
	FilledAmount    float64
	Price           float64
	SlippagePct     float64
	RealizedPnL     float64
	Status          Status
	TxSignature     string
	Error           string
	Timestamp       time.Time
}

// Outcome converts the result into the view the state model consumes.
func (r Result) Outcome() mind.TradeOutcome {
	return mind.TradeOutcome{
		Filled:       r.Status == StatusFilled,
		TokenAddress: r.TokenAddress,
		RealizedPnL:  r.RealizedPnL,
	}
}

// Position is one open paper position. Exactly one exists per token.
type Position struct {
	TokenAddress      string
	TokenSymbol       string
	Amount            float64
	AverageEntryPrice float64
	CurrentPrice      float64
	UnrealizedPnL     float64
	UnrealizedPnLPct  float64
	OpenedAt          time.Time
	LastUpdatedAt     time.Time
	EntryIntentID     string
	TradeIDs          []string
}

// MarketValue marks the position at its current price, falling back to the
// average entry price before the first mark arrives.
func (p Position) MarketValue() float64 {
	price := p.CurrentPrice
	if price == 0 {
		price = p.AverageEntryPrice
	}
	return p.Amount * price
}
