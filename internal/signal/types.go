// Package signal converts the noisy event stream into a small set of
// decaying, confidence-scored signals.
package signal

import "time"

// Type identifies a detection pattern.
type Type string

const (
	TypeVolumeSurge     Type = "VOLUME_SURGE"
	TypeEarlyMomentum   Type = "EARLY_MOMENTUM"
	TypeLiquidityPull   Type = "LIQUIDITY_PULL"
	TypePriceExhaustion Type = "PRICE_EXHAUSTION"
	TypeDormancy        Type = "DORMANCY"
	TypeHypeBurst       Type = "HYPE_BURST"
)

// Signal is a scored, decaying interpretation of recent events. At most one
// live signal exists per (Type, TokenAddress) pair; a repeat detection
// reinforces the existing signal instead of duplicating it.
type Signal struct {
	ID             string
	Timestamp      time.Time
	Type           Type
	TokenAddress   string
	Confidence     float64
	Strength       float64
	Urgency        float64
	Description    string
	SourceEventIDs []string
	ExpiresAt      time.Time
	DecayRate      float64

	// Decay anchor. Confidence is always recomputed from these, never
	// compounded incrementally, so repeated updates within one instant
	// are idempotent. Reinforcement re-anchors both.
	baseConfidence float64
	baseTime       time.Time
}

// Score is the composite used to rank entry candidates.
func (s Signal) Score() float64 {
	return s.Confidence * s.Strength * s.Urgency
}

// Detection is a raw detector result, before reinforcement or signal creation.
type Detection struct {
	Type           Type
	TokenAddress   string
	Confidence     float64
	Strength       float64
	Urgency        float64
	Description    string
	SourceEventIDs []string
}
