// Package market defines the typed observation stream the agent consumes.
package market

import "time"

// EventType classifies an observation.
type EventType string

const (
	EventPriceChange     EventType = "PRICE_CHANGE"
	EventVolumeSpike     EventType = "VOLUME_SPIKE"
	EventLiquidityChange EventType = "LIQUIDITY_CHANGE"
	EventMentionSpike    EventType = "MENTION_SPIKE"
	EventSentimentShift  EventType = "SENTIMENT_SHIFT"
)

// IsSocial reports whether the event type comes from the social feed.
func (t EventType) IsSocial() bool {
	return t == EventMentionSpike || t == EventSentimentShift
}

// PricePayload carries the numbers for a PRICE_CHANGE event.
type PricePayload struct {
	Price        float64
	ChangePct    float64 // signed percentage move since the previous reading
	IntervalMins float64
}

// VolumePayload carries the numbers for a VOLUME_SPIKE event.
type VolumePayload struct {
	Volume     float64
	Multiplier float64 // volume relative to the trailing baseline, 1.0 = flat
}

// LiquidityPayload carries the numbers for a LIQUIDITY_CHANGE event.
type LiquidityPayload struct {
	Liquidity float64
	ChangePct float64 // signed; a pull shows up negative
}

// SocialPayload carries the numbers for MENTION_SPIKE and SENTIMENT_SHIFT events.
type SocialPayload struct {
	Mentions  int
	Sentiment float64 // -1..1
}

// Event is a single timestamped observation. Exactly one payload variant is
// set, matching Type; detectors switch on Type and read that variant only.
// Events are immutable once produced.
type Event struct {
	ID           string
	Timestamp    time.Time
	Source       string
	Type         EventType
	TokenAddress string
	TokenSymbol  string

	Price     *PricePayload
	Volume    *VolumePayload
	Liquidity *LiquidityPayload
	Social    *SocialPayload
}
