// Package ingest connects the agent to its external event feed and turns
// raw wire messages into typed market events.
package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tokenmind/agent/internal/market"
)

// wireEvent is the envelope the feed sends, one per observation.
type wireEvent struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	TokenAddress string          `json:"token_address"`
	TokenSymbol  string          `json:"token_symbol"`
	Source       string          `json:"source"`
	Timestamp    int64           `json:"timestamp"` // Unix milliseconds
	Data         json.RawMessage `json:"data"`
}

// wirePrice is the data payload for price_change envelopes.
type wirePrice struct {
	Price        float64 `json:"price"`
	ChangePct    float64 `json:"change_pct"`
	IntervalMins float64 `json:"interval_mins"`
}

// wireVolume is the data payload for volume_spike envelopes.
type wireVolume struct {
	Volume     float64 `json:"volume"`
	Multiplier float64 `json:"multiplier"`
}

// wireLiquidity is the data payload for liquidity_change envelopes.
type wireLiquidity struct {
	Liquidity float64 `json:"liquidity"`
	ChangePct float64 `json:"change_pct"`
}

// wireSocial is the data payload for mention_spike and sentiment_shift envelopes.
type wireSocial struct {
	Mentions  int     `json:"mentions"`
	Sentiment float64 `json:"sentiment"`
}

// ParseMessage parses a raw feed message — a single envelope or an array of
// them — into market events. Malformed envelopes are skipped, not fatal.
func ParseMessage(data []byte) ([]market.Event, string, error) {
	var envelopes []wireEvent
	if err := json.Unmarshal(data, &envelopes); err != nil {
		var single wireEvent
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, "", fmt.Errorf("failed to unmarshal message: %w", err)
		}
		if single.Type == "" {
			return nil, "", nil
		}
		envelopes = []wireEvent{single}
	}

	events := make([]market.Event, 0, len(envelopes))
	msgType := ""
	for _, env := range envelopes {
		msgType = env.Type
		ev, err := convertEvent(env)
		if err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, msgType, nil
}

// convertEvent maps one envelope to a typed event.
func convertEvent(env wireEvent) (market.Event, error) {
	ev := market.Event{
		ID:           env.ID,
		Timestamp:    time.UnixMilli(env.Timestamp),
		Source:       env.Source,
		TokenAddress: env.TokenAddress,
		TokenSymbol:  env.TokenSymbol,
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if env.Timestamp == 0 {
		ev.Timestamp = time.Now()
	}

	switch env.Type {
	case "price_change":
		var p wirePrice
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return market.Event{}, fmt.Errorf("price payload: %w", err)
		}
		ev.Type = market.EventPriceChange
		ev.Price = &market.PricePayload{Price: p.Price, ChangePct: p.ChangePct, IntervalMins: p.IntervalMins}
	case "volume_spike":
		var v wireVolume
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return market.Event{}, fmt.Errorf("volume payload: %w", err)
		}
		ev.Type = market.EventVolumeSpike
		ev.Volume = &market.VolumePayload{Volume: v.Volume, Multiplier: v.Multiplier}
	case "liquidity_change":
		var l wireLiquidity
		if err := json.Unmarshal(env.Data, &l); err != nil {
			return market.Event{}, fmt.Errorf("liquidity payload: %w", err)
		}
		ev.Type = market.EventLiquidityChange
		ev.Liquidity = &market.LiquidityPayload{Liquidity: l.Liquidity, ChangePct: l.ChangePct}
	case "mention_spike", "sentiment_shift":
		var s wireSocial
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return market.Event{}, fmt.Errorf("social payload: %w", err)
		}
		if env.Type == "mention_spike" {
			ev.Type = market.EventMentionSpike
		} else {
			ev.Type = market.EventSentimentShift
		}
		ev.Social = &market.SocialPayload{Mentions: s.Mentions, Sentiment: s.Sentiment}
	default:
		return market.Event{}, fmt.Errorf("unknown event type %q", env.Type)
	}

	return ev, nil
}
