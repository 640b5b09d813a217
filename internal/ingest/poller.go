package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tokenmind/agent/internal/market"
)

// DefaultPollInterval is the default REST polling interval.
const DefaultPollInterval = 5 * time.Second

// Poller polls the feed's REST endpoint for events the WebSocket may have
// missed. It degrades gracefully when the endpoint is absent.
type Poller struct {
	client    *resty.Client
	interval  time.Duration
	eventChan chan<- market.Event
	lastPoll  time.Time
}

// NewPoller creates a Poller against the given base URL.
func NewPoller(baseURL, apiKey string, interval time.Duration, eventChan chan<- market.Event) *Poller {
	if interval == 0 {
		interval = DefaultPollInterval
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2)
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}

	return &Poller{
		client:    client,
		interval:  interval,
		eventChan: eventChan,
		lastPoll:  time.Now().Add(-5 * time.Minute), // start with a short lookback
	}
}

// Start begins polling until the context is cancelled.
func (p *Poller) Start(ctx context.Context) {
	slog.Info("event_poller_started", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	if err := p.poll(ctx); err != nil {
		slog.Warn("initial_poll_failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("event_poller_stopped")
			return
		case <-ticker.C:
			if err := p.poll(ctx); err != nil {
				slog.Debug("poll_failed", "error", err)
			}
		}
	}
}

// poll fetches recent events and dispatches them.
func (p *Poller) poll(ctx context.Context) error {
	events, err := p.fetchRecentEvents(ctx, p.lastPoll)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	if len(events) > 0 {
		slog.Debug("events_fetched", "count", len(events))
		p.lastPoll = time.Now()

		for _, ev := range events {
			select {
			case p.eventChan <- ev:
			default:
				slog.Warn("event_channel_full_api", "dropped_event", ev.ID)
			}
		}
	}

	return nil
}

// fetchRecentEvents fetches events after the given timestamp.
func (p *Poller) fetchRecentEvents(ctx context.Context, after time.Time) ([]market.Event, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("after", fmt.Sprintf("%d", after.UnixMilli())).
		SetQueryParam("limit", "200").
		Get("/events")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode())
	}

	var envelopes []wireEvent
	if err := json.Unmarshal(resp.Body(), &envelopes); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	events := make([]market.Event, 0, len(envelopes))
	for _, env := range envelopes {
		ev, err := convertEvent(env)
		if err != nil {
			slog.Debug("event_skipped", "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
