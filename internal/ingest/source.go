package ingest

import "github.com/tokenmind/agent/internal/market"

// Source buffers incoming events between ticks. Producers (listener,
// poller) push into the channel; the tick loop drains it non-blocking at
// the start of each cycle.
type Source struct {
	ch chan market.Event
}

// NewSource creates a Source with the given buffer size.
func NewSource(buffer int) *Source {
	return &Source{ch: make(chan market.Event, buffer)}
}

// Chan exposes the producer side.
func (s *Source) Chan() chan<- market.Event {
	return s.ch
}

// Drain returns every buffered event without blocking, up to max.
// max <= 0 means no limit beyond the buffer itself.
func (s *Source) Drain(max int) []market.Event {
	var out []market.Event
	for {
		select {
		case ev := <-s.ch:
			out = append(out, ev)
			if max > 0 && len(out) >= max {
				return out
			}
		default:
			return out
		}
	}
}

// Buffered reports how many events are waiting.
func (s *Source) Buffered() int {
	return len(s.ch)
}
