package session

import (
	"time"

	"github.com/ayusman/fingerspell/internal/gesture"
)

// EventType identifies what happened in a session.
type EventType string

const (
	// EventPrediction is published on every predict tick that saw a hand.
	EventPrediction EventType = "prediction"
	// EventEmit is published when the stabilizer emits a symbol.
	EventEmit EventType = "emit"
	// EventSuggestions carries the result of a spell lookup.
	EventSuggestions EventType = "suggestions"
	// EventSpellError reports a failed spell lookup.
	EventSpellError EventType = "spell_error"
	// EventCapture is published after a sample is captured in record mode.
	EventCapture EventType = "capture"
	// EventCommit is published after pending samples are saved.
	EventCommit EventType = "commit"
	// EventState is published when mode, target or text is changed directly.
	EventState EventType = "state"
)

// Event is a session update delivered to subscribers.
type Event struct {
	Type        EventType       `json:"type"`
	SessionID   string          `json:"session_id"`
	Time        time.Time       `json:"time"`
	Prediction  *gesture.Result `json:"prediction,omitempty"`
	Symbol      string          `json:"symbol,omitempty"`
	Text        string          `json:"text"`
	Word        string          `json:"word,omitempty"`
	Suggestions []string        `json:"suggestions,omitempty"`
	Label       string          `json:"label,omitempty"`
	Pending     int             `json:"pending,omitempty"`
	Total       int             `json:"total,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// subscriberBuffer is the channel capacity handed to each subscriber.
const subscriberBuffer = 32

// publish delivers ev to every subscriber without blocking. Callers hold s.mu.
func (s *Session) publish(ev Event) {
	ev.SessionID = s.id
	ev.Time = s.opts.Now()
	ev.Text = s.buf.Text()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; drop rather than stall the tick loop.
		}
	}
}

// Subscribe returns a channel of session events and a function that
// unsubscribes and closes it.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var done bool
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if done {
			return
		}
		done = true
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}
}
