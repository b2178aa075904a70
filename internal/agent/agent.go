package agent

import (
	"context"

	"movie-chatbot/internal/stream"
)

// History roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// HistoryItem is one prior conversation turn.
type HistoryItem struct {
	Role    string
	Content string
}

// Input is the request for one agent run.
type Input struct {
	Text    string
	History []HistoryItem
}

// Agent produces the raw event stream of one run.
type Agent interface {
	Stream(ctx context.Context, in Input) (*EventStream, error)
}

// EventStream is a run in progress. Events is closed when the run ends;
// Err reports why it ended and is valid only after that.
type EventStream struct {
	Events <-chan stream.RawEvent
	err    error
}

func (s *EventStream) Err() error {
	return s.err
}

// Drain discards events until the producer finishes.
func (s *EventStream) Drain() {
	for range s.Events {
	}
}

// Emit yields one event. It returns false once the run's context is
// cancelled; producers must stop at that point.
type Emit func(event stream.RawEvent) bool

// Start runs produce on its own goroutine and exposes its events.
func Start(ctx context.Context, buffer int, produce func(ctx context.Context, emit Emit) error) *EventStream {
	events := make(chan stream.RawEvent, buffer)
	s := &EventStream{Events: events}

	emit := func(event stream.RawEvent) bool {
		if ctx.Err() != nil {
			return false
		}
		select {
		case events <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(events)
		s.err = produce(ctx, emit)
	}()
	return s
}

// Replay returns a finished stream that yields events in order. Useful for
// fixed transcripts and tests.
func Replay(events ...stream.RawEvent) *EventStream {
	ch := make(chan stream.RawEvent, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	return &EventStream{Events: ch}
}
