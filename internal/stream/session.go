package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// State is the lifecycle position of a session.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateCutoff
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateCutoff:
		return "cutoff"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var errSessionRunning = errors.New("session has not finished streaming")

// Outcome summarizes how a session's event consumption ended.
type Outcome struct {
	// State is StateCompleted or StateCutoff.
	State State
	// Reason is ErrSessionTimeout or ErrPeerDisconnected for a cutoff.
	Reason error
	// Received counts raw events consumed.
	Received int
	// Skipped counts raw events dropped as malformed or conflicting.
	Skipped int
}

// SessionOptions configures a Session.
type SessionOptions struct {
	// Timeout is the wall-clock budget counted from NewSession. Zero
	// disables it.
	Timeout time.Duration
	// Sink receives live frames. Nil runs the session without a subscriber.
	Sink Sink
}

// Session consumes one agent run: each raw event is normalized once and
// handed to both the publisher and the aggregator.
type Session struct {
	deadline   time.Time
	publisher  *Publisher
	aggregator *Aggregator
	state      State
	outcome    Outcome
}

// NewSession returns an idle session.
func NewSession(opts SessionOptions) *Session {
	var deadline time.Time
	if opts.Timeout > 0 {
		deadline = time.Now().Add(opts.Timeout)
	}
	return &Session{
		deadline:   deadline,
		publisher:  NewPublisher(opts.Sink),
		aggregator: NewAggregator(),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Deadline returns when the session is cut off, or the zero time.
func (s *Session) Deadline() time.Time {
	return s.deadline
}

// Run consumes events until the channel closes (completed), the deadline
// passes, ctx is cancelled or the sink fails (cutoff). A sink write that
// blocks does not hold the session past its deadline. Partial segments are
// kept in every case.
func (s *Session) Run(ctx context.Context, events <-chan RawEvent) Outcome {
	var deadline <-chan time.Time
	if !s.deadline.IsZero() {
		timer := time.NewTimer(time.Until(s.deadline))
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return s.cutoff(ErrPeerDisconnected)
		case <-deadline:
			return s.cutoff(ErrSessionTimeout)
		case raw, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return s.cutoff(ErrPeerDisconnected)
				}
				return s.finish(StateCompleted, nil)
			}
			if s.state == StateIdle {
				s.state = StateStreaming
			}
			s.outcome.Received++
			event, ok := s.handle(raw)
			if !ok {
				continue
			}
			written := s.publish(event)
			select {
			case <-written:
			case <-ctx.Done():
				return s.cutoff(ErrPeerDisconnected)
			case <-deadline:
				return s.cutoff(ErrSessionTimeout)
			}
			if err := s.publisher.Err(); err != nil {
				log.Printf("stream: sink write failed after %d events: %v", s.publisher.Sent(), err)
				return s.cutoff(ErrPeerDisconnected)
			}
		}
	}
}

// handle normalizes raw and records it in the segment table. ok reports
// whether there is an event to forward.
func (s *Session) handle(raw RawEvent) (Event, bool) {
	event, ok, err := Normalize(raw)
	if err != nil {
		s.outcome.Skipped++
		log.Printf("stream: skipping event %s: %v", raw.Event, err)
		return Event{}, false
	}
	if !ok {
		return Event{}, false
	}
	if err := s.aggregator.Apply(event); err != nil {
		s.outcome.Skipped++
		log.Printf("stream: dropping event %s: %v", event.Type, err)
	}
	return event, true
}

// publish forwards event on its own goroutine so Run can keep watching the
// deadline. The returned channel closes when the write is done.
func (s *Session) publish(event Event) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.publisher.Publish(event)
	}()
	return done
}

func (s *Session) cutoff(reason error) Outcome {
	s.publisher.Stop()
	return s.finish(StateCutoff, reason)
}

func (s *Session) finish(state State, reason error) Outcome {
	s.state = state
	s.outcome.State = state
	s.outcome.Reason = reason
	return s.outcome
}

// Finalize renders the accumulated segments and encodes them for
// persistence. It is valid once Run has returned.
func (s *Session) Finalize() (Transcript, string, error) {
	switch s.state {
	case StateCompleted, StateCutoff, StateFinalized:
	default:
		return nil, "", errSessionRunning
	}
	transcript := s.aggregator.Transcript()
	content, err := transcript.Encode()
	if err != nil {
		return nil, "", err
	}
	s.state = StateFinalized
	return transcript, content, nil
}

// Close sends the terminal close frame. It is safe to call more than once;
// only the first call writes.
func (s *Session) Close() error {
	return s.publisher.Close()
}

// Aggregator exposes the session's segment table.
func (s *Session) Aggregator() *Aggregator {
	return s.aggregator
}
