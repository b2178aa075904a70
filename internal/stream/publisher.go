package stream

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Sink receives the frames of one live session.
type Sink interface {
	Send(event Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(event Event) error

// Send calls f(event).
func (f SinkFunc) Send(event Event) error {
	return f(event)
}

// Publisher forwards normalized events to a sink as they occur. It never
// buffers or replays: once stopped, events are dropped.
//
// A nil sink is valid and turns every call into a no-op.
type Publisher struct {
	sink Sink

	// stopped is read outside mu so Stop never waits on a blocked write.
	stopped atomic.Bool

	mu      sync.Mutex
	closed  bool
	sendErr error
	sent    int
}

// NewPublisher returns a publisher writing to sink.
func NewPublisher(sink Sink) *Publisher {
	return &Publisher{sink: sink}
}

// Publish forwards event unless the publisher was stopped. A failed write
// stops the publisher and is reported by Err.
func (p *Publisher) Publish(event Event) {
	if event.Type == KindClose || p.stopped.Load() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sink == nil || p.stopped.Load() || p.closed {
		return
	}
	if err := p.sink.Send(event); err != nil {
		p.sendErr = err
		p.stopped.Store(true)
		return
	}
	p.sent++
}

// Stop ends forwarding. The close frame can still be sent. Stop does not
// wait for a write in progress.
func (p *Publisher) Stop() {
	p.stopped.Store(true)
}

// Close sends the terminal close frame exactly once, provided no earlier write
// failed. Later calls are no-ops.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.stopped.Store(true)
	if p.sink == nil {
		return nil
	}
	if p.sendErr != nil {
		return errors.Join(ErrPeerDisconnected, p.sendErr)
	}
	if err := p.sink.Send(CloseEvent()); err != nil {
		p.sendErr = err
		return errors.Join(ErrPeerDisconnected, err)
	}
	return nil
}

// Err returns the first write error, if any.
func (p *Publisher) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sendErr
}

// Sent returns the number of forwarded events, excluding the close frame.
func (p *Publisher) Sent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}
