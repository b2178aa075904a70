package chatbot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"movie-chatbot/internal/agent"
	"movie-chatbot/internal/store"
	"movie-chatbot/internal/stream"
)

type stubAgent struct {
	mu       sync.Mutex
	inputs   []agent.Input
	stream   func(ctx context.Context) *agent.EventStream
	startErr error
}

func (a *stubAgent) Stream(ctx context.Context, in agent.Input) (*agent.EventStream, error) {
	a.mu.Lock()
	a.inputs = append(a.inputs, in)
	a.mu.Unlock()
	if a.startErr != nil {
		return nil, a.startErr
	}
	return a.stream(ctx), nil
}

func replayAgent(events ...stream.RawEvent) *stubAgent {
	return &stubAgent{stream: func(ctx context.Context) *agent.EventStream {
		return agent.Replay(events...)
	}}
}

func delta(runID, text string) stream.RawEvent {
	return stream.RawEvent{Event: stream.RawLLMStream, RunID: runID, Data: stream.RawEventData{Chunk: &stream.Chunk{Text: text}}}
}

type recordingSink struct {
	mu     sync.Mutex
	events []stream.Event
	// persisted reports how many messages were stored when the close frame arrived.
	store     store.Store
	persisted int
}

func (s *recordingSink) Send(event stream.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if event.Type == stream.KindClose && s.store != nil {
		msgs, _ := s.store.List(context.Background())
		s.persisted = len(msgs)
	}
	return nil
}

func (s *recordingSink) closeFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Type == stream.KindClose {
			n++
		}
	}
	return n
}

func TestAskStreamPersistsBeforeClose(t *testing.T) {
	st := store.NewMemoryStore()
	ag := replayAgent(
		delta("A", "He"),
		delta("B", "Mo"),
		delta("A", "llo"),
		delta("B", "vie"),
	)
	svc := NewService(st, ag, Options{})
	sink := &recordingSink{store: st}

	res, err := svc.AskStream(context.Background(), "hi", sink)
	if err != nil {
		t.Fatalf("ask stream: %v", err)
	}
	if res.Outcome.State != stream.StateCompleted {
		t.Fatalf("unexpected outcome: %+v", res.Outcome)
	}
	if res.Message.Content != `[{"type":"text","data":"Hello"},{"type":"text","data":"Movie"}]` {
		t.Fatalf("unexpected content: %s", res.Message.Content)
	}
	if !res.Message.IsChatbot {
		t.Fatal("reply must be a chatbot message")
	}
	if sink.closeFrames() != 1 {
		t.Fatalf("expected one close frame, got %d", sink.closeFrames())
	}
	if last := sink.events[len(sink.events)-1]; last.Type != stream.KindClose {
		t.Fatalf("close must be the last frame, got %+v", last)
	}
	if sink.persisted != 1 {
		t.Fatalf("reply must be stored before close, store had %d messages", sink.persisted)
	}
}

func TestAskStreamZeroEvents(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st, replayAgent(), Options{})
	sink := &recordingSink{}

	res, err := svc.AskStream(context.Background(), "hi", sink)
	if err != nil {
		t.Fatalf("ask stream: %v", err)
	}
	if res.Message.Content != "[]" {
		t.Fatalf("content = %q, want []", res.Message.Content)
	}
	if len(sink.events) != 1 || sink.events[0].Type != stream.KindClose {
		t.Fatalf("expected only a close frame, got %+v", sink.events)
	}
}

func TestAskStreamTimeoutPersistsPartial(t *testing.T) {
	st := store.NewMemoryStore()
	stopped := make(chan struct{})
	ag := &stubAgent{stream: func(ctx context.Context) *agent.EventStream {
		return agent.Start(ctx, 0, func(ctx context.Context, emit agent.Emit) error {
			defer close(stopped)
			emit(delta("A", "Partial"))
			emit(stream.RawEvent{Event: stream.RawToolStart, RunID: "T", Name: "search-movie", Data: stream.RawEventData{Input: `{"title":"Heat"}`}})
			<-ctx.Done()
			// Late tool result after the cutoff.
			emit(stream.RawEvent{Event: stream.RawToolEnd, RunID: "T", Name: "search-movie", Data: stream.RawEventData{Output: "late"}})
			return ctx.Err()
		})
	}}
	svc := NewService(st, ag, Options{StreamTimeout: 50 * time.Millisecond})
	sink := &recordingSink{}

	res, err := svc.AskStream(context.Background(), "hi", sink)
	if err != nil {
		t.Fatalf("ask stream: %v", err)
	}
	if res.Outcome.State != stream.StateCutoff || !errors.Is(res.Outcome.Reason, stream.ErrSessionTimeout) {
		t.Fatalf("unexpected outcome: %+v", res.Outcome)
	}
	if res.Message.Content != `[{"type":"text","data":"Partial"}]` {
		t.Fatalf("unexpected content: %s", res.Message.Content)
	}

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("agent was not cancelled after cutoff")
	}

	for _, e := range sink.events {
		if e.Type == stream.KindToolEnd {
			t.Fatalf("tool end after cutoff reached the client: %+v", e)
		}
	}
	if sink.closeFrames() != 1 {
		t.Fatalf("expected one close frame, got %d", sink.closeFrames())
	}
}

func TestAskStreamPeerDisconnectStillPersists(t *testing.T) {
	st := store.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	ag := &stubAgent{stream: func(runCtx context.Context) *agent.EventStream {
		return agent.Start(runCtx, 0, func(runCtx context.Context, emit agent.Emit) error {
			emit(delta("A", "before disconnect"))
			cancel()
			<-runCtx.Done()
			return runCtx.Err()
		})
	}}
	svc := NewService(st, ag, Options{StreamTimeout: time.Minute})

	res, err := svc.AskStream(ctx, "hi", &recordingSink{})
	if err != nil {
		t.Fatalf("ask stream: %v", err)
	}
	if !errors.Is(res.Outcome.Reason, stream.ErrPeerDisconnected) {
		t.Fatalf("unexpected outcome: %+v", res.Outcome)
	}
	msgs, _ := st.List(context.Background())
	if len(msgs) != 1 || msgs[0].Content != `[{"type":"text","data":"before disconnect"}]` {
		t.Fatalf("partial reply not stored: %+v", msgs)
	}
}

func TestAskWithoutSink(t *testing.T) {
	st := store.NewMemoryStore()
	ag := replayAgent(
		delta("A", "Heat "),
		stream.RawEvent{Event: stream.RawToolEnd, RunID: "T", Name: "search-movie", Data: stream.RawEventData{Output: map[string]any{"Title": "Heat"}}},
		delta("A", "(1995)"),
	)
	svc := NewService(st, ag, Options{})

	res, err := svc.Ask(context.Background(), "Heat?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if len(res.Transcript) != 2 || res.Transcript[0].Text != "Heat (1995)" || res.Transcript[1].Type != stream.EntryTool {
		t.Fatalf("unexpected transcript: %#v", res.Transcript)
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), replayAgent(), Options{})
	if _, err := svc.Ask(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := svc.Send(context.Background(), ""); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestAskAgentStartFailure(t *testing.T) {
	st := store.NewMemoryStore()
	ag := &stubAgent{startErr: errors.New("no model")}
	svc := NewService(st, ag, Options{})
	sink := &recordingSink{}

	if _, err := svc.AskStream(context.Background(), "hi", sink); err == nil {
		t.Fatal("expected error")
	}
	if sink.closeFrames() != 1 {
		t.Fatalf("stream must still end with a close frame, got %+v", sink.events)
	}
	msgs, _ := st.List(context.Background())
	if len(msgs) != 0 {
		t.Fatalf("nothing should be stored, got %+v", msgs)
	}
}

func TestHistoryMapping(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	st.Append(ctx, "Tell me about Heat", false)
	st.Append(ctx, `[{"type":"text","data":"Looking."},{"type":"tool","data":{"tool":"search-movie","data":{"Title":"Heat"}}}]`, true)
	st.Append(ctx, "legacy plain reply", true)
	st.Append(ctx, "And Alien?", false)

	ag := replayAgent()
	svc := NewService(st, ag, Options{})
	if _, err := svc.Ask(ctx, "And Alien?"); err != nil {
		t.Fatalf("ask: %v", err)
	}

	in := ag.inputs[0]
	if in.Text != "And Alien?" {
		t.Fatalf("unexpected input text: %q", in.Text)
	}
	if len(in.History) != 3 {
		t.Fatalf("expected the duplicated question to be dropped, got %+v", in.History)
	}
	if in.History[0].Role != agent.RoleUser || in.History[0].Content != "Tell me about Heat" {
		t.Fatalf("unexpected first item: %+v", in.History[0])
	}
	if in.History[1].Role != agent.RoleAgent || in.History[1].Content != "Looking.\n\n[search-movie result: {\"Title\":\"Heat\"}]" {
		t.Fatalf("unexpected transcript replay: %+v", in.History[1])
	}
	if in.History[2].Content != "legacy plain reply" {
		t.Fatalf("undecodable content must pass through: %+v", in.History[2])
	}
}

func TestSendAndMessages(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemoryStore(), replayAgent(), Options{})

	sent, err := svc.Send(ctx, "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent.IsChatbot || sent.Content != "hello" {
		t.Fatalf("unexpected message: %+v", sent)
	}

	got, err := svc.Message(ctx, sent.ID)
	if err != nil || got.ID != sent.ID {
		t.Fatalf("message lookup = %+v, %v", got, err)
	}
	if _, err := svc.Message(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	msgs, err := svc.Messages(ctx)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("messages = %+v, %v", msgs, err)
	}
}
