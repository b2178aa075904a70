package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"movie-chatbot/internal/agent"
	"movie-chatbot/internal/store"
	"movie-chatbot/internal/stream"
)

const (
	defaultStreamTimeout  = 10 * time.Second
	defaultRequestTimeout = 30 * time.Second
	persistTimeout        = 5 * time.Second
)

var ErrEmptyMessage = errors.New("message is required")

// Options bounds the two kinds of agent turns.
type Options struct {
	StreamTimeout  time.Duration
	RequestTimeout time.Duration
}

// Service runs chatbot turns: history in, agent run through a stream
// session, transcript persisted as a chatbot message.
type Service struct {
	store          store.Store
	agent          agent.Agent
	streamTimeout  time.Duration
	requestTimeout time.Duration
}

func NewService(st store.Store, ag agent.Agent, opts Options) *Service {
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = defaultStreamTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	return &Service{
		store:          st,
		agent:          ag,
		streamTimeout:  opts.StreamTimeout,
		requestTimeout: opts.RequestTimeout,
	}
}

// Result is the outcome of one agent turn.
type Result struct {
	Message    store.Message
	Transcript stream.Transcript
	Outcome    stream.Outcome
}

// Messages returns the full conversation log.
func (s *Service) Messages(ctx context.Context) ([]store.Message, error) {
	return s.store.List(ctx)
}

// Message returns one stored message.
func (s *Service) Message(ctx context.Context, id string) (store.Message, error) {
	return s.store.Get(ctx, id)
}

// Send records a user message.
func (s *Service) Send(ctx context.Context, text string) (store.Message, error) {
	if strings.TrimSpace(text) == "" {
		return store.Message{}, ErrEmptyMessage
	}
	return s.store.Append(ctx, text, false)
}

// Ask runs a turn without a live subscriber and returns the persisted reply.
func (s *Service) Ask(ctx context.Context, question string) (Result, error) {
	return s.turn(ctx, question, s.requestTimeout, nil)
}

// AskStream runs a turn, forwarding events to sink as they occur. The sink
// gets exactly one close frame, after the reply has been persisted. A
// cancelled ctx means the peer went away; the partial reply is still stored.
func (s *Service) AskStream(ctx context.Context, question string, sink stream.Sink) (Result, error) {
	return s.turn(ctx, question, s.streamTimeout, sink)
}

func (s *Service) turn(ctx context.Context, question string, timeout time.Duration, sink stream.Sink) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, ErrEmptyMessage
	}

	session := stream.NewSession(stream.SessionOptions{Timeout: timeout, Sink: sink})
	defer func() {
		if closeErr := session.Close(); closeErr != nil && sink != nil {
			log.Printf("chatbot: close frame not delivered: %v", closeErr)
		}
	}()

	history, err := s.history(ctx, question)
	if err != nil {
		return Result{}, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := s.agent.Stream(runCtx, agent.Input{Text: question, History: history})
	if err != nil {
		return Result{}, fmt.Errorf("start agent: %w", err)
	}

	outcome := session.Run(runCtx, events.Events)
	if outcome.State == stream.StateCutoff {
		cancel()
		events.Drain()
		log.Printf("chatbot: turn cut off after %d events: %v", outcome.Received, outcome.Reason)
	} else if runErr := events.Err(); runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Printf("chatbot: agent run ended with error: %v", runErr)
	}

	transcript, content, err := session.Finalize()
	if err != nil {
		return Result{}, fmt.Errorf("finalize transcript: %w", err)
	}

	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancelPersist()
	msg, err := s.store.Append(persistCtx, content, true)
	if err != nil {
		return Result{}, fmt.Errorf("persist reply: %w", err)
	}

	return Result{Message: msg, Transcript: transcript, Outcome: outcome}, nil
}

// history maps the stored log to agent history. When the newest entry is the
// question itself (recorded through Send first), it is left out.
func (s *Service) history(ctx context.Context, question string) ([]agent.HistoryItem, error) {
	messages, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if n := len(messages); n > 0 {
		last := messages[n-1]
		if !last.IsChatbot && strings.TrimSpace(last.Content) == question {
			messages = messages[:n-1]
		}
	}

	items := make([]agent.HistoryItem, 0, len(messages))
	for _, msg := range messages {
		if !msg.IsChatbot {
			items = append(items, agent.HistoryItem{Role: agent.RoleUser, Content: msg.Content})
			continue
		}
		items = append(items, agent.HistoryItem{Role: agent.RoleAgent, Content: replyText(msg.Content)})
	}
	return items, nil
}

func replyText(content string) string {
	transcript, err := stream.DecodeTranscript(content)
	if err != nil {
		return content
	}
	return transcript.PlainText()
}
