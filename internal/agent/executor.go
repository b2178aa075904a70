package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"movie-chatbot/internal/llm"
	"movie-chatbot/internal/stream"
	"movie-chatbot/internal/tools"
)

const (
	defaultMaxToolRounds = 5
	eventBuffer          = 64
)

const DefaultSystemPrompt = `You are a friendly movie assistant.
When the user asks about a movie, call the search-movie tool with the movie's title and answer from its result.
If nothing matches, try a similar title once before saying you could not find it.
Keep answers short.`

// Completer streams one chat completion.
type Completer interface {
	Stream(ctx context.Context, req llm.Request, onDelta func(llm.Delta)) (*llm.Response, error)
}

// ExecutorOptions tunes the tool-calling loop.
type ExecutorOptions struct {
	// SystemPrompt defaults to DefaultSystemPrompt.
	SystemPrompt string
	// MaxToolRounds bounds model->tool round trips per run.
	MaxToolRounds int
	// HistoryTokenBudget bounds the replayed history. Zero keeps all.
	HistoryTokenBudget int
	// CountTokens measures history items. Defaults to EstimateTokens.
	CountTokens TokenCounter
}

// Executor runs a chat-completions tool-calling loop and reports it as raw
// events: one run id per model generation and one per tool call.
type Executor struct {
	llm   Completer
	tools *tools.Registry
	opts  ExecutorOptions
}

func NewExecutor(completer Completer, registry *tools.Registry, opts ExecutorOptions) *Executor {
	if strings.TrimSpace(opts.SystemPrompt) == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = defaultMaxToolRounds
	}
	if opts.CountTokens == nil {
		opts.CountTokens = EstimateTokens
	}
	if registry == nil {
		registry = tools.NewRegistry()
	}
	return &Executor{llm: completer, tools: registry, opts: opts}
}

// Stream starts a run. The returned stream closes when the model answers
// without tool calls, the round limit is hit, ctx is cancelled or the model
// call fails.
func (e *Executor) Stream(ctx context.Context, in Input) (*EventStream, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, errors.New("input text is required")
	}
	messages := e.buildMessages(text, in.History)

	return Start(ctx, eventBuffer, func(ctx context.Context, emit Emit) error {
		return e.run(ctx, messages, emit)
	}), nil
}

func (e *Executor) buildMessages(text string, history []HistoryItem) []llm.Message {
	history = trimHistory(history, e.opts.HistoryTokenBudget, e.opts.CountTokens)

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: e.opts.SystemPrompt})
	for _, item := range history {
		role := llm.RoleUser
		if item.Role == RoleAgent {
			role = llm.RoleAssistant
		}
		if strings.TrimSpace(item.Content) == "" {
			continue
		}
		messages = append(messages, llm.Message{Role: role, Content: item.Content})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: text})
}

func (e *Executor) run(ctx context.Context, messages []llm.Message, emit Emit) error {
	definitions := e.tools.Definitions()

	for round := 0; ; round++ {
		req := llm.Request{Messages: messages}
		// The last round offers no tools so the model has to answer.
		if round < e.opts.MaxToolRounds && len(definitions) > 0 {
			req.Tools = definitions
		}

		runID := uuid.NewString()
		var trim blankLeadTrimmer
		resp, err := e.llm.Stream(ctx, req, func(d llm.Delta) {
			emit(stream.RawEvent{
				Event: stream.RawLLMStream,
				RunID: runID,
				Data:  stream.RawEventData{Chunk: &stream.Chunk{Text: trim.push(d.Content)}},
			})
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("model call: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if len(resp.ToolCalls) == 0 || req.Tools == nil {
			return nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result, ok := e.callTool(ctx, call, emit)
			if !ok {
				return ctx.Err()
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}
}

func (e *Executor) callTool(ctx context.Context, call llm.ToolCall, emit Emit) (string, bool) {
	runID := uuid.NewString()
	name := call.Function.Name

	if !emit(stream.RawEvent{
		Event: stream.RawToolStart,
		RunID: runID,
		Name:  name,
		Data:  stream.RawEventData{Input: call.Function.Arguments},
	}) {
		return "", false
	}

	result, err := e.tools.Execute(ctx, name, json.RawMessage(call.Function.Arguments))
	if err != nil {
		if ctx.Err() != nil {
			return "", false
		}
		log.Printf("agent: tool %s failed: %v", name, err)
		result = fmt.Sprintf("Error: %s", err.Error())
	}

	if !emit(stream.RawEvent{
		Event: stream.RawToolEnd,
		RunID: runID,
		Name:  name,
		Data:  stream.RawEventData{Output: toolOutput(result)},
	}) {
		return "", false
	}
	return result, true
}

// toolOutput decodes JSON results so they travel as structured data.
func toolOutput(result string) any {
	trimmed := strings.TrimSpace(result)
	if trimmed == "" || !json.Valid([]byte(trimmed)) {
		return result
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return result
	}
	return decoded
}
