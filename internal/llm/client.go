package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

const maxLineBytes = 1 << 20

// Config holds the settings for an OpenAI-compatible endpoint.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
}

// Client streams chat completions from an OpenAI-compatible API.
type Client struct {
	config     Config
	httpClient *http.Client
}

// New returns a client. A nil httpClient uses a client without timeout;
// callers bound requests with their context.
func New(config Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Client{config: config, httpClient: httpClient}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	Temperature *float32  `json:"temperature,omitempty"`
	Stream      bool      `json:"stream"`
}

type chunk struct {
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type chunkDelta struct {
	Content   string          `json:"content"`
	ToolCalls []toolCallDelta `json:"tool_calls"`
}

type toolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// Stream performs a streaming completion. onDelta is called for every content
// or tool-call delta in arrival order; the returned response holds the
// accumulated content and tool calls.
func (c *Client) Stream(ctx context.Context, req Request, onDelta func(Delta)) (*Response, error) {
	body := chatRequest{
		Model:    c.config.Model,
		Messages: req.Messages,
		Tools:    req.Tools,
		Stream:   true,
	}
	if c.config.Temperature != 0 {
		temp := c.config.Temperature
		body.Temperature = &temp
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	return processStream(resp.Body, onDelta)
}

type toolCallBuilder struct {
	id        string
	kind      string
	name      string
	arguments strings.Builder
}

func processStream(body io.Reader, onDelta func(Delta)) (*Response, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	var (
		content strings.Builder
		calls   = map[int]*toolCallBuilder{}
		out     Response
	)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var evt chunk
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			return nil, fmt.Errorf("parsing stream chunk: %w", err)
		}

		for _, choice := range evt.Choices {
			if choice.Index != 0 {
				continue
			}
			if choice.FinishReason != nil {
				out.FinishReason = *choice.FinishReason
			}
			delta := choice.Delta
			if delta.Content != "" {
				content.WriteString(delta.Content)
				if onDelta != nil {
					onDelta(Delta{Content: delta.Content})
				}
			}
			if len(delta.ToolCalls) == 0 {
				continue
			}
			for _, tc := range delta.ToolCalls {
				b, ok := calls[tc.Index]
				if !ok {
					b = &toolCallBuilder{}
					calls[tc.Index] = b
				}
				if tc.ID != "" {
					b.id = tc.ID
				}
				if tc.Type != "" {
					b.kind = tc.Type
				}
				if tc.Function.Name != "" {
					b.name += tc.Function.Name
				}
				b.arguments.WriteString(tc.Function.Arguments)
			}
			if onDelta != nil {
				onDelta(Delta{ToolCall: true})
			}
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("stream line exceeds %d bytes: %w", maxLineBytes, err)
		}
		return nil, fmt.Errorf("stream read error: %w", err)
	}

	out.Content = content.String()
	out.ToolCalls = collectToolCalls(calls)
	return &out, nil
}

func collectToolCalls(calls map[int]*toolCallBuilder) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(calls))
	for idx := range calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	out := make([]ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		b := calls[idx]
		kind := b.kind
		if kind == "" {
			kind = "function"
		}
		out = append(out, ToolCall{
			ID:   b.id,
			Type: kind,
			Function: FunctionCall{
				Name:      b.name,
				Arguments: b.arguments.String(),
			},
		})
	}
	return out
}
