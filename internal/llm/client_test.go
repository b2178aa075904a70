package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func writeSSE(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, c := range chunks {
		fmt.Fprintf(w, "data: %s\n\n", c)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func TestClientStreamContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("expected path /v1/chat/completions, got %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("missing or invalid auth header")
		}

		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		json.Unmarshal(body, &req)
		if req["model"] != "gpt-4o-mini" || req["stream"] != true {
			t.Errorf("unexpected request body: %s", body)
		}

		writeSSE(w,
			`{"choices":[{"index":0,"delta":{"role":"assistant","content":""}}]}`,
			`{"choices":[{"index":0,"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"index":0,"delta":{"content":"lo"}}]}`,
			`{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL + "/v1/", APIKey: "test-key", Model: "gpt-4o-mini"}, nil)

	var deltas []string
	resp, err := client.Stream(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	}, func(d Delta) {
		deltas = append(deltas, d.Content)
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if resp.Content != "Hello" || resp.FinishReason != "stop" || len(resp.ToolCalls) != 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if strings.Join(deltas, "|") != "Hel|lo" {
		t.Fatalf("unexpected deltas: %q", deltas)
	}
}

func TestClientStreamAccumulatesToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w,
			`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"search-movie","arguments":""}}]}}]}`,
			`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_b","type":"function","function":{"name":"search-movie","arguments":"{\"title\":"}}]}}]}`,
			`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"title\":\"He"}}]}}]}`,
			`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"at\"}"}}]}}]}`,
			`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"function":{"arguments":"\"Alien\"}"}}]}}]}`,
			`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, Model: "m"}, nil)

	toolDeltas := 0
	resp, err := client.Stream(context.Background(), Request{}, func(d Delta) {
		if d.ToolCall && d.Content == "" {
			toolDeltas++
		}
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if toolDeltas != 5 {
		t.Fatalf("expected 5 tool-call deltas, got %d", toolDeltas)
	}
	if resp.FinishReason != "tool_calls" || len(resp.ToolCalls) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	first, second := resp.ToolCalls[0], resp.ToolCalls[1]
	if first.ID != "call_a" || first.Function.Name != "search-movie" || first.Function.Arguments != `{"title":"Heat"}` {
		t.Fatalf("unexpected first call: %+v", first)
	}
	if second.ID != "call_b" || second.Function.Arguments != `{"title":"Alien"}` {
		t.Fatalf("unexpected second call: %+v", second)
	}
}

func TestClientStreamAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL}, nil)
	_, err := client.Stream(context.Background(), Request{}, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || !strings.Contains(apiErr.Body, "bad key") {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestProcessStreamSkipsCommentsAndStopsAtDone(t *testing.T) {
	input := strings.Join([]string{
		": keep-alive",
		"",
		"event: message",
		`data: {"choices":[{"index":0,"delta":{"content":"a"}}]}`,
		"",
		"data: [DONE]",
		`data: {"choices":[{"index":0,"delta":{"content":"ignored"}}]}`,
	}, "\n")

	resp, err := processStream(strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if resp.Content != "a" {
		t.Fatalf("content = %q, want a", resp.Content)
	}
}

func TestProcessStreamMalformedChunk(t *testing.T) {
	_, err := processStream(strings.NewReader("data: {not json}\n\n"), nil)
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestClientStreamHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := New(Config{BaseURL: server.URL}, nil)
	if _, err := client.Stream(ctx, Request{}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
