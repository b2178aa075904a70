// Package stream turns an agent's raw event sequence into a live push stream
// and an order-preserving transcript.
package stream

// Raw event kinds emitted by the agent runtime.
const (
	RawToolStart = "on_tool_start"
	RawToolEnd   = "on_tool_end"
	RawLLMStream = "on_llm_stream"
)

// RawEvent is one event from the agent runtime. Only the fields relevant to
// its kind are set.
type RawEvent struct {
	Event string
	RunID string
	Name  string
	Data  RawEventData
}

// RawEventData carries the kind-specific payload of a RawEvent.
type RawEventData struct {
	// Input is the JSON-encoded tool input for on_tool_start.
	Input string
	// Output is the tool output for on_tool_end, passed through opaquely.
	Output any
	// Chunk is the generation chunk for on_llm_stream. A nil chunk or an
	// empty Text means the model is requesting a tool call.
	Chunk *Chunk
}

// Chunk is one partial model generation.
type Chunk struct {
	Text string
}

// Kind is the wire-visible type of a normalized event.
type Kind string

const (
	KindToolStart  Kind = "tool-start"
	KindToolEnd    Kind = "tool-end"
	KindTextStream Kind = "text-stream"
	KindClose      Kind = "close"
)

// Event is a normalized event. It is also the JSON frame pushed to clients.
type Event struct {
	ID       string `json:"id,omitempty"`
	Type     Kind   `json:"type"`
	ToolName string `json:"toolName,omitempty"`
	ToolData any    `json:"toolData,omitempty"`
	Data     string `json:"data,omitempty"`
}

// CloseEvent is the terminal frame of every session.
func CloseEvent() Event {
	return Event{Type: KindClose}
}
