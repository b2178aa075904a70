package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Transcript entry types.
const (
	EntryText = "text"
	EntryTool = "tool"
)

// Transcript is the ordered list of rendered segments of one agent turn. Its
// JSON array encoding is the persisted content of a chatbot message.
type Transcript []Entry

// Entry is one rendered segment. Text is set for text entries, Tool for tool
// entries.
type Entry struct {
	Type string
	Text string
	Tool *ToolResult
}

// ToolResult is the data of a tool entry.
type ToolResult struct {
	Tool string `json:"tool"`
	Data any    `json:"data"`
}

// TextEntry returns a text entry.
func TextEntry(text string) Entry {
	return Entry{Type: EntryText, Text: text}
}

// ToolEntry returns a tool entry.
func ToolEntry(tool string, data any) Entry {
	return Entry{Type: EntryTool, Tool: &ToolResult{Tool: tool, Data: data}}
}

type entryJSON struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON encodes the entry as {type, data}.
func (e Entry) MarshalJSON() ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch e.Type {
	case EntryText:
		data, err = json.Marshal(e.Text)
	case EntryTool:
		tool := e.Tool
		if tool == nil {
			tool = &ToolResult{}
		}
		data, err = json.Marshal(tool)
	default:
		return nil, fmt.Errorf("unknown transcript entry type %q", e.Type)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(entryJSON{Type: e.Type, Data: data})
}

// UnmarshalJSON decodes an entry from {type, data}.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case EntryText:
		var text string
		if err := json.Unmarshal(raw.Data, &text); err != nil {
			return fmt.Errorf("decode text entry: %w", err)
		}
		*e = TextEntry(text)
	case EntryTool:
		var tool ToolResult
		if err := json.Unmarshal(raw.Data, &tool); err != nil {
			return fmt.Errorf("decode tool entry: %w", err)
		}
		*e = Entry{Type: EntryTool, Tool: &tool}
	default:
		return fmt.Errorf("unknown transcript entry type %q", raw.Type)
	}
	return nil
}

// Encode serializes the transcript as a single JSON array. An empty
// transcript encodes as "[]".
func (t Transcript) Encode() (string, error) {
	if t == nil {
		t = Transcript{}
	}
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encode transcript: %w", err)
	}
	return string(data), nil
}

// DecodeTranscript parses persisted chatbot message content.
func DecodeTranscript(content string) (Transcript, error) {
	var t Transcript
	if err := json.Unmarshal([]byte(content), &t); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	if t == nil {
		t = Transcript{}
	}
	return t, nil
}

// PlainText renders the transcript for replay as conversation history.
// Text entries are kept verbatim; tool entries become a one-line summary.
func (t Transcript) PlainText() string {
	parts := make([]string, 0, len(t))
	for _, entry := range t {
		switch entry.Type {
		case EntryText:
			if entry.Text != "" {
				parts = append(parts, entry.Text)
			}
		case EntryTool:
			if entry.Tool == nil {
				continue
			}
			data, err := json.Marshal(entry.Tool.Data)
			if err != nil {
				data = []byte("null")
			}
			parts = append(parts, fmt.Sprintf("[%s result: %s]", entry.Tool.Tool, data))
		}
	}
	return strings.Join(parts, "\n\n")
}
