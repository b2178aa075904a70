package stream

import (
	"encoding/json"
	"strings"
)

// Normalize maps one raw agent event to at most one normalized event.
//
// ok is false when the event produces nothing. A malformed tool input yields
// ok=false and a *MalformedToolInputError; callers skip the event and keep
// consuming the stream.
func Normalize(raw RawEvent) (event Event, ok bool, err error) {
	switch raw.Event {
	case RawToolStart:
		input, err := parseToolInput(raw.Data.Input)
		if err != nil {
			return Event{}, false, &MalformedToolInputError{
				RunID:    raw.RunID,
				ToolName: raw.Name,
				Err:      err,
			}
		}
		return Event{
			ID:       raw.RunID,
			Type:     KindToolStart,
			ToolName: raw.Name,
			ToolData: input,
		}, true, nil
	case RawToolEnd:
		return Event{
			ID:       raw.RunID,
			Type:     KindToolEnd,
			ToolName: raw.Name,
			ToolData: raw.Data.Output,
		}, true, nil
	case RawLLMStream:
		// An empty chunk means the model is asking for a tool call instead of
		// producing text.
		if raw.Data.Chunk == nil || raw.Data.Chunk.Text == "" {
			return Event{}, false, nil
		}
		return Event{
			ID:   raw.RunID,
			Type: KindTextStream,
			Data: raw.Data.Chunk.Text,
		}, true, nil
	default:
		return Event{}, false, nil
	}
}

func parseToolInput(input string) (any, error) {
	var parsed any
	if err := json.Unmarshal([]byte(strings.TrimSpace(input)), &parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}
