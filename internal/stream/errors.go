package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedToolInput marks a tool-start payload that is not valid JSON.
	ErrMalformedToolInput = errors.New("malformed tool input")
	// ErrSessionTimeout marks a session cut off by its wall-clock deadline.
	ErrSessionTimeout = errors.New("session timed out")
	// ErrPeerDisconnected marks a session cut off because the client went away.
	ErrPeerDisconnected = errors.New("peer disconnected")
	// ErrSegmentKindConflict marks an event whose kind does not match the
	// segment already recorded for its run id.
	ErrSegmentKindConflict = errors.New("segment kind conflict")
)

// MalformedToolInputError describes a tool-start event that was skipped.
type MalformedToolInputError struct {
	RunID    string
	ToolName string
	Err      error
}

func (e *MalformedToolInputError) Error() string {
	return fmt.Sprintf("tool %q (run %s): %v: %v", e.ToolName, e.RunID, ErrMalformedToolInput, e.Err)
}

func (e *MalformedToolInputError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrMalformedToolInput.
func (e *MalformedToolInputError) Is(target error) bool {
	return target == ErrMalformedToolInput
}
