package stream

import (
	"fmt"
	"strings"
)

type segmentKind int

const (
	segmentText segmentKind = iota + 1
	segmentTool
)

type segment struct {
	kind     segmentKind
	text     strings.Builder
	toolName string
	result   any
}

// Aggregator accumulates normalized events into segments keyed by run id.
// Segments render in the order their run id first appeared, regardless of how
// events for different run ids interleave afterwards.
//
// An Aggregator is owned by a single session and is not safe for concurrent use.
type Aggregator struct {
	segments map[string]*segment
	order    []string
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		segments: make(map[string]*segment),
	}
}

// Apply folds one event into the segment table. tool-start and close events
// leave the table untouched.
//
// An event whose kind conflicts with the segment already recorded for its run
// id is dropped and reported as ErrSegmentKindConflict; the table is unchanged.
func (a *Aggregator) Apply(event Event) error {
	switch event.Type {
	case KindToolEnd:
		seg, ok := a.segments[event.ID]
		if !ok {
			seg = a.insert(event.ID, segmentTool)
		} else if seg.kind != segmentTool {
			return fmt.Errorf("%w: tool-end for text run %s", ErrSegmentKindConflict, event.ID)
		}
		seg.toolName = event.ToolName
		seg.result = event.ToolData
	case KindTextStream:
		seg, ok := a.segments[event.ID]
		if !ok {
			seg = a.insert(event.ID, segmentText)
		} else if seg.kind != segmentText {
			return fmt.Errorf("%w: text delta for tool run %s", ErrSegmentKindConflict, event.ID)
		}
		seg.text.WriteString(event.Data)
	}
	return nil
}

func (a *Aggregator) insert(runID string, kind segmentKind) *segment {
	seg := &segment{kind: kind}
	a.segments[runID] = seg
	a.order = append(a.order, runID)
	return seg
}

// Order returns the run ids in first-appearance order.
func (a *Aggregator) Order() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Len returns the number of segments.
func (a *Aggregator) Len() int {
	return len(a.order)
}

// Transcript renders the current segments in first-appearance order.
func (a *Aggregator) Transcript() Transcript {
	out := make(Transcript, 0, len(a.order))
	for _, runID := range a.order {
		seg := a.segments[runID]
		switch seg.kind {
		case segmentText:
			out = append(out, TextEntry(seg.text.String()))
		case segmentTool:
			out = append(out, ToolEntry(seg.toolName, seg.result))
		}
	}
	return out
}
