package agent

import "strings"

// blankLeadTrimmer holds back a generation's opening whitespace so replies
// never start with empty lines. Indentation on the first real line is kept.
type blankLeadTrimmer struct {
	started bool
	held    strings.Builder
}

// push returns the part of delta that can be emitted now.
func (t *blankLeadTrimmer) push(delta string) string {
	if t.started || delta == "" {
		return delta
	}
	t.held.WriteString(delta)
	held := t.held.String()
	if strings.TrimSpace(held) == "" {
		return ""
	}
	t.started = true
	t.held.Reset()
	return dropBlankLines(held)
}

// dropBlankLines removes whole lines made only of spaces, tabs or CR from
// the start of text.
func dropBlankLines(text string) string {
	for {
		line, rest, found := strings.Cut(text, "\n")
		if !found || strings.Trim(line, " \t\r") != "" {
			return text
		}
		text = rest
	}
}
