package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"movie-chatbot/internal/stream"
)

const sseWriteTimeout = 5 * time.Second

// sseSink writes stream frames as Server-Sent Events, one `data:` line each.
// Every frame gets its own write deadline so a stalled client cannot pin the
// handler.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

func newSSESink(w http.ResponseWriter) *sseSink {
	flusher, _ := w.(http.Flusher)
	return &sseSink{w: w, flusher: flusher, rc: http.NewResponseController(w)}
}

// Open commits the event-stream headers so the client sees the stream
// before the first frame.
func (s *sseSink) Open() error {
	if s.flusher == nil {
		return errors.New("streaming not supported")
	}
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Content-Encoding", "none")
	s.w.WriteHeader(http.StatusOK)
	s.flusher.Flush()
	return nil
}

func (s *sseSink) Send(event stream.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := s.rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Release clears the write deadline so a kept-alive connection is not left
// with a stale one.
func (s *sseSink) Release() {
	_ = s.rc.SetWriteDeadline(time.Time{})
}
