package api

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"movie-chatbot/internal/stream"
)

const (
	maxWSReadBytes = 4 << 10
	wsWriteTimeout = 5 * time.Second
)

// wsSink writes stream frames as WebSocket text messages.
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) Send(event stream.Event) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.conn.WriteJSON(event)
}

// handleChatbotWS runs one turn over a WebSocket. Frames match the SSE
// stream; the connection is closed normally after the close frame.
func (s *Server) handleChatbotWS(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.URL.Query().Get("message"))
	if question == "" {
		writeBadRequest(w, "message query parameter is required")
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: s.originAllowed}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("chatbot ws: upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxWSReadBytes)

	// A hijacked request context no longer tracks the peer, so a read loop
	// stands in for disconnect detection.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	res, err := s.chatbot.AskStream(ctx, question, &wsSink{conn: conn})
	if err != nil {
		log.Printf("chatbot ws: %v", err)
	} else {
		log.Printf("chatbot ws: stored %s (%s, %d events)", res.Message.ID, res.Outcome.State, res.Outcome.Received)
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
}
