package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"movie-chatbot/internal/chatbot"
)

// handleChatbotNonStream runs one turn and answers with the stored reply.
func (s *Server) handleChatbotNonStream(w http.ResponseWriter, r *http.Request) {
	question, detail, ok := decodeStringField(w, r, "question")
	if !ok {
		writeBadRequest(w, detail)
		return
	}

	res, err := s.chatbot.Ask(r.Context(), question)
	if errors.Is(err, chatbot.ErrEmptyMessage) {
		writeBadRequest(w, err.Error())
		return
	}
	if err != nil {
		log.Printf("chatbot ask: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to answer")
		return
	}
	writeData(w, res.Message)
}

// handleChatbotStream runs one turn as Server-Sent Events. The stream always
// ends with a single close frame once the reply is stored.
func (s *Server) handleChatbotStream(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.URL.Query().Get("message"))
	if question == "" {
		writeBadRequest(w, "message query parameter is required")
		return
	}

	sink := newSSESink(w)
	if err := sink.Open(); err != nil {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}
	defer sink.Release()

	res, err := s.chatbot.AskStream(r.Context(), question, sink)
	if err != nil {
		log.Printf("chatbot stream: %v", err)
		return
	}
	log.Printf("chatbot stream: stored %s (%s, %d events)", res.Message.ID, res.Outcome.State, res.Outcome.Received)
}
