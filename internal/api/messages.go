package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"movie-chatbot/internal/chatbot"
	"movie-chatbot/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetMessages returns the whole conversation log, oldest first.
func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.chatbot.Messages(r.Context())
	if err != nil {
		log.Printf("list messages: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}
	writeData(w, messages)
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msg, err := s.chatbot.Message(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeNotFound(w, "Message not found")
		return
	}
	if err != nil {
		log.Printf("get message %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to load message")
		return
	}
	writeData(w, msg)
}

// handleSend records a user message without running the agent.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	text, detail, ok := decodeStringField(w, r, "message")
	if !ok {
		writeBadRequest(w, detail)
		return
	}

	msg, err := s.chatbot.Send(r.Context(), text)
	if errors.Is(err, chatbot.ErrEmptyMessage) {
		writeBadRequest(w, err.Error())
		return
	}
	if err != nil {
		log.Printf("send message: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to store message")
		return
	}
	writeData(w, msg)
}
