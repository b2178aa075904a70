package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"movie-chatbot/internal/chatbot"
	"movie-chatbot/internal/config"
)

// Server holds all dependencies for the HTTP server.
type Server struct {
	config  *config.Config
	chatbot *chatbot.Service
}

// NewServer creates a new server around the chatbot service.
func NewServer(cfg *config.Config, svc *chatbot.Service) *Server {
	return &Server{
		config:  cfg,
		chatbot: svc,
	}
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(srv *Server) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(RecovererMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   srv.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(AuthMiddleware(srv.config.APIToken))

	r.MethodNotAllowed(writeMethodNotAllowed)

	r.Get("/api/health", srv.handleHealth)

	// Message log
	r.Get("/api/get-messages", srv.handleGetMessages)
	r.Get("/api/messages/{id}", srv.handleGetMessage)
	r.Post("/api/send", srv.handleSend)

	// Chatbot turns
	r.Post("/api/chatbot-non-stream", srv.handleChatbotNonStream)
	r.Get("/api/chatbot-stream", srv.handleChatbotStream)
	r.Get("/api/chatbot-ws", srv.handleChatbotWS)

	return r
}

// originAllowed applies the CORS origin list to WebSocket upgrades, which
// bypass the CORS preflight.
func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
