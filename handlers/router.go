package handlers

import (
	"net/http"

	"github.com/CrowderSoup/flow-board/database"
	"github.com/CrowderSoup/flow-board/services"
	"github.com/gorilla/mux"
)

// NewRouter wires every API route. Static files are served from staticDir
// when it is not empty; websocket upgrades are limited to allowedOrigins.
func NewRouter(authService *services.AuthService, documentService *database.DocumentService, hub *services.Hub, staticDir string, allowedOrigins []string) *mux.Router {
	authHandler := NewAuthHandler(authService)
	documentHandler := NewDocumentHandler(documentService)
	wsHandler := NewWebSocketHandler(hub, allowedOrigins)
	authMiddleware := NewAuthMiddleware(authService)

	r := mux.NewRouter()

	r.HandleFunc("/api/health", Health).Methods("GET")

	// Auth routes
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/api/auth/verify", authHandler.VerifyToken).Methods("GET")
	r.HandleFunc("/api/auth/magic-link", authHandler.HandleMagicLink).Methods("GET")

	// Document routes (protected)
	docs := r.PathPrefix("/api/docs").Subrouter()
	docs.Use(authMiddleware.Auth)
	docs.HandleFunc("/{path:.+}", documentHandler.Get).Methods("GET")
	docs.HandleFunc("/{path:.+}", documentHandler.Set).Methods("PUT")
	docs.HandleFunc("/{path:.+}", documentHandler.Update).Methods("PATCH")
	docs.HandleFunc("/{path:.+}", documentHandler.Delete).Methods("DELETE")

	// WebSocket route for cross-tab relaying
	r.Handle("/api/ws", authMiddleware.Auth(http.HandlerFunc(wsHandler.HandleWebSocket)))

	// Static file server for frontend
	if staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	}

	return r
}
