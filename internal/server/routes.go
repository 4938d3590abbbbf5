package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /sessions", h.CreateSession)
	mux.HandleFunc("GET /sessions/{id}", h.GetSession)
	mux.HandleFunc("DELETE /sessions/{id}", h.DeleteSession)
	mux.HandleFunc("POST /sessions/{id}/key", h.SelectKey)

	mux.HandleFunc("POST /sessions/{id}/logo", h.GenerateLogo)
	mux.HandleFunc("POST /sessions/{id}/logo/upload", h.UploadLogo)
	mux.HandleFunc("GET /sessions/{id}/logo", h.GetLogo)

	mux.HandleFunc("POST /sessions/{id}/animation", h.StartAnimation)
	mux.HandleFunc("DELETE /sessions/{id}/animation", h.CancelAnimation)
	mux.HandleFunc("GET /sessions/{id}/video", h.GetVideo)
	mux.HandleFunc("GET /sessions/{id}/video/poster", h.GetPoster)

	mux.HandleFunc("GET /jobs/{id}", h.GetJob)

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		RequestIDMiddleware(),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
