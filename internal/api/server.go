// Package api provides the ProcureFlow JSON API: catalog, checkout,
// chat streaming and transcription endpoints behind a shared
// middleware stack.
package api

import (
	"errors"
	"net/http"

	"github.com/procureflow/procureflow/internal/assistant"
	"github.com/procureflow/procureflow/internal/catalog"
	"github.com/procureflow/procureflow/internal/chatstore"
	"github.com/procureflow/procureflow/internal/log"
	"github.com/procureflow/procureflow/internal/transcribe"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger    log.Logger
	Catalog   catalog.Repository // Required
	ChatStore *chatstore.Store   // Required

	// Agent and Transcriber are nil when the provider API key is
	// missing; the affected endpoints then answer 500 per request.
	Agent       *assistant.Agent
	Transcriber transcribe.Transcriber

	Metrics *Metrics // Optional: nil creates a fresh registry

	MaxUploadBytes int64   // 0 uses 20 MB
	RateLimit      float64 // requests per second per IP, 0 uses 10
	RateBurst      int     // 0 uses 20
	TrustProxy     bool    // trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
}

// Server is the JSON API HTTP server.
type Server struct {
	handler http.Handler
}

// NewServer creates the API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("catalog repository is required")
	}
	if cfg.ChatStore == nil {
		return nil, errors.New("chat store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}

	ph := &productsHandler{catalog: cfg.Catalog, logger: logger}
	ch := &chatHandler{agent: cfg.Agent, store: cfg.ChatStore, logger: logger}
	th := &transcribeHandler{transcriber: cfg.Transcriber, maxBytes: maxUpload, logger: logger}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", health(logger))

	mux.HandleFunc("GET /api/products", ph.list)
	mux.HandleFunc("GET /api/products/{id}", ph.get)
	mux.HandleFunc("POST /api/register", ph.register)
	mux.HandleFunc("POST /api/checkout", ph.checkout)

	mux.HandleFunc("POST /api/chat", ch.send)
	mux.HandleFunc("POST /api/chat/create", ch.create)
	mux.HandleFunc("GET /api/chat/{id}", ch.get)
	mux.HandleFunc("GET /api/conversations", ch.conversations)

	mux.HandleFunc("POST /api/transcribe", th.handle)

	// Rate limiter: per-IP token bucket.
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 20
	}
	rl := newRateLimiter(rps, burst)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging(+metrics) → CORS → RateLimit → Routes
	// CORS sits before the rate limiter so preflight OPTIONS always
	// carries CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware()(handler)
	handler = loggingMiddleware(logger, metrics)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Metrics exposition bypasses the middleware stack, like health
	// probes in front of a scraper.
	top := http.NewServeMux()
	top.Handle("GET /metrics", metrics.Handler())
	top.Handle("/", handler)

	return &Server{handler: top}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}
