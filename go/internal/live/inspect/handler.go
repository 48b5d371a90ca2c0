// Package inspect serves a read-only JSON view of a running session for
// debugging and bots.
package inspect

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/bizmonopoly/go/internal/live/clock"
	"github.com/mcdev12/bizmonopoly/go/internal/live/dispatch"
)

// Provider is what the inspector reads from. Both methods must be safe to call
// from HTTP goroutines.
type Provider interface {
	Published() *dispatch.Published
	Clock() *clock.Clock
}

// ClockView is the clock as shown at request time
type ClockView struct {
	Display string  `json:"display"`
	Seconds float64 `json:"seconds"`
	Paused  bool    `json:"paused"`
}

// ViewResponse is the body of GET /api/view
type ViewResponse struct {
	*dispatch.Published
	Clock ClockView `json:"clock"`
}

// Handler serves the inspector routes
type Handler struct {
	provider Provider
}

func NewHandler(provider Provider) *Handler {
	return &Handler{provider: provider}
}

// HandleGetView handles GET /api/view
func (h *Handler) HandleGetView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	published := h.provider.Published()
	if published == nil {
		http.Error(w, "Session not started", http.StatusServiceUnavailable)
		return
	}

	c := h.provider.Clock()
	resp := ViewResponse{
		Published: published,
		Clock: ClockView{
			Display: c.RenderTick(),
			Seconds: c.Seconds(),
			Paused:  c.Paused(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to encode view response")
	}
}

// RegisterRoutes registers the inspector routes on mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/view", h.HandleGetView)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// Routes returns the inspector routes wrapped with CORS
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

// NewServer builds the inspector server, speaking HTTP/2 without TLS as well
func NewServer(addr string, provider Provider) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h2c.NewHandler(NewHandler(provider).Routes(), &http2.Server{}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
