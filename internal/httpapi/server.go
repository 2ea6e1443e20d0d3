package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/carpool-matching/internal/match"
)

// Server exposes the matching engine over HTTP.
type Server struct {
	base   context.Context // bounds background work spawned by handlers
	orch   *match.Orchestrator
	locks  *match.KeyedMutex
	logger *slog.Logger
	ready  func(ctx context.Context) error // optional readiness probe
	mux    *mux.Router
}

// NewServer builds the router. Background work started by handlers (the
// recompute entry point) is canceled when base is.
func NewServer(base context.Context, orch *match.Orchestrator, logger *slog.Logger, ready func(ctx context.Context) error) *Server {
	if base == nil {
		base = context.Background()
	}
	s := &Server{
		base:   base,
		orch:   orch,
		locks:  match.NewKeyedMutex(),
		logger: logger,
		ready:  ready,
		mux:    mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/reservations/{id}/matches", s.handleFindMatches).Methods("GET")
	s.mux.HandleFunc("/internal/recompute", s.handleRecompute).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.HandleFunc("/ready", s.handleReady).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(200)
	w.Write([]byte("ready"))
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
