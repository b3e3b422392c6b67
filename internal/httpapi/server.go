// Package httpapi implements the REST collaborator surface described in
// the external interfaces: a handful of unauthenticated liveness routes,
// a password-gated /api/** surface, and 501 stubs for the trade/account
// routes this service does not implement.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/shl888/feedcore/internal/pool"
	"github.com/shl888/feedcore/internal/venue"
)

// Source is the store's read surface for the debug pool-status route.
type Source interface {
	GetConnectionStatus(v venue.Name) (pool.Snapshot, []pool.FailoverRecord)
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AccessPassword string
	HasOKXKeys     bool
	HasBinanceKeys bool
}

// DefaultConfig returns sane local-only defaults. AccessPassword and the
// key flags are expected to be overridden from loaded environment.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server is the REST collaborator surface.
type Server struct {
	router *mux.Router
	server *http.Server
	config Config
	source Source
	venues []venue.Name
}

// New builds a Server wired to the store's status-read surface.
func New(cfg Config, source Source, venues []venue.Name) *Server {
	s := &Server{
		router: mux.NewRouter(),
		config: cfg,
		source: source,
		venues: venues,
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Router exposes the underlying router, mainly for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.timeoutMiddleware)

	s.router.HandleFunc("/public/ping", s.handlePing).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.jsonContentTypeMiddleware)
	api.Use(s.accessPasswordMiddleware)

	api.HandleFunc("/debug/pool", s.handleDebugPool).Methods(http.MethodGet)
	api.PathPrefix("/trade/").HandlerFunc(s.requireVenueKeys(s.handleNotImplemented))
	api.PathPrefix("/account/").HandlerFunc(s.requireVenueKeys(s.handleNotImplemented))

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"service": "feedcore"})
}

func (s *Server) handleDebugPool(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]interface{}, len(s.venues))
	for _, v := range s.venues {
		snap, history := s.source.GetConnectionStatus(v)
		out[string(v)] = map[string]interface{}{
			"snapshot":         snap,
			"failover_history": history,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleNotImplemented(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "not implemented"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

// requireVenueKeys wraps a handler so it 501s unless both venues have
// configured API credentials, per the external-interfaces requirement that
// trade/account routes additionally require venue keys.
func (s *Server) requireVenueKeys(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.config.HasOKXKeys || !s.config.HasBinanceKeys {
			writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "venue credentials not configured"})
			return
		}
		next(w, r)
	}
}

func (s *Server) accessPasswordMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.AccessPassword == "" || r.Header.Get("X-Access-Password") != s.config.AccessPassword {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type requestIDKey struct{}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		log.Info().
			Str("request_id", fmt.Sprint(r.Context().Value(requestIDKey{}))).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.TimeoutHandler(next, 5*time.Second, `{"error":"request timeout"}`)
}

func (s *Server) jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Start serves until the listener errors or Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting http server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
