// Package httpapi is the HTTP front end: a chat endpoint that hands each
// message to the orchestrator, plus tool listing, health and metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/ShayCichocki/taskflow/internal/orchestrator"
	"github.com/ShayCichocki/taskflow/internal/registry"
	"github.com/ShayCichocki/taskflow/internal/version"
	"github.com/ShayCichocki/taskflow/pkg/models"
)

const (
	// CallerHeader carries the optional caller identity.
	CallerHeader = "X-Taskflow-Caller"

	maxBodyBytes    = 64 << 10
	requestTimeout  = 2 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// Handler handles one instruction.
type Handler interface {
	Handle(ctx context.Context, instruction string) *models.OutcomeReport
}

// Server serves the HTTP API.
type Server struct {
	router   chi.Router
	handler  Handler
	reg      *registry.Registry
	metrics  http.Handler
	origins  []string
	logger   zerolog.Logger
	started  time.Time
	now      func() time.Time
	shutdown time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics exposes h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithCORSOrigins sets the allowed CORS origins. Empty or "*" allows any.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l.With().Str("component", "http").Logger() }
}

// WithClock overrides the clock used for response timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates the server.
func New(h Handler, reg *registry.Registry, opts ...Option) *Server {
	s := &Server{
		handler:  h,
		reg:      reg,
		logger:   zerolog.Nop(),
		now:      time.Now,
		shutdown: shutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.started = s.now()
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.setupCORS())
	r.Use(s.loggingMiddleware)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Post("/chat", s.handleChat)
		r.Get("/tools", s.handleTools)
	})
	s.router = r
}

func (s *Server) setupCORS() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", CallerHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(s.origins) == 0 || (len(s.origins) == 1 && s.origins[0] == "*") {
		opts.AllowedOrigins = []string{"*"}
		opts.AllowCredentials = false
	}
	return cors.Handler(opts)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	s.logger.Info().Msg("http server stopping")
	return srv.Shutdown(shutdownCtx)
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
	// Caller overrides the caller header when set.
	Caller string `json:"caller,omitempty"`
}

// ChatResponse is the reply to POST /api/chat.
type ChatResponse struct {
	Report    *models.OutcomeReport `json:"report"`
	Response  string                `json:"response"`
	Timestamp string                `json:"timestamp"`
}

// ErrorResponse is returned for malformed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.sendError(w, http.StatusBadRequest, "message is required")
		return
	}

	caller := req.Caller
	if caller == "" {
		caller = r.Header.Get(CallerHeader)
	}
	ctx := r.Context()
	if caller != "" {
		ctx = orchestrator.WithCaller(ctx, caller)
	}

	report := s.handler.Handle(ctx, req.Message)
	s.sendJSON(w, http.StatusOK, ChatResponse{
		Report:    report,
		Response:  report.Summary,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

type paramView struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

type toolView struct {
	Name        string      `json:"name"`
	Server      string      `json:"server"`
	Description string      `json:"description"`
	Params      []paramView `json:"params"`
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	var descs []registry.ToolDescriptor
	if server := r.URL.Query().Get("server"); server != "" {
		if !registry.Server(server).Valid() {
			s.sendError(w, http.StatusBadRequest, "unknown server "+server)
			return
		}
		descs = s.reg.ForServer(registry.Server(server))
	} else {
		descs = s.reg.List()
	}

	tools := make([]toolView, 0, len(descs))
	for _, d := range descs {
		tv := toolView{Name: d.Name, Server: string(d.Server), Description: d.Description, Params: []paramView{}}
		for _, p := range d.Params {
			tv.Params = append(tv.Params, paramView{
				Name:        p.Name,
				Type:        string(p.Type),
				Required:    p.Required,
				Description: p.Description,
				Enum:        p.Enum,
			})
		}
		tools = append(tools, tv)
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"tools": tools, "count": len(tools)})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"version":        version.Get(),
		"uptime_seconds": int64(s.now().Sub(s.started).Seconds()),
		"tools":          len(s.reg.List()),
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("write response")
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, msg string) {
	s.sendJSON(w, status, ErrorResponse{Error: msg})
}
