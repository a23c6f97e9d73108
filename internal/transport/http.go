package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RPCHandler handles tool dispatch.
type RPCHandler interface {
	Handle(ctx context.Context, profileID, sessionID, method string, params json.RawMessage) (any, error)
}

// codedError is implemented by errors that carry a stable application code.
type codedError interface {
	error
	CodeValue() string
	MessageValue() string
	DetailsValue() any
	RecoveryHintValue() string
}

// Server wires HTTP handlers.
type Server struct {
	handler RPCHandler
}

type options struct {
	metrics http.Handler
	mcp     http.Handler
}

// Option configures the router.
type Option func(*options)

// WithMetricsHandler serves h at GET /metrics without auth.
func WithMetricsHandler(h http.Handler) Option {
	return func(o *options) {
		o.metrics = h
	}
}

// WithMCPHandler mounts an MCP streamable HTTP handler at /mcp. The MCP
// server authenticates on its own.
func WithMCPHandler(h http.Handler) Option {
	return func(o *options) {
		o.mcp = h
	}
}

// NewServer creates an HTTP server router with middleware.
func NewServer(handler RPCHandler, authMiddleware func(http.Handler) http.Handler, opts ...Option) *chi.Mux {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	srv := &Server{handler: handler}

	r.Get("/health", srv.handleHealth)
	if o.metrics != nil {
		r.Method(http.MethodGet, "/metrics", o.metrics)
	}
	if o.mcp != nil {
		r.Handle("/mcp", o.mcp)
	}

	r.Group(func(r chi.Router) {
		if authMiddleware != nil {
			r.Use(authMiddleware)
		}
		r.Use(SessionMiddleware)
		r.Post("/rpc", srv.handleRPC)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r.Body)
	if err != nil {
		if IsParseError(err) {
			WriteError(w, nil, ErrParseCode, "parse error", nil)
			return
		}
		WriteError(w, nil, ErrInvalidReq, "invalid request", nil)
		return
	}

	profileID, ok := ProfileFromContext(r.Context())
	if !ok || profileID == "" {
		http.Error(w, "missing profile", http.StatusUnauthorized)
		return
	}

	sessionID, _ := SessionIDFromContext(r.Context())

	result, err := s.handler.Handle(r.Context(), profileID, sessionID, req.Method, req.Params)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var coded codedError
		if errors.As(err, &coded) {
			WriteError(w, req.ID, ErrApplication, coded.MessageValue(), ErrorData{
				Code:         coded.CodeValue(),
				Details:      coded.DetailsValue(),
				RecoveryHint: coded.RecoveryHintValue(),
			})
			return
		}
		WriteError(w, req.ID, ErrInternal, err.Error(), nil)
		return
	}

	WriteResult(w, req.ID, result)
}
