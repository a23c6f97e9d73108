package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/rpggio/reverie/internal/generation"
	"github.com/rs/cors"
	"github.com/tidwall/gjson"
)

const (
	maxRequestBytes = 1 << 20
	defaultCacheTTL = 30 * time.Minute
	defaultTimeout  = 60 * time.Second
)

// Recorder receives request telemetry.
type Recorder interface {
	GatewayRequest(route, status string)
}

// Config configures a gateway Server.
type Config struct {
	// CacheTTL bounds how long an interpretation is reused for identical
	// text.
	CacheTTL time.Duration
	// Timeout bounds each upstream call.
	Timeout time.Duration
}

// Server exposes a Backend over HTTP.
type Server struct {
	backend Backend
	cache   *cache.Cache
	timeout time.Duration
	logger  *slog.Logger
	metrics Recorder
}

// NewServer creates a gateway server. metrics may be nil.
func NewServer(backend Backend, cfg Config, logger *slog.Logger, metrics Recorder) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Server{
		backend: backend,
		cache:   cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		timeout: cfg.Timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// Router builds the HTTP handler. metricsHandler, when set, is served at
// GET /metrics.
func (s *Server) Router(metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "POST only"})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "backend": s.backend.Name()})
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}
	r.Post("/api/interpret", s.handleInterpret)
	r.Post("/api/generate-image", s.handleGenerateImage)

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r)
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

type imageBody struct {
	ImageDataURL string `json:"imageDataUrl"`
}

func (s *Server) handleInterpret(w http.ResponseWriter, r *http.Request) {
	const route = "interpret"
	text, err := readText(r)
	if err != nil {
		s.fail(w, route, http.StatusBadRequest, errorBody{Error: `Missing "text"`})
		return
	}

	if cached, found := s.cache.Get(text); found {
		s.logger.Debug("interpretation cache hit", "chars", len(text))
		s.ok(w, route, cached)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	out, err := s.backend.Interpret(ctx, text)
	if err != nil {
		s.logger.Warn("interpretation failed", "backend", s.backend.Name(), "error", err)
		s.fail(w, route, http.StatusBadGateway, errorBody{Error: "upstream-failed", Detail: err.Error()})
		return
	}

	// An empty answer is passed through but not cached, so the next request
	// asks the backend again.
	if out != (generation.Interpretation{}) {
		s.cache.Set(text, out, cache.DefaultExpiration)
	}
	s.ok(w, route, out)
}

func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	const route = "generate-image"
	text, err := readText(r)
	if err != nil {
		s.fail(w, route, http.StatusBadRequest, errorBody{Error: `Missing "text"`})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	image, err := s.backend.GenerateImage(ctx, text)
	if err != nil {
		s.logger.Warn("image generation failed", "backend", s.backend.Name(), "error", err)
		body := errorBody{Error: "upstream-failed", Detail: err.Error()}
		if errors.Is(err, ErrNoImage) {
			body = errorBody{Error: "no-image"}
		}
		s.fail(w, route, http.StatusBadGateway, body)
		return
	}

	s.ok(w, route, imageBody{ImageDataURL: image})
}

// readText returns the trimmed text field, or prompt when text is absent.
func readText(r *http.Request) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		return "", err
	}
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return "", ErrEmptyText
	}
	text := gjson.GetBytes(body, "text")
	if !text.Exists() || strings.TrimSpace(text.String()) == "" {
		text = gjson.GetBytes(body, "prompt")
	}
	trimmed := strings.TrimSpace(text.String())
	if trimmed == "" {
		return "", ErrEmptyText
	}
	return trimmed, nil
}

func (s *Server) ok(w http.ResponseWriter, route string, payload any) {
	s.record(route, http.StatusOK)
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) fail(w http.ResponseWriter, route string, status int, body errorBody) {
	s.record(route, status)
	writeJSON(w, status, body)
}

func (s *Server) record(route string, status int) {
	if s.metrics != nil {
		s.metrics.GatewayRequest(route, strconv.Itoa(status))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
