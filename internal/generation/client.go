// Package generation produces dream interpretations and artwork from a
// remote generation service, falling back to local synthesis whenever the
// remote path fails.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultInterpretPath = "/api/interpret"
	defaultImagePath     = "/api/generate-image"
	defaultTimeout       = 20 * time.Second
	maxResponseBytes     = 16 << 20
)

// Capability labels used in logs and metrics.
const (
	capInterpret = "interpret"
	capArt       = "art"
)

// Interpretation is the three-lens reading of a dream.
type Interpretation struct {
	Scientific    string `json:"scientific"`
	Psychological string `json:"psychological"`
	Spiritual     string `json:"spiritual"`
}

// Config configures the remote generation service.
type Config struct {
	// BaseURL of the generation service. Empty means always fall back.
	BaseURL       string
	InterpretPath string
	ImagePath     string
	Timeout       time.Duration
	// RatePerSecond bounds outbound calls. Zero or less is unlimited.
	RatePerSecond float64
	Burst         int
}

// Recorder receives generation telemetry.
type Recorder interface {
	GenerationServed(capability, source string)
	RemoteFailed(capability, reason string)
}

// Client is the generation façade.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithMetrics attaches a telemetry recorder.
func WithMetrics(r Recorder) Option {
	return func(c *Client) {
		c.metrics = r
	}
}

// NewClient creates a generation client.
func NewClient(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.InterpretPath == "" {
		cfg.InterpretPath = defaultInterpretPath
	}
	if cfg.ImagePath == "" {
		cfg.ImagePath = defaultImagePath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Interpret returns an interpretation of text. Any remote failure is
// answered by the local fallback, so the only error is ErrEmptyText.
func (c *Client) Interpret(ctx context.Context, text string) (Interpretation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Interpretation{}, ErrEmptyText
	}

	body, err := c.attemptRemote(ctx, c.cfg.InterpretPath, text)
	if err == nil {
		var out Interpretation
		out, err = parseInterpretation(body)
		if err == nil {
			c.served(capInterpret, "remote")
			return out, nil
		}
	}

	c.fellBack(capInterpret, err)
	return FallbackInterpretation(text), nil
}

// GenerateArt returns an embeddable image reference for text. Any remote
// failure is answered by the local fallback, so the only error is
// ErrEmptyText.
func (c *Client) GenerateArt(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}

	body, err := c.attemptRemote(ctx, c.cfg.ImagePath, text)
	if err == nil {
		var image string
		image, err = parseImage(body)
		if err == nil {
			c.served(capArt, "remote")
			return image, nil
		}
	}

	c.fellBack(capArt, err)
	return FallbackArt(text), nil
}

// attemptRemote makes exactly one POST with a bounded timeout.
func (c *Client) attemptRemote(ctx context.Context, path, text string) ([]byte, error) {
	if c.cfg.BaseURL == "" {
		return nil, errNoEndpoint
	}
	if !c.limiter.Allow() {
		return nil, errRateLimited
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", errBadStatus, path, resp.StatusCode)
	}
	return body, nil
}

func (c *Client) served(capability, source string) {
	c.logger.Debug("generation served", "capability", capability, "source", source)
	if c.metrics != nil {
		c.metrics.GenerationServed(capability, source)
	}
}

func (c *Client) fellBack(capability string, cause error) {
	if errors.Is(cause, errNoEndpoint) {
		c.logger.Debug("no generation endpoint, using fallback", "capability", capability)
	} else {
		c.logger.Warn("remote generation failed, using fallback", "capability", capability, "error", cause)
	}
	if c.metrics != nil {
		c.metrics.RemoteFailed(capability, failureReason(cause))
	}
	c.served(capability, "fallback")
}
