// Package gateway serves the remote generation contract the generation
// client calls: POST /api/interpret and POST /api/generate-image.
package gateway

import (
	"context"
	"errors"

	"github.com/rpggio/reverie/internal/generation"
)

var (
	// ErrEmptyText indicates a request without text or prompt.
	ErrEmptyText = errors.New("missing text")
	// ErrNoImage indicates the upstream model returned no image.
	ErrNoImage = errors.New("no image")
)

// Backend produces interpretations and images for the gateway.
type Backend interface {
	Name() string
	Interpret(ctx context.Context, text string) (generation.Interpretation, error)
	GenerateImage(ctx context.Context, text string) (string, error)
}
