package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/rpggio/reverie/internal/generation"
	"google.golang.org/genai"
)

const interpretInstruction = "Return JSON ONLY with keys {scientific, psychological, spiritual}. " +
	"Each key: 2-4 concise sentences. No markdown."

var _ Backend = (*GeminiBackend)(nil)

// GeminiBackend generates with Gemini text and Imagen image models.
type GeminiBackend struct {
	client     *genai.Client
	textModel  string
	imageModel string
}

// NewGeminiBackend creates a backend for the Gemini API.
func NewGeminiBackend(ctx context.Context, apiKey, textModel, imageModel string) (*GeminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiBackend{
		client:     client,
		textModel:  textModel,
		imageModel: imageModel,
	}, nil
}

func (g *GeminiBackend) Name() string { return "gemini" }

func (g *GeminiBackend) Interpret(ctx context.Context, text string) (generation.Interpretation, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.textModel,
		genai.Text("Analyze this dream:\n\n"+text),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(interpretInstruction, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr[float32](0.8),
		})
	if err != nil {
		return generation.Interpretation{}, fmt.Errorf("generating interpretation: %w", err)
	}

	// A malformed answer yields empty sections rather than an error.
	var out generation.Interpretation
	_ = json.Unmarshal([]byte(resp.Text()), &out)
	return out, nil
}

func (g *GeminiBackend) GenerateImage(ctx context.Context, text string) (string, error) {
	prompt := "Create a surreal, dreamlike, cinematic artwork based on this dream: " + text +
		". Soft volumetric light, high detail, tasteful color, subtle glow."
	resp, err := g.client.Models.GenerateImages(ctx, g.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/png",
	})
	if err != nil {
		return "", fmt.Errorf("generating image: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil || len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		return "", ErrNoImage
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(resp.GeneratedImages[0].Image.ImageBytes), nil
}
