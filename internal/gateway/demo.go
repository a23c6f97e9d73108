package gateway

import (
	"context"
	"fmt"
	"html"
	"net/url"

	"github.com/rpggio/reverie/internal/generation"
)

const demoCaptionRunes = 80

var demoInterpretation = generation.Interpretation{
	Scientific:    "Dreams combine REM physiology with memory consolidation; themes often echo recent stressors.",
	Psychological: "Notice what the situation mirrors in waking life. Choose one small action to regain agency.",
	Spiritual:     "Treat this as a gentle nudge to act with courage and clarity today.",
}

// DemoBackend answers without any model. Used when no API key is set.
type DemoBackend struct{}

func (DemoBackend) Name() string { return "demo" }

func (DemoBackend) Interpret(context.Context, string) (generation.Interpretation, error) {
	return demoInterpretation, nil
}

func (DemoBackend) GenerateImage(_ context.Context, text string) (string, error) {
	return placeholderImage(text), nil
}

func placeholderImage(text string) string {
	caption := []rune(text)
	if len(caption) > demoCaptionRunes {
		caption = caption[:demoCaptionRunes]
	}
	svg := fmt.Sprintf(`<svg xmlns='http://www.w3.org/2000/svg' width='1024' height='1024'>`+
		`<defs><linearGradient id='g' x1='0' y1='0' x2='1' y2='1'>`+
		`<stop offset='0%%' stop-color='#0a1026'/><stop offset='100%%' stop-color='#0f274b'/>`+
		`</linearGradient></defs>`+
		`<rect width='100%%' height='100%%' fill='url(#g)'/>`+
		`<g fill='white' font-family='Inter,system-ui,-apple-system,Segoe UI,Roboto' text-anchor='middle'>`+
		`<text x='50%%' y='50%%' font-size='42'>Dream Art Placeholder</text>`+
		`<text x='50%%' y='56%%' font-size='20' opacity='.8'>%s</text>`+
		`</g></svg>`, html.EscapeString(string(caption)))
	return "data:image/svg+xml;utf8," + url.PathEscape(svg)
}
