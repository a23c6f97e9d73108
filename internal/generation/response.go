package generation

import (
	"strings"

	"github.com/tidwall/gjson"
)

// parseInterpretation accepts a body with at least one of the three lenses
// as a non-empty string.
func parseInterpretation(body []byte) (Interpretation, error) {
	if !gjson.ValidBytes(body) {
		return Interpretation{}, errInvalidJSON
	}

	field := func(name string) string {
		v := gjson.GetBytes(body, name)
		if v.Type != gjson.String {
			return ""
		}
		return strings.TrimSpace(v.String())
	}

	out := Interpretation{
		Scientific:    field("scientific"),
		Psychological: field("psychological"),
		Spiritual:     field("spiritual"),
	}
	if out.Scientific == "" && out.Psychological == "" && out.Spiritual == "" {
		return Interpretation{}, errInvalidShape
	}
	return out, nil
}

// imageKeys are checked in order. Base64 keys carry raw PNG bytes.
var imageKeys = []struct {
	path   string
	base64 bool
}{
	{path: "imageDataUrl"},
	{path: "image"},
	{path: "url"},
	{path: "b64_json", base64: true},
	{path: "data.0.b64_json", base64: true},
}

// parseImage extracts an embeddable image reference.
func parseImage(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", errInvalidJSON
	}

	for _, key := range imageKeys {
		v := gjson.GetBytes(body, key.path)
		if v.Type != gjson.String {
			continue
		}
		s := strings.TrimSpace(v.String())
		if s == "" {
			continue
		}
		if key.base64 {
			return "data:image/png;base64," + s, nil
		}
		if isImageRef(s) {
			return s, nil
		}
	}
	return "", errInvalidShape
}

func isImageRef(s string) bool {
	return strings.HasPrefix(s, "data:image/") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "http://")
}
