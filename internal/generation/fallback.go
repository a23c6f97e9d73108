package generation

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	a "github.com/petar-dambovaliev/aho-corasick"
)

type motif int

const (
	motifFlight motif = iota
	motifWater
	motifTeeth
	motifChase
)

// Keywords per motif. The first keyword of each motif only counts at the
// start of a word; the rest match anywhere.
var motifKeywords = [...][]string{
	motifFlight: {"fly", "float", "sky", "airplane", "plane", "crash", "fall"},
	motifWater:  {"water", "ocean", "sea", "wave", "rain", "river"},
	motifTeeth:  {"teeth", "tooth", "dentist"},
	motifChase:  {"chase", "run", "escape"},
}

var motifSentences = [...]string{
	motifFlight: "Vestibular sensations in REM can feel like falling or flying; your brain rehearses loss-of-control safely.",
	motifWater:  "Water often mirrors big emotions during REM.",
	motifTeeth:  "Teeth images can reflect jaw tension or control/appearance concerns.",
	motifChase:  "Threat-simulation: your brain practices boundaries & avoidance.",
}

const (
	genericScientific  = "Dreams blend memory, emotion regulation, and REM physiology."
	fallbackPsychology = "Look for a real-life parallel. What felt out of control? Pick one 5-minute action that reduces stress."
	fallbackSpiritual  = "Treat this as a nudge to ground yourself. Write one-sentence intention for tomorrow morning."
	fallbackArtCaption = "Dream Art (demo)"
	svgDataURLPrefix   = "data:image/svg+xml;utf8,"
)

type motifPattern struct {
	motif     motif
	wordStart bool
}

var motifMatcher, motifPatterns = buildMotifMatcher()

func buildMotifMatcher() (a.AhoCorasick, []motifPattern) {
	var (
		keywords []string
		patterns []motifPattern
	)
	for m, words := range motifKeywords {
		for i, w := range words {
			keywords = append(keywords, w)
			patterns = append(patterns, motifPattern{motif: motif(m), wordStart: i == 0})
		}
	}
	builder := a.NewAhoCorasickBuilder(a.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  false,
	})
	return builder.Build(keywords), patterns
}

// detectMotifs reports which motifs appear in text.
func detectMotifs(text string) [len(motifKeywords)]bool {
	var found [len(motifKeywords)]bool
	for _, match := range motifMatcher.FindAll(text) {
		p := motifPatterns[match.Pattern()]
		if p.wordStart && match.Start() > 0 && isWordByte(text[match.Start()-1]) {
			continue
		}
		found[p.motif] = true
	}
	return found
}

func isWordByte(b byte) bool {
	return b == '_' ||
		('0' <= b && b <= '9') ||
		('a' <= b && b <= 'z') ||
		('A' <= b && b <= 'Z')
}

// FallbackInterpretation builds a deterministic interpretation from the
// motifs found in text.
func FallbackInterpretation(text string) Interpretation {
	found := detectMotifs(text)

	var sentences []string
	for m, ok := range found {
		if ok {
			sentences = append(sentences, motifSentences[m])
		}
	}
	if len(sentences) == 0 {
		sentences = append(sentences, genericScientific)
	}

	return Interpretation{
		Scientific:    strings.Join(sentences, " "),
		Psychological: fallbackPsychology,
		Spiritual:     fallbackSpiritual,
	}
}

// FallbackArt renders a deterministic SVG for text and returns it as a data
// URL.
func FallbackArt(text string) string {
	n := utf8.RuneCountInString(text) % 100
	n = max(1, min(99, n))

	svg := fmt.Sprintf(`<svg xmlns='http://www.w3.org/2000/svg' width='1200' height='700'>
<defs>
<linearGradient id='g' x1='0' y1='0' x2='1' y2='1'>
<stop offset='0' stop-color='#121c3b'/><stop offset='1' stop-color='#7aa8ff'/>
</linearGradient>
<filter id='glow'><feGaussianBlur stdDeviation='8' result='b'/><feMerge><feMergeNode in='b'/><feMergeNode in='SourceGraphic'/></feMerge></filter>
</defs>
<rect fill='url(#g)' width='100%%' height='100%%'/>
<g filter='url(#glow)' opacity='0.85'>
<circle cx='%d' cy='%d' r='%d' fill='#a7c4ff'/>
<circle cx='%d' cy='%d' r='%s' fill='#7aa8ff'/>
</g>
<text x='50%%' y='92%%' fill='#e9f0ff' font-family='ui-sans-serif, system-ui' font-size='28' text-anchor='middle'>%s</text>
</svg>`,
		200+n*7, 160+n*4, 120+n,
		760-n*3, 380-n*2, strconv.FormatFloat(90+float64(n)/2, 'f', -1, 64),
		fallbackArtCaption,
	)

	return svgDataURLPrefix + url.PathEscape(svg)
}
