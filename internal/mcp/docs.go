package mcp

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/reverie/internal/domain/plan"
)

const serverInstructions = `reverie is a dream journal with metered interpretation and artwork.

Core concepts:
- Profile: whose journal and quota a call touches. HTTP resolves it from the bearer token; stdio uses the local profile.
- Plan: free, lite, standard or pro. Sets daily limits per capability, unlocked lenses and features.
- Capability: a metered action. interpret (interpretation) and art (artwork).
- Usage: per-profile counters for the current local day. They reset at local midnight.

Rules of engagement:
1) Orient: call get_usage to see the plan and what is left today.
2) Journal freely: save_dream, list_dreams, journal_stats and share_latest never consume quota.
3) Metered calls: interpret_dream, generate_art, dream and interpret_and_save each consume one use per capability they run.
   - A QUOTA_EXCEEDED error means nothing ran and nothing was charged.
   - Interpretations and artwork always arrive; when the generation service is down a built-in fallback answers.
4) Portability: export_journal returns a document that import_journal accepts. Import replaces the journal.

Docs:
- reverie://docs/index
- reverie://docs/plans
- reverie://docs/workflows/interpretation
- reverie://docs/journal-portability
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "reverie://docs/index",
		Name:        "docs_index",
		Title:       "reverie docs index",
		Description: "Entry point for agent-facing docs: what exists and when to read it.",
		Content: `# reverie: Agent Docs Index

## Quick start

1. get_usage
2. save_dream {"text": "..."}
3. interpret_dream {"text": "..."} or dream {"text": "..."} for interpretation and artwork together

## What to read when

- Which plan unlocks what: reverie://docs/plans
- Metered calls, denials and fallbacks: reverie://docs/workflows/interpretation
- Moving a journal between devices: reverie://docs/journal-portability

## Error codes

- EMPTY_TEXT: the dream text was blank. Nothing ran.
- QUOTA_EXCEEDED: today's limit for the capability is used up. details carries plan, limit and used.
- UNKNOWN_PLAN: set_plan was given a name outside free, lite, standard, pro.
- INVALID_RANGE: list_dreams range must be all, week or month.
- INVALID_DOCUMENT: import_journal was given something other than an exported document.
- NO_ENTRIES: share_latest on an empty journal.
`,
	},
	{
		URI:         "reverie://docs/plans",
		Name:        "plans",
		Title:       "Plans and entitlements",
		Description: "Daily limits, lenses and features for every plan tier.",
		Content:     plansDoc(),
	},
	{
		URI:         "reverie://docs/workflows/interpretation",
		Name:        "workflow_interpretation",
		Title:       "Workflow: metered interpretation and artwork",
		Description: "How quota is checked and charged, and what happens when generation is unavailable.",
		Content: `# Workflow: metered interpretation and artwork

## Order of checks

1. Blank text is rejected with EMPTY_TEXT before quota is read.
2. The profile's plan and today's usage are loaded. A missing or stale counter means zero uses today.
3. If used >= limit the call is denied with QUOTA_EXCEEDED and nothing is charged.
4. Otherwise the generation runs and one use is recorded.

## Fallbacks

The generation service may be unreachable, slow, rate limited or return an unexpected shape.
In every case the call still succeeds:

- Interpretations fall back to a motif-based reading (flight and falling, water, teeth, chase).
- Artwork falls back to an SVG placeholder data URL.

A fallback still counts as one use.

## dream

dream checks interpret and art separately. When one capability is used up you still get the other,
plus an entry in denials. dream never fails on a denial; with both used up it returns two denials.
`,
	},
	{
		URI:         "reverie://docs/journal-portability",
		Name:        "journal_portability",
		Title:       "Journal export and import",
		Description: "Document format for export_journal and import_journal.",
		Content: `# Journal export and import

export_journal returns {file_name, document}. The document looks like:

` + "```json" + `
{
  "dreams": [{"id": "...", "text": "...", "date": "2025-01-02T07:30:00Z"}],
  "profile": {},
  "prefs": {},
  "exported_at": "2025-01-02T08:00:00Z"
}
` + "```" + `

import_journal accepts the document as an object or as the file contents in a string.

- dreams must be an array; each element needs id, text and date.
- profile and prefs are stored when present.
- Import replaces the journal. A rejected document changes nothing.

delete_local_data removes the journal and today's usage counters. The plan is kept.
`,
	},
}

// plansDoc renders the catalog so the doc never drifts from the limits
// actually enforced.
func plansDoc() string {
	var b strings.Builder
	b.WriteString("# Plans and entitlements\n\nLimits are per local day and reset at midnight.\n")
	for _, tier := range plan.Tiers() {
		p := plan.Lookup(tier)
		fmt.Fprintf(&b, "\n## %s (`%s`)\n\n", p.Label, p.Tier)
		for _, capability := range plan.Capabilities() {
			fmt.Fprintf(&b, "- %s per day: %s\n", capability, plan.LimitFor(tier, capability))
		}
		fmt.Fprintf(&b, "- lenses: %s\n", strings.Join(p.Lenses, ", "))
		for _, key := range slices.Sorted(maps.Keys(p.Features)) {
			fmt.Fprintf(&b, "- %s: %v\n", key, p.Features[key])
		}
	}
	return b.String()
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
