package insight

import (
	"github.com/rpggio/reverie/internal/domain/journal"
	"github.com/rpggio/reverie/internal/domain/plan"
	"github.com/rpggio/reverie/internal/domain/quota"
	"github.com/rpggio/reverie/internal/generation"
)

// SavedInterpretation is the result of the interpret-and-save flow.
type SavedInterpretation struct {
	Interpretation generation.Interpretation `json:"interpretation"`
	Entry          journal.Entry             `json:"entry"`
}

// DreamResult holds whatever the profile's quota admitted. A denied
// capability leaves its field empty and adds a denial.
type DreamResult struct {
	Interpretation *generation.Interpretation `json:"interpretation,omitempty"`
	Image          string                     `json:"image,omitempty"`
	Denials        []DenialView               `json:"denials,omitempty"`
}

// DenialView is a denial with its message.
type DenialView struct {
	quota.Denial
	Message string `json:"message"`
}

// CapabilityUsage is today's usage of one capability.
type CapabilityUsage struct {
	Capability plan.Capability `json:"capability"`
	Used       int             `json:"used"`
	Limit      string          `json:"limit"`
	Display    string          `json:"display"`
	Allowed    bool            `json:"allowed"`
}

// UsageReport summarizes the profile's plan and today's usage.
type UsageReport struct {
	Plan     plan.Tier               `json:"plan"`
	Label    string                  `json:"label"`
	Period   string                  `json:"period"`
	Usage    []CapabilityUsage       `json:"usage"`
	Lenses   []string                `json:"lenses"`
	Features map[string]plan.Feature `json:"features"`
}

// Entitlement kinds.
const (
	KindCapability = "capability"
	KindLens       = "lens"
	KindFeature    = "feature"
)

// Entitlement answers whether a key is unlocked for the profile right now.
type Entitlement struct {
	Key     string    `json:"key"`
	Kind    string    `json:"kind"`
	Plan    plan.Tier `json:"plan"`
	Allowed bool      `json:"allowed"`
}
