package quota

import (
	"fmt"

	"github.com/rpggio/reverie/internal/domain/plan"
)

// UsageCounter is the persisted per-day usage record.
type UsageCounter struct {
	Date      string `json:"date"`
	Interpret int    `json:"interpret"`
	Art       int    `json:"art"`
}

// Used returns the count for a capability.
func (u UsageCounter) Used(capability plan.Capability) int {
	switch capability {
	case plan.CapInterpret:
		return u.Interpret
	case plan.CapArt:
		return u.Art
	default:
		return 0
	}
}

func (u *UsageCounter) increment(capability plan.Capability) {
	switch capability {
	case plan.CapInterpret:
		u.Interpret++
	case plan.CapArt:
		u.Art++
	}
}

// SessionState is the profile's current plan and today's usage.
type SessionState struct {
	Profile string       `json:"profile"`
	Plan    plan.Tier    `json:"plan"`
	Usage   UsageCounter `json:"usage"`
}

// Limit returns the daily limit for a capability on the current plan.
func (s SessionState) Limit(capability plan.Capability) plan.Limit {
	return plan.LimitFor(s.Plan, capability)
}

// HasQuota reports whether one more use of capability is allowed today.
func (s SessionState) HasQuota(capability plan.Capability) bool {
	return s.Limit(capability).Allows(s.Usage.Used(capability))
}

// Denial describes a refused action.
type Denial struct {
	Plan       plan.Tier       `json:"plan"`
	PlanLabel  string          `json:"plan_label"`
	Capability plan.Capability `json:"capability"`
	Limit      plan.Limit      `json:"limit"`
	Used       int             `json:"used"`
}

// Message is the user-facing explanation of the denial.
func (d Denial) Message() string {
	return fmt.Sprintf("Daily %s limit reached on the %s plan (%s per day). Upgrade for more.",
		d.Capability, d.PlanLabel, d.Limit)
}

// DenyFunc receives the details of a denied action.
type DenyFunc func(Denial)
