package plan

import "strconv"

// Tier identifies a subscription plan.
type Tier string

const (
	TierFree     Tier = "free"
	TierLite     Tier = "lite"
	TierStandard Tier = "standard"
	TierPro      Tier = "pro"
)

// Capability is a metered action kind.
type Capability string

const (
	CapInterpret Capability = "interpret"
	CapArt       Capability = "art"
)

// Capabilities lists every metered capability in display order.
func Capabilities() []Capability {
	return []Capability{CapInterpret, CapArt}
}

// Limit is a daily allowance. Unlimited is the only negative value.
type Limit int

// Unlimited marks a capability without a daily cap.
const Unlimited Limit = -1

// IsUnlimited reports whether the limit has no cap.
func (l Limit) IsUnlimited() bool {
	return l < 0
}

// Allows reports whether one more use fits after used uses.
func (l Limit) Allows(used int) bool {
	return l.IsUnlimited() || used < int(l)
}

func (l Limit) String() string {
	if l.IsUnlimited() {
		return "unlimited"
	}
	return strconv.Itoa(int(l))
}

// Feature is an entry in a plan's feature map. A feature is locked when its
// value is false, empty or zero.
type Feature interface {
	Unlocked() bool
}

// Flag is an on/off feature.
type Flag bool

func (f Flag) Unlocked() bool { return bool(f) }

// Level is a named tier of a feature, such as a support level.
type Level string

func (l Level) Unlocked() bool { return l != "" }

// Amount is a counted feature, such as days of history.
type Amount int

func (a Amount) Unlocked() bool { return a > 0 }

// Plan describes everything a tier unlocks.
type Plan struct {
	Tier     Tier                 `json:"tier"`
	Label    string               `json:"label"`
	Daily    map[Capability]Limit `json:"daily"`
	Lenses   []string             `json:"lenses"`
	Features map[string]Feature   `json:"features"`
}
