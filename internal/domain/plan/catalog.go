// Package plan holds the static subscription catalog: daily limits, unlocked
// lenses and unlocked features per tier.
package plan

import "strings"

// Lens names.
const (
	LensScientific    = "scientific"
	LensPsychological = "psychological"
	LensSpiritual     = "spiritual"
	LensSymbolic      = "symbolic"
	LensCultural      = "cultural"
	LensArchetypal    = "archetypal"
)

// Feature keys.
const (
	FeatureExport      = "export"
	FeatureShare       = "share"
	FeatureHDArt       = "hd_art"
	FeatureCommercial  = "commercial"
	FeatureHistoryDays = "history_days"
	FeatureSupport     = "support"
)

var catalog = map[Tier]Plan{
	TierFree: {
		Tier:  TierFree,
		Label: "Free",
		Daily: map[Capability]Limit{CapInterpret: 2, CapArt: 1},
		Lenses: []string{
			LensScientific, LensPsychological, LensSpiritual,
		},
		Features: map[string]Feature{
			FeatureExport:      Flag(true),
			FeatureShare:       Flag(true),
			FeatureHDArt:       Flag(false),
			FeatureCommercial:  Flag(false),
			FeatureHistoryDays: Amount(30),
			FeatureSupport:     Level(""),
		},
	},
	TierLite: {
		Tier:  TierLite,
		Label: "Lite",
		Daily: map[Capability]Limit{CapInterpret: 8, CapArt: 3},
		Lenses: []string{
			LensScientific, LensPsychological, LensSpiritual, LensSymbolic,
		},
		Features: map[string]Feature{
			FeatureExport:      Flag(true),
			FeatureShare:       Flag(true),
			FeatureHDArt:       Flag(true),
			FeatureCommercial:  Flag(false),
			FeatureHistoryDays: Amount(90),
			FeatureSupport:     Level("email"),
		},
	},
	TierStandard: {
		Tier:  TierStandard,
		Label: "Standard",
		Daily: map[Capability]Limit{CapInterpret: Unlimited, CapArt: 10},
		Lenses: []string{
			LensScientific, LensPsychological, LensSpiritual, LensSymbolic, LensCultural,
		},
		Features: map[string]Feature{
			FeatureExport:      Flag(true),
			FeatureShare:       Flag(true),
			FeatureHDArt:       Flag(true),
			FeatureCommercial:  Flag(true),
			FeatureHistoryDays: Amount(365),
			FeatureSupport:     Level("priority"),
		},
	},
	TierPro: {
		Tier:  TierPro,
		Label: "Pro",
		Daily: map[Capability]Limit{CapInterpret: Unlimited, CapArt: 150},
		Lenses: []string{
			LensScientific, LensPsychological, LensSpiritual, LensSymbolic, LensCultural, LensArchetypal,
		},
		Features: map[string]Feature{
			FeatureExport:      Flag(true),
			FeatureShare:       Flag(true),
			FeatureHDArt:       Flag(true),
			FeatureCommercial:  Flag(true),
			FeatureHistoryDays: Amount(3650),
			FeatureSupport:     Level("dedicated"),
		},
	},
}

// Tiers lists the catalog tiers from cheapest to most expensive.
func Tiers() []Tier {
	return []Tier{TierFree, TierLite, TierStandard, TierPro}
}

// Parse resolves a tier name. Unknown names report false.
func Parse(name string) (Tier, bool) {
	tier := Tier(strings.ToLower(strings.TrimSpace(name)))
	_, ok := catalog[tier]
	return tier, ok
}

// Lookup returns the plan for tier, or the free plan for an unknown tier.
func Lookup(tier Tier) Plan {
	if p, ok := catalog[tier]; ok {
		return p
	}
	return catalog[TierFree]
}

// LimitFor returns the daily limit for a capability. Capabilities the plan
// doesn't list have a limit of zero.
func LimitFor(tier Tier, capability Capability) Limit {
	limit, ok := Lookup(tier).Daily[capability]
	if !ok {
		return 0
	}
	return limit
}

// FeatureAllowed reports whether a feature is unlocked on tier.
func FeatureAllowed(tier Tier, key string) bool {
	feature, ok := Lookup(tier).Features[key]
	if !ok || feature == nil {
		return false
	}
	return feature.Unlocked()
}

// LensAllowed reports whether an interpretation lens is unlocked on tier.
func LensAllowed(tier Tier, lens string) bool {
	for _, l := range Lookup(tier).Lenses {
		if l == lens {
			return true
		}
	}
	return false
}
