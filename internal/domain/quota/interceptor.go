package quota

import (
	"context"

	"github.com/rpggio/reverie/internal/domain/plan"
)

// Action is a metered operation.
type Action func(ctx context.Context) error

// Guard reports whether the profile may use capability now. On denial it
// calls onDenied, when set, and returns false.
func (l *Ledger) Guard(ctx context.Context, profileID string, capability plan.Capability, onDenied DenyFunc) (bool, error) {
	state, err := l.Load(ctx, profileID)
	if err != nil {
		return false, err
	}
	if state.HasQuota(capability) {
		return true, nil
	}

	denial := l.denial(state, capability)
	l.logger.Info("quota denied",
		"profile", profileID,
		"capability", capability,
		"plan", state.Plan,
		"used", denial.Used,
		"limit", denial.Limit.String(),
	)
	if l.metrics != nil {
		l.metrics.QuotaDenied(string(capability), string(state.Plan))
	}
	if onDenied != nil {
		onDenied(denial)
	}
	return false, nil
}

// RecordAfter records one use of capability after a dispatched action.
func (l *Ledger) RecordAfter(ctx context.Context, profileID string, capability plan.Capability) error {
	_, err := l.Consume(ctx, profileID, capability)
	return err
}

// WithQuota wraps action so it only runs when admitted and is recorded once
// it returns without error. A refused call returns a *DenialError.
func (l *Ledger) WithQuota(profileID string, capability plan.Capability, onDenied DenyFunc, action Action) Action {
	return func(ctx context.Context) error {
		var denied *Denial
		admitted, err := l.Guard(ctx, profileID, capability, func(d Denial) {
			denied = &d
			if onDenied != nil {
				onDenied(d)
			}
		})
		if err != nil {
			return err
		}
		if !admitted {
			return &DenialError{Denial: *denied}
		}

		if err := action(ctx); err != nil {
			return err
		}
		return l.RecordAfter(ctx, profileID, capability)
	}
}

func (l *Ledger) denial(state SessionState, capability plan.Capability) Denial {
	p := plan.Lookup(state.Plan)
	return Denial{
		Plan:       p.Tier,
		PlanLabel:  p.Label,
		Capability: capability,
		Limit:      state.Limit(capability),
		Used:       state.Usage.Used(capability),
	}
}
