// Package quota tracks daily usage per profile against the profile's plan
// and gates metered actions.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/reverie/internal/domain/plan"
	"github.com/rpggio/reverie/internal/repository"
)

const periodLayout = "2006-01-02"

// Ledger reads and writes the persisted usage counters and plan pointer.
type Ledger struct {
	store    repository.KeyValueStore
	logger   *slog.Logger
	now      func() time.Time
	loc      *time.Location
	override plan.Tier
	metrics  Recorder

	mu sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLocation sets the location whose calendar day is the usage period.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// WithPlanOverride forces every profile onto tier regardless of the stored
// plan. Unknown tiers are ignored.
func WithPlanOverride(tier plan.Tier) Option {
	return func(l *Ledger) {
		if parsed, ok := plan.Parse(string(tier)); ok {
			l.override = parsed
		}
	}
}

// WithMetrics attaches a telemetry recorder.
func WithMetrics(r Recorder) Option {
	return func(l *Ledger) {
		l.metrics = r
	}
}

// NewLedger creates a ledger over store.
func NewLedger(store repository.KeyValueStore, logger *slog.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	l := &Ledger{
		store:  store,
		logger: logger,
		now:    time.Now,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Location returns the ledger's calendar location.
func (l *Ledger) Location() *time.Location {
	return l.loc
}

// CurrentPeriodKey returns today's local date as YYYY-MM-DD.
func (l *Ledger) CurrentPeriodKey() string {
	return l.now().In(l.loc).Format(periodLayout)
}

// ReadCounter returns today's counter. A counter from an earlier day, a
// missing counter and an unreadable counter all read as zero for today.
func (l *Ledger) ReadCounter(ctx context.Context, profileID string) (UsageCounter, error) {
	today := l.CurrentPeriodKey()
	fresh := UsageCounter{Date: today}

	counter, err := repository.LoadJSON[UsageCounter](ctx, l.store, profileID, repository.KeyUsage)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fresh, nil
	case errors.Is(err, repository.ErrCorrupt):
		l.logger.Warn("usage counter unreadable, starting fresh", "profile", profileID, "error", err)
		return fresh, nil
	case err != nil:
		return UsageCounter{}, fmt.Errorf("loading usage: %w", err)
	}

	if counter.Date != today {
		return fresh, nil
	}
	if counter.Interpret < 0 || counter.Art < 0 {
		l.logger.Warn("usage counter has negative counts, starting fresh", "profile", profileID)
		return fresh, nil
	}
	return counter, nil
}

// CurrentPlan returns the profile's plan tier. The configured override wins;
// a missing or unknown stored tier reads as free.
func (l *Ledger) CurrentPlan(ctx context.Context, profileID string) (plan.Tier, error) {
	if l.override != "" {
		return l.override, nil
	}

	stored, err := repository.LoadJSON[string](ctx, l.store, profileID, repository.KeyPlan)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return plan.TierFree, nil
	case errors.Is(err, repository.ErrCorrupt):
		l.logger.Warn("stored plan unreadable, using free", "profile", profileID, "error", err)
		return plan.TierFree, nil
	case err != nil:
		return "", fmt.Errorf("loading plan: %w", err)
	}

	tier, ok := plan.Parse(stored)
	if !ok {
		l.logger.Warn("stored plan unknown, using free", "profile", profileID, "plan", stored)
		return plan.TierFree, nil
	}
	return tier, nil
}

// SetPlan persists the profile's plan tier.
func (l *Ledger) SetPlan(ctx context.Context, profileID, name string) (plan.Tier, error) {
	tier, ok := plan.Parse(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlan, name)
	}
	if err := repository.SaveJSON(ctx, l.store, profileID, repository.KeyPlan, string(tier)); err != nil {
		return "", fmt.Errorf("saving plan: %w", err)
	}
	l.logger.Info("plan changed", "profile", profileID, "plan", tier)
	return tier, nil
}

// Load returns the profile's plan and today's usage.
func (l *Ledger) Load(ctx context.Context, profileID string) (SessionState, error) {
	tier, err := l.CurrentPlan(ctx, profileID)
	if err != nil {
		return SessionState{}, err
	}
	counter, err := l.ReadCounter(ctx, profileID)
	if err != nil {
		return SessionState{}, err
	}
	return SessionState{Profile: profileID, Plan: tier, Usage: counter}, nil
}

// HasQuota reports whether one more use of capability is allowed today.
func (l *Ledger) HasQuota(ctx context.Context, profileID string, capability plan.Capability) (bool, error) {
	state, err := l.Load(ctx, profileID)
	if err != nil {
		return false, err
	}
	return state.HasQuota(capability), nil
}

// Consume records one use of capability and returns the updated counter.
// Increments are serialized within this ledger only.
func (l *Ledger) Consume(ctx context.Context, profileID string, capability plan.Capability) (UsageCounter, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	counter, err := l.ReadCounter(ctx, profileID)
	if err != nil {
		return UsageCounter{}, err
	}
	counter.increment(capability)
	if err := repository.SaveJSON(ctx, l.store, profileID, repository.KeyUsage, counter); err != nil {
		return UsageCounter{}, fmt.Errorf("saving usage: %w", err)
	}

	if l.metrics != nil {
		tier, err := l.CurrentPlan(ctx, profileID)
		if err == nil {
			l.metrics.QuotaConsumed(string(capability), string(tier))
		}
	}
	return counter, nil
}

// Reset writes a zero counter for today.
func (l *Ledger) Reset(ctx context.Context, profileID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	counter := UsageCounter{Date: l.CurrentPeriodKey()}
	if err := repository.SaveJSON(ctx, l.store, profileID, repository.KeyUsage, counter); err != nil {
		return fmt.Errorf("resetting usage: %w", err)
	}
	return nil
}
