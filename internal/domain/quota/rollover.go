package quota

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/rpggio/reverie/internal/repository"
)

// Rollover resets every known profile's counter at local midnight.
// Counters also reset on read, so a missed run loses nothing.
type Rollover struct {
	ledger   *Ledger
	profiles repository.ProfileLister
	onReset  func(profileID string)
	logger   *slog.Logger
	cron     *cron.Cron
}

// NewRollover schedules resets in the ledger's location. onReset, when set,
// runs after each profile is reset.
func NewRollover(ledger *Ledger, profiles repository.ProfileLister, onReset func(profileID string), logger *slog.Logger) (*Rollover, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Rollover{
		ledger:   ledger,
		profiles: profiles,
		onReset:  onReset,
		logger:   logger,
		cron:     cron.New(cron.WithLocation(ledger.Location())),
	}
	if _, err := r.cron.AddFunc("@midnight", func() { r.Run(context.Background()) }); err != nil {
		return nil, err
	}
	return r, nil
}

// Start begins the schedule in the background.
func (r *Rollover) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running reset to finish.
func (r *Rollover) Stop() {
	<-r.cron.Stop().Done()
}

// Run resets all known profiles now.
func (r *Rollover) Run(ctx context.Context) {
	ids, err := r.profiles.Profiles(ctx)
	if err != nil {
		r.logger.Error("listing profiles for rollover", "error", err)
		return
	}
	for _, id := range ids {
		if err := r.ledger.Reset(ctx, id); err != nil {
			r.logger.Error("rollover reset failed", "profile", id, "error", err)
			continue
		}
		if r.onReset != nil {
			r.onReset(id)
		}
	}
	if r.ledger.metrics != nil {
		r.ledger.metrics.Rollover()
	}
	r.logger.Info("usage counters rolled over", "profiles", len(ids), "period", r.ledger.CurrentPeriodKey())
}
