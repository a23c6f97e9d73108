// Package insight runs the metered dream flows: input validation, quota
// guard, generation and usage recording.
package insight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rpggio/reverie/internal/domain/journal"
	"github.com/rpggio/reverie/internal/domain/plan"
	"github.com/rpggio/reverie/internal/domain/quota"
	"github.com/rpggio/reverie/internal/generation"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyText indicates blank dream text.
var ErrEmptyText = journal.ErrEmptyText

// Generator produces interpretations and artwork.
type Generator interface {
	Interpret(ctx context.Context, text string) (generation.Interpretation, error)
	GenerateArt(ctx context.Context, text string) (string, error)
}

// Service coordinates the ledger, generator and journal.
type Service struct {
	ledger    *quota.Ledger
	generator Generator
	journal   *journal.Service
	logger    *slog.Logger
}

// NewService creates a new insight service.
func NewService(ledger *quota.Ledger, generator Generator, journal *journal.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		ledger:    ledger,
		generator: generator,
		journal:   journal,
		logger:    logger,
	}
}

// Interpret returns a metered interpretation of text.
func (s *Service) Interpret(ctx context.Context, profileID, text string) (generation.Interpretation, error) {
	text, err := validate(text)
	if err != nil {
		return generation.Interpretation{}, err
	}

	var out generation.Interpretation
	action := s.ledger.WithQuota(profileID, plan.CapInterpret, nil, func(ctx context.Context) error {
		var err error
		out, err = s.generator.Interpret(ctx, text)
		return err
	})
	if err := action(ctx); err != nil {
		return generation.Interpretation{}, err
	}
	return out, nil
}

// GenerateArt returns a metered image reference for text.
func (s *Service) GenerateArt(ctx context.Context, profileID, text string) (string, error) {
	text, err := validate(text)
	if err != nil {
		return "", err
	}

	var image string
	action := s.ledger.WithQuota(profileID, plan.CapArt, nil, func(ctx context.Context) error {
		var err error
		image, err = s.generator.GenerateArt(ctx, text)
		return err
	})
	if err := action(ctx); err != nil {
		return "", err
	}
	return image, nil
}

// InterpretAndSave interprets text and saves it to the journal. The use is
// recorded once both steps succeed.
func (s *Service) InterpretAndSave(ctx context.Context, profileID, text string) (SavedInterpretation, error) {
	text, err := validate(text)
	if err != nil {
		return SavedInterpretation{}, err
	}

	var out SavedInterpretation
	action := s.ledger.WithQuota(profileID, plan.CapInterpret, nil, func(ctx context.Context) error {
		interpretation, err := s.generator.Interpret(ctx, text)
		if err != nil {
			return err
		}
		entry, err := s.journal.Add(ctx, profileID, text)
		if err != nil {
			return err
		}
		out = SavedInterpretation{Interpretation: interpretation, Entry: entry}
		return nil
	})
	if err := action(ctx); err != nil {
		return SavedInterpretation{}, err
	}
	return out, nil
}

// Dream requests interpretation and artwork together. Each capability is
// guarded on its own; a denial of one does not stop the other.
func (s *Service) Dream(ctx context.Context, profileID, text string) (DreamResult, error) {
	text, err := validate(text)
	if err != nil {
		return DreamResult{}, err
	}

	var (
		mu      sync.Mutex
		result  DreamResult
		denials [2]*quota.Denial
	)
	deny := func(slot int) quota.DenyFunc {
		return func(d quota.Denial) {
			mu.Lock()
			defer mu.Unlock()
			denials[slot] = &d
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		action := s.ledger.WithQuota(profileID, plan.CapInterpret, deny(0), func(ctx context.Context) error {
			out, err := s.generator.Interpret(ctx, text)
			if err != nil {
				return err
			}
			mu.Lock()
			result.Interpretation = &out
			mu.Unlock()
			return nil
		})
		return ignoreDenial(action(gctx))
	})
	g.Go(func() error {
		action := s.ledger.WithQuota(profileID, plan.CapArt, deny(1), func(ctx context.Context) error {
			image, err := s.generator.GenerateArt(ctx, text)
			if err != nil {
				return err
			}
			mu.Lock()
			result.Image = image
			mu.Unlock()
			return nil
		})
		return ignoreDenial(action(gctx))
	})
	if err := g.Wait(); err != nil {
		return DreamResult{}, err
	}

	for _, d := range denials {
		if d != nil {
			result.Denials = append(result.Denials, DenialView{Denial: *d, Message: d.Message()})
		}
	}
	return result, nil
}

// Usage reports the profile's plan and today's usage.
func (s *Service) Usage(ctx context.Context, profileID string) (UsageReport, error) {
	state, err := s.ledger.Load(ctx, profileID)
	if err != nil {
		return UsageReport{}, err
	}

	p := plan.Lookup(state.Plan)
	report := UsageReport{
		Plan:     p.Tier,
		Label:    p.Label,
		Period:   state.Usage.Date,
		Lenses:   p.Lenses,
		Features: p.Features,
	}
	for _, capability := range plan.Capabilities() {
		limit := state.Limit(capability)
		used := state.Usage.Used(capability)
		shown := limit.String()
		if limit.IsUnlimited() {
			shown = "∞"
		}
		report.Usage = append(report.Usage, CapabilityUsage{
			Capability: capability,
			Used:       used,
			Limit:      limit.String(),
			Display:    fmt.Sprintf("%d / %s", used, shown),
			Allowed:    state.HasQuota(capability),
		})
	}
	return report, nil
}

// SetPlan changes the profile's plan and returns the new usage report.
func (s *Service) SetPlan(ctx context.Context, profileID, name string) (UsageReport, error) {
	if _, err := s.ledger.SetPlan(ctx, profileID, name); err != nil {
		return UsageReport{}, err
	}
	return s.Usage(ctx, profileID)
}

// CheckEntitlement reports whether key is unlocked. Capabilities are checked
// against today's remaining quota; other keys are lenses or features.
func (s *Service) CheckEntitlement(ctx context.Context, profileID, key string) (Entitlement, error) {
	state, err := s.ledger.Load(ctx, profileID)
	if err != nil {
		return Entitlement{}, err
	}

	key = strings.ToLower(strings.TrimSpace(key))
	out := Entitlement{Key: key, Plan: state.Plan}
	switch {
	case key == string(plan.CapInterpret) || key == string(plan.CapArt):
		out.Kind = KindCapability
		out.Allowed = state.HasQuota(plan.Capability(key))
	case isLens(key):
		out.Kind = KindLens
		out.Allowed = plan.LensAllowed(state.Plan, key)
	default:
		out.Kind = KindFeature
		out.Allowed = plan.FeatureAllowed(state.Plan, key)
	}
	return out, nil
}

// DeleteLocalData removes the journal and today's usage counts.
func (s *Service) DeleteLocalData(ctx context.Context, profileID string) error {
	if err := s.journal.DeleteAll(ctx, profileID); err != nil {
		return err
	}
	if err := s.ledger.Reset(ctx, profileID); err != nil {
		return err
	}
	s.logger.Info("local data deleted", "profile", profileID)
	return nil
}

func validate(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

func ignoreDenial(err error) error {
	var denial *quota.DenialError
	if errors.As(err, &denial) {
		return nil
	}
	return err
}

// isLens reports whether key names any lens. Pro unlocks all of them.
func isLens(key string) bool {
	return plan.LensAllowed(plan.TierPro, key)
}
