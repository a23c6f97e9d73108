// Package journal manages the profile's saved dreams.
package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/reverie/internal/repository"
)

const dayLayout = "2006-01-02"

// Service handles journal operations.
type Service struct {
	store  repository.KeyValueStore
	logger *slog.Logger
	now    func() time.Time
	loc    *time.Location
	newID  func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the location used for calendar days.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewService creates a new journal service.
func NewService(store repository.KeyValueStore, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
		loc:    time.Local,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add saves a new entry at the front of the journal.
func (s *Service) Add(ctx context.Context, profileID, text string) (Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Entry{}, ErrEmptyText
	}

	entries, err := s.load(ctx, profileID)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{
		ID:   s.newID(),
		Text: text,
		Date: s.now().UTC(),
	}
	entries = append([]Entry{entry}, entries...)
	if err := s.save(ctx, profileID, entries); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// List returns entries newest first, restricted to the range.
func (s *Service) List(ctx context.Context, profileID string, r Range) ([]Entry, error) {
	var start time.Time
	now := s.now().In(s.loc)
	switch r {
	case RangeAll, "":
	case RangeWeek:
		start = now.AddDate(0, 0, -6)
	case RangeMonth:
		start = now.AddDate(0, 0, -30)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRange, r)
	}

	entries, err := s.load(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if start.IsZero() {
		return entries, nil
	}
	return since(entries, start), nil
}

// Delete removes the entry with id. Unknown ids are ignored.
func (s *Service) Delete(ctx context.Context, profileID, id string) error {
	entries, err := s.load(ctx, profileID)
	if err != nil {
		return err
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}
	return s.save(ctx, profileID, kept)
}

// Clear removes every entry.
func (s *Service) Clear(ctx context.Context, profileID string) error {
	return s.save(ctx, profileID, []Entry{})
}

// Latest returns the newest entry.
func (s *Service) Latest(ctx context.Context, profileID string) (Entry, error) {
	entries, err := s.load(ctx, profileID)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, ErrNoEntries
	}
	return entries[0], nil
}

// ShareText formats an entry for sharing.
func (s *Service) ShareText(entry Entry) string {
	return fmt.Sprintf("My dream (%s): %s", entry.Date.In(s.loc).Format(dayLayout), entry.Text)
}

// Streak counts consecutive calendar days with at least one entry, ending
// today. A day without entries ends the streak.
func (s *Service) Streak(ctx context.Context, profileID string) (int, error) {
	entries, err := s.load(ctx, profileID)
	if err != nil {
		return 0, err
	}
	return s.streak(entries), nil
}

// CountInLastDays counts entries dated no earlier than n-1 days before now.
func (s *Service) CountInLastDays(ctx context.Context, profileID string, n int) (int, error) {
	entries, err := s.load(ctx, profileID)
	if err != nil {
		return 0, err
	}
	return s.countInLastDays(entries, n), nil
}

// Stats returns the count, streak and this-week totals.
func (s *Service) Stats(ctx context.Context, profileID string) (Stats, error) {
	entries, err := s.load(ctx, profileID)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Count:    len(entries),
		Streak:   s.streak(entries),
		ThisWeek: s.countInLastDays(entries, 7),
	}, nil
}

// Export returns the journal with any stored profile and prefs.
func (s *Service) Export(ctx context.Context, profileID string) (Document, error) {
	entries, err := s.load(ctx, profileID)
	if err != nil {
		return Document{}, err
	}

	doc := Document{Dreams: entries}
	for key, dst := range map[string]*json.RawMessage{
		repository.KeyProfile: &doc.Profile,
		repository.KeyPrefs:   &doc.Prefs,
	} {
		raw, err := s.store.Get(ctx, profileID, key)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return Document{}, fmt.Errorf("loading %s: %w", key, err)
		}
		if json.Valid(raw) {
			*dst = raw
		}
	}

	exported := s.now().UTC()
	doc.ExportedAt = &exported
	return doc, nil
}

// ExportFileName is the suggested file name for today's export.
func (s *Service) ExportFileName() string {
	return fmt.Sprintf("dream-journal-%s.json", s.now().In(s.loc).Format(dayLayout))
}

// Import replaces the journal with the document's dreams. Nothing changes
// unless the whole document is valid.
func (s *Service) Import(ctx context.Context, profileID string, data []byte) (int, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return 0, err
	}

	// The dreams are written last so a failed profile or prefs write leaves
	// the journal untouched.
	if len(doc.Profile) > 0 {
		if err := s.store.Put(ctx, profileID, repository.KeyProfile, doc.Profile); err != nil {
			return 0, fmt.Errorf("saving profile: %w", err)
		}
	}
	if len(doc.Prefs) > 0 {
		if err := s.store.Put(ctx, profileID, repository.KeyPrefs, doc.Prefs); err != nil {
			return 0, fmt.Errorf("saving prefs: %w", err)
		}
	}
	if err := s.save(ctx, profileID, doc.Dreams); err != nil {
		return 0, err
	}

	s.logger.Info("journal imported", "profile", profileID, "entries", len(doc.Dreams))
	return len(doc.Dreams), nil
}

// DeleteAll removes the stored journal.
func (s *Service) DeleteAll(ctx context.Context, profileID string) error {
	if err := s.store.Delete(ctx, profileID, repository.KeyDreams); err != nil {
		return fmt.Errorf("deleting dreams: %w", err)
	}
	return nil
}

func parseDocument(data []byte) (Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	raw, ok := top["dreams"]
	if !ok || !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		return Document{}, fmt.Errorf("%w: dreams must be an array", ErrInvalidDocument)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc.Dreams); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	seen := make(map[string]bool, len(doc.Dreams))
	for i, e := range doc.Dreams {
		if e.ID == "" || strings.TrimSpace(e.Text) == "" || e.Date.IsZero() {
			return Document{}, fmt.Errorf("%w: entry %d is incomplete", ErrInvalidDocument, i)
		}
		if seen[e.ID] {
			return Document{}, fmt.Errorf("%w: entry %d repeats id %q", ErrInvalidDocument, i, e.ID)
		}
		seen[e.ID] = true
	}
	doc.Profile = validRaw(top["profile"])
	doc.Prefs = validRaw(top["prefs"])
	return doc, nil
}

func validRaw(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return trimmed
}

func (s *Service) load(ctx context.Context, profileID string) ([]Entry, error) {
	entries, err := repository.LoadJSON[[]Entry](ctx, s.store, profileID, repository.KeyDreams)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return []Entry{}, nil
	case errors.Is(err, repository.ErrCorrupt):
		s.logger.Warn("stored dreams unreadable, using empty journal", "profile", profileID, "error", err)
		return []Entry{}, nil
	case err != nil:
		return nil, fmt.Errorf("loading dreams: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

func (s *Service) save(ctx context.Context, profileID string, entries []Entry) error {
	if err := repository.SaveJSON(ctx, s.store, profileID, repository.KeyDreams, entries); err != nil {
		return fmt.Errorf("saving dreams: %w", err)
	}
	return nil
}

func (s *Service) streak(entries []Entry) int {
	days := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		days[e.Date.In(s.loc).Format(dayLayout)] = struct{}{}
	}

	today := s.now().In(s.loc)
	streak := 0
	for i := 0; ; i++ {
		day := today.AddDate(0, 0, -i).Format(dayLayout)
		if _, ok := days[day]; !ok {
			return streak
		}
		streak++
	}
}

func (s *Service) countInLastDays(entries []Entry, n int) int {
	if n <= 0 {
		return 0
	}
	start := s.now().In(s.loc).AddDate(0, 0, -(n - 1))
	return len(since(entries, start))
}

func since(entries []Entry, start time.Time) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Date.Before(start) {
			out = append(out, e)
		}
	}
	return out
}
