package journal

import (
	"encoding/json"
	"time"
)

// Entry is one saved dream.
type Entry struct {
	ID   string    `json:"id"`
	Text string    `json:"text"`
	Date time.Time `json:"date"`
}

// Range selects how far back List reaches.
type Range string

const (
	RangeAll   Range = "all"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
)

// Stats summarizes a journal.
type Stats struct {
	Count    int `json:"count"`
	Streak   int `json:"streak"`
	ThisWeek int `json:"this_week"`
}

// Document is the export/import format. Profile and Prefs are carried
// through untouched when present.
type Document struct {
	Dreams     []Entry         `json:"dreams"`
	Profile    json.RawMessage `json:"profile,omitempty"`
	Prefs      json.RawMessage `json:"prefs,omitempty"`
	ExportedAt *time.Time      `json:"exported_at,omitempty"`
}
