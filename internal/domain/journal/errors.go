package journal

import "errors"

var (
	// ErrEmptyText indicates blank dream text.
	ErrEmptyText = errors.New("dream text is empty")
	// ErrInvalidDocument indicates an import payload without a dreams array.
	ErrInvalidDocument = errors.New("invalid journal document")
	// ErrInvalidRange indicates an unknown list range.
	ErrInvalidRange = errors.New("invalid range")
	// ErrNoEntries indicates an empty journal.
	ErrNoEntries = errors.New("no journal entries")
)
