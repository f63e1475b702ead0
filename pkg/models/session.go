package models

import (
	"errors"
	"regexp"
	"time"
)

// Session naming validation
var sessionNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]*[a-z0-9]$|^[a-z0-9]$`)

// Session errors
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExists      = errors.New("session already exists")
	ErrInvalidSessionName = errors.New("invalid session name: must be lowercase alphanumeric with hyphens")
	ErrSessionTooLarge    = errors.New("session exceeds size limit")
	ErrTooManySessions    = errors.New("maximum number of sessions reached")
)

// ValidateSessionName checks if a session name is valid.
// Names must be lowercase alphanumeric with hyphens, no spaces or special chars.
func ValidateSessionName(name string) error {
	if name == "" {
		return ErrInvalidSessionName
	}
	if len(name) > 128 {
		return ErrInvalidSessionName
	}
	if !sessionNameRegex.MatchString(name) {
		return ErrInvalidSessionName
	}
	return nil
}

// SessionMetadata contains information about a saved session without the entries.
type SessionMetadata struct {
	ID          string    `json:"id"`
	Description string    `json:"description,omitempty"`
	Created     time.Time `json:"created"`

	// Sources lists which entry sources are included
	Sources []string `json:"sources"`

	// SizeBytes is the compressed file size
	SizeBytes int64 `json:"size_bytes"`

	Summary Summary `json:"summary"`
}

// Session is a named snapshot of decoded entries.
type Session struct {
	// Version is the session format version for future compatibility
	Version int `json:"version"`

	ID          string    `json:"id"`
	Description string    `json:"description,omitempty"`
	Created     time.Time `json:"created"`
	Sources     []string  `json:"sources"`

	Entries []*DecodedEntry `json:"entries"`
	Summary Summary         `json:"summary"`
}

// Metadata returns the session header with the given on-disk size.
func (s *Session) Metadata(sizeBytes int64) *SessionMetadata {
	return &SessionMetadata{
		ID:          s.ID,
		Description: s.Description,
		Created:     s.Created,
		Sources:     s.Sources,
		SizeBytes:   sizeBytes,
		Summary:     s.Summary,
	}
}

// SessionSaveOptions contains options for saving a session.
type SessionSaveOptions struct {
	// Name is the session identifier (required)
	Name string `json:"name"`

	Description string `json:"description,omitempty"`

	// Sources filters which entry sources to include (empty = all)
	Sources []string `json:"sources,omitempty"`

	// Status filters entries by outcome (empty = all)
	Status EntryStatus `json:"status,omitempty"`
}

// Validate validates SessionSaveOptions.
func (o *SessionSaveOptions) Validate() error {
	if err := ValidateSessionName(o.Name); err != nil {
		return err
	}
	switch o.Status {
	case "", StatusDecoded, StatusFailed:
		return nil
	}
	return errors.New("invalid status filter: " + string(o.Status))
}

// Includes reports whether entry should be part of a session saved with o.
func (o *SessionSaveOptions) Includes(entry *DecodedEntry) bool {
	if o.Status != "" && entry.Status != o.Status {
		return false
	}
	return containsSource(o.Sources, entry.Source)
}

// SessionLoadResult contains the result of loading a session.
type SessionLoadResult struct {
	Loaded        bool   `json:"loaded"`
	SessionID     string `json:"session_id"`
	EntriesLoaded int    `json:"entries_loaded"`
}

// containsSource checks if a source is in the list.
func containsSource(sources []string, source string) bool {
	if len(sources) == 0 {
		return true // empty = all sources
	}
	for _, s := range sources {
		if s == source {
			return true
		}
	}
	return false
}
