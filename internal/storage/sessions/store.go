// Package sessions provides file-based session storage for saving and loading
// snapshots of decoded entries.
package sessions

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fidde/segment_decoder/pkg/models"
)

// Default configuration values
const (
	DefaultSessionDir     = "./data/sessions"
	DefaultMaxSessionSize = 100 * 1024 * 1024 // 100MB
	DefaultMaxSessions    = 50
	SessionFileExtension  = ".json.gz"
	CurrentVersion        = 1
)

// Config contains session storage configuration.
type Config struct {
	// SessionDir is the directory where sessions are stored
	SessionDir string

	// MaxSessionSize is the maximum size of a single session in bytes,
	// measured before compression
	MaxSessionSize int64

	// MaxSessions is the maximum number of sessions to keep
	MaxSessions int
}

// DefaultConfig returns the default session storage configuration.
func DefaultConfig() Config {
	return Config{
		SessionDir:     DefaultSessionDir,
		MaxSessionSize: DefaultMaxSessionSize,
		MaxSessions:    DefaultMaxSessions,
	}
}

// Store is a file-based session storage.
type Store struct {
	config Config
	mu     sync.RWMutex
}

// New creates a new session store with default configuration.
func New() (*Store, error) {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new session store with the given configuration.
func NewWithConfig(config Config) (*Store, error) {
	if config.MaxSessionSize <= 0 {
		config.MaxSessionSize = DefaultMaxSessionSize
	}
	if config.MaxSessions <= 0 {
		config.MaxSessions = DefaultMaxSessions
	}

	if err := os.MkdirAll(config.SessionDir, 0755); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}

	return &Store{
		config: config,
	}, nil
}

// Save saves a session to disk, replacing any session with the same ID.
func (s *Store) Save(ctx context.Context, session *models.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}

	if err := models.ValidateSessionName(session.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.listMetadataLocked()
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	exists := false
	for _, meta := range sessions {
		if meta.ID == session.ID {
			exists = true
			break
		}
	}

	if !exists && len(sessions) >= s.config.MaxSessions {
		return models.ErrTooManySessions
	}

	session.Version = CurrentVersion
	if session.Created.IsZero() {
		session.Created = time.Now().UTC()
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	if int64(len(data)) > s.config.MaxSessionSize {
		return models.ErrSessionTooLarge
	}

	if err := s.writeGzip(s.sessionPath(session.ID), data); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}

	return nil
}

// Load loads a session from disk.
func (s *Store) Load(ctx context.Context, name string) (*models.Session, error) {
	if err := models.ValidateSessionName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadLocked(name)
}

func (s *Store) loadLocked(name string) (*models.Session, error) {
	filePath := s.sessionPath(name)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, models.ErrSessionNotFound
	}

	data, err := s.readGzip(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	if session.Version > CurrentVersion {
		return nil, fmt.Errorf("session %s has unsupported version %d", name, session.Version)
	}

	return &session, nil
}

// Delete removes a session from disk.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := models.ValidateSessionName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filePath := s.sessionPath(name)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return models.ErrSessionNotFound
	}

	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("removing session file: %w", err)
	}

	return nil
}

// List returns metadata for all saved sessions, newest first.
func (s *Store) List(ctx context.Context) ([]*models.SessionMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listMetadataLocked()
}

// GetMetadata returns metadata for a specific session.
func (s *Store) GetMetadata(ctx context.Context, name string) (*models.SessionMetadata, error) {
	if err := models.ValidateSessionName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	info, err := os.Stat(s.sessionPath(name))
	if os.IsNotExist(err) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stat session file: %w", err)
	}

	session, err := s.loadLocked(name)
	if err != nil {
		return nil, err
	}

	return session.Metadata(info.Size()), nil
}

// Exists checks if a session exists.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	if err := models.ValidateSessionName(name); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.sessionPath(name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// sessionPath returns the file path for a session.
func (s *Store) sessionPath(name string) string {
	return filepath.Join(s.config.SessionDir, name+SessionFileExtension)
}

// listMetadataLocked lists all session metadata (must hold lock).
func (s *Store) listMetadataLocked() ([]*models.SessionMetadata, error) {
	dirEntries, err := os.ReadDir(s.config.SessionDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session directory: %w", err)
	}

	sessions := []*models.SessionMetadata{}

	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() {
			continue
		}

		name := dirEntry.Name()
		if !strings.HasSuffix(name, SessionFileExtension) {
			continue
		}

		info, err := dirEntry.Info()
		if err != nil {
			continue // Skip files we can't stat
		}

		data, err := s.readGzip(filepath.Join(s.config.SessionDir, name))
		if err != nil {
			continue // Skip corrupted files
		}

		var session models.Session
		if err := json.Unmarshal(data, &session); err != nil {
			continue
		}

		// The file name is authoritative.
		session.ID = strings.TrimSuffix(name, SessionFileExtension)
		sessions = append(sessions, session.Metadata(info.Size()))
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Created.After(sessions[j].Created)
	})

	return sessions, nil
}

// writeGzip writes data to a gzip-compressed file.
func (s *Store) writeGzip(path string, data []byte) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	gw := gzip.NewWriter(file)
	defer gw.Close()

	if _, err := gw.Write(data); err != nil {
		return err
	}

	return gw.Close()
}

// readGzip reads data from a gzip-compressed file.
func (s *Store) readGzip(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gr, err := gzip.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	return io.ReadAll(gr)
}
