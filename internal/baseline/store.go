// Package baseline persists the trusted reference snapshot.
// The store is the single shared mutable resource between scan passes:
// read once per pass by the change detector, written only by explicit
// Initialize calls. Drift never becomes the new baseline implicitly.
package baseline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ppiankov/driftwatch/internal/fim"
)

// SchemaVersion is the persisted document version, bumped on any
// incompatible change to the on-disk format.
const SchemaVersion = 1

// ErrNotInitialized is returned by Load when no baseline has ever been
// written. Fatal for diffing; cleared by an explicit Initialize.
var ErrNotInitialized = errors.New("baseline not initialized")

// document is the on-disk JSON shape.
type document struct {
	SchemaVersion int                       `json:"schema_version"`
	ScannedAt     time.Time                 `json:"scanned_at"`
	Files         map[string]fim.FileRecord `json:"files"`
}

// Store reads and writes the baseline file.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load reads the persisted baseline. Returns ErrNotInitialized if the
// file does not exist.
func (s *Store) Load() (*fim.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("baseline: read %s: %w", s.path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("baseline: parse %s: %w", s.path, err)
	}
	if doc.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("baseline: %s has schema version %d, this build understands %d",
			s.path, doc.SchemaVersion, SchemaVersion)
	}
	if doc.Files == nil {
		doc.Files = make(map[string]fim.FileRecord)
	}

	return &fim.Snapshot{ScannedAt: doc.ScannedAt, Files: doc.Files}, nil
}

// Save atomically replaces the persisted baseline: write to a temporary
// file in the same directory, then rename. A crash mid-write never
// corrupts the previous baseline.
func (s *Store) Save(snap *fim.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("baseline: create directory: %w", err)
	}

	doc := document{
		SchemaVersion: SchemaVersion,
		ScannedAt:     snap.ScannedAt,
		Files:         snap.Files,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("baseline: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".baseline-*.tmp")
	if err != nil {
		return fmt.Errorf("baseline: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("baseline: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("baseline: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("baseline: close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return fmt.Errorf("baseline: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("baseline: replace %s: %w", s.path, err)
	}
	return nil
}

// Initialize promotes the given snapshot to be the new baseline. This is
// the explicit operator action for first-run bootstrap and approved-change
// rebaselining; it is the only path that writes the store.
func (s *Store) Initialize(current *fim.Snapshot) error {
	return s.Save(current)
}
