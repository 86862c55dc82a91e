// Package statestore persists the small bits of agent state that must
// survive restarts: when the metadata cache was last refreshed and how the
// last update check ended.
package statestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const stateFile = "updates-state.json"

type persisted struct {
	LastRefresh time.Time `json:"lastRefresh,omitzero"`
	LastCheck   time.Time `json:"lastCheck,omitzero"`
	LastOutcome string    `json:"lastOutcome,omitempty"`
}

// Store is a JSON-file-backed state record. Writes go through a temp file
// and rename so a crash never leaves a truncated state file.
type Store struct {
	path  string
	state persisted
}

// Open loads the state file under dir, creating dir if needed. A missing
// state file is not an error; the store starts empty.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("state dir: %w", err)
	}

	s := &Store{path: filepath.Join(dir, stateFile)}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		// corrupt state is discarded rather than fatal
		s.state = persisted{}
	}
	return s, nil
}

// LastRefresh returns the recorded time of the last successful cache
// refresh, zero if never.
func (s *Store) LastRefresh() time.Time {
	return s.state.LastRefresh
}

// RecordRefresh persists a successful cache refresh.
func (s *Store) RecordRefresh(t time.Time) {
	s.state.LastRefresh = t
	s.flush()
}

// LastCheck returns the recorded time of the last completed check.
func (s *Store) LastCheck() (time.Time, string) {
	return s.state.LastCheck, s.state.LastOutcome
}

// RecordCheck persists the completion of an update check.
func (s *Store) RecordCheck(t time.Time, outcome string) {
	s.state.LastCheck = t
	s.state.LastOutcome = outcome
	s.flush()
}

func (s *Store) flush() {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, s.path)
}
