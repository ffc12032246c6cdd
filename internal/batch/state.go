package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const defaultStatePath = "~/.karpov/backfill-state.json"

// RunState tracks progress for resumable backfill runs. FilesProcessed keeps
// the serialized order for human inspection; lookups go through an index so
// runs over large export trees stay O(1) per file.
type RunState struct {
	StartedAt       time.Time `json:"started_at"`
	LastProcessedAt time.Time `json:"last_processed_at"`
	FilesProcessed  []string  `json:"files_processed"`
	FilesRemaining  int       `json:"files_remaining"`
	MovesProcessed  int       `json:"moves_processed"`
	MovesTagged     int       `json:"moves_tagged"`
	Errors          []string  `json:"errors"`

	path      string // not serialized
	processed map[string]bool
}

// LoadState loads the backfill state from disk, or creates a new one. An
// empty path selects the default location under the home directory.
func LoadState(path string) (*RunState, error) {
	if path == "" {
		path = defaultStatePath
	}
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &RunState{
				StartedAt: time.Now().UTC(),
				path:      p,
			}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s RunState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	s.path = p
	s.processed = make(map[string]bool, len(s.FilesProcessed))
	for _, f := range s.FilesProcessed {
		s.processed[f] = true
	}
	return &s, nil
}

// Save persists the state to disk.
func (s *RunState) Save() error {
	s.LastProcessedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return os.WriteFile(s.path, data, 0o644)
}

// Path reports where the state is persisted.
func (s *RunState) Path() string {
	return s.path
}

// IsProcessed returns true if the given file has already been processed.
func (s *RunState) IsProcessed(path string) bool {
	return s.processed[path]
}

// MarkProcessed records a file as processed. Marking twice is harmless.
func (s *RunState) MarkProcessed(path string) {
	if s.processed[path] {
		return
	}
	if s.processed == nil {
		s.processed = make(map[string]bool)
	}
	s.processed[path] = true
	s.FilesProcessed = append(s.FilesProcessed, path)
}

// AddError records a processing error.
func (s *RunState) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
