package scr

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// StateStore persists per-session reduction state between runs.
type StateStore interface {
	// Load returns the stored state, or (nil, nil) when none exists.
	Load(sessionID string) (*State, error)
	Save(st *State) error
}

// FileStateStore keeps one JSON file per session under
// <dataDir>/sessions/.
type FileStateStore struct {
	dir string
}

// NewFileStateStore creates a store rooted at dataDir.
func NewFileStateStore(dataDir string) *FileStateStore {
	return &FileStateStore{dir: filepath.Join(dataDir, "sessions")}
}

// Load reads a session's state file.
func (fs *FileStateStore) Load(sessionID string) (*State, error) {
	data, err := os.ReadFile(fs.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scr: reading state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("scr: parsing state for %q: %w", sessionID, err)
	}
	return &st, nil
}

// Save writes a session's state file, creating the directory on first
// use.
func (fs *FileStateStore) Save(st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("scr: marshaling state: %w", err)
	}
	if err := os.MkdirAll(fs.dir, 0o755); err != nil {
		return fmt.Errorf("scr: creating sessions directory: %w", err)
	}
	return os.WriteFile(fs.path(st.SessionID), data, 0o644)
}

func (fs *FileStateStore) path(sessionID string) string {
	return filepath.Join(fs.dir, sanitizeSessionID(sessionID)+".json")
}

// sanitizeSessionID keeps session-derived filenames on one path level.
func sanitizeSessionID(id string) string {
	if id == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}
