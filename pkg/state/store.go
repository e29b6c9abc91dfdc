package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"pixivwatch/pkg/logger"
)

const stateFile = "state.json"

// Store persists the durable record in the watch directory. Save is called
// exactly once, on cooperative shutdown; an abrupt termination loses the
// last tick's progress but not earlier persisted progress.
type Store struct {
	path   string
	logger logger.Logger
}

// NewStore creates a store rooted at the watch directory
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create watch directory: %w", err)
	}
	return &Store{
		path:   filepath.Join(dir, stateFile),
		logger: logger.GetLogger(),
	}, nil
}

// Path returns the state file location
func (st *Store) Path() string {
	return st.path
}

// Load deserializes the durable record. Any failure (absent, corrupt,
// schema mismatch) is non-fatal and returns nil: the caller bootstraps
// fresh state and a new authenticated session.
func (st *Store) Load() *Dump {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if !os.IsNotExist(err) {
			st.logger.WarnWithFields("failed to read state file", map[string]interface{}{
				"path":  st.path,
				"error": err.Error(),
			})
		}
		return nil
	}

	var dump Dump
	if err := json.Unmarshal(data, &dump); err != nil {
		st.logger.WarnWithFields("state file is corrupt, starting fresh", map[string]interface{}{
			"path":  st.path,
			"error": err.Error(),
		})
		return nil
	}
	if dump.Visited == nil {
		dump.Visited = NewIDSet()
	}

	st.logger.InfoWithFields("state loaded", map[string]interface{}{
		"marker_id": uint64(dump.MarkerID),
		"distance":  dump.Distance(),
		"remain":    dump.Remain,
		"skip":      dump.Skip,
	})

	return &dump
}

// Save writes the durable record atomically via tmp file and rename
func (st *Store) Save(dump *Dump) error {
	tempPath := st.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(dump); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync state file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tempPath, st.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	st.logger.InfoWithFields("state saved", map[string]interface{}{
		"path":      st.path,
		"marker_id": uint64(dump.MarkerID),
		"distance":  dump.Distance(),
	})

	return nil
}
