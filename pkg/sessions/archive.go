// Package sessions persists completed simulation runs so the dashboard's
// history and analysis views survive restarts. Each run gets its own
// directory under the archive root with a metadata.json describing the
// outcome and the final telemetry snapshot.
package sessions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/flowdeck/core/pkg/session"
)

// Archive manages the on-disk record of completed runs.
type Archive interface {
	Record(snap session.Snapshot) error
	Load(sessionID string) (*ArchiveRecord, error)
	List() ([]*ArchiveRecord, error)
	Remove(sessionID string) error
}

// FileSystemArchive implements Archive under a base directory, by default
// ~/.flowdeck/sessions/.
type FileSystemArchive struct {
	baseDir string
}

// DefaultArchiveDir returns ~/.flowdeck/sessions.
func DefaultArchiveDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not resolve home directory: %w", err)
	}
	return filepath.Join(home, ".flowdeck", "sessions"), nil
}

// NewFileSystemArchive creates the archive rooted at baseDir; an empty
// baseDir selects the default location.
func NewFileSystemArchive(baseDir string) (*FileSystemArchive, error) {
	if baseDir == "" {
		def, err := DefaultArchiveDir()
		if err != nil {
			return nil, err
		}
		baseDir = def
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &FileSystemArchive{baseDir: baseDir}, nil
}

// Record writes the run's metadata.json, replacing any earlier record for
// the same session ID.
func (a *FileSystemArchive) Record(snap session.Snapshot) error {
	if snap.SessionID == "" {
		return fmt.Errorf("cannot archive a session without an ID")
	}
	sessionDir := filepath.Join(a.baseDir, snap.SessionID)
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	record := RecordFromSnapshot(snap)
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(sessionDir, "metadata.json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata.json: %w", err)
	}
	return nil
}

// Load reads one archived run by session ID.
func (a *FileSystemArchive) Load(sessionID string) (*ArchiveRecord, error) {
	data, err := os.ReadFile(filepath.Join(a.baseDir, sessionID, "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read archived session %s: %w", sessionID, err)
	}
	var record ArchiveRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse archived session %s: %w", sessionID, err)
	}
	return &record, nil
}

// List returns all archived runs, most recently created first. Entries
// with unreadable or malformed metadata are skipped.
func (a *FileSystemArchive) List() ([]*ArchiveRecord, error) {
	entries, err := os.ReadDir(a.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*ArchiveRecord{}, nil
		}
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	records := make([]*ArchiveRecord, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		record, err := a.Load(entry.Name())
		if err != nil {
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Remove deletes one archived run.
func (a *FileSystemArchive) Remove(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("cannot remove a session without an ID")
	}
	if err := os.RemoveAll(filepath.Join(a.baseDir, sessionID)); err != nil {
		return fmt.Errorf("failed to remove archived session %s: %w", sessionID, err)
	}
	return nil
}
