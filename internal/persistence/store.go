// Package persistence implements the versioned, atomic file-backed snapshot
// of task state described in spec §4.7.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"vidflow/internal/task"
)

const schemaVersion = 1

// PersistedTask is the six-field persisted subset of task.Task. Volatile
// counters (speed, eta) are intentionally absent.
type PersistedTask struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Progress    float64 `json:"progress"`
	DownloadDir string `json:"download_dir"`
}

type document struct {
	Version int             `json:"version"`
	Tasks   []PersistedTask `json:"tasks"`
}

// Store is the file-backed persistence layer. Path is the absolute path to
// tasks.json; the temp file and final rename happen in the same directory
// so the rename is atomic.
type Store struct {
	path string
}

// New constructs a Store rooted at dataDir/tasks.json, creating dataDir if
// it does not already exist.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("persistence: create data dir: %w", err)
	}
	return &Store{path: filepath.Join(dataDir, "tasks.json")}, nil
}

// Save atomically writes the given tasks' persisted projection to disk.
func (s *Store) Save(tasks []PersistedTask) error {
	doc := document{Version: schemaVersion, Tasks: tasks}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: marshal: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("persistence: atomic write: %w", err)
	}
	return nil
}

// SaveFromTasks projects live tasks onto their persisted subset and saves.
func (s *Store) SaveFromTasks(tasks []*task.Task) error {
	out := make([]PersistedTask, 0, len(tasks))
	for _, t := range tasks {
		v := t.Snapshot()
		out = append(out, PersistedTask{
			ID:          v.ID,
			URL:         v.URL,
			Title:       v.Title,
			Status:      string(v.Status),
			Progress:    v.Progress,
			DownloadDir: v.DownloadDir,
		})
	}
	return s.Save(out)
}

// Load parses tasks.json, falling back to a bare-array parse for
// compatibility, and coerces every non-terminal status to Error. The
// persisted subset has no error-message field, so no message is attached
// here; supervisor.recover adds one when it rebuilds the tasks.
func (s *Store) Load() ([]PersistedTask, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: read: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil || doc.Version == 0 {
		var bare []PersistedTask
		if err2 := json.Unmarshal(data, &bare); err2 != nil {
			return nil, fmt.Errorf("persistence: parse failed (versioned: %v, bare: %w)", err, err2)
		}
		doc = document{Version: schemaVersion, Tasks: bare}
	}

	for i := range doc.Tasks {
		st := task.Status(doc.Tasks[i].Status)
		if st != task.StatusCompleted && st != task.StatusCancelled && st != task.StatusError {
			doc.Tasks[i].Status = string(task.StatusError)
		}
	}
	return doc.Tasks, nil
}
