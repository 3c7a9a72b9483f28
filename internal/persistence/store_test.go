package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"vidflow/internal/task"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	in := []PersistedTask{
		{ID: "a", URL: "u1", Title: "t1", Status: string(task.StatusCompleted), Progress: 100, DownloadDir: "/tmp"},
		{ID: "b", URL: "u2", Title: "t2", Status: string(task.StatusDownloading), Progress: 40, DownloadDir: "/tmp"},
		{ID: "c", URL: "u3", Title: "t3", Status: string(task.StatusQueued), Progress: 0, DownloadDir: "/tmp"},
	}
	if err := s.Save(in); err != nil {
		t.Fatal(err)
	}

	out, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	byID := map[string]PersistedTask{}
	for _, p := range out {
		byID[p.ID] = p
	}

	if byID["a"].Status != string(task.StatusCompleted) {
		t.Errorf("terminal Completed task must survive unchanged, got %s", byID["a"].Status)
	}
	if byID["b"].Status != string(task.StatusError) {
		t.Errorf("non-terminal Downloading must be coerced to Error, got %s", byID["b"].Status)
	}
	if byID["c"].Status != string(task.StatusError) {
		t.Errorf("non-terminal Queued must be coerced to Error, got %s", byID["c"].Status)
	}
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	out, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no tasks, got %d", len(out))
	}
}

func TestLoadBareArrayFallback(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	bare := []PersistedTask{{ID: "x", URL: "u", Title: "t", Status: string(task.StatusCompleted), Progress: 100, DownloadDir: "/tmp"}}
	data, _ := json.Marshal(bare)
	if err := os.WriteFile(filepath.Join(dir, "tasks.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].ID != "x" {
		t.Fatalf("got %+v", out)
	}
}

func TestSaveAtomicity(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "tasks.json")); err != nil {
		t.Fatalf("expected tasks.json to exist: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("temp file leaked: %s", e.Name())
		}
	}
}
