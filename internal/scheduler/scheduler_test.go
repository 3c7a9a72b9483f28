package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"vidflow/internal/task"
)

type fakeSpawner struct {
	mu      sync.Mutex
	started []string
	fail    map[string]bool
}

func (f *fakeSpawner) Start(ctx context.Context, t *task.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, t.ID)
	if f.fail[t.ID] {
		t.SetError("spawn failure")
		return context.DeadlineExceeded
	}
	t.Transition(task.StatusDownloading)
	return nil
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPumpRespectsConcurrencyCap(t *testing.T) {
	reg := task.NewRegistry()
	a := task.New("a", "u", "t", "/tmp", "best", "")
	b := task.New("b", "u", "t", "/tmp", "best", "")
	c := task.New("c", "u", "t", "/tmp", "best", "")
	reg.Insert(a)
	reg.Insert(b)
	reg.Insert(c)

	sp := &fakeSpawner{fail: map[string]bool{}}
	s := New(context.Background(), reg, sp, 2, silentLogger())
	s.Pump()

	if reg.ActiveCount() != 2 {
		t.Fatalf("ActiveCount = %d, want 2", reg.ActiveCount())
	}
	if c.Status() != task.StatusQueued {
		t.Fatalf("third task should remain Queued, got %s", c.Status())
	}
}

func TestPumpAdmitsNextOnTerminal(t *testing.T) {
	reg := task.NewRegistry()
	a := task.New("a", "u", "t", "/tmp", "best", "")
	b := task.New("b", "u", "t", "/tmp", "best", "")
	reg.Insert(a)
	reg.Insert(b)

	sp := &fakeSpawner{fail: map[string]bool{}}
	s := New(context.Background(), reg, sp, 1, silentLogger())
	s.Pump()

	if a.Status() != task.StatusDownloading {
		t.Fatalf("a should be Downloading, got %s", a.Status())
	}
	if b.Status() != task.StatusQueued {
		t.Fatalf("b should still be Queued, got %s", b.Status())
	}

	a.Transition(task.StatusCompleted)
	s.Pump()

	if b.Status() != task.StatusDownloading {
		t.Fatalf("b should be admitted after a terminated, got %s", b.Status())
	}
}

func TestPumpSkipsFailedSpawnAndTriesNext(t *testing.T) {
	reg := task.NewRegistry()
	a := task.New("a", "u", "t", "/tmp", "best", "")
	b := task.New("b", "u", "t", "/tmp", "best", "")
	reg.Insert(a)
	reg.Insert(b)

	sp := &fakeSpawner{fail: map[string]bool{"a": true}}
	s := New(context.Background(), reg, sp, 1, silentLogger())
	s.Pump()

	if a.Status() != task.StatusError {
		t.Fatalf("a should be Error after spawn failure, got %s", a.Status())
	}
	if b.Status() != task.StatusDownloading {
		t.Fatalf("b should have been admitted after a failed, got %s", b.Status())
	}
}

func TestPumpNoQueuedTasksIsNoop(t *testing.T) {
	reg := task.NewRegistry()
	sp := &fakeSpawner{fail: map[string]bool{}}
	s := New(context.Background(), reg, sp, 2, silentLogger())
	s.Pump() // must not panic or hang
}
