// Package scheduler implements the bounded, admission-controlled pump
// algorithm: it promotes the oldest Queued task to Preparing and spawns it
// whenever the active set has room under max_concurrent.
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"vidflow/internal/task"
)

// Spawner is the subprocess-side of the pump: given a task already moved to
// Preparing, it spawns the subprocess and drives it to Downloading (or to
// Error on spawn failure). Defined here, not in package process, so the two
// packages do not import each other.
type Spawner interface {
	Start(ctx context.Context, t *task.Task) error
}

// Scheduler owns the pump loop. It is safe for concurrent use; Pump may be
// invoked concurrently from the command surface and from every task's
// termination handler per spec §4.3.
type Scheduler struct {
	registry      *task.Registry
	spawner       Spawner
	maxConcurrent int
	log           *slog.Logger

	mu  sync.Mutex // serializes pump runs; cheap and synchronous per spec §5
	ctx context.Context
}

// New constructs a Scheduler bound to registry, spawning through spawner,
// capped at maxConcurrent.
func New(ctx context.Context, registry *task.Registry, spawner Spawner, maxConcurrent int, log *slog.Logger) *Scheduler {
	return &Scheduler{
		registry:      registry,
		spawner:       spawner,
		maxConcurrent: maxConcurrent,
		log:           log,
		ctx:           ctx,
	}
}

// SetSpawner binds the spawner after construction, for the one case where
// the spawner itself depends on the scheduler it will be registered with
// (the Subprocess Controller calls Pump on every termination).
func (s *Scheduler) SetSpawner(spawner Spawner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawner = spawner
}

// Pump runs the admission algorithm from spec §4.3 to completion: it keeps
// promoting Queued tasks until either none remain or the active count
// reaches max_concurrent.
func (s *Scheduler) Pump() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		active := s.registry.ActiveCount()
		if active >= s.maxConcurrent {
			return
		}

		t := s.registry.OldestQueued()
		if t == nil {
			return
		}

		if !t.Transition(task.StatusPreparing) {
			// raced with something else moving this task; try again
			continue
		}

		if err := s.spawner.Start(s.ctx, t); err != nil {
			s.log.Warn("spawn failed", "task_id", t.ID, "error", err)
			// Start already transitioned to Error and emitted on failure;
			// loop again to try the next queued task.
			continue
		}
	}
}
