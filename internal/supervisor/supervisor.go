// Package supervisor is the Startup/Shutdown Orchestrator: it owns
// construction order for every other package, runs crash recovery, probes
// binary availability, and drives a clean shutdown on signal.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"

	"vidflow/internal/analytics"
	"vidflow/internal/api"
	"vidflow/internal/config"
	"vidflow/internal/events"
	"vidflow/internal/integrity"
	"vidflow/internal/metadata"
	"vidflow/internal/persistence"
	"vidflow/internal/process"
	"vidflow/internal/schedule"
	"vidflow/internal/scheduler"
	"vidflow/internal/security"
	"vidflow/internal/storage"
	"vidflow/internal/task"
)

// Supervisor wires every component together and owns the process's
// top-level lifecycle.
type Supervisor struct {
	cfg    config.Config
	log    *slog.Logger
	lock   *flock.Flock
	store  *persistence.Store
	hist   *storage.Storage
	audit  *security.AuditLogger
	registry   *task.Registry
	emitter    *events.Emitter
	pumper     *scheduler.Scheduler
	controller *process.Controller
	quiet      *schedule.QuietHours
	server     *api.Server
}

// New constructs a Supervisor. It does not start anything; call Run.
func New(cfg config.Config, log *slog.Logger) *Supervisor {
	registry := task.NewRegistry()
	emitter := events.New(cfg, log)
	verifier := integrity.NewVerifier(cfg.ProberBin)

	hist, err := storage.New(cfg.DataDir)
	if err != nil {
		log.Error("failed to open history store", "error", err)
	}
	stats := analytics.NewTracker(hist, cfg.DownloadDir)

	store, err := persistence.New(cfg.DataDir)
	if err != nil {
		log.Error("failed to open persistence store", "error", err)
	}

	ctx := context.Background()
	pumper := scheduler.New(ctx, registry, nil, config.MaxConcurrentDownloads, log)
	controller := process.New(cfg, log, emitter, verifier, pumper, stats, store, registry, hist)
	pumper.SetSpawner(controller)

	audit := security.NewAuditLogger(cfg.DataDir, log)
	fetcher := metadata.NewFetcher(cfg.DownloaderBin)
	server := api.New(registry, pumper, controller, fetcher, hist, audit, emitter, stats, cfg)

	s := &Supervisor{
		cfg:        cfg,
		log:        log,
		store:      store,
		hist:       hist,
		audit:      audit,
		registry:   registry,
		emitter:    emitter,
		pumper:     pumper,
		controller: controller,
		server:     server,
	}
	s.quiet = schedule.New(log, s)
	return s
}

// Run acquires the single-instance lock, recovers prior state, probes
// required binaries, starts the HTTP command surface and the signal
// handler, and blocks until a shutdown signal arrives.
func (s *Supervisor) Run() error {
	locked, err := s.acquireLock()
	if err != nil {
		return err
	}
	if !locked {
		return fmt.Errorf("supervisor: another instance is already running (lock held at %s)", s.lockPath())
	}
	defer s.lock.Unlock()

	s.recover()
	s.probeBinaries()

	s.quiet.Update(schedule.Config{
		Enabled:   s.cfg.QuietHoursStart >= 0 && s.cfg.QuietHoursStop >= 0,
		StartHour: s.cfg.QuietHoursStart,
		StopHour:  s.cfg.QuietHoursStop,
	})
	s.quiet.Start()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("command surface listening", "addr", s.cfg.ListenAddr)
		if err := s.server.Serve(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		s.log.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		s.log.Error("command surface failed", "error", err)
	}

	s.shutdown()
	return nil
}

func (s *Supervisor) acquireLock() (bool, error) {
	s.lock = flock.New(s.lockPath())
	return s.lock.TryLock()
}

func (s *Supervisor) lockPath() string {
	return s.cfg.DataDir + "/vidflow.lock"
}

// recover loads the persisted snapshot, coercing non-terminal tasks to
// Error (spec.md's crash-recovery decision), and repopulates the registry.
func (s *Supervisor) recover() {
	persisted, err := s.store.Load()
	if err != nil {
		s.log.Error("failed to load persisted tasks", "error", err)
		return
	}

	for _, p := range persisted {
		errMsg := ""
		if p.Status == string(task.StatusError) {
			errMsg = "interrupted by restart"
		}
		t := task.Restore(p.ID, p.URL, p.Title, p.DownloadDir, task.Status(p.Status), p.Progress, errMsg)
		s.registry.Insert(t)
	}
	if len(persisted) > 0 {
		s.log.Info("recovered tasks from prior run", "count", len(persisted))
	}
}

// probeBinaries checks that the configured downloader and prober binaries
// are present and runnable, emitting a binary-error event otherwise. A
// missing binary is not fatal — the supervisor still starts so the
// operator can see the error over the command surface.
func (s *Supervisor) probeBinaries() {
	for _, bin := range []string{s.cfg.DownloaderBin, s.cfg.ProberBin} {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := exec.CommandContext(ctx, bin, "--version").Run()
		cancel()
		if err != nil {
			msg := fmt.Sprintf("required binary %q is missing or not runnable: %v", bin, err)
			s.log.Error(msg)
			s.emitter.EmitBinaryError(msg)
		}
	}
}

// PauseAll satisfies schedule.AllController: pauses every Downloading task.
func (s *Supervisor) PauseAll() {
	for _, t := range s.registry.Snapshot() {
		if t.Status() == task.StatusDownloading {
			if err := s.controller.Pause(t); err != nil {
				s.log.Warn("quiet hours: pause failed", "task_id", t.ID, "error", err)
			}
		}
	}
}

// ResumeAll satisfies schedule.AllController: resumes every Paused task.
func (s *Supervisor) ResumeAll() {
	for _, t := range s.registry.Snapshot() {
		if t.Status() == task.StatusPaused {
			if err := s.controller.Resume(t); err != nil {
				s.log.Warn("quiet hours: resume failed", "task_id", t.ID, "error", err)
			}
		}
	}
}

// shutdown terminates every live subprocess, mirrors terminal tasks into
// history, writes a final persistence snapshot, and closes owned resources.
func (s *Supervisor) shutdown() {
	s.quiet.Stop()

	snapshot := s.registry.Snapshot()
	for _, t := range snapshot {
		if !t.Status().IsTerminal() {
			s.controller.Cancel(t)
		}
	}

	persisted := make([]persistence.PersistedTask, 0, len(snapshot))
	for _, t := range snapshot {
		v := t.Snapshot()
		persisted = append(persisted, persistence.PersistedTask{
			ID:          v.ID,
			URL:         v.URL,
			Title:       v.Title,
			Status:      string(v.Status),
			Progress:    v.Progress,
			DownloadDir: v.DownloadDir,
		})
		if v.Status.IsTerminal() && s.hist != nil {
			s.hist.RecordTerminal(v, time.Now().Format(time.RFC3339))
		}
	}
	if err := s.store.Save(persisted); err != nil {
		s.log.Error("failed to save final snapshot", "error", err)
	}

	totalBytes := int64(0)
	for _, t := range snapshot {
		totalBytes += t.Snapshot().DownloadedBytes
	}
	s.log.Info("shutdown complete", "tasks", len(snapshot), "total_downloaded", humanize.Bytes(uint64(totalBytes)))

	if s.hist != nil {
		s.hist.Close()
	}
	s.audit.Close()
}
