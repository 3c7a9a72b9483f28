// Package process owns the subprocess lifecycle: spawning the downloader
// binary with the spec-mandated argument order, streaming its stdout into
// the progress parser, and the pause/resume/cancel primitives layered over
// the OS process group.
package process

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"vidflow/internal/analytics"
	"vidflow/internal/config"
	"vidflow/internal/events"
	"vidflow/internal/integrity"
	"vidflow/internal/parser"
	"vidflow/internal/persistence"
	"vidflow/internal/scheduler"
	"vidflow/internal/storage"
	"vidflow/internal/task"
)

// Controller spawns and supervises downloader subprocesses on behalf of
// the scheduler.
type Controller struct {
	cfg      config.Config
	log      *slog.Logger
	emitter  *events.Emitter
	verifier *integrity.Verifier
	pumper   *scheduler.Scheduler
	stats    *analytics.Tracker
	store    *persistence.Store
	registry *task.Registry
	hist     *storage.Storage
}

// New constructs a Controller. stats may be nil, in which case completions
// are simply not tallied (the stats endpoint then reports zero totals).
// store and registry back the per-terminal-transition persistence save; hist
// backs the matching history mirror. Any of the three may be nil, in which
// case that side effect is skipped (e.g. in tests that don't exercise it).
func New(cfg config.Config, log *slog.Logger, emitter *events.Emitter, verifier *integrity.Verifier, pumper *scheduler.Scheduler, stats *analytics.Tracker, store *persistence.Store, registry *task.Registry, hist *storage.Storage) *Controller {
	return &Controller{cfg: cfg, log: log, emitter: emitter, verifier: verifier, pumper: pumper, stats: stats, store: store, registry: registry, hist: hist}
}

// persistTerminal saves the current registry snapshot to disk and mirrors t
// into history. Called on every terminal transition, before the scheduler is
// pumped, so that a crash can never admit a new task without first having
// committed the task that just freed its slot (spec's persist-before-pump
// ordering), and history is never lost to a crash between completion and the
// next graceful shutdown.
func (c *Controller) persistTerminal(t *task.Task) {
	if c.store != nil && c.registry != nil {
		if err := c.store.SaveFromTasks(c.registry.Snapshot()); err != nil {
			c.log.Error("failed to persist terminal transition", "error", err)
		}
	}
	if c.hist != nil {
		if err := c.hist.RecordTerminal(t.Snapshot(), time.Now().Format(time.RFC3339)); err != nil {
			c.log.Error("failed to record history", "task_id", t.ID, "error", err)
		}
	}
}

// Start spawns the downloader for t, which the scheduler has already moved
// to Preparing, transitions it to Downloading, and runs the stdout consumer loop in the background. It
// returns once the subprocess has been spawned (not once it has finished).
func (c *Controller) Start(ctx context.Context, t *task.Task) error {
	if err := checkDiskSpace(t.DownloadDir, 100*1024*1024); err != nil {
		t.SetError(fmt.Sprintf("not enough disk space: %v", err))
		c.emitter.EmitStatus(t)
		return err
	}

	var cookiePath string
	if t.Cookies != "" {
		p, err := writeCookieFile(t.ID, t.Cookies)
		if err != nil {
			t.SetError(fmt.Sprintf("spawn failure: cookie file: %v", err))
			c.emitter.EmitStatus(t)
			return err
		}
		cookiePath = p
		t.SetCookiePath(p)
	}

	args := buildArgs(t, cookiePath, config.DefaultFragments)
	cmd := exec.Command(c.cfg.DownloaderBin, args...)
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.cleanupCookie(t)
		t.SetError(fmt.Sprintf("spawn failure: %v", err))
		c.emitter.EmitStatus(t)
		return err
	}
	if err := cmd.Start(); err != nil {
		c.cleanupCookie(t)
		t.SetError(fmt.Sprintf("spawn failure: %v", err))
		c.emitter.EmitStatus(t)
		return err
	}

	t.SetCmd(cmd)
	t.Transition(task.StatusDownloading)
	c.log.Debug("subprocess started", "task_id", t.ID, "pid", cmd.Process.Pid)
	c.emitter.EmitStatus(t)

	go c.consume(ctx, t, cmd, stdout)
	return nil
}

func (c *Controller) consume(ctx context.Context, t *task.Task, cmd *exec.Cmd, stdout io.ReadCloser) {
	_ = ctx
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		ev := parser.Parse(line)
		switch ev.Kind {
		case parser.KindSetDestination:
			t.SetFinalPath(ev.Path)
		case parser.KindBeginMerging:
			t.SetFinalPath(ev.Path)
			t.SetProgressComplete()
			t.Transition(task.StatusMerging)
			c.emitter.EmitStatus(t)
		case parser.KindProgress:
			t.SetProgress(ev.DownloadedBytes, ev.TotalBytes, ev.Speed, ev.ETA)
			if c.stats != nil {
				c.stats.SetCurrentSpeed(int64(ev.Speed))
			}
			c.emitter.EmitProgress(t)
		}
	}

	err := cmd.Wait()
	c.onTerminate(t, err)
}

func (c *Controller) onTerminate(t *task.Task, waitErr error) {
	defer func() {
		t.SetCmd(nil)
		c.cleanupCookie(t)
		// Persistence must commit before the scheduler is pumped, so a crash
		// right after this point never admits a replacement task without the
		// terminal state that freed its slot already being on disk.
		c.persistTerminal(t)
		c.pumper.Pump()
	}()

	if t.WasCancelling() {
		t.Transition(task.StatusCancelled)
		removeArtifactFragments(t.Snapshot().FinalPath)
		c.emitter.EmitStatus(t)
		return
	}

	exitCode := 0
	if waitErr != nil {
		if ee, ok := waitErr.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		} else {
			exitCode = -1
		}
	}

	finalPath := t.Snapshot().FinalPath
	if exitCode == 0 && finalPath != "" {
		if err := c.verifier.Verify(finalPath); err != nil {
			t.SetError(truncate(err.Error(), 1024))
			removeArtifactFragments(finalPath)
		} else {
			t.SetProgressComplete()
			t.Transition(task.StatusCompleted)
			if c.stats != nil {
				c.stats.RecordCompletion(t.Snapshot().DownloadedBytes)
			}
		}
	} else {
		t.SetError("Download failed")
	}
	c.emitter.EmitStatus(t)
}

// Cancel marks the task as cancelling and terminates its process group.
// Allowed from any non-terminal state; idempotent.
func (c *Controller) Cancel(t *task.Task) error {
	if t.Status().IsTerminal() {
		return nil
	}
	t.MarkCancelling()
	if !t.Transition(task.StatusCancelled) {
		// Every non-terminal status has an edge to Cancelled, so this only
		// fails if the task reached a terminal state concurrently, in which
		// case the repeated attempt is rejected as well.
		t.Transition(task.StatusCancelled)
	}
	cmd := t.Cmd()
	if cmd != nil && cmd.Process != nil {
		killGroup(cmd)
		// onTerminate runs asynchronously off cmd.Wait() and persists+pumps.
		return nil
	}
	// No subprocess was ever spawned (cancelled straight out of Queued), so
	// onTerminate will never run for this task: persist and pump here.
	c.persistTerminal(t)
	c.pumper.Pump()
	return nil
}

// Pause signals SIGSTOP to the process group. Only valid from Downloading.
func (c *Controller) Pause(t *task.Task) error {
	if t.Status() != task.StatusDownloading {
		return fmt.Errorf("transition-rejected: task not Downloading")
	}
	cmd := t.Cmd()
	if cmd == nil || cmd.Process == nil {
		return fmt.Errorf("transition-rejected: no live subprocess")
	}
	if err := stopGroup(cmd); err != nil {
		return fmt.Errorf("pause unsupported: %w", err)
	}
	t.Transition(task.StatusPaused)
	c.emitter.EmitStatus(t)
	return nil
}

// Resume signals SIGCONT to the process group. Only valid from Paused.
func (c *Controller) Resume(t *task.Task) error {
	if t.Status() != task.StatusPaused {
		return fmt.Errorf("transition-rejected: task not Paused")
	}
	cmd := t.Cmd()
	if cmd == nil || cmd.Process == nil {
		return fmt.Errorf("transition-rejected: no live subprocess")
	}
	if err := continueGroup(cmd); err != nil {
		return fmt.Errorf("resume unsupported: %w", err)
	}
	t.Transition(task.StatusDownloading)
	c.emitter.EmitStatus(t)
	return nil
}

func (c *Controller) cleanupCookie(t *task.Task) {
	p := t.CookiePath()
	if p == "" {
		return
	}
	os.Remove(p)
	t.SetCookiePath("")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func removeArtifactFragments(finalPath string) {
	if finalPath == "" {
		return
	}
	os.Remove(finalPath + ".part")
	os.Remove(finalPath + ".ytdl")
}

func writeCookieFile(taskID, cookies string) (string, error) {
	name := fmt.Sprintf("vidflow_cookies_%s.txt", taskID)
	p := filepath.Join(os.TempDir(), name)
	if err := os.WriteFile(p, []byte(cookies), 0o600); err != nil {
		return "", err
	}
	return p, nil
}

func buildArgs(t *task.Task, cookiePath string, fragments int) []string {
	args := []string{"--newline", "--no-warnings"}
	args = append(args, "-N", fmt.Sprintf("%d", fragments))
	args = append(args, "--progress-template",
		"%(progress.downloaded_bytes)s|%(progress.total_bytes)s|%(progress.speed)s|%(progress.eta)s")

	if cookiePath != "" {
		args = append(args, "--cookies", cookiePath)
	}

	args = append(args, "--add-metadata", "--embed-thumbnail")

	if t.DownloadDir != "" {
		args = append(args, "-P", t.DownloadDir)
	}

	spec := t.FormatSpec
	if spec == "audio" {
		args = append(args, "-x", "--audio-format", "mp3")
	} else {
		if spec == "" {
			spec = "best"
		}
		args = append(args, "-f", spec+"+bestaudio/best", "--merge-output-format", "mp4/mkv")
	}

	args = append(args, t.URL)
	return args
}
