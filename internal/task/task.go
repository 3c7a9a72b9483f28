// Package task implements the task registry and the status state machine
// that gates every mutation of a download's lifecycle.
package task

import (
	"os/exec"
	"sync"
)

// Status is the lifecycle state of a Task.
type Status string

const (
	StatusQueued      Status = "Queued"
	StatusPreparing   Status = "Preparing"
	StatusDownloading Status = "Downloading"
	StatusPaused      Status = "Paused"
	StatusMerging     Status = "Merging"
	StatusCompleted   Status = "Completed"
	StatusError       Status = "Error"
	StatusCancelled   Status = "Cancelled"
)

// IsTerminal reports whether s is one of the three terminal statuses.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether s counts against max_concurrent. Paused counts:
// a paused task still holds its subprocess, it does not free a slot.
func (s Status) IsActive() bool {
	switch s {
	case StatusPreparing, StatusDownloading, StatusPaused, StatusMerging:
		return true
	default:
		return false
	}
}

// transitions enumerates the directed graph from spec §3. Absent pairs are
// rejected; self-loops are allowed explicitly below.
var transitions = map[Status]map[Status]bool{
	StatusQueued: {
		StatusPreparing: true,
		StatusCancelled: true,
	},
	StatusPreparing: {
		StatusDownloading: true,
		StatusError:       true,
		StatusCancelled:   true,
	},
	StatusDownloading: {
		StatusMerging:   true,
		StatusPaused:    true,
		StatusCompleted: true,
		StatusError:     true,
		StatusCancelled: true,
	},
	StatusPaused: {
		StatusDownloading: true,
		StatusCancelled:   true,
	},
	StatusMerging: {
		StatusCompleted: true,
		StatusError:     true,
		StatusCancelled: true,
	},
}

// CanTransition is the pure predicate over (from, to) status pairs. Terminal
// states accept no outgoing transition except the self-loop.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	return transitions[from][to]
}

// Task is the central entity of the supervisor. Every field other than the
// embedded mutex is guarded by mu; callers must go through the accessor
// methods rather than touching fields directly from outside the package.
type Task struct {
	mu sync.Mutex

	ID     string
	URL    string
	Title  string
	status Status

	Progress         float64
	DownloadedBytes  int64
	TotalSize        int64
	Speed            float64
	ETA              int64
	FinalPath        string
	ErrorMessage     string
	DownloadDir      string
	FormatSpec       string
	Cookies          string

	cmd         *exec.Cmd
	cookiePath  string
	cancelled   bool // set true the instant Cancel is requested, before reaping
}

// View is an immutable snapshot safe to share across goroutines and to
// serialize for the Event Emitter / Command Surface.
type View struct {
	ID              string
	URL             string
	Title           string
	Status          Status
	Progress        float64
	DownloadedBytes int64
	TotalSize       int64
	Speed           float64
	ETA             int64
	FinalPath       string
	ErrorMessage    string
	DownloadDir     string
	CanRetry        bool
}

// Snapshot copies out a consistent view under the task's own lock. This is
// the only sanctioned way to read a Task's fields from outside the package.
func (t *Task) Snapshot() View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return View{
		ID:              t.ID,
		URL:             t.URL,
		Title:           t.Title,
		Status:          t.status,
		Progress:        t.Progress,
		DownloadedBytes: t.DownloadedBytes,
		TotalSize:       t.TotalSize,
		Speed:           t.Speed,
		ETA:             t.ETA,
		FinalPath:       t.FinalPath,
		ErrorMessage:    t.ErrorMessage,
		DownloadDir:     t.DownloadDir,
		CanRetry:        t.status == StatusError,
	}
}

// Status returns the current status under lock.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Transition atomically checks CanTransition and, if permitted, mutates the
// status. It returns false without mutation on a rejected transition. All
// status writes anywhere in the codebase must go through this method.
func (t *Task) Transition(to Status) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !CanTransition(t.status, to) {
		return false
	}
	t.status = to
	return true
}

// SetError atomically transitions to Error and records the message. Returns
// false if the current status cannot transition to Error.
func (t *Task) SetError(msg string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !CanTransition(t.status, StatusError) {
		return false
	}
	t.status = StatusError
	t.ErrorMessage = msg
	return true
}

// SetCmd attaches the live child process handle. Invariant: non-nil iff
// status is in the active set.
func (t *Task) SetCmd(cmd *exec.Cmd) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cmd = cmd
}

// Cmd returns the live child process handle, or nil.
func (t *Task) Cmd() *exec.Cmd {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cmd
}

// MarkCancelling records cancellation intent before the child is reaped, so
// the termination handler can distinguish cancel from crash.
func (t *Task) MarkCancelling() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = true
}

// WasCancelling reports whether MarkCancelling was called for this run.
func (t *Task) WasCancelling() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// SetCookiePath records the cookie temp file path for later cleanup.
func (t *Task) SetCookiePath(p string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cookiePath = p
}

// CookiePath returns the cookie temp file path, or "".
func (t *Task) CookiePath() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cookiePath
}

// SetProgress updates the volatile progress fields. Downloaded bytes, speed
// and eta always take the new values; Progress is only raised, never
// lowered, within the same run (monotonicity, spec §8) — callers reset
// progress explicitly on retry by constructing a fresh Task.
func (t *Task) SetProgress(downloaded, total int64, speed float64, eta int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.DownloadedBytes = downloaded
	if total > 0 {
		t.TotalSize = total
	}
	t.Speed = speed
	t.ETA = eta
	pct := 0.0
	if t.TotalSize > 0 {
		pct = float64(downloaded) / float64(t.TotalSize) * 100
	}
	if pct > t.Progress {
		t.Progress = pct
	}
}

// SetProgressComplete forces progress to 100, used when merging begins or a
// download finishes and no further progress lines will ever arrive.
func (t *Task) SetProgressComplete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.TotalSize > 0 {
		t.DownloadedBytes = t.TotalSize
	}
	t.Progress = 100
}

// SetFinalPath records the destination artifact path.
func (t *Task) SetFinalPath(p string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.FinalPath = p
}

// New constructs a Queued task with the given id.
func New(id, url, title, downloadDir, formatSpec, cookies string) *Task {
	return &Task{
		ID:          id,
		URL:         url,
		Title:       title,
		status:      StatusQueued,
		DownloadDir: downloadDir,
		FormatSpec:  formatSpec,
		Cookies:     cookies,
	}
}

// Restore reconstructs a Task directly in the given status, bypassing the
// transition graph entirely. Used only by crash recovery, which must be
// able to place a task straight into Error without replaying the path that
// got it there.
func Restore(id, url, title, downloadDir string, status Status, progress float64, errMsg string) *Task {
	return &Task{
		ID:           id,
		URL:          url,
		Title:        title,
		status:       status,
		DownloadDir:  downloadDir,
		Progress:     progress,
		ErrorMessage: errMsg,
	}
}
