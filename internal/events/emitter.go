// Package events broadcasts task progress and status payloads to any
// number of subscribers obtained through Subscribe (no HTTP route of the
// Command Surface subscribes today). Emission is best-effort: a full subscriber channel drops the
// event rather than blocking the emitting task, per spec §5's backpressure
// policy.
package events

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"vidflow/internal/config"
	"vidflow/internal/task"
)

// Payload mirrors spec §4.8's DownloadProgressPayload.
type Payload struct {
	ID              string  `json:"id"`
	Progress        float64 `json:"progress"`
	Speed           float64 `json:"speed"`
	ETA             int64   `json:"eta"`
	Status          string  `json:"status"`
	TotalSize       int64   `json:"total_size"`
	DownloadedBytes int64   `json:"downloaded_bytes"`
	CanRetry        bool    `json:"can_retry"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	FinalPath       string  `json:"final_path,omitempty"`
	Version         int     `json:"version"`
}

// BinaryError is emitted on the separate "binary-error" channel when a
// required external binary is missing or too old.
type BinaryError struct {
	Message string `json:"message"`
}

// Emitter fans payloads out to subscriber channels and throttles the rate
// at which any single task's Progress events are delivered.
type Emitter struct {
	log *slog.Logger

	mu          sync.Mutex
	subscribers []chan Payload
	binaryErr   []chan BinaryError

	limiters   map[string]*rate.Limiter
	limitersMu sync.Mutex
	rateEvery  time.Duration
}

// New constructs an Emitter. rateEvery bounds how often a single task's
// Progress events are delivered (SPEC_FULL.md §4.9); 0 disables throttling.
func New(cfg config.Config, log *slog.Logger) *Emitter {
	every := time.Duration(cfg.EventRateMillis) * time.Millisecond
	return &Emitter{
		log:       log,
		limiters:  make(map[string]*rate.Limiter),
		rateEvery: every,
	}
}

// Subscribe returns a channel that receives every emitted Payload until
// Unsubscribe is called. The channel is buffered; a slow reader drops
// events rather than stalling producers.
func (e *Emitter) Subscribe() chan Payload {
	ch := make(chan Payload, 32)
	e.mu.Lock()
	e.subscribers = append(e.subscribers, ch)
	e.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a previously subscribed channel.
func (e *Emitter) Unsubscribe(ch chan Payload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.subscribers {
		if s == ch {
			e.subscribers = append(e.subscribers[:i], e.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// SubscribeBinaryErrors returns a channel for binary-error notifications.
func (e *Emitter) SubscribeBinaryErrors() chan BinaryError {
	ch := make(chan BinaryError, 4)
	e.mu.Lock()
	e.binaryErr = append(e.binaryErr, ch)
	e.mu.Unlock()
	return ch
}

// EmitBinaryError broadcasts a binary-error notification, unthrottled.
func (e *Emitter) EmitBinaryError(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.binaryErr {
		select {
		case ch <- BinaryError{Message: msg}:
		default:
		}
	}
}

// EmitStatus broadcasts a payload on every status transition. Status
// transitions are never throttled — only Progress events are.
func (e *Emitter) EmitStatus(t *task.Task) {
	e.broadcast(t.Snapshot())
}

// EmitProgress broadcasts a payload on a parsed Progress event, subject to
// the per-task rate limiter.
func (e *Emitter) EmitProgress(t *task.Task) {
	if !e.allow(t.ID) {
		return
	}
	e.broadcast(t.Snapshot())
}

func (e *Emitter) allow(taskID string) bool {
	if e.rateEvery <= 0 {
		return true
	}
	e.limitersMu.Lock()
	lim, ok := e.limiters[taskID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(e.rateEvery), 1)
		e.limiters[taskID] = lim
	}
	e.limitersMu.Unlock()
	return lim.Allow()
}

func (e *Emitter) broadcast(v task.View) {
	p := Payload{
		ID:              v.ID,
		Progress:        v.Progress,
		Speed:           v.Speed,
		ETA:             v.ETA,
		Status:          string(v.Status),
		TotalSize:       v.TotalSize,
		DownloadedBytes: v.DownloadedBytes,
		CanRetry:        v.CanRetry,
		ErrorMessage:    v.ErrorMessage,
		FinalPath:       v.FinalPath,
		Version:         config.IPCVersion,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subscribers {
		select {
		case ch <- p:
		default:
			e.log.Debug("dropped event, subscriber channel full", "task_id", v.ID)
		}
	}
}
