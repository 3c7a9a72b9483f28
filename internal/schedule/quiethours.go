// Package schedule implements the optional "quiet hours" feature: a daily
// window in which all active downloads are paused, resuming automatically
// at the window's end. This does not change the state machine — it only
// drives the existing pause/resume operations on a timer.
package schedule

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// AllController is the subset of the supervisor that quiet hours drives.
type AllController interface {
	PauseAll()
	ResumeAll()
}

// Config describes a daily pause/resume window. Hours are 0-23 in local
// time; Enabled=false disables the feature entirely.
type Config struct {
	Enabled   bool
	StartHour int
	StopHour  int
}

// QuietHours owns the cron schedule.
type QuietHours struct {
	logger     *slog.Logger
	cron       *cron.Cron
	controller AllController
	startEntry cron.EntryID
	stopEntry  cron.EntryID
	mu         sync.Mutex
	cfg        Config
}

// New constructs a QuietHours scheduler bound to controller.
func New(logger *slog.Logger, controller AllController) *QuietHours {
	return &QuietHours{logger: logger, cron: cron.New(), controller: controller}
}

// Start begins the cron driver's internal goroutine.
func (q *QuietHours) Start() {
	q.cron.Start()
}

// Stop halts the cron driver.
func (q *QuietHours) Stop() {
	q.cron.Stop()
}

// Update replaces the current schedule with cfg, removing any prior jobs.
func (q *QuietHours) Update(cfg Config) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.cfg = cfg
	if q.startEntry != 0 {
		q.cron.Remove(q.startEntry)
		q.startEntry = 0
	}
	if q.stopEntry != 0 {
		q.cron.Remove(q.stopEntry)
		q.stopEntry = 0
	}

	if !cfg.Enabled {
		return
	}

	stopSpec := specFromHour(cfg.StartHour) // quiet hours begin: pause all
	startSpec := specFromHour(cfg.StopHour) // quiet hours end: resume all

	if id, err := q.cron.AddFunc(stopSpec, func() {
		q.logger.Info("quiet hours: pausing all active downloads")
		q.controller.PauseAll()
	}); err == nil {
		q.stopEntry = id
	} else {
		q.logger.Error("failed to schedule quiet hours start", "error", err)
	}

	if id, err := q.cron.AddFunc(startSpec, func() {
		q.logger.Info("quiet hours: resuming all paused downloads")
		q.controller.ResumeAll()
	}); err == nil {
		q.startEntry = id
	} else {
		q.logger.Error("failed to schedule quiet hours end", "error", err)
	}
}

func specFromHour(hour int) string {
	return fmt.Sprintf("0 %d * * *", hour)
}
