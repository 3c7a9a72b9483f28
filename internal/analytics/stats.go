// Package analytics aggregates download volume and disk usage for the
// stats endpoint — an enrichment beyond spec.md's six core operations,
// carried forward from the teacher's own analytics dashboard.
package analytics

import (
	"path/filepath"
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/disk"

	"vidflow/internal/storage"
)

// DiskUsage reports space on the volume backing a download directory.
type DiskUsage struct {
	UsedGB  float64 `json:"used_gb"`
	FreeGB  float64 `json:"free_gb"`
	TotalGB float64 `json:"total_gb"`
	Percent float64 `json:"percent"`
}

// Snapshot is the full stats payload returned by GET /v1/stats.
type Snapshot struct {
	TotalDownloadedBytes int64            `json:"total_downloaded_bytes"`
	TotalFilesCompleted  int64            `json:"total_files_completed"`
	DailyBytes           map[string]int64 `json:"daily_bytes"`
	DiskUsage            DiskUsage        `json:"disk_usage"`
}

// Tracker accumulates lifetime download statistics in the history store
// and reports current disk usage for the configured download directory.
type Tracker struct {
	hist         *storage.Storage
	downloadDir  string
	currentSpeed int64 // atomic, bytes/sec, updated by the Subprocess Controller per progress line
}

// NewTracker constructs a Tracker. hist may be nil (history store failed
// to open); in that case every lifetime query returns zero rather than
// erroring, so the stats endpoint degrades gracefully instead of 500ing.
func NewTracker(hist *storage.Storage, downloadDir string) *Tracker {
	return &Tracker{hist: hist, downloadDir: downloadDir}
}

// RecordCompletion is called once per task that reaches Completed, adding
// its downloaded bytes to today's tally.
func (t *Tracker) RecordCompletion(bytes int64) {
	if t.hist == nil {
		return
	}
	t.hist.IncrementDailyBytes(bytes)
	t.hist.IncrementDailyFiles()
}

// SetCurrentSpeed records the speed from the most recent progress line of
// any task. Speeds of concurrently running tasks are not summed; each call
// replaces the previous value.
func (t *Tracker) SetCurrentSpeed(bytesPerSec int64) {
	atomic.StoreInt64(&t.currentSpeed, bytesPerSec)
}

// CurrentSpeed returns the last recorded instantaneous speed.
func (t *Tracker) CurrentSpeed() int64 {
	return atomic.LoadInt64(&t.currentSpeed)
}

// DiskUsage reports usage for the volume backing the download directory.
func (t *Tracker) DiskUsage() DiskUsage {
	dir := t.downloadDir
	if dir == "" {
		dir = "."
	}
	volumePath := filepath.VolumeName(dir)
	if volumePath == "" {
		volumePath = dir
	} else {
		volumePath += `\`
	}

	usage, err := disk.Usage(volumePath)
	if err != nil {
		return DiskUsage{}
	}

	const bytesPerGB = 1024 * 1024 * 1024
	return DiskUsage{
		UsedGB:  float64(usage.Used) / bytesPerGB,
		FreeGB:  float64(usage.Free) / bytesPerGB,
		TotalGB: float64(usage.Total) / bytesPerGB,
		Percent: usage.UsedPercent,
	}
}

// Snapshot assembles the full stats payload.
func (t *Tracker) Snapshot() Snapshot {
	s := Snapshot{DailyBytes: make(map[string]int64), DiskUsage: t.DiskUsage()}
	if t.hist == nil {
		return s
	}

	s.TotalDownloadedBytes, _ = t.hist.GetTotalLifetime()
	s.TotalFilesCompleted, _ = t.hist.GetTotalFiles()

	daily, err := t.hist.GetDailyHistory(7)
	if err == nil {
		for _, d := range daily {
			s.DailyBytes[d.Date] = d.Bytes
		}
	}
	return s
}
