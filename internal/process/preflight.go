package process

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

// checkDiskSpace guards a task's promotion out of Queued: a task whose
// destination volume cannot spare at least reserve bytes moves straight to
// Error instead of spawning a doomed subprocess.
func checkDiskSpace(dir string, reserve uint64) error {
	if dir == "" {
		return nil
	}
	usage, err := disk.Usage(dir)
	if err != nil {
		return fmt.Errorf("disk check: %w", err)
	}
	if usage.Free < reserve {
		return fmt.Errorf("only %d bytes free, need at least %d", usage.Free, reserve)
	}
	return nil
}
