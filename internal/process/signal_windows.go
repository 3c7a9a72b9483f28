//go:build windows

package process

import (
	"fmt"
	"os/exec"
)

// setProcessGroup is a no-op on Windows; job-object grouping is not wired
// up (see stopGroup).
func setProcessGroup(cmd *exec.Cmd) {}

// stopGroup: Windows has no SIGSTOP equivalent for arbitrary processes.
// Pause is declared unsupported per spec §4.4 rather than emulated via job
// objects.
func stopGroup(cmd *exec.Cmd) error {
	return fmt.Errorf("pause is unsupported on windows")
}

func continueGroup(cmd *exec.Cmd) error {
	return fmt.Errorf("resume is unsupported on windows")
}

func killGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return fmt.Errorf("process: no live process")
	}
	return cmd.Process.Kill()
}
