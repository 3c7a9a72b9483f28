//go:build !windows

package process

import (
	"fmt"
	"os/exec"
	"syscall"
)

// setProcessGroup places the child in its own process group so signals can
// target the whole tree (the child may have spawned a merger or probe).
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return fmt.Errorf("process: no live process")
	}
	return syscall.Kill(-cmd.Process.Pid, sig)
}

func stopGroup(cmd *exec.Cmd) error {
	return signalGroup(cmd, syscall.SIGSTOP)
}

func continueGroup(cmd *exec.Cmd) error {
	return signalGroup(cmd, syscall.SIGCONT)
}

func killGroup(cmd *exec.Cmd) error {
	return signalGroup(cmd, syscall.SIGKILL)
}
