//go:build !windows

package renderer

import (
	"os/exec"
	"syscall"
)

// isolateProcessGroup starts cmd in its own process group and makes context
// cancellation kill the whole group, so helper processes spawned by the
// compiler do not outlive the timeout.
func isolateProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() (err error) {
		// Negative pid addresses the process group.
		err = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		return err
	}
}
