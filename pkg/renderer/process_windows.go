//go:build windows

package renderer

import (
	"os/exec"
	"strconv"
)

// isolateProcessGroup makes context cancellation kill the compiler and its
// children with taskkill (/T = tree kill, /F = force).
func isolateProcessGroup(cmd *exec.Cmd) {
	cmd.Cancel = func() (err error) {
		err = exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(cmd.Process.Pid)).Run()
		return err
	}
}
