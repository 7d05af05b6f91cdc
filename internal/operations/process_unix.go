//go:build unix

package operations

import (
	"os/exec"
	"syscall"
)

// killProcessGroup starts the stage as a process group leader so that a
// timeout or cancellation kills everything the stage spawned.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
