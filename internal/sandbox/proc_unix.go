//go:build unix

package sandbox

import (
	"os/exec"
	"syscall"
)

// configureProcess starts the interpreter in its own process group so a
// timeout also kills anything the snippets spawned.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
