//go:build unix

package toolexec

import (
	"os/exec"
	"syscall"
)

// killGroupOnCancel starts cmd in its own process group so cancellation
// reaches anything the tool forked, not only the direct child.
func killGroupOnCancel(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
