//go:build !windows

package supervise

import (
	"os/exec"
	"syscall"
)

// Children run in their own process group so the whole tree can be
// signalled through kill(-pid).
func configureCmdSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
