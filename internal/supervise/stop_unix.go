//go:build !windows

package supervise

import (
	"syscall"
	"time"

	"github.com/leakwatch/leakwatch/internal/metrics"
)

// terminate delivers each signal both to the process group (negative PID)
// and to the direct PID. Neither channel alone is reliable: a child that
// called setsid escapes the group, and a group that was never created makes
// kill(-pid) fail outright. Every error is swallowed; the process being
// gone already is success.
func (h *Handle) terminate() {
	signalBoth(h.pid, syscall.SIGTERM)

	select {
	case <-h.waitDone:
		return
	case <-time.After(h.graceTimeout):
	}

	if !processAlive(h.pid) {
		return
	}

	metrics.IncrementKillEscalation(h.Name)
	signalBoth(h.pid, syscall.SIGKILL)

	select {
	case <-h.waitDone:
	case <-time.After(h.graceTimeout):
	}
}

func signalBoth(pid int, sig syscall.Signal) {
	_ = syscall.Kill(-pid, sig)
	_ = syscall.Kill(pid, sig)
}

func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}
