//go:build windows

package supervise

import (
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/leakwatch/leakwatch/internal/metrics"
)

// terminate asks politely first, then hands the tree to taskkill. Windows
// has no process groups in the POSIX sense; taskkill /T walks the child
// tree for us. Errors are swallowed throughout.
func (h *Handle) terminate() {
	_ = h.cmd.Process.Signal(os.Interrupt)

	select {
	case <-h.waitDone:
		return
	case <-time.After(h.graceTimeout):
	}

	metrics.IncrementKillEscalation(h.Name)
	_ = exec.Command("taskkill", "/PID", strconv.Itoa(h.pid), "/T", "/F").Run()
	_ = h.cmd.Process.Kill()

	select {
	case <-h.waitDone:
	case <-time.After(h.graceTimeout):
	}
}
