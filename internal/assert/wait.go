package assert

import (
	"context"
	"time"

	"github.com/leakwatch/leakwatch/internal/model"
)

// pollInterval governs every waiter in this package. The interval is a
// compromise between shutdown latency and the cost of repeated platform
// queries.
const pollInterval = 150 * time.Millisecond

// WaitForPortFree polls until the port reports free or the timeout elapses.
// It returns false on timeout rather than failing; callers decide whether
// that is fatal.
func (c *Checker) WaitForPortFree(ctx context.Context, port int, timeout time.Duration) bool {
	return c.poll(ctx, timeout, func() bool {
		info := c.ops.PortInfo(ctx, []int{port})
		return info[port].State == model.PortFree
	})
}

// WaitForProcessDeath polls until the PID stops responding to a liveness
// probe or the timeout elapses.
func (c *Checker) WaitForProcessDeath(ctx context.Context, pid int, timeout time.Duration) bool {
	return c.poll(ctx, timeout, func() bool {
		return !c.ops.ProcessExists(pid)
	})
}

func (c *Checker) poll(ctx context.Context, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}
	}
}
