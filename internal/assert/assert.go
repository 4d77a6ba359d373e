// Package assert turns snapshots and diffs into pass/fail checks with typed
// failures, plus polling waiters for eventually-consistent conditions.
package assert

import (
	"context"
	"sort"

	"github.com/leakwatch/leakwatch/internal/metrics"
	"github.com/leakwatch/leakwatch/internal/model"
	"github.com/leakwatch/leakwatch/internal/platform"
	"github.com/leakwatch/leakwatch/internal/snapshot"
)

// Checker runs assertions against the live system through a platform
// implementation. All methods succeed silently or return one of the typed
// errors from this package.
type Checker struct {
	ops platform.Ops
}

// NewChecker binds a checker to a platform implementation.
func NewChecker(ops platform.Ops) *Checker {
	return &Checker{ops: ops}
}

// AllPortsFree asserts that none of the given ports holds a listener or
// lingering connection state.
func (c *Checker) AllPortsFree(ctx context.Context, ports []int) error {
	info := c.ops.PortInfo(ctx, ports)
	var bound []model.PortInfo
	for _, p := range info {
		if p.State != model.PortFree {
			bound = append(bound, p)
		}
	}
	if len(bound) == 0 {
		return nil
	}
	sort.Slice(bound, func(i, j int) bool { return bound[i].Port < bound[j].Port })
	metrics.AddLeaks("port", len(bound))
	return &PortStillBoundError{Ports: bound}
}

// NoOrphanProcesses asserts that no process in after outlived a parent that
// was tracked in running. Orphan detection is re-derived here rather than
// taken from a generic diff so that each candidate can additionally be
// probed for liveness; a PID that was reaped between the snapshot and this
// call is not a leak.
func (c *Checker) NoOrphanProcesses(ctx context.Context, running, after model.Snapshot) error {
	diff := snapshot.Diff(running, after)
	var orphans []model.ProcessInfo
	for _, proc := range diff.OrphanedProcs {
		if c.ops.ProcessExists(proc.PID) {
			orphans = append(orphans, proc)
		}
	}
	if len(orphans) == 0 {
		return nil
	}
	metrics.AddLeaks("orphan", len(orphans))
	return &OrphanedProcessesError{Processes: orphans}
}

// MemoryLimits bounds the acceptable growth of tree RSS between two
// snapshots. Zero values disable the corresponding check.
type MemoryLimits struct {
	MaxDeltaMB      int
	MaxDeltaPercent float64
}

// MemoryDelta asserts that tree RSS growth between baseline and after stays
// within the configured thresholds.
func MemoryDelta(baseline, after model.Snapshot, limits MemoryLimits) error {
	delta := after.Memory.ProcessRSS - baseline.Memory.ProcessRSS
	if limits.MaxDeltaMB > 0 {
		if delta > int64(limits.MaxDeltaMB)*1024*1024 {
			return &MemoryLimitError{DeltaBytes: delta, MaxDeltaMB: limits.MaxDeltaMB}
		}
	}
	if limits.MaxDeltaPercent > 0 && baseline.Memory.ProcessRSS > 0 {
		percent := float64(delta) / float64(baseline.Memory.ProcessRSS) * 100
		if percent > limits.MaxDeltaPercent {
			return &MemoryPercentError{
				DeltaBytes:      delta,
				DeltaPercent:    percent,
				MaxDeltaPercent: limits.MaxDeltaPercent,
			}
		}
	}
	return nil
}

// ProcessesDead asserts that none of the given PIDs responds to a liveness
// probe.
func (c *Checker) ProcessesDead(pids []int) error {
	var alive []int
	for _, pid := range pids {
		if pid <= 0 {
			continue
		}
		if c.ops.ProcessExists(pid) {
			alive = append(alive, pid)
		}
	}
	if len(alive) == 0 {
		return nil
	}
	sort.Ints(alive)
	return &ProcessesStillAliveError{PIDs: alive}
}

// NoLeaks asserts that a diff carries neither orphaned processes nor
// still-bound ports.
func NoLeaks(diff model.SnapshotDiff) error {
	if !snapshot.HasLeaks(diff) {
		return nil
	}
	metrics.AddLeaks("orphan", len(diff.OrphanedProcs))
	metrics.AddLeaks("port", len(diff.StillBoundPorts))
	return &ResourceLeaksError{Orphans: diff.OrphanedProcs, Ports: diff.StillBoundPorts}
}

// CleanState asserts that everything present in a baseline snapshot is gone:
// every port the baseline saw listening is free again and every tracked
// process is dead.
func (c *Checker) CleanState(ctx context.Context, baseline model.Snapshot) error {
	var ports []int
	for port, info := range baseline.Ports {
		if info.Listening() {
			ports = append(ports, port)
		}
	}
	sort.Ints(ports)
	if err := c.AllPortsFree(ctx, ports); err != nil {
		return err
	}

	pids := make([]int, 0, len(baseline.Processes))
	for _, proc := range baseline.Processes {
		pids = append(pids, proc.PID)
	}
	return c.ProcessesDead(pids)
}
