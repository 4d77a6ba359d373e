package assert

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leakwatch/leakwatch/internal/model"
)

type fakeOps struct {
	ports map[int]model.PortInfo
	alive map[int]bool
}

func (f *fakeOps) PortInfo(_ context.Context, requested []int) map[int]model.PortInfo {
	result := make(map[int]model.PortInfo, len(requested))
	for _, port := range requested {
		if info, ok := f.ports[port]; ok {
			result[port] = info
		} else {
			result[port] = model.PortInfo{Port: port, State: model.PortFree, DataAvailable: true}
		}
	}
	return result
}

func (f *fakeOps) ProcessTree(context.Context, []int) []model.ProcessInfo { return nil }
func (f *fakeOps) MemoryInfo(context.Context) model.MemoryInfo            { return model.MemoryInfo{} }
func (f *fakeOps) AllProcesses(context.Context) []model.ProcessInfo       { return nil }
func (f *fakeOps) FindChildProcesses(context.Context, int) []int          { return nil }
func (f *fakeOps) ProcessExists(pid int) bool                             { return f.alive[pid] }
func (f *fakeOps) Name() string                                           { return "fake" }

func TestAllPortsFree(t *testing.T) {
	ops := &fakeOps{ports: map[int]model.PortInfo{
		3000: {Port: 3000, PID: 11, Command: "node", State: model.PortListen, DataAvailable: true},
	}}
	checker := NewChecker(ops)

	err := checker.AllPortsFree(context.Background(), []int{3000, 5173})
	require.Error(t, err)

	var bound *PortStillBoundError
	require.ErrorAs(t, err, &bound)
	require.Len(t, bound.Ports, 1)
	require.Equal(t, 3000, bound.Ports[0].Port)
	require.Equal(t, 11, bound.Ports[0].PID)
	require.Contains(t, err.Error(), "3000")
	require.Contains(t, err.Error(), "node")

	require.NoError(t, checker.AllPortsFree(context.Background(), []int{5173}))
}

func TestNoOrphanProcessesProbesLiveness(t *testing.T) {
	running := model.Snapshot{Processes: []model.ProcessInfo{
		{PID: 100, PPID: 1, Command: "npm"},
		{PID: 101, PPID: 100, Command: "node"},
	}}
	after := model.Snapshot{Processes: []model.ProcessInfo{
		{PID: 101, PPID: 100, Command: "node"},
	}}

	// The diff says 101 is orphaned, but it was reaped before we probed:
	// no failure.
	checker := NewChecker(&fakeOps{alive: map[int]bool{}})
	require.NoError(t, checker.NoOrphanProcesses(context.Background(), running, after))

	checker = NewChecker(&fakeOps{alive: map[int]bool{101: true}})
	err := checker.NoOrphanProcesses(context.Background(), running, after)
	var orphaned *OrphanedProcessesError
	require.ErrorAs(t, err, &orphaned)
	require.Len(t, orphaned.Processes, 1)
	require.Equal(t, 101, orphaned.Processes[0].PID)
}

func TestProcessesDead(t *testing.T) {
	checker := NewChecker(&fakeOps{alive: map[int]bool{7: true, 8: false}})

	err := checker.ProcessesDead([]int{7, 8})
	var alive *ProcessesStillAliveError
	require.ErrorAs(t, err, &alive)
	require.Equal(t, []int{7}, alive.PIDs)

	require.NoError(t, checker.ProcessesDead([]int{8, 9}))
}

func TestMemoryDelta(t *testing.T) {
	baseline := model.Snapshot{Memory: model.MemoryInfo{ProcessRSS: 100 * 1024 * 1024}}
	grown := model.Snapshot{Memory: model.MemoryInfo{ProcessRSS: 160 * 1024 * 1024}}

	require.NoError(t, MemoryDelta(baseline, grown, MemoryLimits{}))
	require.NoError(t, MemoryDelta(baseline, grown, MemoryLimits{MaxDeltaMB: 100}))

	err := MemoryDelta(baseline, grown, MemoryLimits{MaxDeltaMB: 50})
	var limit *MemoryLimitError
	require.ErrorAs(t, err, &limit)
	require.Equal(t, int64(60*1024*1024), limit.DeltaBytes)

	err = MemoryDelta(baseline, grown, MemoryLimits{MaxDeltaPercent: 50})
	var percent *MemoryPercentError
	require.ErrorAs(t, err, &percent)
	require.InDelta(t, 60.0, percent.DeltaPercent, 0.01)

	// Shrinking memory never fails.
	require.NoError(t, MemoryDelta(grown, baseline, MemoryLimits{MaxDeltaMB: 1, MaxDeltaPercent: 1}))
}

func TestNoLeaksComposite(t *testing.T) {
	clean := model.SnapshotDiff{}
	require.NoError(t, NoLeaks(clean))

	leaky := model.SnapshotDiff{
		OrphanedProcs:   []model.ProcessInfo{{PID: 9, PPID: 5, Command: "node"}},
		StillBoundPorts: []model.PortInfo{{Port: 3000, PID: 9, State: model.PortListen}},
	}
	err := NoLeaks(leaky)
	var leaks *ResourceLeaksError
	require.ErrorAs(t, err, &leaks)
	require.Len(t, leaks.Orphans, 1)
	require.Len(t, leaks.Ports, 1)
	require.Contains(t, err.Error(), "orphaned processes")
	require.Contains(t, err.Error(), "ports still bound")
}

func TestCleanState(t *testing.T) {
	baseline := model.Snapshot{
		Ports: map[int]model.PortInfo{
			3000: {Port: 3000, PID: 42, State: model.PortListen, DataAvailable: true},
		},
		Processes: []model.ProcessInfo{{PID: 42, PPID: 1, Command: "node"}},
	}

	checker := NewChecker(&fakeOps{})
	require.NoError(t, checker.CleanState(context.Background(), baseline))

	checker = NewChecker(&fakeOps{alive: map[int]bool{42: true}})
	err := checker.CleanState(context.Background(), baseline)
	var alive *ProcessesStillAliveError
	require.ErrorAs(t, err, &alive)
	require.Equal(t, []int{42}, alive.PIDs)
}
