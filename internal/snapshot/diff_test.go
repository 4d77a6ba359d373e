package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leakwatch/leakwatch/internal/model"
)

func makeSnapshot(ports map[int]model.PortInfo, procs []model.ProcessInfo, treeRSS int64) model.Snapshot {
	return model.Snapshot{
		Timestamp: time.Unix(1700000000, 0),
		Platform:  "linux",
		Ports:     ports,
		Processes: procs,
		Memory:    model.MemoryInfo{Total: 16 << 30, ProcessRSS: treeRSS},
	}
}

func TestSelfDiffIsEmpty(t *testing.T) {
	snap := makeSnapshot(
		map[int]model.PortInfo{
			3000: {Port: 3000, PID: 5, Command: "node", State: model.PortListen, DataAvailable: true},
			5173: {Port: 5173, State: model.PortFree, DataAvailable: true},
		},
		[]model.ProcessInfo{
			{PID: 5, PPID: 1, Command: "node", RSS: 1024},
			{PID: 6, PPID: 5, Command: "esbuild", RSS: 512},
		},
		1536,
	)

	diff := Diff(snap, snap)
	require.Empty(t, diff.OrphanedProcs)
	require.Empty(t, diff.StillBoundPorts)
	require.Empty(t, diff.FreedPorts)
	require.Empty(t, diff.NewProcesses)
	require.Empty(t, diff.KilledProcesses)
	require.Zero(t, diff.MemoryDeltaBytes)
	require.False(t, HasLeaks(diff))
}

func TestOrphanDetection(t *testing.T) {
	from := makeSnapshot(nil, []model.ProcessInfo{
		{PID: 100, PPID: 1, Command: "npm"},
		{PID: 101, PPID: 100, Command: "node"},
	}, 0)

	// Parent 100 exited, child 101 survived: a leak.
	to := makeSnapshot(nil, []model.ProcessInfo{
		{PID: 101, PPID: 100, Command: "node"},
	}, 0)

	diff := Diff(from, to)
	require.Len(t, diff.OrphanedProcs, 1)
	require.Equal(t, 101, diff.OrphanedProcs[0].PID)
	require.True(t, HasLeaks(diff))
}

func TestChildDiedWithParentIsNotOrphan(t *testing.T) {
	from := makeSnapshot(nil, []model.ProcessInfo{
		{PID: 100, PPID: 1, Command: "npm"},
		{PID: 101, PPID: 100, Command: "node"},
	}, 0)

	diff := Diff(from, makeSnapshot(nil, nil, 0))
	require.Empty(t, diff.OrphanedProcs)
	require.Len(t, diff.KilledProcesses, 2)
	require.False(t, HasLeaks(diff))
}

func TestInitReparentIsNeverOrphaned(t *testing.T) {
	from := makeSnapshot(nil, []model.ProcessInfo{
		{PID: 100, PPID: 1, Command: "npm"},
		{PID: 101, PPID: 100, Command: "node"},
	}, 0)

	// The child survived but was reparented to init; that is the normal
	// outcome of a correct tree termination.
	to := makeSnapshot(nil, []model.ProcessInfo{
		{PID: 101, PPID: 1, Command: "node"},
	}, 0)

	diff := Diff(from, to)
	require.Empty(t, diff.OrphanedProcs)
}

func TestUntrackedParentIsNotOrphaned(t *testing.T) {
	from := makeSnapshot(nil, []model.ProcessInfo{
		{PID: 100, PPID: 1, Command: "npm"},
	}, 0)

	// 202's parent 200 was never tracked in from; its disappearance says
	// nothing about our supervised tree.
	to := makeSnapshot(nil, []model.ProcessInfo{
		{PID: 202, PPID: 200, Command: "node"},
	}, 0)

	diff := Diff(from, to)
	require.Empty(t, diff.OrphanedProcs)
	require.Len(t, diff.NewProcesses, 1)
}

func TestPortTransitions(t *testing.T) {
	from := makeSnapshot(map[int]model.PortInfo{
		3000: {Port: 3000, PID: 5, State: model.PortListen, DataAvailable: true},
		8080: {Port: 8080, PID: 9, State: model.PortListen, DataAvailable: true},
	}, nil, 0)
	// 3000 freed; 8080 is still listening but changed hands, the tracked
	// owner 9 was replaced by 77.
	to := makeSnapshot(map[int]model.PortInfo{
		3000: {Port: 3000, State: model.PortFree, DataAvailable: true},
		8080: {Port: 8080, PID: 77, State: model.PortListen, DataAvailable: true},
	}, nil, 0)

	diff := Diff(from, to)
	require.Equal(t, []int{3000}, diff.FreedPorts)
	require.Len(t, diff.StillBoundPorts, 1)
	require.Equal(t, 8080, diff.StillBoundPorts[0].Port)
	require.Equal(t, 77, diff.StillBoundPorts[0].PID)
	require.True(t, HasLeaks(diff))
}

func TestSelfDiffWithListenerIsEmpty(t *testing.T) {
	// A listening port alone, even with no process list at all, must not
	// turn a self-diff into a leak report.
	snap := makeSnapshot(map[int]model.PortInfo{
		3000: {Port: 3000, PID: 5, Command: "node", State: model.PortListen, DataAvailable: true},
	}, nil, 0)

	diff := Diff(snap, snap)
	require.Empty(t, diff.StillBoundPorts)
	require.Empty(t, diff.FreedPorts)
	require.False(t, HasLeaks(diff))
}

func TestContinuousOwnerIsNotStillBound(t *testing.T) {
	from := makeSnapshot(map[int]model.PortInfo{
		8080: {Port: 8080, PID: 9, State: model.PortListen, DataAvailable: true},
	}, []model.ProcessInfo{{PID: 9, PPID: 1, Command: "node"}}, 0)
	to := makeSnapshot(map[int]model.PortInfo{
		8080: {Port: 8080, PID: 9, State: model.PortListen, DataAvailable: true},
	}, []model.ProcessInfo{{PID: 9, PPID: 1, Command: "node"}}, 0)

	// The same live process holding its port across both snapshots is a
	// survivor for the liveness assertions, not a port transition.
	diff := Diff(from, to)
	require.Empty(t, diff.StillBoundPorts)
	require.Empty(t, diff.FreedPorts)
}

func TestTimeWaitDoesNotCountAsStillBound(t *testing.T) {
	from := makeSnapshot(map[int]model.PortInfo{
		3000: {Port: 3000, PID: 5, State: model.PortListen, DataAvailable: true},
	}, nil, 0)
	to := makeSnapshot(map[int]model.PortInfo{
		3000: {Port: 3000, State: model.PortTimeWait, DataAvailable: true},
	}, nil, 0)

	diff := Diff(from, to)
	require.Empty(t, diff.StillBoundPorts)
	require.Equal(t, []int{3000}, diff.FreedPorts)
}

func TestMemoryDelta(t *testing.T) {
	from := makeSnapshot(nil, nil, 1000)
	to := makeSnapshot(nil, nil, 1600)

	require.Equal(t, int64(600), Diff(from, to).MemoryDeltaBytes)
	require.Equal(t, int64(-600), Diff(to, from).MemoryDeltaBytes)
}
