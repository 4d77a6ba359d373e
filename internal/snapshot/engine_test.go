package snapshot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leakwatch/leakwatch/internal/config"
	"github.com/leakwatch/leakwatch/internal/model"
)

// fakeOps serves canned platform data and records the port sets it was
// asked about.
type fakeOps struct {
	ports      map[int]model.PortInfo
	tree       []model.ProcessInfo
	memory     model.MemoryInfo
	alive      map[int]bool
	queried    [][]int
	treeRoots  [][]int
	degradeAll bool
}

func (f *fakeOps) PortInfo(_ context.Context, requested []int) map[int]model.PortInfo {
	f.queried = append(f.queried, requested)
	result := make(map[int]model.PortInfo, len(requested))
	for _, port := range requested {
		if f.degradeAll {
			result[port] = model.PortInfo{Port: port, State: model.PortFree}
			continue
		}
		if info, ok := f.ports[port]; ok {
			result[port] = info
		} else {
			result[port] = model.PortInfo{Port: port, State: model.PortFree, DataAvailable: true}
		}
	}
	return result
}

func (f *fakeOps) ProcessTree(_ context.Context, roots []int) []model.ProcessInfo {
	f.treeRoots = append(f.treeRoots, roots)
	if f.degradeAll {
		return nil
	}
	return f.tree
}

func (f *fakeOps) MemoryInfo(context.Context) model.MemoryInfo {
	if f.degradeAll {
		return model.MemoryInfo{}
	}
	return f.memory
}

func (f *fakeOps) AllProcesses(context.Context) []model.ProcessInfo { return f.tree }

func (f *fakeOps) FindChildProcesses(context.Context, int) []int { return nil }

func (f *fakeOps) ProcessExists(pid int) bool { return f.alive[pid] }

func (f *fakeOps) Name() string { return "fake" }

func TestCreateUsesExplicitPorts(t *testing.T) {
	ops := &fakeOps{}
	engine := NewEngine(ops, &config.Config{Ports: []int{9999}})

	engine.Create(context.Background(), []int{4000, 4001})

	require.Equal(t, [][]int{{4000, 4001}}, ops.queried)
}

func TestCreateFallsBackToConfiguredThenDefaultPorts(t *testing.T) {
	ops := &fakeOps{}
	engine := NewEngine(ops, &config.Config{Ports: []int{9999}})
	engine.Create(context.Background(), nil)
	require.Equal(t, []int{9999}, ops.queried[0])

	ops = &fakeOps{}
	engine = NewEngine(ops, &config.Config{})
	engine.Create(context.Background(), nil)
	require.Equal(t, config.DefaultPorts, ops.queried[0])
}

func TestCreateCollectsTreeFromListeningRoots(t *testing.T) {
	ops := &fakeOps{
		ports: map[int]model.PortInfo{
			3000: {Port: 3000, PID: 42, Command: "node", State: model.PortListen, DataAvailable: true},
		},
		tree: []model.ProcessInfo{
			{PID: 42, PPID: 1, Command: "node", RSS: 2048},
			{PID: 43, PPID: 42, Command: "esbuild", RSS: 1024},
		},
		memory: model.MemoryInfo{Total: 8 << 30, Free: 4 << 30, Used: 4 << 30},
	}
	engine := NewEngine(ops, &config.Config{Path: "/proj/leakwatch.yaml", Ports: []int{3000}})

	snap := engine.Create(context.Background(), nil)

	require.Equal(t, [][]int{{42}}, ops.treeRoots)
	require.Len(t, snap.Processes, 2)
	require.Equal(t, int64(3072), snap.Memory.ProcessRSS)
	require.Equal(t, int64(8<<30), snap.Memory.Total)
	require.Equal(t, "/proj/leakwatch.yaml", snap.ConfigPath)
	require.Equal(t, "fake", snap.Platform)
	require.False(t, snap.Timestamp.IsZero())
}

func TestCreateSkipsTreeWithoutListeners(t *testing.T) {
	ops := &fakeOps{}
	engine := NewEngine(ops, &config.Config{Ports: []int{3000}})

	snap := engine.Create(context.Background(), nil)

	require.Empty(t, ops.treeRoots)
	require.Empty(t, snap.Processes)
}

func TestCreateSurvivesDegradedPlatform(t *testing.T) {
	ops := &fakeOps{degradeAll: true}
	engine := NewEngine(ops, nil)

	snap := engine.Create(context.Background(), nil)

	require.Len(t, snap.Ports, len(config.DefaultPorts))
	require.Empty(t, snap.Processes)
	require.Zero(t, snap.Memory.Total)
	require.Zero(t, snap.Memory.ProcessRSS)

	// A degraded snapshot still diffs cleanly against itself.
	require.False(t, HasLeaks(Diff(snap, snap)))
}
