package snapshot

import (
	"context"
	"time"

	"github.com/leakwatch/leakwatch/internal/config"
	"github.com/leakwatch/leakwatch/internal/metrics"
	"github.com/leakwatch/leakwatch/internal/model"
	"github.com/leakwatch/leakwatch/internal/platform"
)

// Engine assembles point-in-time snapshots from platform primitives. It
// never fails: any degraded platform query leaves the affected field empty
// so that a usable snapshot is always available for diffing.
type Engine struct {
	ops platform.Ops
	cfg *config.Config
	now func() time.Time
}

// NewEngine binds an engine to a platform implementation and a resolved
// project configuration. cfg may be nil, in which case defaults apply.
func NewEngine(ops platform.Ops, cfg *config.Config) *Engine {
	return &Engine{ops: ops, cfg: cfg, now: time.Now}
}

// Create captures one snapshot. The monitored port set is the explicit list
// when non-empty, otherwise the configured/inferred ports, otherwise the
// default triplet.
func (e *Engine) Create(ctx context.Context, explicitPorts []int) model.Snapshot {
	started := e.now()
	ports := e.cfg.MonitoredPorts(explicitPorts)

	snap := model.Snapshot{
		Timestamp: started,
		Platform:  e.ops.Name(),
		Ports:     e.ops.PortInfo(ctx, ports),
	}
	if e.cfg != nil {
		snap.ConfigPath = e.cfg.Path
	}

	if roots := snap.ListeningPIDs(); len(roots) > 0 {
		snap.Processes = e.ops.ProcessTree(ctx, roots)
	}

	snap.Memory = e.ops.MemoryInfo(ctx)
	var treeRSS int64
	for _, proc := range snap.Processes {
		treeRSS += proc.RSS
	}
	snap.Memory.ProcessRSS = treeRSS

	metrics.ObserveSnapshotDuration(time.Since(started))
	return snap
}
