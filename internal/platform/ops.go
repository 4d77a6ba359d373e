package platform

import (
	"context"
	"runtime"
	"sort"

	"github.com/leakwatch/leakwatch/internal/model"
)

// Ops exposes the OS-specific primitive queries the snapshot engine and the
// assertion library are built on. Every method degrades instead of failing:
// a missing tool, empty output, or transient error yields "no information"
// (free port, empty listing, zero memory) rather than an error, so that
// absence of evidence can never be reported as a leak.
type Ops interface {
	// PortInfo reports each requested port, defaulting to free when no
	// active listener is positively identified.
	PortInfo(ctx context.Context, ports []int) map[int]model.PortInfo

	// ProcessTree walks the descendants of each root PID, visiting every
	// process at most once.
	ProcessTree(ctx context.Context, roots []int) []model.ProcessInfo

	// MemoryInfo returns system-wide totals. ProcessRSS is left zero; the
	// snapshot engine fills it in once the tree is known.
	MemoryInfo(ctx context.Context) model.MemoryInfo

	// AllProcesses returns an unscoped process listing, used for
	// pattern-based discovery rather than snapshot construction.
	AllProcesses(ctx context.Context) []model.ProcessInfo

	// FindChildProcesses returns the full descendant closure of one PID.
	FindChildProcesses(ctx context.Context, pid int) []int

	// ProcessExists probes whether a PID is currently alive.
	ProcessExists(pid int) bool

	// Name identifies the OS family backing this implementation.
	Name() string
}

// backend is the narrow surface each OS family implements. The generic ops
// wrapper layers degradation and tree traversal on top of it.
type backend interface {
	processes(ctx context.Context) ([]model.ProcessInfo, error)
	ports(ctx context.Context, ports []int) (map[int]model.PortInfo, error)
	memory(ctx context.Context) (model.MemoryInfo, error)
	exists(pid int) bool
	name() string
}

// Detect selects the implementation for the current OS. Called once at
// startup; the result is safe for concurrent use.
func Detect() Ops {
	return &ops{b: newBackend()}
}

// Name returns the identifier stamped into snapshots on this host.
func Name() string {
	return runtime.GOOS
}

type ops struct {
	b backend
}

func (o *ops) Name() string { return o.b.name() }

func (o *ops) PortInfo(ctx context.Context, requested []int) map[int]model.PortInfo {
	result := make(map[int]model.PortInfo, len(requested))
	for _, port := range requested {
		result[port] = model.PortInfo{Port: port, State: model.PortFree}
	}
	found, err := o.b.ports(ctx, requested)
	if err != nil {
		return result
	}
	for port, info := range found {
		if _, wanted := result[port]; wanted {
			result[port] = info
		}
	}
	// Ports the backend answered for but reported nothing on are
	// confirmed free rather than unknown.
	for port, info := range result {
		if !info.DataAvailable {
			info.DataAvailable = true
			result[port] = info
		}
	}
	return result
}

func (o *ops) AllProcesses(ctx context.Context) []model.ProcessInfo {
	procs, err := o.b.processes(ctx)
	if err != nil {
		return nil
	}
	return procs
}

func (o *ops) MemoryInfo(ctx context.Context) model.MemoryInfo {
	mem, err := o.b.memory(ctx)
	if err != nil {
		return model.MemoryInfo{}
	}
	mem.ProcessRSS = 0
	return mem
}

func (o *ops) ProcessExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	return o.b.exists(pid)
}

func (o *ops) ProcessTree(ctx context.Context, roots []int) []model.ProcessInfo {
	procs, err := o.b.processes(ctx)
	if err != nil {
		return nil
	}
	return walkTree(procs, roots)
}

func (o *ops) FindChildProcesses(ctx context.Context, pid int) []int {
	procs, err := o.b.processes(ctx)
	if err != nil {
		return nil
	}
	var pids []int
	for _, p := range walkTree(procs, []int{pid}) {
		if p.PID != pid {
			pids = append(pids, p.PID)
		}
	}
	sort.Ints(pids)
	return pids
}

// walkTree performs a breadth-first traversal from each root over the
// parent/child edges of a full process listing. A visited set deduplicates
// diamonds from shared ancestry, so every process appears exactly once.
func walkTree(procs []model.ProcessInfo, roots []int) []model.ProcessInfo {
	byPID := make(map[int]model.ProcessInfo, len(procs))
	childrenOf := make(map[int][]int, len(procs))
	for _, p := range procs {
		byPID[p.PID] = p
		if p.PPID > 0 {
			childrenOf[p.PPID] = append(childrenOf[p.PPID], p.PID)
		}
	}

	visited := make(map[int]struct{})
	var tree []model.ProcessInfo
	queue := append([]int(nil), roots...)
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		if _, seen := visited[pid]; seen {
			continue
		}
		visited[pid] = struct{}{}

		proc, ok := byPID[pid]
		if !ok {
			continue
		}
		kids := append([]int(nil), childrenOf[pid]...)
		sort.Ints(kids)
		proc.Children = kids
		tree = append(tree, proc)
		queue = append(queue, kids...)
	}
	return tree
}
