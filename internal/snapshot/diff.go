package snapshot

import (
	"sort"

	"github.com/leakwatch/leakwatch/internal/model"
)

// Diff compares two snapshots. It is a pure function: no I/O, no clock, and
// the result is always recomputable from its inputs. Diffing a snapshot
// against itself yields an empty diff.
func Diff(from, to model.Snapshot) model.SnapshotDiff {
	diff := model.SnapshotDiff{From: from, To: to}

	// A port that stays bound under the same owning PID is not a
	// transition; the continuously-alive owner shows up through the process
	// liveness checks instead. "Still bound" means the port outlived its
	// tracked owner: it is listening on both sides but changed hands, which
	// is how an orphaned child inheriting the socket presents. This also
	// makes the diff of a snapshot against itself empty by construction.
	for port, before := range from.Ports {
		if !before.Listening() {
			continue
		}
		after, ok := to.Ports[port]
		if !ok || !after.Listening() {
			diff.FreedPorts = append(diff.FreedPorts, port)
			continue
		}
		if after.PID != before.PID {
			diff.StillBoundPorts = append(diff.StillBoundPorts, after)
		}
	}
	sort.Slice(diff.StillBoundPorts, func(i, j int) bool {
		return diff.StillBoundPorts[i].Port < diff.StillBoundPorts[j].Port
	})
	sort.Ints(diff.FreedPorts)

	fromPIDs := pidSet(from.Processes)
	toPIDs := pidSet(to.Processes)

	for _, proc := range to.Processes {
		if _, existed := fromPIDs[proc.PID]; !existed {
			diff.NewProcesses = append(diff.NewProcesses, proc)
		}
	}
	for _, proc := range from.Processes {
		if _, survives := toPIDs[proc.PID]; !survives {
			diff.KilledProcesses = append(diff.KilledProcesses, proc)
		}
	}

	// A process is orphaned when its tracked parent exited between the two
	// snapshots while the process itself survived. Reparenting to init
	// (ppid <= 1) is the normal fate of a correctly terminated tree and is
	// never reported.
	for _, proc := range to.Processes {
		if proc.PPID <= 1 {
			continue
		}
		if _, parentTracked := fromPIDs[proc.PPID]; !parentTracked {
			continue
		}
		if _, parentAlive := toPIDs[proc.PPID]; parentAlive {
			continue
		}
		diff.OrphanedProcs = append(diff.OrphanedProcs, proc)
	}

	diff.MemoryDeltaBytes = to.Memory.ProcessRSS - from.Memory.ProcessRSS
	return diff
}

// HasLeaks reports whether a diff shows anything that outlived a supervised
// shutdown: an orphaned process or a still-bound port.
func HasLeaks(diff model.SnapshotDiff) bool {
	return len(diff.OrphanedProcs) > 0 || len(diff.StillBoundPorts) > 0
}

func pidSet(procs []model.ProcessInfo) map[int]struct{} {
	set := make(map[int]struct{}, len(procs))
	for _, p := range procs {
		set[p.PID] = struct{}{}
	}
	return set
}
