//go:build windows

package platform

import (
	"context"
	"strconv"

	"github.com/leakwatch/leakwatch/internal/model"
)

// windowsBackend shells out to netstat, wmic and tasklist. wmic is
// deprecated but still ships on every supported Windows release and is the
// only one of the three that reports parent PIDs.
type windowsBackend struct{}

func newBackend() backend {
	return &windowsBackend{}
}

func (b *windowsBackend) name() string { return "windows" }

func (b *windowsBackend) ports(ctx context.Context, requested []int) (map[int]model.PortInfo, error) {
	out, err := runCommand(ctx, "netstat", "-ano")
	if err != nil {
		return nil, err
	}
	wanted := make(map[int]struct{}, len(requested))
	for _, port := range requested {
		wanted[port] = struct{}{}
	}
	result := parseNetstatPorts(out, wanted)

	// netstat has no command column; resolve names from the process table.
	procs, err := b.processes(ctx)
	if err != nil {
		return result, nil
	}
	names := make(map[int]string, len(procs))
	for _, p := range procs {
		names[p.PID] = p.Command
	}
	for port, info := range result {
		if info.PID > 0 {
			info.Command = names[info.PID]
			result[port] = info
		}
	}
	return result, nil
}

func (b *windowsBackend) processes(ctx context.Context) ([]model.ProcessInfo, error) {
	out, err := runCommand(ctx, "wmic", "process", "get",
		"Name,ParentProcessId,ProcessId,WorkingSetSize", "/FORMAT:CSV")
	if err != nil {
		return nil, err
	}
	return parseWmicProcesses(out), nil
}

func (b *windowsBackend) memory(ctx context.Context) (model.MemoryInfo, error) {
	out, err := runCommand(ctx, "wmic", "OS", "get",
		"FreePhysicalMemory,TotalVisibleMemorySize", "/Value")
	if err != nil {
		return model.MemoryInfo{}, err
	}
	return parseWmicMemory(out), nil
}

func (b *windowsBackend) exists(pid int) bool {
	out, err := runCommand(context.Background(), "tasklist",
		"/FI", "PID eq "+strconv.Itoa(pid), "/FO", "CSV", "/NH")
	if err != nil {
		return false
	}
	return parseTasklistPID(out, pid)
}
