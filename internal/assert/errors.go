package assert

import (
	"fmt"
	"strings"

	"github.com/leakwatch/leakwatch/internal/model"
)

// The error types below are the only failures this package produces. Each
// carries the offending ports, PIDs or byte counts so callers can print a
// precise diagnostic before propagating.

// PortStillBoundError reports ports expected to be free that still hold a
// listener or lingering connection state.
type PortStillBoundError struct {
	Ports []model.PortInfo
}

func (e *PortStillBoundError) Error() string {
	parts := make([]string, len(e.Ports))
	for i, p := range e.Ports {
		if p.PID > 0 {
			parts[i] = fmt.Sprintf("%d (%s, pid %d, %s)", p.Port, p.State, p.PID, orUnknown(p.Command))
		} else {
			parts[i] = fmt.Sprintf("%d (%s)", p.Port, p.State)
		}
	}
	return fmt.Sprintf("ports still bound: %s", strings.Join(parts, ", "))
}

// OrphanedProcessesError reports processes that outlived their tracked
// parents.
type OrphanedProcessesError struct {
	Processes []model.ProcessInfo
}

func (e *OrphanedProcessesError) Error() string {
	parts := make([]string, len(e.Processes))
	for i, p := range e.Processes {
		parts[i] = fmt.Sprintf("pid %d (%s, ppid %d)", p.PID, orUnknown(p.Command), p.PPID)
	}
	return fmt.Sprintf("orphaned processes: %s", strings.Join(parts, ", "))
}

// ProcessesStillAliveError reports PIDs that still respond to a liveness
// probe.
type ProcessesStillAliveError struct {
	PIDs []int
}

func (e *ProcessesStillAliveError) Error() string {
	parts := make([]string, len(e.PIDs))
	for i, pid := range e.PIDs {
		parts[i] = fmt.Sprintf("%d", pid)
	}
	return fmt.Sprintf("processes still alive: %s", strings.Join(parts, ", "))
}

// MemoryLimitError reports memory growth past an absolute threshold.
type MemoryLimitError struct {
	DeltaBytes int64
	MaxDeltaMB int
}

func (e *MemoryLimitError) Error() string {
	return fmt.Sprintf("memory grew %.1f MB, limit %d MB",
		float64(e.DeltaBytes)/(1024*1024), e.MaxDeltaMB)
}

// MemoryPercentError reports memory growth past a relative threshold.
type MemoryPercentError struct {
	DeltaBytes      int64
	DeltaPercent    float64
	MaxDeltaPercent float64
}

func (e *MemoryPercentError) Error() string {
	return fmt.Sprintf("memory grew %.1f%% (%d bytes), limit %.1f%%",
		e.DeltaPercent, e.DeltaBytes, e.MaxDeltaPercent)
}

// ResourceLeaksError is the composite failure for a diff showing orphaned
// processes, still-bound ports, or both.
type ResourceLeaksError struct {
	Orphans []model.ProcessInfo
	Ports   []model.PortInfo
}

func (e *ResourceLeaksError) Error() string {
	var parts []string
	if len(e.Orphans) > 0 {
		parts = append(parts, (&OrphanedProcessesError{Processes: e.Orphans}).Error())
	}
	if len(e.Ports) > 0 {
		parts = append(parts, (&PortStillBoundError{Ports: e.Ports}).Error())
	}
	return "resource leaks: " + strings.Join(parts, "; ")
}

func orUnknown(command string) string {
	if command == "" {
		return "unknown"
	}
	return command
}
