package model

import "time"

// PortState describes the observed condition of a TCP port.
type PortState string

const (
	PortFree        PortState = "free"
	PortListen      PortState = "listen"
	PortEstablished PortState = "established"
	PortTimeWait    PortState = "time_wait"
)

// PortInfo is the point-in-time observation of a single monitored port.
// DataAvailable distinguishes a confirmed-free port from one the platform
// backend could not inspect; both report PortFree so that missing evidence
// never turns into a leak report.
type PortInfo struct {
	Port          int       `json:"port"`
	PID           int       `json:"pid,omitempty"`
	Command       string    `json:"command,omitempty"`
	State         PortState `json:"state"`
	DataAvailable bool      `json:"dataAvailable"`
}

// Listening reports whether the port held an active listener.
func (p PortInfo) Listening() bool {
	return p.State == PortListen
}

// ProcessInfo is one process row as observed at snapshot time. Children
// holds direct child PIDs; the relationship is referential only, never a
// live handle.
type ProcessInfo struct {
	PID      int      `json:"pid"`
	PPID     int      `json:"ppid"`
	Command  string   `json:"command"`
	Args     []string `json:"args,omitempty"`
	RSS      int64    `json:"rss"`
	Children []int    `json:"children,omitempty"`
}

// MemoryInfo carries system-wide memory totals plus the summed RSS of the
// snapshot's process tree. ProcessRSS is filled in by the snapshot engine
// once the tree is known; platform backends leave it zero.
type MemoryInfo struct {
	Total      int64 `json:"total"`
	Used       int64 `json:"used"`
	Free       int64 `json:"free"`
	ProcessRSS int64 `json:"processRss"`
}

// Snapshot is an immutable record of the monitored ports, the process trees
// rooted at their listeners, and aggregate memory. Snapshots hold no OS
// handles and may be serialized freely.
type Snapshot struct {
	Timestamp  time.Time        `json:"timestamp"`
	ConfigPath string           `json:"configPath,omitempty"`
	Ports      map[int]PortInfo `json:"ports"`
	Processes  []ProcessInfo    `json:"processes"`
	Memory     MemoryInfo       `json:"memory"`
	Platform   string           `json:"platform"`
}

// ProcessByPID returns the snapshot's entry for pid, if present.
func (s Snapshot) ProcessByPID(pid int) (ProcessInfo, bool) {
	for _, p := range s.Processes {
		if p.PID == pid {
			return p, true
		}
	}
	return ProcessInfo{}, false
}

// ListeningPIDs collects the owning PIDs of every port in a listen state.
func (s Snapshot) ListeningPIDs() []int {
	seen := make(map[int]struct{})
	var pids []int
	for _, info := range s.Ports {
		if !info.Listening() || info.PID <= 0 {
			continue
		}
		if _, dup := seen[info.PID]; dup {
			continue
		}
		seen[info.PID] = struct{}{}
		pids = append(pids, info.PID)
	}
	return pids
}

// SnapshotDiff is the stateless comparison of two snapshots. It is always
// recomputable from From and To.
type SnapshotDiff struct {
	From             Snapshot      `json:"from"`
	To               Snapshot      `json:"to"`
	OrphanedProcs    []ProcessInfo `json:"orphanedProcesses"`
	StillBoundPorts  []PortInfo    `json:"stillBoundPorts"`
	FreedPorts       []int         `json:"freedPorts"`
	NewProcesses     []ProcessInfo `json:"newProcesses"`
	KilledProcesses  []ProcessInfo `json:"killedProcesses"`
	MemoryDeltaBytes int64         `json:"memoryDeltaBytes"`
}
