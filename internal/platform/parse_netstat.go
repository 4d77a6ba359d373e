package platform

import (
	"strconv"
	"strings"

	"github.com/leakwatch/leakwatch/internal/model"
)

// parseNetstatPorts parses `netstat -ano` output, keeping rows on the wanted
// ports. Lines look like:
//
//	TCP    0.0.0.0:3000    0.0.0.0:0    LISTENING    4312
//
// LISTENING rows win over any other state observed for the same port.
func parseNetstatPorts(out string, wanted map[int]struct{}) map[int]model.PortInfo {
	result := make(map[int]model.PortInfo)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || (fields[0] != "TCP" && fields[0] != "TCPv6") {
			continue
		}
		colon := strings.LastIndex(fields[1], ":")
		if colon < 0 {
			continue
		}
		port, err := strconv.Atoi(fields[1][colon+1:])
		if err != nil {
			continue
		}
		if _, ok := wanted[port]; !ok {
			continue
		}
		var state model.PortState
		switch fields[3] {
		case "LISTENING":
			state = model.PortListen
		case "ESTABLISHED":
			state = model.PortEstablished
		case "TIME_WAIT":
			state = model.PortTimeWait
		default:
			continue
		}
		pid, err := strconv.Atoi(fields[4])
		if err != nil {
			pid = 0
		}
		if existing, ok := result[port]; ok {
			if existing.State == model.PortListen || state != model.PortListen {
				continue
			}
		}
		result[port] = model.PortInfo{
			Port:          port,
			PID:           pid,
			State:         state,
			DataAvailable: true,
		}
	}
	return result
}

// parseWmicProcesses parses `wmic process get Name,ParentProcessId,ProcessId,
// WorkingSetSize /FORMAT:CSV`. wmic orders CSV columns alphabetically and
// prefixes each row with the node name, so columns are resolved from the
// header instead of by position.
func parseWmicProcesses(out string) []model.ProcessInfo {
	lines := strings.Split(strings.ReplaceAll(out, "\r", ""), "\n")
	var header []string
	var procs []model.ProcessInfo
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cols := strings.Split(line, ",")
		if header == nil {
			if len(cols) > 1 && strings.EqualFold(cols[0], "Node") {
				header = cols
			}
			continue
		}
		if len(cols) != len(header) {
			continue
		}
		row := make(map[string]string, len(cols))
		for i, name := range header {
			row[strings.ToLower(name)] = cols[i]
		}
		pid, err := strconv.Atoi(row["processid"])
		if err != nil || pid <= 0 {
			continue
		}
		ppid, _ := strconv.Atoi(row["parentprocessid"])
		rss, _ := strconv.ParseInt(row["workingsetsize"], 10, 64)
		procs = append(procs, model.ProcessInfo{
			PID:     pid,
			PPID:    ppid,
			Command: row["name"],
			RSS:     rss,
		})
	}
	return procs
}

// parseWmicMemory parses `wmic OS get FreePhysicalMemory,
// TotalVisibleMemorySize /Value` output, which reports kilobytes in
// Key=Value lines.
func parseWmicMemory(out string) model.MemoryInfo {
	var mem model.MemoryInfo
	for _, line := range strings.Split(strings.ReplaceAll(out, "\r", ""), "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}
		kb, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		switch key {
		case "TotalVisibleMemorySize":
			mem.Total = kb * 1024
		case "FreePhysicalMemory":
			mem.Free = kb * 1024
		}
	}
	if mem.Total > 0 {
		mem.Used = mem.Total - mem.Free
	}
	return mem
}

// parseTasklistPID reports whether `tasklist /FI "PID eq N" /FO CSV /NH`
// output names the PID. tasklist prints an INFO sentence rather than a CSV
// row when the filter matches nothing.
func parseTasklistPID(out string, pid int) bool {
	needle := `"` + strconv.Itoa(pid) + `"`
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, needle) {
			return true
		}
	}
	return false
}
