package platform

import (
	"strconv"
	"strings"

	"github.com/leakwatch/leakwatch/internal/model"
)

// parsePSProcesses parses `ps -axo pid=,ppid=,rss=,command=` output. RSS is
// reported by ps in kilobytes and converted to bytes here.
func parsePSProcesses(out string) []model.ProcessInfo {
	var procs []model.ProcessInfo
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil || pid <= 0 {
			continue
		}
		ppid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		rssKB, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			rssKB = 0
		}
		procs = append(procs, model.ProcessInfo{
			PID:     pid,
			PPID:    ppid,
			Command: fields[3],
			Args:    append([]string(nil), fields[4:]...),
			RSS:     rssKB * 1024,
		})
	}
	return procs
}

// parseLsofListeners parses table output of
// `lsof -nP -iTCP:<ports> -sTCP:LISTEN`, e.g.
//
//	COMMAND   PID USER   FD   TYPE DEVICE SIZE/OFF NODE NAME
//	node    41234 dev    23u  IPv6 0x1a2b      0t0  TCP *:3000 (LISTEN)
//
// Only LISTEN rows are requested, so every parsed row maps to PortListen.
// The first (lowest) PID wins for a port with multiple listeners; forked
// workers share the socket of the main listener.
func parseLsofListeners(out string) map[int]model.PortInfo {
	result := make(map[int]model.PortInfo)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 9 || fields[0] == "COMMAND" {
			continue
		}
		pid, err := strconv.Atoi(fields[1])
		if err != nil || pid <= 0 {
			continue
		}
		name := fields[8]
		colon := strings.LastIndex(name, ":")
		if colon < 0 {
			continue
		}
		port, err := strconv.Atoi(name[colon+1:])
		if err != nil || port <= 0 {
			continue
		}
		if existing, ok := result[port]; ok && existing.PID <= pid {
			continue
		}
		result[port] = model.PortInfo{
			Port:          port,
			PID:           pid,
			Command:       fields[0],
			State:         model.PortListen,
			DataAvailable: true,
		}
	}
	return result
}

// parseVMStatFree derives free bytes from vm_stat's page counters. The page
// size appears in the banner line; free and speculative pages together
// approximate reclaimable memory.
func parseVMStatFree(out string) int64 {
	var pageSize int64 = 4096
	var freePages, speculativePages int64
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.Contains(line, "page size of"):
			fields := strings.Fields(line)
			for i, f := range fields {
				if f == "of" && i+1 < len(fields) {
					if size, err := strconv.ParseInt(fields[i+1], 10, 64); err == nil {
						pageSize = size
					}
				}
			}
		case strings.HasPrefix(line, "Pages free:"):
			freePages = vmStatValue(line)
		case strings.HasPrefix(line, "Pages speculative:"):
			speculativePages = vmStatValue(line)
		}
	}
	return (freePages + speculativePages) * pageSize
}

func vmStatValue(line string) int64 {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0
	}
	raw := strings.TrimSuffix(fields[len(fields)-1], ".")
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return value
}
