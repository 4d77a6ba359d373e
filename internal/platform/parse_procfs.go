package platform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leakwatch/leakwatch/internal/model"
)

// Socket states from /proc/net/tcp, per include/net/tcp_states.h.
const (
	tcpStateEstablished = "01"
	tcpStateTimeWait    = "06"
	tcpStateListen      = "0A"
)

type procSocket struct {
	port  int
	inode string
	state model.PortState
}

// parseProcNetTCP extracts sockets on the wanted ports from the contents of
// /proc/net/tcp or /proc/net/tcp6. Local addresses are hex "ADDR:PORT"
// pairs; the skipped first line is the column header.
func parseProcNetTCP(content string, wanted map[int]struct{}) []procSocket {
	var sockets []procSocket
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return nil
	}
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 10 {
			continue
		}
		local := strings.Split(fields[1], ":")
		if len(local) != 2 {
			continue
		}
		portHex, err := strconv.ParseInt(local[1], 16, 32)
		if err != nil {
			continue
		}
		port := int(portHex)
		if _, ok := wanted[port]; !ok {
			continue
		}
		var state model.PortState
		switch fields[3] {
		case tcpStateListen:
			state = model.PortListen
		case tcpStateEstablished:
			state = model.PortEstablished
		case tcpStateTimeWait:
			state = model.PortTimeWait
		default:
			continue
		}
		sockets = append(sockets, procSocket{port: port, inode: fields[9], state: state})
	}
	return sockets
}

// parseProcStat parses a /proc/PID/stat line. The comm field is wrapped in
// parentheses and may itself contain spaces or parentheses, so fields are
// located relative to the last closing paren. RSS is field 24 (1-based),
// counted in pages.
func parseProcStat(content string, pageSize int64) (pid, ppid int, comm string, rss int64, err error) {
	open := strings.IndexByte(content, '(')
	closing := strings.LastIndexByte(content, ')')
	if open < 0 || closing < 0 || closing < open {
		return 0, 0, "", 0, fmt.Errorf("malformed stat line")
	}
	pid, err = strconv.Atoi(strings.TrimSpace(content[:open]))
	if err != nil {
		return 0, 0, "", 0, err
	}
	comm = content[open+1 : closing]

	rest := strings.Fields(content[closing+1:])
	// rest[0] is the state flag; rest[1] is ppid; rss is the 22nd field
	// after comm (stat field 24).
	if len(rest) < 22 {
		return 0, 0, "", 0, fmt.Errorf("truncated stat line")
	}
	ppid, err = strconv.Atoi(rest[1])
	if err != nil {
		return 0, 0, "", 0, err
	}
	pages, err := strconv.ParseInt(rest[21], 10, 64)
	if err != nil {
		pages = 0
	}
	return pid, ppid, comm, pages * pageSize, nil
}

// parseMeminfo reads MemTotal/MemFree/MemAvailable out of /proc/meminfo.
// Values are reported in kB.
func parseMeminfo(content string) model.MemoryInfo {
	var mem model.MemoryInfo
	var available int64
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		value, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		switch strings.TrimSuffix(fields[0], ":") {
		case "MemTotal":
			mem.Total = value * 1024
		case "MemFree":
			mem.Free = value * 1024
		case "MemAvailable":
			available = value * 1024
		}
	}
	if available > 0 {
		mem.Free = available
	}
	if mem.Total > 0 {
		mem.Used = mem.Total - mem.Free
	}
	return mem
}
