//go:build linux

package platform

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/leakwatch/leakwatch/internal/model"
)

// linuxBackend reads /proc directly instead of shelling out; the procfs
// layout is stable and avoids a dependency on net-tools being installed.
type linuxBackend struct {
	procRoot string
	pageSize int64
}

func newBackend() backend {
	return &linuxBackend{procRoot: "/proc", pageSize: int64(os.Getpagesize())}
}

func (b *linuxBackend) name() string { return "linux" }

func (b *linuxBackend) ports(ctx context.Context, requested []int) (map[int]model.PortInfo, error) {
	wanted := make(map[int]struct{}, len(requested))
	for _, port := range requested {
		wanted[port] = struct{}{}
	}

	var sockets []procSocket
	var readErr error
	readable := 0
	for _, file := range []string{"net/tcp", "net/tcp6"} {
		data, err := os.ReadFile(filepath.Join(b.procRoot, file))
		if err != nil {
			readErr = err
			continue
		}
		readable++
		sockets = append(sockets, parseProcNetTCP(string(data), wanted)...)
	}
	if readable == 0 {
		// No socket table could be read at all: the answer is unknown,
		// not confirmed free.
		return nil, readErr
	}
	if len(sockets) == 0 {
		return nil, nil
	}

	inodeToPort := make(map[string]procSocket, len(sockets))
	result := make(map[int]model.PortInfo)
	for _, sock := range sockets {
		inodeToPort[sock.inode] = sock
		// Record the state even if the owning process is never found.
		if existing, ok := result[sock.port]; !ok || existing.State != model.PortListen {
			result[sock.port] = model.PortInfo{
				Port:          sock.port,
				State:         sock.state,
				DataAvailable: true,
			}
		}
	}

	// Correlate socket inodes to owning PIDs through /proc/PID/fd links.
	entries, err := os.ReadDir(b.procRoot)
	if err != nil {
		return result, nil
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		fdDir := filepath.Join(b.procRoot, entry.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}
		for _, fd := range fds {
			link, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil || !strings.HasPrefix(link, "socket:[") {
				continue
			}
			inode := strings.TrimSuffix(strings.TrimPrefix(link, "socket:["), "]")
			sock, ok := inodeToPort[inode]
			if !ok {
				continue
			}
			info := result[sock.port]
			if info.PID == 0 || pid < info.PID {
				info.PID = pid
				info.Command = b.commandName(pid)
				result[sock.port] = info
			}
		}
	}
	return result, nil
}

func (b *linuxBackend) processes(ctx context.Context) ([]model.ProcessInfo, error) {
	entries, err := os.ReadDir(b.procRoot)
	if err != nil {
		return nil, err
	}
	var procs []model.ProcessInfo
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(b.procRoot, entry.Name(), "stat"))
		if err != nil {
			continue
		}
		statPID, ppid, comm, rss, err := parseProcStat(string(data), b.pageSize)
		if err != nil || statPID != pid {
			continue
		}
		procs = append(procs, model.ProcessInfo{
			PID:     pid,
			PPID:    ppid,
			Command: comm,
			Args:    b.cmdlineArgs(pid),
			RSS:     rss,
		})
	}
	return procs, nil
}

func (b *linuxBackend) memory(ctx context.Context) (model.MemoryInfo, error) {
	data, err := os.ReadFile(filepath.Join(b.procRoot, "meminfo"))
	if err != nil {
		return model.MemoryInfo{}, err
	}
	return parseMeminfo(string(data)), nil
}

func (b *linuxBackend) exists(pid int) bool {
	// Signal 0 probes existence without delivering anything. EPERM still
	// means the process is alive, just not ours.
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}

func (b *linuxBackend) commandName(pid int) string {
	data, err := os.ReadFile(filepath.Join(b.procRoot, strconv.Itoa(pid), "comm"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (b *linuxBackend) cmdlineArgs(pid int) []string {
	data, err := os.ReadFile(filepath.Join(b.procRoot, strconv.Itoa(pid), "cmdline"))
	if err != nil || len(data) == 0 {
		return nil
	}
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	if len(parts) <= 1 {
		return nil
	}
	return parts[1:]
}
