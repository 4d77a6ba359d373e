//go:build darwin

package platform

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"github.com/leakwatch/leakwatch/internal/model"
)

// darwinBackend shells out to the BSD userland tools; macOS has no procfs.
type darwinBackend struct{}

func newBackend() backend {
	return &darwinBackend{}
}

func (b *darwinBackend) name() string { return "darwin" }

func (b *darwinBackend) ports(ctx context.Context, requested []int) (map[int]model.PortInfo, error) {
	specs := make([]string, len(requested))
	for i, port := range requested {
		specs[i] = strconv.Itoa(port)
	}
	out, err := runCommand(ctx, "lsof",
		"-nP",
		"-iTCP:"+strings.Join(specs, ","),
		"-sTCP:LISTEN")
	if err != nil {
		return nil, err
	}
	return parseLsofListeners(out), nil
}

func (b *darwinBackend) processes(ctx context.Context) ([]model.ProcessInfo, error) {
	out, err := runCommand(ctx, "ps", "-axo", "pid=,ppid=,rss=,command=")
	if err != nil {
		return nil, err
	}
	return parsePSProcesses(out), nil
}

func (b *darwinBackend) memory(ctx context.Context) (model.MemoryInfo, error) {
	totalOut, err := runCommand(ctx, "sysctl", "-n", "hw.memsize")
	if err != nil {
		return model.MemoryInfo{}, err
	}
	total, err := strconv.ParseInt(strings.TrimSpace(totalOut), 10, 64)
	if err != nil {
		return model.MemoryInfo{}, fmt.Errorf("parse hw.memsize: %w", err)
	}

	mem := model.MemoryInfo{Total: total}
	vmOut, err := runCommand(ctx, "vm_stat")
	if err == nil {
		mem.Free = parseVMStatFree(vmOut)
	}
	if mem.Free > 0 {
		mem.Used = mem.Total - mem.Free
	}
	return mem, nil
}

func (b *darwinBackend) exists(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}
