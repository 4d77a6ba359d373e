package platform

import (
	"testing"

	"github.com/leakwatch/leakwatch/internal/model"
)

func TestParsePSProcesses(t *testing.T) {
	out := `
  412     1  24156 /usr/local/bin/node server.js --port 3000
  413   412   8112 esbuild --service
  bad   412   1000 ignored
`
	procs := parsePSProcesses(out)
	if len(procs) != 2 {
		t.Fatalf("expected 2 processes, got %d: %v", len(procs), procs)
	}
	if procs[0].PID != 412 || procs[0].PPID != 1 {
		t.Fatalf("unexpected first process: %+v", procs[0])
	}
	if procs[0].Command != "/usr/local/bin/node" {
		t.Fatalf("unexpected command: %q", procs[0].Command)
	}
	if len(procs[0].Args) != 3 || procs[0].Args[1] != "--port" {
		t.Fatalf("unexpected args: %v", procs[0].Args)
	}
	if procs[0].RSS != 24156*1024 {
		t.Fatalf("expected RSS in bytes, got %d", procs[0].RSS)
	}
}

func TestParseLsofListeners(t *testing.T) {
	out := `COMMAND   PID USER   FD   TYPE             DEVICE SIZE/OFF NODE NAME
node    41234  dev   23u  IPv6 0x3fa45b12      0t0  TCP *:3000 (LISTEN)
node    41240  dev   23u  IPv4 0x3fa45b99      0t0  TCP 127.0.0.1:3000 (LISTEN)
vite    41300  dev   31u  IPv6 0x3fa45c01      0t0  TCP *:5173 (LISTEN)
`
	ports := parseLsofListeners(out)
	if len(ports) != 2 {
		t.Fatalf("expected 2 ports, got %d: %v", len(ports), ports)
	}

	info := ports[3000]
	if info.PID != 41234 {
		t.Fatalf("expected lowest PID to win, got %d", info.PID)
	}
	if info.Command != "node" || info.State != model.PortListen || !info.DataAvailable {
		t.Fatalf("unexpected port info: %+v", info)
	}
	if ports[5173].Command != "vite" {
		t.Fatalf("unexpected port info: %+v", ports[5173])
	}
}

func TestParseProcNetTCP(t *testing.T) {
	content := `  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode
   0: 00000000:0BB8 00000000:0000 0A 00000000:00000000 00:00000000 00000000  1000        0 123456 1 0000000000000000 100 0 0 10 0
   1: 0100007F:1441 00000000:0000 0A 00000000:00000000 00:00000000 00000000  1000        0 222222 1 0000000000000000 100 0 0 10 0
   2: 0100007F:0BB8 0100007F:D431 01 00000000:00000000 00:00000000 00000000  1000        0 333333 1 0000000000000000 100 0 0 10 0
`
	wanted := map[int]struct{}{3000: {}}
	sockets := parseProcNetTCP(content, wanted)
	if len(sockets) != 2 {
		t.Fatalf("expected 2 sockets on port 3000, got %d: %v", len(sockets), sockets)
	}
	if sockets[0].port != 3000 || sockets[0].state != model.PortListen || sockets[0].inode != "123456" {
		t.Fatalf("unexpected socket: %+v", sockets[0])
	}
	if sockets[1].state != model.PortEstablished {
		t.Fatalf("expected established state, got %+v", sockets[1])
	}
}

func TestParseProcStat(t *testing.T) {
	line := "412 (node (dev) srv) S 1 412 412 0 -1 4194560 1200 0 0 0 5 3 0 0 20 0 11 0 12345 200000000 6039 18446744073709551615 1 1 0 0 0 0 0 0 0 0 0 0 17 3 0 0 0 0 0"
	pid, ppid, comm, rss, err := parseProcStat(line, 4096)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if pid != 412 || ppid != 1 {
		t.Fatalf("unexpected pid/ppid: %d/%d", pid, ppid)
	}
	if comm != "node (dev) srv" {
		t.Fatalf("comm with parens not handled: %q", comm)
	}
	if rss != 6039*4096 {
		t.Fatalf("unexpected rss: %d", rss)
	}

	if _, _, _, _, err := parseProcStat("garbage", 4096); err == nil {
		t.Fatal("expected error for malformed line")
	}
}

func TestParseMeminfo(t *testing.T) {
	content := `MemTotal:       16384000 kB
MemFree:         2048000 kB
MemAvailable:    8192000 kB
Buffers:          512000 kB
`
	mem := parseMeminfo(content)
	if mem.Total != 16384000*1024 {
		t.Fatalf("unexpected total: %d", mem.Total)
	}
	// MemAvailable is the better free figure when present.
	if mem.Free != 8192000*1024 {
		t.Fatalf("unexpected free: %d", mem.Free)
	}
	if mem.Used != mem.Total-mem.Free {
		t.Fatalf("unexpected used: %d", mem.Used)
	}
}

func TestParseVMStatFree(t *testing.T) {
	out := `Mach Virtual Memory Statistics: (page size of 16384 bytes)
Pages free:                               53038.
Pages active:                            395214.
Pages speculative:                         2342.
`
	free := parseVMStatFree(out)
	if free != (53038+2342)*16384 {
		t.Fatalf("unexpected free bytes: %d", free)
	}
}

func TestParseNetstatPorts(t *testing.T) {
	out := `
Active Connections

  Proto  Local Address          Foreign Address        State           PID
  TCP    0.0.0.0:3000           0.0.0.0:0              LISTENING       4312
  TCP    127.0.0.1:5173         127.0.0.1:62001        ESTABLISHED     5100
  TCP    0.0.0.0:135            0.0.0.0:0              LISTENING       888
  UDP    0.0.0.0:5353           *:*                                    700
`
	wanted := map[int]struct{}{3000: {}, 5173: {}}
	ports := parseNetstatPorts(out, wanted)
	if len(ports) != 2 {
		t.Fatalf("expected 2 ports, got %d: %v", len(ports), ports)
	}
	if ports[3000].PID != 4312 || ports[3000].State != model.PortListen {
		t.Fatalf("unexpected 3000: %+v", ports[3000])
	}
	if ports[5173].State != model.PortEstablished {
		t.Fatalf("unexpected 5173: %+v", ports[5173])
	}
}

func TestParseWmicProcesses(t *testing.T) {
	out := "Node,Name,ParentProcessId,ProcessId,WorkingSetSize\r\n" +
		"HOST,node.exe,4312,5100,104857600\r\n" +
		"HOST,cmd.exe,1,4312,8388608\r\n" +
		"HOST,broken-row\r\n"
	procs := parseWmicProcesses(out)
	if len(procs) != 2 {
		t.Fatalf("expected 2 processes, got %d: %v", len(procs), procs)
	}
	if procs[0].PID != 5100 || procs[0].PPID != 4312 || procs[0].Command != "node.exe" {
		t.Fatalf("unexpected process: %+v", procs[0])
	}
	if procs[0].RSS != 104857600 {
		t.Fatalf("unexpected rss: %d", procs[0].RSS)
	}
}

func TestParseWmicMemory(t *testing.T) {
	out := "\r\nFreePhysicalMemory=4194304\r\nTotalVisibleMemorySize=16777216\r\n\r\n"
	mem := parseWmicMemory(out)
	if mem.Total != 16777216*1024 || mem.Free != 4194304*1024 {
		t.Fatalf("unexpected memory: %+v", mem)
	}
	if mem.Used != mem.Total-mem.Free {
		t.Fatalf("unexpected used: %d", mem.Used)
	}
}

func TestParseTasklistPID(t *testing.T) {
	hit := `"node.exe","5100","Console","1","102,400 K"`
	if !parseTasklistPID(hit, 5100) {
		t.Fatal("expected pid to be found")
	}
	miss := "INFO: No tasks are running which match the specified criteria."
	if parseTasklistPID(miss, 5100) {
		t.Fatal("expected pid to be absent")
	}
}
