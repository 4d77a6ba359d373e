// Package supervise spawns labeled dev processes, infers readiness from
// their streamed output, and guarantees tree-wide termination on shutdown.
package supervise

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/leakwatch/leakwatch/internal/config"
	"github.com/leakwatch/leakwatch/internal/metrics"
)

// Status tracks the lifecycle of a supervised process. Transitions are
// monotonic: starting latches into ready or error on the first matching
// line and never changes afterwards.
type Status string

const (
	StatusStarting Status = "starting"
	StatusReady    Status = "ready"
	StatusError    Status = "error"
)

// Line is one whole line of supervised output.
type Line struct {
	Name   string
	Source string
	Text   string
}

const (
	SourceStdout = "stdout"
	SourceStderr = "stderr"
)

// LogFunc receives supervised output lines. It is called from both stream
// readers, one whole line at a time, never concurrently.
type LogFunc func(Line)

// Options tunes supervision behaviour.
type Options struct {
	// Log receives every output line. Nil discards output.
	Log LogFunc
	// GraceTimeout is how long Kill waits after SIGTERM before
	// escalating. Zero means the default 200ms.
	GraceTimeout time.Duration
}

const defaultGraceTimeout = 200 * time.Millisecond

// Handle owns one spawned child process. It is the only type in the system
// holding a live OS resource, and Kill is safe to call any number of times
// on every exit path.
type Handle struct {
	Name string

	cmd          *exec.Cmd
	pid          int
	graceTimeout time.Duration

	logMu sync.Mutex
	log   LogFunc

	ready     []*regexp.Regexp
	errorPats []*regexp.Regexp

	statusMu  sync.Mutex
	status    Status
	statusErr error

	readyCh  chan struct{}
	waitDone chan struct{}
	exitCode int
	waitErr  error

	killMu sync.Mutex
}

// Start resolves the profile into a running child process and begins
// streaming its output. Spawn failures propagate; everything after a
// successful spawn degrades instead of failing.
func Start(ctx context.Context, profile *config.Profile, opts Options) (*Handle, error) {
	if profile == nil {
		return nil, errors.New("supervise: profile is required")
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	ready, err := compilePatterns(profile.ReadyPatterns)
	if err != nil {
		return nil, fmt.Errorf("profile %s: ready pattern: %w", profile.Name, err)
	}
	errPatterns, err := compilePatterns(profile.ErrorPatterns)
	if err != nil {
		return nil, fmt.Errorf("profile %s: error pattern: %w", profile.Name, err)
	}

	cmd := exec.CommandContext(ctx, profile.Command[0], profile.Command[1:]...)
	if profile.Dir != "" {
		cmd.Dir = profile.Dir
	}

	env := os.Environ()
	for k, v := range profile.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	if profile.Port > 0 {
		env = append(env, "PORT="+strconv.Itoa(profile.Port))
	}
	cmd.Env = env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("process %s stdout: %w", profile.Name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("process %s stderr: %w", profile.Name, err)
	}

	configureCmdSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start process %s: %w", profile.Name, err)
	}

	h := &Handle{
		Name:         profile.Name,
		cmd:          cmd,
		pid:          cmd.Process.Pid,
		graceTimeout: opts.GraceTimeout,
		log:          opts.Log,
		ready:        ready,
		errorPats:    errPatterns,
		status:       StatusStarting,
		readyCh:      make(chan struct{}),
		waitDone:     make(chan struct{}),
	}
	if h.graceTimeout <= 0 {
		h.graceTimeout = defaultGraceTimeout
	}
	metrics.SetProcessReady(h.Name, false)

	var readers sync.WaitGroup
	readers.Add(2)
	go h.streamLines(stdout, SourceStdout, &readers)
	go h.streamLines(stderr, SourceStderr, &readers)

	go func() {
		readers.Wait()
		err := cmd.Wait()
		h.exitCode = exitCodeOf(cmd, err)
		h.waitErr = err
		close(h.waitDone)
	}()

	return h, nil
}

// PID returns the direct child PID.
func (h *Handle) PID() int {
	return h.pid
}

// Status returns the current lifecycle state.
func (h *Handle) Status() Status {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()
	return h.status
}

// WaitReady blocks until the process matches a ready pattern, matches an
// error pattern (returned as an error), or the context expires. A process
// that never matches anything blocks until the caller's context deadline;
// the supervisor applies no timeout of its own.
func (h *Handle) WaitReady(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.readyCh:
	case <-h.waitDone:
		// Exit before any pattern matched is a startup failure.
		select {
		case <-h.readyCh:
		default:
			return fmt.Errorf("process %s exited before becoming ready (code %d)", h.Name, h.exitCode)
		}
	}

	h.statusMu.Lock()
	defer h.statusMu.Unlock()
	if h.status == StatusError {
		return h.statusErr
	}
	return nil
}

// WaitExit blocks until the process has exited and both stream readers have
// drained, then returns the exit code.
func (h *Handle) WaitExit(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.waitDone:
		return h.exitCode, nil
	}
}

func (h *Handle) streamLines(r io.Reader, source string, readers *sync.WaitGroup) {
	defer readers.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		h.emit(Line{Name: h.Name, Source: source, Text: line})
		h.classify(line)
	}
}

func (h *Handle) emit(line Line) {
	h.logMu.Lock()
	defer h.logMu.Unlock()
	if h.log != nil {
		h.log(line)
	}
}

// classify tests one line against the profile patterns. Error patterns are
// checked before ready patterns: a process that logs both in the same burst
// is treated as failed. The first match latches the status for good.
func (h *Handle) classify(line string) {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()
	if h.status != StatusStarting {
		return
	}
	for _, pattern := range h.errorPats {
		if pattern.MatchString(line) {
			h.status = StatusError
			h.statusErr = fmt.Errorf("process %s failed to start: matched %q on %q", h.Name, pattern, line)
			close(h.readyCh)
			return
		}
	}
	for _, pattern := range h.ready {
		if pattern.MatchString(line) {
			h.status = StatusReady
			metrics.SetProcessReady(h.Name, true)
			close(h.readyCh)
			return
		}
	}
}

// Kill performs the two-phase, dual-channel termination protocol: SIGTERM
// to the process group and the direct PID, a short grace period, then
// SIGKILL through both channels if the process is still alive. Errors are
// swallowed; best-effort cleanup must never fail a shutdown. Kill is
// idempotent and safe to call concurrently.
func (h *Handle) Kill() {
	h.killMu.Lock()
	defer h.killMu.Unlock()

	select {
	case <-h.waitDone:
		return
	default:
	}

	h.terminate()
	metrics.ResetProcess(h.Name)
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, raw := range patterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func exitCodeOf(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 0
}
