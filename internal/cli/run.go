package cli

import (
	stdcontext "context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leakwatch/leakwatch/internal/assert"
	"github.com/leakwatch/leakwatch/internal/cliutil"
	"github.com/leakwatch/leakwatch/internal/snapshot"
	"github.com/leakwatch/leakwatch/internal/supervise"
)

func newRunCmd(ctx *context) *cobra.Command {
	var ports []int
	var readyTimeout time.Duration
	var jsonLogs bool

	cmd := &cobra.Command{
		Use:   "run NAME",
		Short: "Supervise a named dev process and verify a leak-free shutdown",
		Long: "run spawns the profile's command, streams its output until a ready or\n" +
			"error pattern matches, and on shutdown tree-kills the process and diffs\n" +
			"the system state against the pre-spawn baseline.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, cfg, err := ctx.resolve()
			if err != nil {
				return err
			}
			profile, err := cfg.Profile(args[0])
			if err != nil {
				return err
			}

			engine := snapshot.NewEngine(ops, cfg)
			baseline := engine.Create(cmd.Context(), ports)

			var logFn supervise.LogFunc
			if jsonLogs {
				enc := json.NewEncoder(cmd.OutOrStdout())
				stderr := cmd.ErrOrStderr()
				logFn = func(line supervise.Line) {
					cliutil.EncodeLogLine(enc, stderr, line)
				}
			} else {
				out := cmd.OutOrStdout()
				logFn = func(line supervise.Line) {
					fmt.Fprintf(out, "[%s/%s] %s\n", line.Name, line.Source, line.Text)
				}
			}

			handle, err := supervise.Start(cmd.Context(), profile, supervise.Options{Log: logFn})
			if err != nil {
				return err
			}
			defer handle.Kill()

			readyCtx := cmd.Context()
			if timeout := resolveReadyTimeout(readyTimeout, profile.ReadyTimeout.Duration); timeout > 0 {
				var cancel stdcontext.CancelFunc
				readyCtx, cancel = stdcontext.WithTimeout(readyCtx, timeout)
				defer cancel()
			}
			if err := handle.WaitReady(readyCtx); err != nil {
				handle.Kill()
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s ready (pid %d); press Ctrl-C to stop\n", handle.Name, handle.PID())

			// Block until interrupted or the process exits on its own.
			exitCode, waitErr := handle.WaitExit(cmd.Context())
			handle.Kill()
			if waitErr == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s exited with code %d\n", handle.Name, exitCode)
			}

			// The command context is already cancelled on Ctrl-C; the
			// post-shutdown verification needs its own deadline.
			verifyCtx, cancelVerify := stdcontext.WithTimeout(stdcontext.Background(), 30*time.Second)
			defer cancelVerify()

			checker := assert.NewChecker(ops)
			if profile.Port > 0 {
				checker.WaitForPortFree(verifyCtx, profile.Port, 5*time.Second)
			}

			after := engine.Create(verifyCtx, ports)
			diff := snapshot.Diff(baseline, after)
			if err := assert.NoLeaks(diff); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "clean shutdown: no leaks detected")
			return nil
		},
	}

	cmd.Flags().IntSliceVar(&ports, "ports", nil, "Explicit ports to monitor (overrides config)")
	cmd.Flags().DurationVar(&readyTimeout, "ready-timeout", 0, "Give up waiting for readiness after this long (0 uses the profile's value)")
	cmd.Flags().BoolVar(&jsonLogs, "json-logs", false, "Emit supervised output as JSON log records")
	return cmd
}

func resolveReadyTimeout(flag, profile time.Duration) time.Duration {
	if flag > 0 {
		return flag
	}
	return profile
}
