package cli

import (
	stdcontext "context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leakwatch/leakwatch/internal/config"
	"github.com/leakwatch/leakwatch/internal/platform"
	"github.com/leakwatch/leakwatch/internal/snapshot"
)

// NewRootCmd builds the leakwatch command tree.
func NewRootCmd() *cobra.Command {
	var configFile string
	var projectDir string

	root := &cobra.Command{
		Use:   "leakwatch",
		Short: "Resource-lifecycle supervisor for dev tooling",
		Long: "leakwatch snapshots listening ports, process trees and memory, diffs them\n" +
			"across a supervised shutdown, and reports anything that leaked.",
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a leakwatch config file (discovered when empty)")
	root.PersistentFlags().StringVarP(&projectDir, "dir", "d", ".", "Project directory used for config discovery")

	ctx := &context{configFile: &configFile, projectDir: &projectDir}
	root.AddCommand(newSnapshotCmd(ctx))
	root.AddCommand(newCheckCmd(ctx))
	root.AddCommand(newWatchCmd(ctx))
	root.AddCommand(newExportCmd(ctx))
	root.AddCommand(newRunCmd(ctx))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// context carries lazily-resolved collaborators between commands. The
// platform implementation is selected once; the configuration is resolved
// once per invocation.
type context struct {
	configFile *string
	projectDir *string

	once sync.Once
	ops  platform.Ops
	cfg  *config.Config
}

func (c *context) resolve() (platform.Ops, *config.Config, error) {
	var err error
	c.once.Do(func() {
		c.ops = platform.Detect()
		if *c.configFile != "" {
			c.cfg, err = config.Load(*c.configFile)
			return
		}
		c.cfg = config.Discover(*c.projectDir)
	})
	return c.ops, c.cfg, err
}

func (c *context) engine() (*snapshot.Engine, error) {
	ops, cfg, err := c.resolve()
	if err != nil {
		return nil, err
	}
	return snapshot.NewEngine(ops, cfg), nil
}
