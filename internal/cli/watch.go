package cli

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/leakwatch/leakwatch/internal/tui"
)

func newWatchCmd(ctx *context) *cobra.Command {
	var ports []int
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live-refreshing view of monitored ports and process trees",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.New("watch requires an interactive terminal; use `leakwatch snapshot --json` for scripted output")
			}
			engine, err := ctx.engine()
			if err != nil {
				return err
			}
			_, cfg, err := ctx.resolve()
			if err != nil {
				return err
			}
			ui := tui.New(engine, ports, interval, cfg.Path)
			return ui.Run(cmd.Context())
		},
	}

	cmd.Flags().IntSliceVar(&ports, "ports", nil, "Explicit ports to monitor (overrides config)")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Refresh interval")
	return cmd
}
