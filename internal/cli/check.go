package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leakwatch/leakwatch/internal/assert"
)

func newCheckCmd(ctx *context) *cobra.Command {
	var ports []int

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Assert that the monitored ports are free",
		Long: "check fails with a non-zero exit code when any monitored port still\n" +
			"holds a listener, printing the owning PIDs and commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, cfg, err := ctx.resolve()
			if err != nil {
				return err
			}
			checker := assert.NewChecker(ops)
			if err := checker.AllPortsFree(cmd.Context(), cfg.MonitoredPorts(ports)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "clean: all monitored ports are free")
			return nil
		},
	}

	cmd.Flags().IntSliceVar(&ports, "ports", nil, "Explicit ports to check (overrides config)")
	return cmd
}
