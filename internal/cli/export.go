package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leakwatch/leakwatch/internal/snapshot"
)

func newExportCmd(ctx *context) *cobra.Command {
	var ports []int
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot export document to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.engine()
			if err != nil {
				return err
			}
			_, cfg, err := ctx.resolve()
			if err != nil {
				return err
			}

			tracker := snapshot.NewTracker(cfg)
			snap := engine.Create(cmd.Context(), ports)
			tracker.SetBaseline(snap)
			tracker.Record(snap)

			// Export is best-effort diagnostics; a write failure is
			// reported but never fails the command.
			if err := tracker.Export(out); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warn: export failed: %v\n", err)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported snapshot to %s\n", out)
			return nil
		},
	}

	cmd.Flags().IntSliceVar(&ports, "ports", nil, "Explicit ports to monitor (overrides config)")
	cmd.Flags().StringVar(&out, "out", "leakwatch-export.json", "Output path for the export document")
	return cmd
}
