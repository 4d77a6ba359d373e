package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/leakwatch/leakwatch/internal/model"
)

func newSnapshotCmd(ctx *context) *cobra.Command {
	var ports []int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture a one-shot snapshot of monitored ports and processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.engine()
			if err != nil {
				return err
			}
			snap := engine.Create(cmd.Context(), ports)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			printSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}

	cmd.Flags().IntSliceVar(&ports, "ports", nil, "Explicit ports to monitor (overrides config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the snapshot as JSON")
	return cmd
}

func printSnapshot(w io.Writer, snap model.Snapshot) {
	fmt.Fprintf(w, "snapshot %s (%s)\n", snap.Timestamp.Format("2006-01-02 15:04:05"), snap.Platform)
	if snap.ConfigPath != "" {
		fmt.Fprintf(w, "config: %s\n", snap.ConfigPath)
	}

	ports := make([]int, 0, len(snap.Ports))
	for port := range snap.Ports {
		ports = append(ports, port)
	}
	sort.Ints(ports)
	for _, port := range ports {
		info := snap.Ports[port]
		if info.Listening() {
			fmt.Fprintf(w, "  port %-5d %-12s pid=%d %s\n", port, info.State, info.PID, info.Command)
		} else {
			fmt.Fprintf(w, "  port %-5d %s\n", port, info.State)
		}
	}

	if len(snap.Processes) > 0 {
		fmt.Fprintf(w, "processes (%d, tree rss %d bytes):\n", len(snap.Processes), snap.Memory.ProcessRSS)
		for _, proc := range snap.Processes {
			fmt.Fprintf(w, "  pid=%-7d ppid=%-7d rss=%-10d %s\n", proc.PID, proc.PPID, proc.RSS, proc.Command)
		}
	}
}
