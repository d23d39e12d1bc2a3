package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gordian-engine/gflood/gfhttp"
)

func newStatsCommand() *cobra.Command {
	var (
		addr   string
		socket string
		reset  bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Query a flood node's debug endpoint",

		RunE: func(cmd *cobra.Command, args []string) error {
			var c *gfhttp.Client
			switch {
			case addr != "" && socket != "":
				return errors.New("--addr and --socket are mutually exclusive")
			case addr != "":
				c = gfhttp.NewClient(addr)
			case socket != "":
				c = gfhttp.NewUnixClient(socket)
			default:
				return errors.New("one of --addr or --socket is required")
			}

			ctx := cmd.Context()
			st, err := c.Status(ctx)
			if err != nil {
				return err
			}
			stats, err := c.Stats(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "node %d: active=%v rx=%d tx=%d\n",
				st.NodeID, st.Active, st.RxCount, st.TxCount)

			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(stats); err != nil {
				return err
			}

			if reset {
				if err := c.ResetStats(ctx); err != nil {
					return err
				}
				fmt.Fprintln(out, "stats reset")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "node debug TCP address (host:port)")
	cmd.Flags().StringVar(&socket, "socket", "", "node debug unix socket path")
	cmd.Flags().BoolVar(&reset, "reset", false, "reset the statistics after printing")

	return cmd
}
