// Command gflood runs flood nodes: an in-process simulator, a single
// node on a UDP medium, and a client for a node's debug endpoint.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type loggerKey struct{}

func newRootCommand() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "gflood",
		Short: "Glossy-style flood and synchronization tools",

		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var lv slog.Level
			if err := lv.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}

			log := slog.New(slog.NewTextHandler(
				cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lv},
			))
			cmd.SetContext(context.WithValue(cmd.Context(), loggerKey{}, log))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "minimum log level (debug, info, warn, error)",
	)

	cmd.AddCommand(
		newSimulateCommand(),
		newEmuCommand(),
		newStatsCommand(),
	)

	return cmd
}

func loggerFrom(cmd *cobra.Command) *slog.Logger {
	if log, ok := cmd.Context().Value(loggerKey{}).(*slog.Logger); ok {
		return log
	}
	return slog.Default()
}
