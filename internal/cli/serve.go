package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mrecommender/internal/server"
)

func createServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Answer every POST with the fixed recommendation until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd)
		},
	}
}

func (a *app) serve(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info("Press Ctrl+C to shutdown gracefully")
	return server.Run(ctx, a.cfg, a.logger)
}
