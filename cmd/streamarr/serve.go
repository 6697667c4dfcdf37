package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/streamarr/streamarr/internal/server"
)

func newServeCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the acquisition daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(*configFlag)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app.logger.Info("starting streamarr daemon", "version", version)
			runner := server.NewRunner(app.db, app.cfg, nil, app.logger)
			return runner.Run(ctx)
		},
	}
}
