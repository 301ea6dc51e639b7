package main

import (
	"os"

	"github.com/spf13/cobra"
)

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket crawl server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			rt, cleanup, err := bootstrap(ctx, *cfgPath, os.Stdout)
			if err != nil {
				return err
			}
			defer cleanup()

			return rt.Serve(ctx)
		},
	}
}
