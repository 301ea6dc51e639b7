package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/samvad-board-crawler/internal/app"
	"github.com/samvad-hq/samvad-board-crawler/internal/config"
	"github.com/samvad-hq/samvad-board-crawler/internal/logger"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "boardcrawler",
		Short:         "Stream PTT board articles over WebSocket",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default $BOARDCRAWLER_CONFIG)")

	root.AddCommand(
		serveCmd(&cfgPath),
		crawlCmd(&cfgPath),
		locateCmd(&cfgPath),
	)
	return root
}

// bootstrap loads config and logging, then builds the runtime. The returned
// cleanup closes the runtime and flushes logs.
func bootstrap(ctx context.Context, cfgPath string, logSink io.Writer) (*app.Runtime, func(), error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.InitTo(cfg, logSink)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger.DebugObj("config loaded", "config", cfg)

	rt, err := app.NewRuntime(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize runtime", "error", err)
		_ = logger.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := rt.Close(); err != nil {
			logger.ErrorObj("runtime close failed", "error", err)
		}
		_ = logger.Close()
	}
	return rt, cleanup, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
