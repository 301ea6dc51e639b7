package main

import (
	"os"

	"github.com/samvad-hq/samvad-board-crawler/internal/domain"
	"github.com/samvad-hq/samvad-board-crawler/internal/logger"
	"github.com/spf13/cobra"
)

func crawlCmd(cfgPath *string) *cobra.Command {
	var req domain.CrawlRequest
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl a date range once and print matching articles as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			rt, cleanup, err := bootstrap(ctx, *cfgPath, os.Stderr)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := rt.Crawl(ctx, req, cmd.OutOrStdout())
			logger.InfoObj("crawl finished", "crawl_stats", stats)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Type, "type", "PTT", "forum type")
	f.StringVar(&req.Board, "board", "", "board name")
	f.StringVar(&req.StartDate, "start", "", "first day, YYYYMMDD")
	f.StringVar(&req.EndDate, "end", "", "last day, YYYYMMDD")
	f.StringVar(&req.Keyword, "keyword", "", "only emit articles containing this text")
	_ = cmd.MarkFlagRequired("board")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}
