package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func locateCmd(cfgPath *string) *cobra.Command {
	var typ, board, date string
	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Print the listing page where a date starts on a board",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			rt, cleanup, err := bootstrap(ctx, *cfgPath, os.Stderr)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := rt.Locate(ctx, typ, board, date)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
		},
	}

	cmd.Flags().StringVar(&typ, "type", "PTT", "forum type")
	cmd.Flags().StringVar(&board, "board", "", "board name")
	cmd.Flags().StringVar(&date, "date", "", "day to locate, YYYYMMDD")
	_ = cmd.MarkFlagRequired("board")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}
