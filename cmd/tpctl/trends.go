package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/trendpersona/internal/trends"
)

func newTrendsCmd() *cobra.Command {
	var (
		render bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Print the current filtered trends",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, err := loadConfig(logger)
			if err != nil {
				return err
			}
			if render {
				cfg.Trends.Render = true
			}
			if limit > 0 {
				cfg.Trends.Limit = limit
			}

			source, err := trends.NewSource(cfg.Trends)
			if err != nil {
				return err
			}
			start := time.Now()
			list, err := trends.New(source, cfg.Trends.ScanRows, cfg.Trends.Limit, logger).Top(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Source: %s (%s)\n\n", source.URL(), time.Since(start).Round(time.Millisecond))
			if len(list) == 0 {
				fmt.Fprintln(out, "No trends matched the filter.")
				return nil
			}
			fmt.Fprintln(out, trends.Format(list))
			return nil
		},
	}
	cmd.Flags().BoolVar(&render, "render", false, "load the page in headless Chrome")
	cmd.Flags().IntVar(&limit, "limit", 0, "override trends.limit")
	return cmd
}
