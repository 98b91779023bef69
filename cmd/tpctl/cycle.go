package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/trendpersona/internal/agent"
	"github.com/ibeckermayer/trendpersona/internal/store"
)

func newCycleCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run one cycle now, ignoring the run flag and sleep hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, err := loadConfig(logger)
			if err != nil {
				return err
			}

			dbPath, err := cfg.DatabasePath()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
				return err
			}
			st, err := store.New(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Agent.CycleTimeoutMinutes)*time.Minute)
			defer cancel()

			comps, err := agent.NewBuilder(st, logger)(ctx, cfg)
			if err != nil {
				return err
			}

			if dryRun {
				list, err := comps.Trends.Top(ctx)
				if err != nil {
					logger.WithError(err).Warn("Failed to fetch trends")
				}
				topic := cfg.Agent.FallbackTopic
				if len(list) > 0 {
					topic = list[0].Name
				}
				res, err := comps.Writer.Generate(ctx, topic)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			}

			if !cfg.XReady() {
				return fmt.Errorf("X credentials are not configured; use --dry-run to skip posting")
			}
			a := agent.New(cfg, st, comps, agent.Options{}, logger)
			defer a.Close()

			res, err := a.ForcePost(ctx)
			if res != nil {
				if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "generate text for the top trend without posting or recording it")
	return cmd
}
