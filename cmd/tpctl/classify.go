package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/trendpersona/internal/cache"
	"github.com/ibeckermayer/trendpersona/internal/config"
	"github.com/ibeckermayer/trendpersona/internal/generator"
	"github.com/ibeckermayer/trendpersona/internal/store"
)

func newClassifyCmd() *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:   "classify <topic>",
		Short: "Classify a topic into a persona category",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, err := loadConfig(logger)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

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

			var topicCache generator.Cache = st.TopicCache()
			if cfg.LLM.CacheBackend == config.CacheRedis {
				rc, err := cache.Dial(ctx, cfg.LLM.RedisURL, logger)
				if err != nil {
					return err
				}
				defer rc.Close()
				topicCache = rc
			}

			if purge {
				n, err := st.TopicCache().Purge(ctx)
				if err != nil {
					return err
				}
				logger.WithField("purged", n).Info("Purged expired classifications")
			}

			provider, err := generator.NewProvider(ctx, cfg.LLM, cfg.Debug.SaveArtifacts, logger)
			if err != nil {
				return err
			}
			ttl := time.Duration(cfg.LLM.CacheTTLHours) * time.Hour
			result := generator.NewClassifier(provider, topicCache, ttl, logger).Classify(ctx, strings.Join(args, " "))

			source := "llm"
			switch {
			case result.Cached:
				source = "cache"
			case result.Fallback:
				source = "fallback"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", result.Category, source)
			return nil
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "drop expired sqlite cache entries first")
	return cmd
}
