package main

import (
	"fmt"
	"os"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/trendpersona/internal/config"
)

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "open <config|cache>",
		Short:     "Open the config file or the artifact cache directory",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"config", "cache"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				path string
				err  error
			)
			switch args[0] {
			case "config":
				path = cfgFile
				if path == "" {
					path, err = config.ConfigPath()
				}
			case "cache":
				path, err = config.CacheDir()
				if err == nil {
					err = os.MkdirAll(path, 0755)
				}
			default:
				return fmt.Errorf("unknown target: %s", args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to get path: %w", err)
			}

			if err := browser.OpenFile(path); err != nil {
				return fmt.Errorf("failed to open %s: %w", path, err)
			}
			return nil
		},
	}
}
