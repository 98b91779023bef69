package main

import (
	"encoding/json"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/trendpersona/internal/config"
	"github.com/ibeckermayer/trendpersona/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tpctl",
		Short:         "trendpersona maintenance and debugging tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newCycleCmd())
	rootCmd.AddCommand(newTrendsCmd())
	rootCmd.AddCommand(newClassifyCmd())
	rootCmd.AddCommand(newHashPasswordCmd())
	rootCmd.AddCommand(newRotateSecretCmd())
	rootCmd.AddCommand(newOpenCmd())
	rootCmd.AddCommand(newLastArtifactCmd())

	return rootCmd
}

func newLogger() *logrus.Logger {
	logger := logging.NewLogger()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// loadConfig reads the config the service would use, env overrides included
func loadConfig(logger *logrus.Logger) (*config.Config, error) {
	config.LoadEnv(logger)
	cfg, _, err := config.LoadOrCreateFile(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
