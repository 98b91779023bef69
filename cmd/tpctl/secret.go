package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/trendpersona/internal/auth"
)

func newRotateSecretCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "rotate-secret",
		Short: "Delete the stored token signing secret",
		Long:  "Delete the stored token signing secret. A new one is generated on the next start and every issued dashboard token stops working. Has no effect when dashboard.jwt_secret is set.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				p, err := auth.DefaultSecretStorePath()
				if err != nil {
					return err
				}
				path = p
			}
			if err := auth.NewSecretStore(path).Clear(); err != nil {
				return fmt.Errorf("failed to remove %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s; restart the service to issue a new secret\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "secret-file", "", "secret file (default is the user config dir)")
	return cmd
}
