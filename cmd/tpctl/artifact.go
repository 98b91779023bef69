package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/trendpersona/internal/store"
)

func newLastArtifactCmd() *cobra.Command {
	var pathOnly bool
	cmd := &cobra.Command{
		Use:   "last-artifact <trends|cycles|llm>",
		Short: "Print the most recent debug artifact for a step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			step := store.StepName(args[0])
			known := false
			for _, s := range store.Steps {
				if s == step {
					known = true
				}
			}
			if !known {
				return fmt.Errorf("unknown step %q, want one of %v", args[0], store.Steps)
			}

			path, err := store.LatestArtifact(step)
			if err != nil {
				return err
			}
			if pathOnly {
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			}

			data, err := store.LoadArtifact[json.RawMessage](path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s\n", path, data)
			return nil
		},
	}
	cmd.Flags().BoolVar(&pathOnly, "path", false, "print only the file path")
	return cmd
}
