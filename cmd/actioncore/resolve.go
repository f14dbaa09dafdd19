package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackforge/actioncore/internal/action"
)

func newResolveCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <kind>.<name>",
		Short: "Resolve an action's spec and outputs without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := action.ParseKey(args[0])
			if err != nil {
				return err
			}

			a, err := buildApp(flags)
			if err != nil {
				return err
			}

			executed, err := a.Submit(context.Background(), key, true, flags.force)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"action":  key.String(),
				"state":   executed.State,
				"detail":  executed.Detail,
				"outputs": executed.Outputs,
			})
		},
	}
	return cmd
}

func printExecuted(cmd *cobra.Command, key action.Key, executed *action.ExecutedAction) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", key, executed.State)
}
