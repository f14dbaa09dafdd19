package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stackforge/actioncore/internal/action"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "run <kind>.<name>",
		Short: "Resolve and execute an action, skipping work already in a ready state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := action.ParseKey(args[0])
			if err != nil {
				return err
			}

			if key.Kind == action.KindDeploy && !statusOnly && !flags.yes {
				confirmed, err := confirm(cmd, fmt.Sprintf("Deploy %s?", key))
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), "aborted")
					return nil
				}
			}

			a, err := buildApp(flags)
			if err != nil {
				return err
			}

			executed, err := a.Submit(context.Background(), key, statusOnly, flags.force)
			if err != nil {
				return err
			}

			printExecuted(cmd, key, executed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&statusOnly, "status-only", false, "Report the action's status without executing it")
	return cmd
}

// confirm prompts on the command's output stream and reads a yes/no answer
// from stdin, used to gate deploy actions behind --yes.
func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
