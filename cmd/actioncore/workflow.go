package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newWorkflowCmd(flags *rootFlags) *cobra.Command {
	var secretVars []string

	cmd := &cobra.Command{
		Use:   "workflow <name>",
		Short: "Run an ordered workflow of commands, scripts, and action references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(flags)
			if err != nil {
				return err
			}

			wf, err := a.Workflow(args[0])
			if err != nil {
				return err
			}

			secrets := map[string]any{}
			for _, kv := range secretVars {
				k, v, ok := cutPair(kv)
				if !ok {
					return fmt.Errorf("invalid --secret %q, expected key=value", kv)
				}
				secrets[k] = v
			}

			output, err := a.NewRunner().Run(context.Background(), wf, secrets)
			if err != nil {
				return err
			}

			for name, step := range output.Steps {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", name)
				if step.Log != "" {
					fmt.Fprintln(cmd.OutOrStdout(), step.Log)
				}
			}
			if output.Failed() {
				for _, stepErr := range output.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", stepErr)
				}
				return fmt.Errorf("workflow %q failed", args[0])
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&secretVars, "secret", nil, "Secret made available to workflow file templates as key=value (repeatable)")
	return cmd
}

func cutPair(kv string) (string, string, bool) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:], true
		}
	}
	return "", "", false
}
