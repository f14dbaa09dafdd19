package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	projectDir string
	vars       []string
	logLevel   string
	force      bool
	yes        bool
}

// parsedVars turns a repeated --var k=v flag into a merged variable map, the
// highest layer in the resolve pipeline's group/action/CLI override chain.
func (f *rootFlags) parsedVars() (map[string]any, error) {
	out := make(map[string]any, len(f.vars))
	for _, kv := range f.vars {
		for _, pair := range strings.Split(kv, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, fmt.Errorf("invalid --var %q, expected key=value", pair)
			}
			out[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return out, nil
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "actioncore",
		Short:         "actioncore resolves and runs build/deploy/run/test actions from a task graph",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.projectDir, "project", ".", "Project directory containing project.yaml")
	cmd.PersistentFlags().StringArrayVar(&flags.vars, "var", nil, "Override a variable as key=value (repeatable, comma-separated)")
	cmd.PersistentFlags().StringVarP(&flags.logLevel, "log-level", "l", "info", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&flags.force, "force", false, "Re-run actions even if already ready")
	cmd.PersistentFlags().BoolVar(&flags.yes, "yes", false, "Skip confirmation prompts")

	cmd.AddCommand(newResolveCmd(flags))
	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newWorkflowCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
