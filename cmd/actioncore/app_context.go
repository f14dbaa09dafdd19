package main

import (
	"fmt"
	"os"

	"github.com/stackforge/actioncore/internal/app"
	"github.com/stackforge/actioncore/internal/corelog"
)

// buildApp loads the project at flags.projectDir and wires the solver,
// failing fast with a message on stderr rather than a bare stack trace.
func buildApp(flags *rootFlags) (*app.App, error) {
	log, err := corelog.New(corelog.Options{
		Writer:        os.Stderr,
		Level:         flags.logLevel,
		HumanReadable: true,
		Component:     "actioncore",
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	vars, err := flags.parsedVars()
	if err != nil {
		return nil, err
	}

	return app.New(app.Options{
		ProjectDir: flags.projectDir,
		Vars:       vars,
		Env:        envMap(),
		Log:        log,
	})
}

func envMap() map[string]any {
	out := map[string]any{}
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				out[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return out
}
