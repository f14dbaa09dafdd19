// Package workflow runs an ordered sequence of steps: shell commands,
// script files, or action references dispatched through the task solver.
package workflow

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/stackforge/actioncore/internal/config"
	"github.com/stackforge/actioncore/internal/plugins/internalexec"
	"github.com/stackforge/actioncore/internal/template"
	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

// ActionRunner lets a workflow step dispatch an action through the task
// solver without the workflow package depending on internal/solver
// directly, keeping the dependency direction one-way.
type ActionRunner interface {
	RunAction(ctx context.Context, ref config.WorkflowActionRef) (outputs map[string]any, err error)
}

// StepOutput is one workflow step's recorded outcome.
type StepOutput struct {
	Number  int
	Outputs map[string]any
	Log     string
}

// Output is the workflow runner's result shape: per-step outcomes plus any
// errors collected along the way, keyed by the step's resolved name.
type Output struct {
	Steps  map[string]StepOutput
	Errors []error
}

// Failed reports whether any step produced an error.
func (o Output) Failed() bool { return len(o.Errors) > 0 }

// Runner executes a WorkflowFile's steps in order.
type Runner struct {
	Actions   ActionRunner
	WorkDir   string
	FilesRoot string
}

// New returns a Runner. actions may be nil if the workflow never references
// an action step. filesRoot is the workflow-scoped files directory under
// the project's dot-directory that `files` entries are written beneath.
func New(actions ActionRunner, workDir, filesRoot string) *Runner {
	return &Runner{Actions: actions, WorkDir: workDir, FilesRoot: filesRoot}
}

// Run executes every step of file in order. secrets feeds the template
// context used to resolve `files` content alongside workflow vars.
func (r *Runner) Run(ctx context.Context, file *config.WorkflowFile, secrets map[string]any) (Output, error) {
	tmplVars := mergeMaps(file.Vars, secrets)
	stepOutputsBranch := map[string]any{}

	if err := r.writeFiles(file.Files, tmplVars); err != nil {
		return Output{}, err
	}

	env := mergeEnv(file.EnvVars)

	out := Output{Steps: make(map[string]StepOutput, len(file.Steps))}
	unhandledError := false

	for i, step := range file.Steps {
		name := stepName(step, i)

		if shouldBeDropped(step, unhandledError) {
			continue
		}
		if step.Skip {
			continue
		}

		if step.When == "always" {
			unhandledError = false
		}

		tmplCtx := template.NewContext(map[string]any{
			"variables": tmplVars,
			"steps":     stepOutputsBranch,
		})

		sr, err := r.runStep(ctx, step, tmplCtx, mergeEnv2(env, step.EnvVars))
		out.Steps[name] = StepOutput{Number: i + 1, Outputs: sr.outputs, Log: sr.log}
		stepOutputsBranch[name] = map[string]any{"outputs": sr.outputs}

		if err != nil {
			out.Errors = append(out.Errors, err)
			unhandledError = true
		} else if step.When == "onError" {
			// This step's whole purpose was handling the earlier failure;
			// having run without erroring itself, that failure is resolved.
			unhandledError = false
		}
	}

	if out.Failed() {
		return out, coreerrors.NewCoreError(coreerrors.KindWorkflowScript,
			fmt.Sprintf("workflow %q failed: %d step(s) errored", file.Name, len(out.Errors)), nil)
	}
	return out, nil
}

func stepName(step config.WorkflowStep, index int) string {
	if step.Name != "" {
		return step.Name
	}
	return "step-" + strconv.Itoa(index+1)
}

// shouldBeDropped implements the step drop table: "always" never drops,
// "never" always drops, "onError" runs only while there is an unhandled
// error from an earlier step, and the default drops once any earlier step
// left an error unhandled.
func shouldBeDropped(step config.WorkflowStep, unhandledError bool) bool {
	switch step.When {
	case "always":
		return false
	case "never":
		return true
	case "onError":
		return !unhandledError
	default:
		return unhandledError
	}
}

type stepRunResult struct {
	outputs map[string]any
	log     string
}

func (r *Runner) runStep(ctx context.Context, step config.WorkflowStep, tmplCtx *template.Context, env []string) (stepRunResult, error) {
	switch {
	case step.Action != nil:
		return r.runActionStep(ctx, step, tmplCtx)
	case step.Script != "":
		return r.runScriptStep(ctx, step, tmplCtx, env)
	case step.Command != "":
		return r.runCommandStep(ctx, step, tmplCtx, env)
	default:
		return stepRunResult{}, coreerrors.NewCoreError(coreerrors.KindConfiguration,
			fmt.Sprintf("step %q declares no command, script, or action", step.ID), nil)
	}
}

func (r *Runner) runActionStep(ctx context.Context, step config.WorkflowStep, tmplCtx *template.Context) (stepRunResult, error) {
	if r.Actions == nil {
		return stepRunResult{}, coreerrors.NewInternalError("workflow references an action step but no ActionRunner is configured", nil)
	}

	resolvedVars, err := template.Resolve(step.Action.Variables, tmplCtx, template.Strict)
	if err != nil {
		return stepRunResult{}, err
	}
	ref := *step.Action
	ref.Variables, _ = resolvedVars.(map[string]any)

	outputs, err := r.Actions.RunAction(ctx, ref)
	if err != nil {
		return stepRunResult{}, err
	}
	return stepRunResult{outputs: outputs}, nil
}

// runCommandStep rejects commands that expect to stay attached to the
// terminal (persistent dev servers, watchers): a workflow step must
// terminate on its own so the runner can move on to the next step.
func (r *Runner) runCommandStep(ctx context.Context, step config.WorkflowStep, tmplCtx *template.Context, env []string) (stepRunResult, error) {
	resolved, err := template.Resolve(step.Command, tmplCtx, template.Strict)
	if err != nil {
		return stepRunResult{}, err
	}
	commandLine, _ := resolved.(string)

	if isPersistentCommand(commandLine) {
		return stepRunResult{}, coreerrors.NewCoreError(coreerrors.KindConfiguration,
			fmt.Sprintf("step %q: persistent commands are not supported in workflows", step.ID), nil)
	}

	shell, shellArgs, err := determineShell()
	if err != nil {
		return stepRunResult{}, coreerrors.NewCoreError(coreerrors.KindRuntime, "determine shell", err)
	}

	cmd := exec.CommandContext(ctx, shell, append(shellArgs, commandLine)...)
	cmd.Dir = r.WorkDir
	cmd.Env = env

	streamed, runErr := internalexec.RunStreaming(cmd)
	log := internalexec.PrimaryOutput(streamed)
	if runErr != nil {
		return stepRunResult{log: log}, exitCodeError(step.ID, streamed, runErr)
	}
	return stepRunResult{log: log}, nil
}

func (r *Runner) runScriptStep(ctx context.Context, step config.WorkflowStep, tmplCtx *template.Context, env []string) (stepRunResult, error) {
	resolved, err := template.Resolve(step.Script, tmplCtx, template.Strict)
	if err != nil {
		return stepRunResult{}, err
	}
	scriptPath, _ := resolved.(string)
	if !filepath.IsAbs(scriptPath) {
		scriptPath = filepath.Join(r.WorkDir, scriptPath)
	}

	cmd := exec.CommandContext(ctx, scriptPath)
	cmd.Dir = r.WorkDir
	cmd.Env = env

	streamed, runErr := internalexec.RunStreaming(cmd)
	log := internalexec.PrimaryOutput(streamed)
	if runErr != nil {
		return stepRunResult{log: log}, exitCodeError(step.ID, streamed, runErr)
	}
	return stepRunResult{log: log}, nil
}

func (r *Runner) writeFiles(files []config.WorkflowFileWrite, vars map[string]any) error {
	if len(files) == 0 {
		return nil
	}
	tmplCtx := template.NewContext(map[string]any{"variables": vars})

	for _, f := range files {
		resolved, err := template.Resolve(f.Content, tmplCtx, template.Strict)
		if err != nil {
			return err
		}
		content, _ := resolved.(string)

		dest := f.Path
		if !filepath.IsAbs(dest) {
			dest = filepath.Join(r.FilesRoot, dest)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return coreerrors.NewCoreError(coreerrors.KindFilesystem, fmt.Sprintf("create directory for %s", dest), err)
		}
		if err := os.WriteFile(dest, []byte(content), 0o644); err != nil {
			return coreerrors.NewCoreError(coreerrors.KindFilesystem, fmt.Sprintf("write %s", dest), err)
		}
	}
	return nil
}

func exitCodeError(stepID string, streamed internalexec.Result, runErr error) error {
	exitCode := -1
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}
	return coreerrors.NewWorkflowScriptError(stepID, exitCode, streamed.Stdout, streamed.Stderr)
}

func determineShell() (string, []string, error) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}, nil
	}
	if path, err := exec.LookPath("bash"); err == nil {
		return path, []string{"-c"}, nil
	}
	if path, err := exec.LookPath("sh"); err == nil {
		return path, []string{"-c"}, nil
	}
	return "", nil, fmt.Errorf("no suitable shell found")
}

// isPersistentCommand flags the shapes of command line most likely to
// block indefinitely: dev-server/watch style invocations.
func isPersistentCommand(commandLine string) bool {
	lower := strings.ToLower(commandLine)
	for _, marker := range []string{"--watch", " serve", "nodemon", "air "} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func mergeEnv(custom map[string]string) []string {
	env := os.Environ()
	for k, v := range custom {
		env = append(env, k+"="+v)
	}
	return env
}

func mergeEnv2(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	env := append([]string{}, base...)
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}

func mergeMaps(layers ...map[string]any) map[string]any {
	out := map[string]any{}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}
