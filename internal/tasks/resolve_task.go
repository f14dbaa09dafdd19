// Package tasks implements solver.Task for each stage the execution core
// runs: resolving an action's spec against its dependencies, then
// build/deploy/run/test against a provider router.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/stackforge/actioncore/internal/action"
	"github.com/stackforge/actioncore/internal/resolve"
	"github.com/stackforge/actioncore/internal/solver"
	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

// resolvePrefix and execPrefix namespace solver.NodeKey.ActionKey so a
// resolve node and an execute node for the same action never collide in
// the solver's node table: resolving "build.img" and executing "build.img"
// are independent task families sharing the same underlying action.
const (
	resolvePrefix = "resolve:"
	execPrefix    = "exec:"
)

func resolveNodeKey(key action.Key) string { return resolvePrefix + key.String() }
func execNodeKey(key action.Key) string    { return execPrefix + key.String() }

// ParseNodeReference splits a solver.TaskResolver's actionKey argument back
// into which family of node it names and the underlying action key, so a
// caller wiring solver.New's TaskResolver can dispatch to the right task
// constructor without reaching into this package's private key encoding.
func ParseNodeReference(nodeKey string) (isResolve bool, key action.Key, err error) {
	switch {
	case len(nodeKey) > len(resolvePrefix) && nodeKey[:len(resolvePrefix)] == resolvePrefix:
		key, err = action.ParseKey(nodeKey[len(resolvePrefix):])
		return true, key, err
	case len(nodeKey) > len(execPrefix) && nodeKey[:len(execPrefix)] == execPrefix:
		key, err = action.ParseKey(nodeKey[len(execPrefix):])
		return false, key, err
	default:
		return false, action.Key{}, fmt.Errorf("unrecognized node reference %q", nodeKey)
	}
}

// ResolveActionTask runs the resolve pipeline for a single action. Its
// status check never reports ready: resolving is cheap and must rerun
// whenever any dependency's output changes, so every request recomputes it.
type ResolveActionTask struct {
	Action    *action.Action
	Pipeline  *resolve.Pipeline
	GroupVars map[string]any
	CLIVars   map[string]any
	Env       map[string]any
	Tree      action.TreeVersion

	StaticDeps   []action.Key
	ExecutedDeps []action.Key
}

var _ solver.Task = (*ResolveActionTask)(nil)

// ActionKey implements solver.Task.
func (t *ResolveActionTask) ActionKey() string { return resolveNodeKey(t.Action.Key()) }

// Timeout implements solver.Task. Resolving never blocks on external work.
func (t *ResolveActionTask) Timeout() time.Duration { return 0 }

// ConcurrencyClass implements solver.Task.
func (t *ResolveActionTask) ConcurrencyClass() string { return "resolve" }

// ConcurrencyLimit implements solver.Task. Resolving is pure CPU work; no
// cap is needed beyond the solver's global limit.
func (t *ResolveActionTask) ConcurrencyLimit() int64 { return 0 }

// StatusDependencies implements solver.Task.
func (t *ResolveActionTask) StatusDependencies() []string { return nil }

// GetStatus implements solver.Task.
func (t *ResolveActionTask) GetStatus(context.Context, map[string]solver.Result) (solver.StatusOutcome, error) {
	return solver.StatusOutcome{Ready: false}, nil
}

// ProcessDependencies implements solver.Task: a resolved action needs the
// resolved form of its static-output dependencies and the fully executed
// form of its executed-output dependencies.
func (t *ResolveActionTask) ProcessDependencies(solver.StatusOutcome) []string {
	deps := make([]string, 0, len(t.StaticDeps)+len(t.ExecutedDeps))
	for _, key := range t.StaticDeps {
		deps = append(deps, resolveNodeKey(key))
	}
	for _, key := range t.ExecutedDeps {
		deps = append(deps, execNodeKey(key))
	}
	return deps
}

// Process implements solver.Task.
func (t *ResolveActionTask) Process(ctx context.Context, _ solver.StatusOutcome, deps map[string]solver.Result, _ bool) (any, error) {
	depResults := resolve.DependencyResults{
		Resolved: make(map[action.Key]*action.ResolvedAction, len(t.StaticDeps)),
		Executed: make(map[action.Key]*action.ExecutedAction, len(t.ExecutedDeps)),
	}

	for _, key := range t.StaticDeps {
		res, ok := deps[resolveNodeKey(key)]
		if !ok || res.Err != nil {
			return nil, coreerrors.NewInternalError(fmt.Sprintf("missing resolved dependency %s", key), res.Err)
		}
		resolved, ok := res.Value.(*action.ResolvedAction)
		if !ok {
			return nil, coreerrors.NewInternalError(fmt.Sprintf("dependency %s did not resolve to a ResolvedAction", key), nil)
		}
		depResults.Resolved[key] = resolved
	}

	for _, key := range t.ExecutedDeps {
		res, ok := deps[execNodeKey(key)]
		if !ok || res.Err != nil {
			return nil, coreerrors.NewInternalError(fmt.Sprintf("missing executed dependency %s", key), res.Err)
		}
		executed, ok := res.Value.(*action.ExecutedAction)
		if !ok {
			return nil, coreerrors.NewInternalError(fmt.Sprintf("dependency %s did not execute to an ExecutedAction", key), nil)
		}
		depResults.Executed[key] = executed
	}

	return t.Pipeline.Resolve(ctx, resolve.Input{
		Action:       t.Action,
		Dependencies: depResults,
		GroupVars:    t.GroupVars,
		CLIOverrides: t.CLIVars,
		Environment:  t.Env,
		Tree:         t.Tree,
	})
}
