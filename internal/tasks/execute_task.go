package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/stackforge/actioncore/internal/action"
	"github.com/stackforge/actioncore/internal/provider"
	"github.com/stackforge/actioncore/internal/solver"
	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

// buildConcurrencyLimit caps how many docker/compiler-style build tasks run
// at once regardless of the solver's global ceiling; deploy/run/test tasks
// are typically I/O-bound against a cluster or remote host and are left
// unbounded at this layer.
const buildConcurrencyLimit = 5

// ExecuteTask runs a resolved action's build/deploy/run/test handler
// through the provider router, after first checking whether the action is
// already in a ready state.
type ExecuteTask struct {
	Key     action.Key
	Kind    action.Kind
	Timeout time.Duration
	Router  provider.Router

	resolveKey string
}

// NewExecuteTask returns an ExecuteTask for key, depending on the resolve
// node identified by resolveTask's ActionKey.
func NewExecuteTask(key action.Key, kind action.Kind, timeout time.Duration, router provider.Router, resolveTask *ResolveActionTask) *ExecuteTask {
	return &ExecuteTask{
		Key:        key,
		Kind:       kind,
		Timeout:    timeout,
		Router:     router,
		resolveKey: resolveTask.ActionKey(),
	}
}

var _ solver.Task = (*ExecuteTask)(nil)

// ActionKey implements solver.Task.
func (t *ExecuteTask) ActionKey() string { return execNodeKey(t.Key) }

// Timeout implements solver.Task.
func (t *ExecuteTask) Timeout() time.Duration { return t.Timeout }

// ConcurrencyClass implements solver.Task, one class per action kind so
// build/deploy/run/test each get an independent limit.
func (t *ExecuteTask) ConcurrencyClass() string { return string(t.Kind) }

// ConcurrencyLimit implements solver.Task.
func (t *ExecuteTask) ConcurrencyLimit() int64 {
	if t.Kind == action.KindBuild {
		return buildConcurrencyLimit
	}
	return 0
}

// StatusDependencies implements solver.Task: the status check needs the
// action resolved first.
func (t *ExecuteTask) StatusDependencies() []string { return []string{t.resolveKey} }

// GetStatus implements solver.Task.
func (t *ExecuteTask) GetStatus(ctx context.Context, deps map[string]solver.Result) (solver.StatusOutcome, error) {
	resolved, err := t.resolvedFrom(deps)
	if err != nil {
		return solver.StatusOutcome{}, err
	}

	status, err := t.Router.GetStatus(ctx, resolved)
	if err != nil {
		return solver.StatusOutcome{}, err
	}

	executed := &action.ExecutedAction{
		Resolved: resolved,
		State:    status.State,
		Detail:   status.Detail,
		Outputs:  status.Outputs,
	}
	return solver.StatusOutcome{Ready: status.State == action.StateReady, Value: executed}, nil
}

// ProcessDependencies implements solver.Task: Process re-reads the same
// resolved action GetStatus consulted.
func (t *ExecuteTask) ProcessDependencies(solver.StatusOutcome) []string {
	return []string{t.resolveKey}
}

// Process implements solver.Task.
func (t *ExecuteTask) Process(ctx context.Context, _ solver.StatusOutcome, deps map[string]solver.Result, _ bool) (any, error) {
	resolved, err := t.resolvedFrom(deps)
	if err != nil {
		return nil, err
	}

	result, err := t.Router.Execute(ctx, t.Kind, resolved)
	if err != nil {
		return nil, err
	}

	return &action.ExecutedAction{
		Resolved: resolved,
		State:    action.StateReady,
		Outputs:  result.Outputs,
		Attached: result.Attached,
	}, nil
}

func (t *ExecuteTask) resolvedFrom(deps map[string]solver.Result) (*action.ResolvedAction, error) {
	res, ok := deps[t.resolveKey]
	if !ok || res.Err != nil {
		return nil, coreerrors.NewInternalError(fmt.Sprintf("missing resolved action for %s", t.Key), res.Err)
	}
	resolved, ok := res.Value.(*action.ResolvedAction)
	if !ok {
		return nil, coreerrors.NewInternalError(fmt.Sprintf("dependency for %s did not resolve to a ResolvedAction", t.Key), nil)
	}
	return resolved, nil
}
