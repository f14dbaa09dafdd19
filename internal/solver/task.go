package solver

import (
	"context"
	"time"
)

// StatusOutcome is the generic shape a task's GetStatus call returns; tasks
// decide the specific interpretation, the solver only needs to know when a
// status is "ready" to apply the skip-process optimization.
type StatusOutcome struct {
	Ready bool
	Value any
}

// Task is implemented by the execution tasks in internal/tasks (resolve,
// build, deploy, run, test) to plug into the solver. ActionKey identifies
// the node family; ConcurrencyClass groups tasks sharing a concurrency
// limit (e.g. every build-kind ExecuteTask shares the class "build").
type Task interface {
	ActionKey() string
	Timeout() time.Duration
	ConcurrencyClass() string
	ConcurrencyLimit() int64 // 0 means unbounded

	// StatusDependencies names the action keys whose process result this
	// task's status check needs before it can run.
	StatusDependencies() []string
	GetStatus(ctx context.Context, deps map[string]Result) (StatusOutcome, error)

	// ProcessDependencies is evaluated lazily, after GetStatus completes,
	// so the dependency set can vary with the observed status.
	ProcessDependencies(status StatusOutcome) []string
	Process(ctx context.Context, status StatusOutcome, deps map[string]Result, force bool) (any, error)
}

// resultsByActionKey projects a set of node results, keyed by NodeKey, down
// to a map keyed by bare action key for a specific exec type — the shape
// Task.GetStatus/Process expect.
func resultsByActionKey(results map[NodeKey]Result, exec ExecType) map[string]Result {
	out := make(map[string]Result, len(results))
	for k, r := range results {
		if k.Exec == exec {
			out[k.ActionKey] = r
		}
	}
	return out
}
