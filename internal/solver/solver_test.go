package solver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

// fakeTask is a scriptable Task used to exercise the solver's scheduling
// logic without a real build/deploy/run/test implementation.
type fakeTask struct {
	key         string
	class       string
	limit       int64
	timeout     time.Duration
	statusDeps  []string
	processDeps func(StatusOutcome) []string

	statusFn  func(context.Context, map[string]Result) (StatusOutcome, error)
	processFn func(context.Context, StatusOutcome, map[string]Result, bool) (any, error)

	statusCalls  atomic.Int32
	processCalls atomic.Int32
}

func (f *fakeTask) ActionKey() string         { return f.key }
func (f *fakeTask) Timeout() time.Duration    { return f.timeout }
func (f *fakeTask) ConcurrencyClass() string  { return f.class }
func (f *fakeTask) ConcurrencyLimit() int64   { return f.limit }
func (f *fakeTask) StatusDependencies() []string {
	return f.statusDeps
}

func (f *fakeTask) GetStatus(ctx context.Context, deps map[string]Result) (StatusOutcome, error) {
	f.statusCalls.Add(1)
	if f.statusFn != nil {
		return f.statusFn(ctx, deps)
	}
	return StatusOutcome{Ready: false}, nil
}

func (f *fakeTask) ProcessDependencies(status StatusOutcome) []string {
	if f.processDeps != nil {
		return f.processDeps(status)
	}
	return nil
}

func (f *fakeTask) Process(ctx context.Context, status StatusOutcome, deps map[string]Result, force bool) (any, error) {
	f.processCalls.Add(1)
	if f.processFn != nil {
		return f.processFn(ctx, status, deps, force)
	}
	return f.key + ":done", nil
}

func resolverFor(tasks map[string]*fakeTask) TaskResolver {
	return func(actionKey string) (Task, error) {
		t, ok := tasks[actionKey]
		if !ok {
			return nil, errors.New("no such task: " + actionKey)
		}
		return t, nil
	}
}

func TestSolverSharesNodeAcrossTwoRequestsForSameAction(t *testing.T) {
	t.Parallel()

	shared := &fakeTask{key: "build.shared"}
	tasks := map[string]*fakeTask{"build.shared": shared}
	s := New(resolverFor(tasks), 0)

	dependant := &fakeTask{
		key:        "deploy.a",
		processDeps: func(StatusOutcome) []string { return []string{"build.shared"} },
	}
	other := &fakeTask{
		key:        "deploy.b",
		processDeps: func(StatusOutcome) []string { return []string{"build.shared"} },
	}
	tasks["deploy.a"] = dependant
	tasks["deploy.b"] = other

	res1 := s.Submit(context.Background(), dependant, false, false)
	res2 := s.Submit(context.Background(), other, false, false)

	require.False(t, res1.Aborted)
	require.False(t, res2.Aborted)
	require.Equal(t, int32(1), shared.processCalls.Load())
}

func TestSolverAbortCascadesAsGraphNodeError(t *testing.T) {
	t.Parallel()

	failing := &fakeTask{
		key: "build.broken",
		processFn: func(context.Context, StatusOutcome, map[string]Result, bool) (any, error) {
			return nil, errors.New("compile failed")
		},
	}
	dependant := &fakeTask{
		key:        "deploy.app",
		processDeps: func(StatusOutcome) []string { return []string{"build.broken"} },
	}
	tasks := map[string]*fakeTask{"build.broken": failing, "deploy.app": dependant}
	s := New(resolverFor(tasks), 0)

	res := s.Submit(context.Background(), dependant, false, false)

	require.True(t, res.Aborted)
	var ce *coreerrors.CoreError
	require.True(t, errors.As(res.Err, &ce))
	require.Equal(t, coreerrors.KindGraph, ce.Kind)
}

func TestSolverStatusOnlyNeverDispatchesProcess(t *testing.T) {
	t.Parallel()

	task := &fakeTask{key: "run.check"}
	tasks := map[string]*fakeTask{"run.check": task}
	s := New(resolverFor(tasks), 0)

	res := s.Submit(context.Background(), task, true, false)

	require.False(t, res.Aborted)
	require.Equal(t, int32(1), task.statusCalls.Load())
	require.Equal(t, int32(0), task.processCalls.Load())
}

func TestSolverForceBypassesReadySkip(t *testing.T) {
	t.Parallel()

	task := &fakeTask{
		key: "build.cached",
		statusFn: func(context.Context, map[string]Result) (StatusOutcome, error) {
			return StatusOutcome{Ready: true, Value: "cached-output"}, nil
		},
	}
	tasks := map[string]*fakeTask{"build.cached": task}

	sNoForce := New(resolverFor(tasks), 0)
	res := sNoForce.Submit(context.Background(), task, false, false)
	require.Equal(t, "cached-output", res.Value)
	require.Equal(t, int32(0), task.processCalls.Load())

	task2 := &fakeTask{
		key: "build.cached",
		statusFn: func(context.Context, map[string]Result) (StatusOutcome, error) {
			return StatusOutcome{Ready: true, Value: "cached-output"}, nil
		},
	}
	tasks2 := map[string]*fakeTask{"build.cached": task2}
	sForce := New(resolverFor(tasks2), 0)
	res2 := sForce.Submit(context.Background(), task2, false, true)
	require.Equal(t, int32(1), task2.processCalls.Load())
	require.Equal(t, task2.key+":done", res2.Value)
}

func TestSolverPerClassConcurrencyLimit(t *testing.T) {
	t.Parallel()

	var inFlight atomic.Int32
	var maxObserved atomic.Int32
	release := make(chan struct{})

	makeTask := func(key string) *fakeTask {
		return &fakeTask{
			key:   key,
			class: "build",
			limit: 2,
			processFn: func(context.Context, StatusOutcome, map[string]Result, bool) (any, error) {
				n := inFlight.Add(1)
				for {
					cur := maxObserved.Load()
					if n <= cur || maxObserved.CompareAndSwap(cur, n) {
						break
					}
				}
				<-release
				inFlight.Add(-1)
				return nil, nil
			},
		}
	}

	tasks := map[string]*fakeTask{}
	var names []string
	for i := 0; i < 4; i++ {
		name := "build.t" + string(rune('0'+i))
		tasks[name] = makeTask(name)
		names = append(names, name)
	}

	s := New(resolverFor(tasks), 0)

	done := make(chan struct{})
	for _, name := range names {
		name := name
		go func() {
			s.Submit(context.Background(), tasks[name], false, false)
		}()
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
		close(done)
	}()
	<-done

	require.LessOrEqual(t, maxObserved.Load(), int32(2))
	require.Equal(t, int32(2), maxObserved.Load())
}

func TestSolverCancelAbortsUndispatchedNodes(t *testing.T) {
	t.Parallel()

	task := &fakeTask{key: "run.late"}
	tasks := map[string]*fakeTask{"run.late": task}
	s := New(resolverFor(tasks), 0)
	s.Cancel()

	res := s.Submit(context.Background(), task, false, false)
	require.True(t, res.Aborted)
}
