// Package solver implements the task graph solver: the scheduler that turns
// a set of requested actions into a dependency graph of TaskNodes, runs
// them respecting ordering, bounded concurrency, and cancellation, and
// reports results with full abort-chain diagnostics.
//
// Nodes run one goroutine apiece rather than a single cooperative event
// loop; a node discovers a failed dependency by waiting on it and
// inspecting its Result rather than the dependency pushing failure to a
// `dependants` map, so no separate reverse-edge bookkeeping is needed.
package solver

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"golang.org/x/sync/semaphore"

	"github.com/stackforge/actioncore/internal/corelog"
	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

// TaskResolver builds the Task for a dependency action key, referenced
// lazily from StatusDependencies/ProcessDependencies.
type TaskResolver func(actionKey string) (Task, error)

// Solver runs a graph of TaskNodes to completion.
type Solver struct {
	mu    sync.Mutex
	nodes map[NodeKey]*node

	resolveTask TaskResolver

	globalSem *semaphore.Weighted

	classMu   sync.Mutex
	classSems map[string]*semaphore.Weighted

	cancelled atomic.Bool
}

// New returns a Solver. globalConcurrency <= 0 means unbounded.
func New(resolveTask TaskResolver, globalConcurrency int64) *Solver {
	var sem *semaphore.Weighted
	if globalConcurrency > 0 {
		sem = semaphore.NewWeighted(globalConcurrency)
	}
	return &Solver{
		nodes:       make(map[NodeKey]*node),
		resolveTask: resolveTask,
		globalSem:   sem,
		classSems:   make(map[string]*semaphore.Weighted),
	}
}

// Cancel stops dispatch of any node not already running. In-flight
// handlers are not forcibly interrupted; the
// solver simply stops creating new work and new request waits observe an
// aborted result.
func (s *Solver) Cancel() {
	s.cancelled.Store(true)
}

// Submit runs task as a `request` node and blocks until it completes,
// either because its (transitive) result is ready or because a dependency
// failed or was aborted.
func (s *Solver) Submit(ctx context.Context, task Task, statusOnly, force bool) Result {
	if corelog.CorrelationID(ctx) == "" {
		ctx = corelog.WithCorrelationID(ctx, uuid.NewString())
	}

	key := NodeKey{ActionKey: task.ActionKey(), Exec: ExecRequest}
	n := s.getNode(key, task, statusOnly, force)
	s.dispatch(ctx, n)
	return s.await(ctx, n)
}

func (s *Solver) getNode(key NodeKey, task Task, statusOnly, force bool) *node {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[key]; ok {
		return n
	}
	n := newNode(key, task, statusOnly, force)
	s.nodes[key] = n
	return n
}

func (s *Solver) dispatch(ctx context.Context, n *node) {
	n.once.Do(func() {
		go s.run(ctx, n)
	})
}

// await blocks until n completes or ctx is cancelled.
func (s *Solver) await(ctx context.Context, n *node) Result {
	select {
	case <-n.done:
		return *n.result()
	case <-ctx.Done():
		return Result{Err: ctx.Err(), Aborted: true}
	}
}

func (s *Solver) run(ctx context.Context, n *node) {
	if s.cancelled.Load() {
		n.setResult(Result{Aborted: true, Err: coreerrors.NewCoreError(coreerrors.KindRuntime, "solve cancelled before dispatch", nil)})
		return
	}

	switch n.key.Exec {
	case ExecRequest:
		s.runRequest(ctx, n)
	case ExecStatus:
		s.runStatus(ctx, n)
	case ExecProcess:
		s.runProcess(ctx, n)
	}
}

// runRequest implements the dependency table's request rows: depend on
// status(self) when statusOnly, process(self) otherwise.
func (s *Solver) runRequest(ctx context.Context, n *node) {
	target := ExecProcess
	if n.statusOnly {
		target = ExecStatus
	}

	dep := s.getNode(NodeKey{ActionKey: n.key.ActionKey, Exec: target}, n.task, false, n.force)
	s.dispatch(ctx, dep)
	res := s.await(ctx, dep)
	n.setResult(res)
}

// runStatus waits for every dependency this task's status check needs
// (the deps' process results), then invokes GetStatus.
func (s *Solver) runStatus(ctx context.Context, n *node) {
	depResults, aborted, err := s.waitForDeps(ctx, n.task.StatusDependencies(), ExecProcess)
	if aborted || err != nil {
		n.setResult(abortedFrom(n.key, err))
		return
	}

	n.setResult(s.runWithLimits(ctx, n, func(ctx context.Context) (any, error) {
		return n.task.GetStatus(ctx, resultsByActionKey(depResults, ExecProcess))
	}))
}

// runProcess implements the lazy two-phase process row: wait for
// status(self); if ready and not forced, skip; otherwise wait for
// the status-dependent process dependencies and run Process.
func (s *Solver) runProcess(ctx context.Context, n *node) {
	statusNode := s.getNode(NodeKey{ActionKey: n.key.ActionKey, Exec: ExecStatus}, n.task, false, false)
	s.dispatch(ctx, statusNode)
	statusRes := s.await(ctx, statusNode)
	if statusRes.Aborted || statusRes.Err != nil {
		n.setResult(abortedFrom(n.key, firstErr(statusRes)))
		return
	}

	outcome, _ := statusRes.Value.(StatusOutcome)
	if outcome.Ready && !n.force {
		n.setResult(Result{Value: outcome.Value})
		return
	}

	depResults, aborted, err := s.waitForDeps(ctx, n.task.ProcessDependencies(outcome), ExecProcess)
	if aborted || err != nil {
		n.setResult(abortedFrom(n.key, err))
		return
	}

	n.setResult(s.runWithLimits(ctx, n, func(ctx context.Context) (any, error) {
		return n.task.Process(ctx, outcome, resultsByActionKey(depResults, ExecProcess), n.force)
	}))
}

// waitForDeps dispatches a node of execType for every action key in keys,
// concurrently, and waits for all of them.
func (s *Solver) waitForDeps(ctx context.Context, keys []string, execType ExecType) (map[NodeKey]Result, bool, error) {
	if len(keys) == 0 {
		return nil, false, nil
	}

	results := make(map[NodeKey]Result, len(keys))
	var mu sync.Mutex
	var firstFailure error
	var anyAborted bool

	var wg conc.WaitGroup
	for _, key := range keys {
		key := key
		wg.Go(func() {
			task, err := s.resolveTask(key)
			if err != nil {
				mu.Lock()
				if firstFailure == nil {
					firstFailure = err
				}
				mu.Unlock()
				return
			}

			nodeKey := NodeKey{ActionKey: key, Exec: execType}
			depNode := s.getNode(nodeKey, task, false, false)
			s.dispatch(ctx, depNode)
			res := s.await(ctx, depNode)

			mu.Lock()
			results[nodeKey] = res
			if res.Aborted {
				anyAborted = true
			}
			if res.Err != nil && firstFailure == nil {
				firstFailure = res.Err
				if ce, ok := res.Err.(*coreerrors.CoreError); !ok || ce.Kind != coreerrors.KindGraph {
					// Name the dependency that failed so the dependant's
					// failedDependency chain ends at it.
					firstFailure = coreerrors.NewGraphNodeError(key, res.Err)
				}
			}
			mu.Unlock()
		})
	}
	wg.Wait()

	return results, anyAborted, firstFailure
}

// runWithLimits applies the global and per-class concurrency ceilings and
// the task's timeout around fn, converting a timeout into a KindTimeout
// error (see coreerrors.NewTimeoutError).
func (s *Solver) runWithLimits(ctx context.Context, n *node, fn func(context.Context) (any, error)) Result {
	started := time.Now()

	if s.globalSem != nil {
		if err := s.globalSem.Acquire(ctx, 1); err != nil {
			return Result{Err: err, Aborted: true, StartedAt: started}
		}
		defer s.globalSem.Release(1)
	}

	if sem := s.classSemaphore(n.task); sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			return Result{Err: err, Aborted: true, StartedAt: started}
		}
		defer sem.Release(1)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout := n.task.Timeout(); timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	value, err := fn(runCtx)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			err = coreerrors.NewTimeoutError(n.key.ActionKey, err)
		}
		return Result{Err: err, StartedAt: started}
	}

	return Result{Value: value, StartedAt: started}
}

func (s *Solver) classSemaphore(task Task) *semaphore.Weighted {
	limit := task.ConcurrencyLimit()
	if limit <= 0 {
		return nil
	}

	class := task.ConcurrencyClass()
	s.classMu.Lock()
	defer s.classMu.Unlock()
	sem, ok := s.classSems[class]
	if !ok {
		sem = semaphore.NewWeighted(limit)
		s.classSems[class] = sem
	}
	return sem
}

func abortedFrom(key NodeKey, cause error) Result {
	if cause == nil {
		return Result{Aborted: true}
	}
	return Result{Aborted: true, Err: coreerrors.NewGraphNodeError(key.ActionKey, cause)}
}

func firstErr(r Result) error {
	if r.Err != nil {
		return r.Err
	}
	return nil
}
