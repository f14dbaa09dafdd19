package solver

import (
	"sync"
	"time"
)

// ExecType is one of the three execution types a TaskNode can represent.
type ExecType string

const (
	// ExecStatus queries current state; expected idempotent, side-effect-free.
	ExecStatus ExecType = "status"
	// ExecProcess performs the action; may be skipped if status is ready.
	ExecProcess ExecType = "process"
	// ExecRequest is the per-submission wrapper a caller waits on.
	ExecRequest ExecType = "request"
)

// NodeKey identifies a node as "actionKey:executionType".
type NodeKey struct {
	ActionKey string
	Exec      ExecType
}

func (k NodeKey) String() string { return k.ActionKey + ":" + string(k.Exec) }

// Result is the immutable record attached to a completed node. Once set, a
// node's result never changes.
type Result struct {
	Value       any
	Err         error
	Aborted     bool
	StartedAt   time.Time
	CompletedAt time.Time
}

// node is one mutable TaskNode in the solver's graph. Completion is
// push-free: a node discovers dependency failure by waiting on the
// dependency's done channel and observing its Result, which produces a
// cascading abort without needing the solver to track reverse edges.
type node struct {
	key        NodeKey
	task       Task
	statusOnly bool
	force      bool

	once sync.Once
	mu   sync.Mutex
	res  *Result
	done chan struct{}
}

func newNode(key NodeKey, task Task, statusOnly, force bool) *node {
	return &node{
		key:        key,
		task:       task,
		statusOnly: statusOnly,
		force:      force,
		done:       make(chan struct{}),
	}
}

// setResult records the node's result if none is set yet (idempotent: the
// first successful write wins).
func (n *node) setResult(r Result) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.res != nil {
		return
	}
	r.CompletedAt = time.Now()
	n.res = &r
	close(n.done)
}

func (n *node) result() *Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.res
}
