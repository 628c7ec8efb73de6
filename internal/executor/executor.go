// Package executor drives a plan against the provider API with a bounded
// worker pool. Operations run as soon as every operation they depend on has
// succeeded; a failure skips exactly the failed operation's dependent
// subtree while independent branches keep going; every success is persisted
// to the state store before any dependent is unlocked, so a crash mid-plan
// leaves state consistent with the operations that completed.
package executor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/converge/internal/addr"
	"github.com/vk/converge/internal/plan"
	"github.com/vk/converge/internal/provider"
	"github.com/vk/converge/internal/state"
)

// Status is the runtime state of one planned operation.
type Status int32

const (
	StatusPending Status = iota
	StatusInProgress
	StatusSucceeded
	StatusFailed
	// StatusSkipped marks operations abandoned because something they
	// transitively depend on failed.
	StatusSkipped
	// StatusCancelled marks operations abandoned by a user-initiated abort
	// before they started. In-progress operations are never cancelled
	// mid-flight; they run to completion.
	StatusCancelled
)

// String renders the status for reports and logs.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in progress"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// opState is the mutable runtime companion of one immutable plan operation.
type opState struct {
	op     *plan.Operation
	status atomic.Int32
	// err is written once, before the terminal status is stored.
	err error
	// remaining counts unmet dependencies; the operation becomes ready at zero.
	remaining atomic.Int32
	// finishOnce guards the single terminal transition for skip/cancel paths.
	finishOnce sync.Once
}

// OperationResult is the terminal outcome of one operation.
type OperationResult struct {
	Op     *plan.Operation
	Status Status
	Err    error
}

// Result aggregates the terminal state of a whole plan execution.
type Result struct {
	Operations []OperationResult
}

// Counts tallies operations per terminal status.
func (r *Result) Counts() map[Status]int {
	counts := map[Status]int{}
	for _, or := range r.Operations {
		counts[or.Status]++
	}
	return counts
}

// Failed reports whether any operation ended in a non-success terminal state.
func (r *Result) Failed() bool {
	for _, or := range r.Operations {
		if or.Status != StatusSucceeded {
			return true
		}
	}
	return false
}

// Executor runs one plan. It is single-use: construct, Run, discard.
type Executor struct {
	plan      *plan.Plan
	providers *provider.Registry
	store     state.Store

	workers       int
	maxRetries    uint64
	retryInterval time.Duration

	states     []*opState
	dependents [][]int

	// values holds the live attribute object per resource, seeded from
	// state and updated after every successful operation; dependents'
	// expressions are re-evaluated against it.
	valuesMu sync.Mutex
	values   map[addr.Address]cty.Value

	wg sync.WaitGroup
}

// Option adjusts executor construction.
type Option func(*Executor)

// WithMaxRetries bounds how often a transient provider error is retried.
func WithMaxRetries(n uint64) Option {
	return func(e *Executor) { e.maxRetries = n }
}

// WithRetryInterval sets the initial backoff interval; tests shrink it.
func WithRetryInterval(d time.Duration) Option {
	return func(e *Executor) { e.retryInterval = d }
}

// New prepares an executor for the given plan. The store must already be
// locked by the caller for the duration of the run.
func New(p *plan.Plan, providers *provider.Registry, store state.Store, workers int, opts ...Option) *Executor {
	if workers < 1 {
		workers = 1
	}
	e := &Executor{
		plan:          p,
		providers:     providers,
		store:         store,
		workers:       workers,
		maxRetries:    4,
		retryInterval: 250 * time.Millisecond,
		values:        make(map[addr.Address]cty.Value),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.states = make([]*opState, len(p.Operations))
	e.dependents = make([][]int, len(p.Operations))
	for i, op := range p.Operations {
		st := &opState{op: op}
		st.remaining.Store(int32(len(op.DependsOn)))
		e.states[i] = st
		for _, dep := range op.DependsOn {
			e.dependents[dep] = append(e.dependents[dep], i)
		}
	}
	return e
}

// setValue records the live attribute object for a resource.
func (e *Executor) setValue(a addr.Address, v cty.Value) {
	e.valuesMu.Lock()
	defer e.valuesMu.Unlock()
	e.values[a] = v
}

// snapshotValues copies the live value map for expression evaluation.
func (e *Executor) snapshotValues() map[addr.Address]cty.Value {
	e.valuesMu.Lock()
	defer e.valuesMu.Unlock()
	out := make(map[addr.Address]cty.Value, len(e.values))
	for a, v := range e.values {
		out[a] = v
	}
	return out
}
