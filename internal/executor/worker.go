package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vk/converge/internal/ctxlog"
)

// Run executes the plan and blocks until every operation reaches a terminal
// state. The returned Result always describes all operations; the error is
// non-nil when any of them ended in Failed, Skipped or Cancelled.
func (e *Executor) Run(ctx context.Context) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	if err := e.seedValues(); err != nil {
		return nil, err
	}

	readyChan := make(chan *opState, len(e.states))

	rootCount := 0
	for _, st := range e.states {
		if st.remaining.Load() == 0 {
			readyChan <- st
			rootCount++
		}
	}
	logger.Debug("Executor initialized.", "operations", len(e.states), "roots", rootCount, "workers", e.workers)

	e.wg.Add(len(e.states))
	for i := 0; i < e.workers; i++ {
		go e.worker(ctx, readyChan, i)
	}

	e.wg.Wait()
	close(readyChan)

	return e.collect(ctx)
}

// worker is the core processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *opState, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for st := range readyChan {
		opLogger := logger.With("workerID", workerID, "op", st.op.Kind.String(), "addr", st.op.Addr)

		if ctx.Err() != nil {
			// A user abort cancels everything that has not started yet.
			e.finish(ctx, st, StatusCancelled, ctx.Err())
			e.cascade(ctx, st, StatusCancelled)
			continue
		}

		opLogger.Debug("Worker picked up operation.")
		st.status.Store(int32(StatusInProgress))

		err := e.execute(ctx, st)
		if err != nil {
			opLogger.Error("Operation failed.", "error", err)
			e.finish(ctx, st, StatusFailed, err)
			e.cascade(ctx, st, StatusSkipped)
			continue
		}

		opLogger.Debug("Operation succeeded.")
		e.finish(ctx, st, StatusSucceeded, nil)

		for _, depIdx := range e.dependents[st.op.Index] {
			dependent := e.states[depIdx]
			if dependent.remaining.Add(-1) == 0 {
				opLogger.Debug("Unlocking dependent operation.", "dependent", dependent.op.Addr)
				readyChan <- dependent
			}
		}
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// finish stores the terminal status for an operation exactly once.
func (e *Executor) finish(ctx context.Context, st *opState, status Status, err error) {
	st.finishOnce.Do(func() {
		st.err = err
		st.status.Store(int32(status))
		e.wg.Done()
	})
}

// cascade marks the whole dependent subtree of an operation with the given
// terminal status. Skipped and cancelled operations never enter the ready
// channel, so their WaitGroup slots are released here.
func (e *Executor) cascade(ctx context.Context, st *opState, status Status) {
	logger := ctxlog.FromContext(ctx)
	for _, depIdx := range e.dependents[st.op.Index] {
		dependent := e.states[depIdx]
		dependent.finishOnce.Do(func() {
			logger.Warn("Abandoning dependent operation.",
				"addr", dependent.op.Addr, "status", status.String(), "upstream", st.op.Addr)
			dependent.err = fmt.Errorf("%s: upstream operation on %s did not succeed", strings.ToLower(status.String()), st.op.Addr)
			dependent.status.Store(int32(status))
			e.wg.Done()
			e.cascade(ctx, dependent, status)
		})
	}
}

// seedValues loads the last-applied attribute objects so that expressions
// over unchanged resources evaluate without touching the remote API.
func (e *Executor) seedValues() error {
	records, err := e.store.All()
	if err != nil {
		return err
	}
	for a, rec := range records {
		e.values[a] = rec.Attributes
	}
	return nil
}

// collect builds the final Result and the aggregate error.
func (e *Executor) collect(ctx context.Context) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	result := &Result{Operations: make([]OperationResult, len(e.states))}
	var failedAddrs []string
	var rootCause error

	for i, st := range e.states {
		status := Status(st.status.Load())
		result.Operations[i] = OperationResult{Op: st.op, Status: status, Err: st.err}

		if status == StatusFailed {
			logger.Error("Operation ended in failure.", "addr", st.op.Addr, "error", st.err)
			failedAddrs = append(failedAddrs, st.op.Addr.String())
			if rootCause == nil {
				rootCause = st.err
			}
		}
	}

	switch {
	case rootCause != nil:
		return result, fmt.Errorf("apply failed for %s: %w", strings.Join(failedAddrs, ", "), rootCause)
	case result.Failed():
		return result, errors.New("apply aborted before all operations completed")
	default:
		return result, nil
	}
}
