package executor

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/converge/internal/ctxlog"
	"github.com/vk/converge/internal/exprs"
	"github.com/vk/converge/internal/plan"
	"github.com/vk/converge/internal/provider"
	"github.com/vk/converge/internal/state"
)

// execute performs one planned operation against the provider API and, on
// success, persists the state change before returning. Remote calls receive
// a context detached from the run's cancellation so an abort never leaves a
// remote resource in an undefined half-mutated state.
func (e *Executor) execute(ctx context.Context, st *opState) error {
	op := st.op
	cs := op.Change

	prov, err := e.providers.For(op.Addr)
	if err != nil {
		return err
	}
	apiCtx := context.WithoutCancel(ctx)

	switch op.Kind {
	case plan.OpCreate, plan.OpCreateReplacement:
		desired, err := e.evalDesired(ctx, st)
		if err != nil {
			return err
		}
		var inst *provider.Instance
		err = e.callWithRetry(apiCtx, func() error {
			var callErr error
			inst, callErr = prov.Create(apiCtx, op.Addr.Type, desired)
			return callErr
		})
		if err != nil {
			return err
		}
		return e.persistInstance(ctx, st, inst)

	case plan.OpUpdate:
		desired, err := e.evalDesired(ctx, st)
		if err != nil {
			return err
		}
		var inst *provider.Instance
		err = e.callWithRetry(apiCtx, func() error {
			var callErr error
			inst, callErr = prov.Update(apiCtx, op.Addr.Type, cs.PriorID, desired)
			return callErr
		})
		if err != nil {
			return err
		}
		return e.persistInstance(ctx, st, inst)

	case plan.OpDestroy:
		err := e.callWithRetry(apiCtx, func() error {
			return prov.Delete(apiCtx, op.Addr.Type, cs.PriorID)
		})
		if err != nil {
			return err
		}
		if err := e.store.Remove(op.Addr); err != nil {
			return fmt.Errorf("persisting removal of %s: %w", op.Addr, err)
		}
		e.setValue(op.Addr, cty.NilVal)
		return nil

	case plan.OpDestroyOriginal:
		// The state record already describes the replacement instance;
		// only the prior remote object goes away.
		return e.callWithRetry(apiCtx, func() error {
			return prov.Delete(apiCtx, op.Addr.Type, cs.PriorID)
		})

	default:
		return fmt.Errorf("internal: unhandled operation kind %v", op.Kind)
	}
}

// evalDesired re-evaluates the resource's attribute expressions against the
// live values of everything applied so far. By the time an operation runs,
// all of its dependencies have succeeded, so the result must be wholly
// known; anything else is an internal ordering violation.
func (e *Executor) evalDesired(ctx context.Context, st *opState) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)
	res := st.op.Change.Resource
	if res == nil {
		return cty.NilVal, fmt.Errorf("internal: operation %s on %s has no configuration", st.op.Kind, st.op.Addr)
	}

	evalCtx := exprs.BuildEvalContext(e.snapshotValues())
	desired, err := exprs.EvalResource(res, evalCtx)
	if err != nil {
		return cty.NilVal, err
	}
	if !desired.IsWhollyKnown() {
		return cty.NilVal, fmt.Errorf("internal: desired attributes of %s still contain unknown values at execution time", st.op.Addr)
	}
	logger.Debug("Evaluated desired attributes.", "addr", st.op.Addr)
	return desired, nil
}

// persistInstance writes the post-apply record and publishes the live value.
// The record is durable before any dependent operation can start.
func (e *Executor) persistInstance(ctx context.Context, st *opState, inst *provider.Instance) error {
	cs := st.op.Change
	rec := &state.Record{
		Addr:                st.op.Addr,
		ID:                  inst.ID,
		Attributes:          inst.Attributes,
		CreateBeforeDestroy: cs.Lifecycle.CreateBeforeDestroy,
		PreventDestroy:      cs.Lifecycle.PreventDestroy,
		Dependencies:        cs.Dependencies,
	}
	if err := e.store.Put(st.op.Addr, rec); err != nil {
		return fmt.Errorf("persisting state for %s: %w", st.op.Addr, err)
	}
	e.setValue(st.op.Addr, inst.Attributes)
	return nil
}
