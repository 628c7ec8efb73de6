package app

import (
	"context"
	"fmt"

	"github.com/vk/converge/internal/config"
	"github.com/vk/converge/internal/ctxlog"
	"github.com/vk/converge/internal/diff"
	"github.com/vk/converge/internal/executor"
	"github.com/vk/converge/internal/graph"
	"github.com/vk/converge/internal/plan"
)

// ApproveFunc decides whether an apply may proceed after the plan has been
// presented. A nil ApproveFunc means auto-approve.
type ApproveFunc func(p *plan.Plan) (bool, error)

// Plan builds and returns a plan without executing anything. The state lock
// is held for the duration so the plan is computed against a stable snapshot.
func (a *App) Plan(ctx context.Context, destroy bool) (*plan.Plan, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	if err := a.store.Lock(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = a.store.Unlock() }()

	p, _, _, err := a.planLocked(ctx, destroy)
	return p, err
}

// Validate runs only the build-time pipeline: load, graph construction,
// cycle and reference checks. No state is read and nothing remote happens.
func (a *App) Validate(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	_, _, err := a.loadAndBuild(ctx)
	return err
}

// Graph builds and returns the validated resource dependency graph.
func (a *App) Graph(ctx context.Context) (*graph.Graph, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	_, g, err := a.loadAndBuild(ctx)
	return g, err
}

// Apply plans and executes. The plan is rendered to the output writer before
// approve is consulted; execution only starts on approval. The state lock is
// held across the whole operation.
func (a *App) Apply(ctx context.Context, destroy bool, approve ApproveFunc) (*executor.Result, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	if err := a.store.Lock(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = a.store.Unlock() }()

	p, _, model, err := a.planLocked(ctx, destroy)
	if err != nil {
		return nil, err
	}

	fmt.Fprint(a.outW, p.Render())

	if !p.HasChanges() {
		fmt.Fprintln(a.outW, "\nNo changes. The remote system matches the configuration.")
		if !destroy {
			if err := a.printOutputs(ctx, model); err != nil {
				return nil, err
			}
		}
		return &executor.Result{}, nil
	}

	if approve != nil {
		ok, err := approve(p)
		if err != nil {
			return nil, err
		}
		if !ok {
			fmt.Fprintln(a.outW, "\nApply cancelled.")
			return &executor.Result{}, nil
		}
	}

	exec := executor.New(p, a.providers, a.store, a.config.Parallelism)
	result, execErr := exec.Run(ctx)

	a.printResult(result)
	if execErr == nil && !destroy {
		if err := a.printOutputs(ctx, model); err != nil {
			return result, err
		}
	}
	return result, execErr
}

// planLocked runs the build-time pipeline and diffs against the (already
// locked) state store.
func (a *App) planLocked(ctx context.Context, destroy bool) (*plan.Plan, *graph.Graph, *config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	model, g, err := a.loadAndBuild(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	records, err := a.store.All()
	if err != nil {
		return nil, nil, nil, err
	}

	engine := diff.NewEngine(a.providers)
	changes, err := engine.Compute(ctx, g, records, destroy)
	if err != nil {
		return nil, nil, nil, err
	}

	p, err := plan.Build(ctx, g, changes)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Debug("Plan ready.", "operations", len(p.Operations))
	return p, g, model, nil
}

// loadAndBuild is the pure build-time pipeline shared by every operation.
func (a *App) loadAndBuild(ctx context.Context) (*config.Model, *graph.Graph, error) {
	logger := ctxlog.FromContext(ctx)

	model, err := a.loader.Load(ctx, a.config.ConfigDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger.Debug("Configuration loaded.", "resources", len(model.Resources))

	g, err := graph.Build(ctx, model)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Dependency graph built.", "node_count", len(g.Nodes))
	return model, g, nil
}

// printResult reports the terminal status of every executed operation.
func (a *App) printResult(result *executor.Result) {
	fmt.Fprintln(a.outW)
	for _, or := range result.Operations {
		line := fmt.Sprintf("%s: %s %s", or.Op.Addr, or.Op.Kind, or.Status)
		if or.Err != nil && or.Status == executor.StatusFailed {
			line += fmt.Sprintf(" (%v)", or.Err)
		}
		fmt.Fprintln(a.outW, line)
	}

	counts := result.Counts()
	fmt.Fprintf(a.outW, "\nApply complete. Succeeded: %d, failed: %d, skipped: %d, cancelled: %d.\n",
		counts[executor.StatusSucceeded], counts[executor.StatusFailed],
		counts[executor.StatusSkipped], counts[executor.StatusCancelled])
}
