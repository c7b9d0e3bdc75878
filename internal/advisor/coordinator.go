// Package advisor 协调单次评估：构建初始状态、执行任务图并整理对外结果。
package advisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stockadvisor/internal/logger"
	"stockadvisor/internal/types"
	"stockadvisor/internal/workflow"
)

// RunError reports a failed evaluation; Node is empty when the failure is not tied to one step.
type RunError struct {
	RunID string
	Node  workflow.NodeID
	Err   error
}

func (e *RunError) Error() string {
	if e == nil {
		return ""
	}
	if e.Node == "" {
		return fmt.Sprintf("run %s failed: %v", e.RunID, e.Err)
	}
	return fmt.Sprintf("run %s failed at %s: %v", e.RunID, e.Node, e.Err)
}

func (e *RunError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Override is the guardrail's replacement answer.
type Override struct {
	Action    types.Action
	Reasoning string
}

// Result is the shaped answer for one evaluation.
type Result struct {
	RunID     string
	Ticker    string
	Action    types.Action
	Reasoning string
	Sources   []types.Source
	Override  *Override
}

// Runner executes the task graph for one run.
type Runner interface {
	Run(ctx context.Context, st workflow.RunState) (workflow.RunState, error)
}

type Coordinator struct {
	runner     Runner
	runTimeout time.Duration
	newID      func() string
}

type Option func(*Coordinator)

// WithRunTimeout bounds a whole evaluation; zero disables the bound.
func WithRunTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.runTimeout = d }
}

// WithIDGenerator replaces uuid run ids, mostly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.newID = fn
		}
	}
}

func NewCoordinator(runner Runner, opts ...Option) *Coordinator {
	c := &Coordinator{runner: runner, newID: uuid.NewString}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Evaluate runs the graph for req. A triggered guardrail is not an error.
func (c *Coordinator) Evaluate(ctx context.Context, req types.Request) (Result, error) {
	runID := c.newID()
	if c.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.runTimeout)
		defer cancel()
	}

	final, err := c.runner.Run(ctx, workflow.NewRunState(runID, req))
	if err != nil {
		rerr := &RunError{RunID: runID, Err: err}
		var ne *workflow.NodeError
		if errors.As(err, &ne) {
			rerr.Node = ne.Node
			rerr.Err = ne.Err
		}
		logger.With("run_id", runID, "ticker", req.Ticker, "node", string(rerr.Node)).
			Error("[advisor] run failed", "err", rerr.Err)
		return Result{}, rerr
	}
	if final.Recommendation == nil || final.Guardrail == nil {
		return Result{}, &RunError{RunID: runID, Err: fmt.Errorf("run finished without a recommendation")}
	}

	res := Result{
		RunID:     runID,
		Ticker:    req.Ticker,
		Action:    final.Recommendation.Action,
		Reasoning: final.Recommendation.Reasoning,
	}
	if final.NewsSummary != nil {
		res.Sources = final.NewsSummary.Sources
	}
	if final.Guardrail.Triggered {
		res.Override = &Override{Action: final.Guardrail.EffectiveAction, Reasoning: final.Guardrail.Reason}
	}
	return res, nil
}

// EffectiveAction is the action the caller should act on.
func (r Result) EffectiveAction() types.Action {
	if r.Override != nil {
		return r.Override.Action
	}
	return r.Action
}
