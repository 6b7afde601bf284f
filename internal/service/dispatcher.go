package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/fiesta-bench/fiesta-runner/internal/log"
	"github.com/fiesta-bench/fiesta-runner/internal/model"
	"github.com/fiesta-bench/fiesta-runner/internal/parallel"
)

// Executor runs one task to a single outcome. Runner is the production implementation.
type Executor interface {
	Run(ctx context.Context, task model.ContractTask) (model.Outcome, error)
	Deadline() time.Duration
}

// DispatchStats describes what the dispatcher did with the task queue.
type DispatchStats struct {
	// Dispatched counts outcomes produced by the executor
	Dispatched int `yaml:"dispatched"`
	// Skipped counts tasks without an analyzable source
	Skipped int `yaml:"skipped"`
	// Dropped counts outcomes the collector was not there to receive
	Dropped     int `yaml:"dropped"`
	MaxInFlight int `yaml:"max_in_flight"`
}

// Dispatcher is the concurrency gate between the task queue and the collector.
// It never looks into outcomes.
type Dispatcher struct {
	exec Executor
	jobs int
}

func NewDispatcher(exec Executor, jobs int) *Dispatcher {
	if jobs <= 0 {
		jobs = 1
	}
	return &Dispatcher{exec: exec, jobs: jobs}
}

// Dispatch runs every task with at most jobs executions in flight and forwards
// each outcome to outcomes. The send gives up when collectorDone gets closed,
// such outcome is logged and dropped. stop is closed exactly once, after every
// execution returned.
//
// A spawn failure is returned as an error and stops taking new tasks.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	tasks []model.ContractTask,
	outcomes chan<- model.TaskOutcome,
	collectorDone <-chan struct{},
	stop chan<- struct{},
) (stats DispatchStats, err error) {
	defer close(stop)

	pmap := parallel.NewMap(d.jobs, d.run)
	defer func() {
		stats.MaxInFlight = pmap.MaxInFlight()
	}()

	for outcome, err := range pmap.Iter(ctx, slices.Values(tasks)) {
		tctx := log.ContextAttrs(ctx, outcome.Task.LogAttrs()...)
		switch {
		case err == nil:
		case errors.Is(err, model.ErrContractNotFound), errors.Is(err, model.ErrNoSource):
			slog.WarnContext(tctx, "task skipped", "error", err)
			stats.Skipped++
			continue
		case ctx.Err() != nil:
			return stats, ctx.Err()
		default:
			return stats, fmt.Errorf("running %s: %w", outcome.Task.BytecodeHash, err)
		}

		stats.Dispatched++
		select {
		case outcomes <- outcome:
		case <-collectorDone:
			slog.ErrorContext(tctx, "outcome not delivered: collector has exited", "elapsed", outcome.Outcome.Duration().String())
			stats.Dropped++
		case <-ctx.Done():
			return stats, ctx.Err()
		}
	}
	return stats, ctx.Err()
}

func (d *Dispatcher) run(ctx context.Context, task model.ContractTask) (model.TaskOutcome, error) {
	ctx = log.ContextAttrs(ctx, task.LogAttrs()...)
	outcome, err := d.exec.Run(ctx, task)
	return model.TaskOutcome{Task: task, Outcome: outcome}, err
}
