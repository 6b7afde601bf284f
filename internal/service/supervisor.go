package service

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/fiesta-bench/fiesta-runner/internal/model"
	"github.com/fiesta-bench/fiesta-runner/internal/report"
)

// Summary is the outcome of a whole batch.
type Summary struct {
	Dispatch DispatchStats
	Tally    report.Tally
}

// Lost is the number of dispatched outcomes which were never recorded.
func (s Summary) Lost() int {
	return s.Dispatch.Dispatched - s.Tally.Total
}

// Supervisor runs the dispatcher and the collector of one batch and waits for both.
type Supervisor struct {
	dispatcher *Dispatcher
	collector  *Collector
}

// NewSupervisor wires a dispatcher of exec with collector. The stall timeout of
// the collector is derived from the deadline of exec, a healthy run never
// stays idle longer than one deadline plus StallSlack.
func NewSupervisor(exec Executor, jobs int, collector *Collector) *Supervisor {
	collector.StallTimeout = exec.Deadline() + StallSlack + collector.Grace
	return &Supervisor{
		dispatcher: NewDispatcher(exec, jobs),
		collector:  collector,
	}
}

// Run processes all tasks. It returns once the dispatcher has seen every
// execution return and the collector has recorded every outcome it received.
// Errors are the fatal ones: spawn failures, failed writes, a stalled collector
// and cancellation. Any of them stops the dispatch of remaining tasks.
func (s *Supervisor) Run(ctx context.Context, tasks []model.ContractTask) (Summary, error) {
	outcomes := make(chan model.TaskOutcome)
	stop := make(chan struct{})
	collected := make(chan struct{})

	var stats DispatchStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(collected)
		return s.collector.Collect(gctx, outcomes, stop)
	})
	g.Go(func() error {
		var err error
		stats, err = s.dispatcher.Dispatch(gctx, tasks, outcomes, collected, stop)
		return err
	})
	err := g.Wait()

	summary := Summary{Dispatch: stats, Tally: s.collector.Tally()}
	if lost := summary.Lost(); err == nil && lost != 0 {
		slog.ErrorContext(ctx, "not every outcome was recorded",
			"dispatched", stats.Dispatched,
			"recorded", summary.Tally.Total,
			"dropped", stats.Dropped,
		)
	}
	slog.DebugContext(ctx, "batch finished",
		"dispatched", stats.Dispatched,
		"skipped", stats.Skipped,
		"max_in_flight", stats.MaxInFlight,
	)
	return summary, err
}
