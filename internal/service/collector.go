package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fiesta-bench/fiesta-runner/internal/classify"
	"github.com/fiesta-bench/fiesta-runner/internal/log"
	"github.com/fiesta-bench/fiesta-runner/internal/model"
	"github.com/fiesta-bench/fiesta-runner/internal/report"
)

// Collector is the single consumer of outcomes. It classifies them, writes one
// record per outcome to every writer and prints the running statistics.
type Collector struct {
	// Grace is the idle time tolerated after the stop signal
	Grace time.Duration
	// StallTimeout is the idle time tolerated without the stop signal
	StallTimeout time.Duration

	classifier *classify.Classifier
	printer    *report.Printer
	writers    []model.RecordWriter
	tally      report.Tally
}

func NewCollector(classifier *classify.Classifier, printer *report.Printer, writers ...model.RecordWriter) *Collector {
	return &Collector{
		Grace:        DefaultGrace,
		StallTimeout: NoDeadline,
		classifier:   classifier,
		printer:      printer,
		writers:      writers,
	}
}

// ErrStalled is returned by Collect when no outcome arrived for StallTimeout
// before the stop signal.
var ErrStalled = errors.New("outcome stream stalled")

// Collect consumes outcomes until stop was closed and nothing arrived for Grace,
// or until nothing arrived for StallTimeout at all. The latter means the producer
// is stuck and returns ErrStalled. A closed outcomes channel counts as stop.
//
// A failed write is returned as an error, the run can't be recorded anymore.
func (c *Collector) Collect(ctx context.Context, outcomes <-chan model.TaskOutcome, stop <-chan struct{}) error {
	stopped := false
	idle := time.NewTimer(c.StallTimeout)
	defer idle.Stop()

	for {
		select {
		case o, ok := <-outcomes:
			if !ok {
				outcomes = nil
				stopped, stop = true, nil
				idle.Reset(c.Grace)
				continue
			}
			if err := c.record(ctx, o); err != nil {
				return err
			}
			if stopped {
				idle.Reset(c.Grace)
			} else {
				idle.Reset(c.StallTimeout)
			}
		case <-stop:
			stopped, stop = true, nil
			idle.Reset(c.Grace)
		case <-idle.C:
			if !stopped {
				slog.ErrorContext(ctx, "no outcome arrived in time: collector gives up", "stall_timeout", c.StallTimeout.String(), "recorded", c.tally.Total)
				return fmt.Errorf("idle for %s: %w", c.StallTimeout, ErrStalled)
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Tally returns the counters. Read it after Collect returned.
func (c *Collector) Tally() report.Tally {
	return c.tally
}

func (c *Collector) record(ctx context.Context, o model.TaskOutcome) error {
	ctx = log.ContextAttrs(ctx, o.Task.LogAttrs()...)
	exit := c.classifier.Outcome(o.Outcome)
	rec := model.ResultRecord{
		BytecodeHash: o.Task.BytecodeHash,
		Exit:         exit,
		Elapsed:      o.Outcome.Duration(),
		Source:       o.Task.SourceKind(),
	}

	var errs []error
	for _, w := range c.writers {
		if err := w.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("recording %s: %w", o.Task.BytecodeHash, err)
	}

	c.tally.Add(exit)
	if c.printer != nil {
		c.printer.Progress(c.tally)
	}
	slog.DebugContext(ctx, "outcome recorded", "result", model.ExitName(exit), "elapsed", rec.Elapsed.String())
	return nil
}
