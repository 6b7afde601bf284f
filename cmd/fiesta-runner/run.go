package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fiesta-bench/fiesta-runner/internal/classify"
	"github.com/fiesta-bench/fiesta-runner/internal/corpus"
	"github.com/fiesta-bench/fiesta-runner/internal/log"
	"github.com/fiesta-bench/fiesta-runner/internal/model"
	"github.com/fiesta-bench/fiesta-runner/internal/report"
	"github.com/fiesta-bench/fiesta-runner/internal/service"
	"github.com/fiesta-bench/fiesta-runner/internal/sink"
)

func doRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if config.Corpus == "" {
		return errNoCorpus
	}
	if err := corpus.Check(config.Corpus); err != nil {
		return err
	}

	attrs := slog.Group("fiesta",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	tasks, stats, err := corpus.Tasks(ctx, config.Corpus, corpus.Options{
		Compiler: model.Get(config.Compiler),
		Skip:     model.Get(config.Skip),
		Max:      model.Get(config.MaxTasks),
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "corpus loaded",
		"items", stats.Items,
		"tasks", stats.Tasks,
		"unsupported", stats.Unsupported,
		"unresolved", stats.Unresolved,
	)

	results, err := sink.NewCSV(model.Get(config.Output))
	if err != nil {
		return err
	}
	writers := []model.RecordWriter{results}
	if dir := config.TriageDir(); dir != "" {
		var triage model.RecordWriteCloser
		triage, err = sink.NewTriage(dir)
		if err != nil {
			return err
		}
		defer func() {
			if err := triage.Close(); err != nil {
				slog.ErrorContext(ctx, "closing triage", "error", err)
			}
		}()
		writers = append(writers, triage)
	}

	printer := report.NewPrinter(os.Stdout)
	printer.Beginning(len(tasks))

	collector := service.NewCollector(classify.New(), printer, writers...)
	runner := service.NewRunner(service.CommandFor(config))
	supervisor := service.NewSupervisor(runner, model.Get(config.Jobs), collector)

	summary := report.NewRunSummary(config, started)
	done, runErr := supervisor.Run(ctx, tasks)
	printer.Final(done.Tally)

	summary = summary.WithTally(done.Tally)
	summary.Finished = time.Now().UTC()
	summary.Corpus = stats
	summary.Dispatched = done.Dispatch.Dispatched
	summary.Skipped = done.Dispatch.Skipped
	summary.Dropped = done.Dispatch.Dropped

	summaryPath := report.SummaryPath(results.Path())
	if err := summary.Write(summaryPath); err != nil {
		return errors.Join(runErr, err)
	}
	slog.InfoContext(ctx, "run finished",
		"run_id", summary.RunID,
		"results", results.Path(),
		"summary", summaryPath,
	)
	if runErr != nil {
		return fmt.Errorf("run %s: %w", summary.RunID, runErr)
	}
	return nil
}
