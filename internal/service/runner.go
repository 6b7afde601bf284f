package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/fiesta-bench/fiesta-runner/internal/model"
)

// NoDeadline substitutes a disabled deadline.
const NoDeadline = 365 * 24 * time.Hour

// Command is a prototype of the analyzer invocation. The source path of a task
// is inserted as the first argument, Args follow.
type Command struct {
	Path string
	Args []string
	Env  []string
	// Deadline of a single run, zero or negative means NoDeadline
	Deadline time.Duration
	// WaitDelay bounds the wait for output pipes after the process was killed
	WaitDelay time.Duration
}

// Runner is the process monitor: it runs the analyzer once per task and
// produces exactly one model.Outcome.
type Runner struct {
	cmd Command
}

func NewRunner(cmd Command) Runner {
	if cmd.Deadline <= 0 {
		cmd.Deadline = NoDeadline
	}
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = time.Second
	}
	return Runner{cmd: cmd}
}

func (r Runner) Deadline() time.Duration {
	return r.cmd.Deadline
}

// Run spawns the analyzer against the source path of the task and waits until it
// terminates or the deadline expires. On expiry the process group is killed and
// model.TimedOut is returned without looking at partial output.
//
// Errors:
//   - model.ErrSpawn if the binary cannot be started, fatal for the whole run
//   - model.ErrContractNotFound or model.ErrNoSource if the task has no usable source
//   - ctx.Err() if the run was canceled, the process is killed in that case
func (r Runner) Run(ctx context.Context, task model.ContractTask) (model.Outcome, error) {
	path, err := task.SourcePath()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(r.cmd.Path, append([]string{path}, r.cmd.Args...)...)
	if r.cmd.Env != nil {
		cmd.Env = append([]string(nil), r.cmd.Env...)
	}
	cmd.WaitDelay = r.cmd.WaitDelay
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrSpawn, err)
	}
	slog.DebugContext(ctx, "analyzer started", "pid", cmd.Process.Pid, "path", path)

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	deadline := time.NewTimer(r.cmd.Deadline)
	defer deadline.Stop()

	select {
	case err := <-done:
		elapsed := time.Since(started)
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			slog.WarnContext(ctx, "waiting for analyzer", "error", err)
		}
		slog.DebugContext(ctx, "analyzer finished", "elapsed", elapsed.String(), "exit_code", cmd.ProcessState.ExitCode())
		return model.Completed{
			Stdout:  stdout.String(),
			Stderr:  stderr.String(),
			Elapsed: elapsed,
		}, nil
	case <-deadline.C:
		kill(ctx, cmd)
		<-done
		elapsed := time.Since(started)
		slog.DebugContext(ctx, "analyzer killed on deadline", "elapsed", elapsed.String())
		return model.TimedOut{Elapsed: elapsed}, nil
	case <-ctx.Done():
		kill(ctx, cmd)
		<-done
		return nil, ctx.Err()
	}
}

func kill(ctx context.Context, cmd *exec.Cmd) {
	if err := killProcessGroup(cmd); err != nil {
		slog.DebugContext(ctx, "killing analyzer", "error", err)
	}
}
