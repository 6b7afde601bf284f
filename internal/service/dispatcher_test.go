package service_test

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fiesta-bench/fiesta-runner/internal/model"
	"github.com/fiesta-bench/fiesta-runner/internal/service"
)

// receive collects hashes until stop is closed, then closes done.
func receive(outcomes <-chan model.TaskOutcome, stop <-chan struct{}, done chan<- struct{}, got *[]string) {
	defer close(done)
	for {
		select {
		case o := <-outcomes:
			*got = append(*got, o.Task.BytecodeHash)
		case <-stop:
			return
		}
	}
}

func TestDispatch(t *testing.T) {
	t.Parallel()

	sleeper := sleepExec(time.Second)
	failing := func(fail string, err error) execFunc {
		return func(ctx context.Context, task model.ContractTask) (model.Outcome, error) {
			if task.BytecodeHash == fail {
				return nil, err
			}
			return sleeper(ctx, task)
		}
	}

	type given struct {
		exec service.Executor
		jobs int
	}
	type then struct {
		got     []string
		stats   service.DispatchStats
		err     error
		elapsed time.Duration
	}

	var testCases = []struct {
		scenario string
		given    given
		then     then
	}{
		{
			scenario: "one job",
			given:    given{sleeper, 1},
			then: then{
				got:     []string{"a1", "a2", "a3", "a4", "a5", "a6"},
				stats:   service.DispatchStats{Dispatched: 6, MaxInFlight: 1},
				elapsed: 6 * time.Second,
			},
		},
		{
			scenario: "two jobs",
			given:    given{sleeper, 2},
			then: then{
				got:     []string{"a1", "a2", "a3", "a4", "a5", "a6"},
				stats:   service.DispatchStats{Dispatched: 6, MaxInFlight: 2},
				elapsed: 3 * time.Second,
			},
		},
		{
			scenario: "more jobs than tasks",
			given:    given{sleeper, 100},
			then: then{
				got:     []string{"a1", "a2", "a3", "a4", "a5", "a6"},
				stats:   service.DispatchStats{Dispatched: 6, MaxInFlight: 6},
				elapsed: time.Second,
			},
		},
		{
			scenario: "missing contract is skipped",
			given:    given{failing("a3", fmt.Errorf("resolving source of a3: %w", model.ErrContractNotFound)), 1},
			then: then{
				got:     []string{"a1", "a2", "a4", "a5", "a6"},
				stats:   service.DispatchStats{Dispatched: 5, Skipped: 1, MaxInFlight: 1},
				elapsed: 5 * time.Second,
			},
		},
		{
			scenario: "spawn failure is fatal",
			given:    given{failing("a3", fmt.Errorf("%w: permission denied", model.ErrSpawn)), 1},
			then: then{
				got:     []string{"a1", "a2"},
				stats:   service.DispatchStats{Dispatched: 2, MaxInFlight: 1},
				err:     model.ErrSpawn,
				elapsed: 2 * time.Second,
			},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			synctest.Test(t, func(t *testing.T) {
				outcomes := make(chan model.TaskOutcome)
				stop := make(chan struct{})
				done := make(chan struct{})
				var got []string
				go receive(outcomes, stop, done, &got)

				start := time.Now()
				d := service.NewDispatcher(tt.given.exec, tt.given.jobs)
				stats, err := d.Dispatch(t.Context(), tasks("a1", "a2", "a3", "a4", "a5", "a6"), outcomes, done, stop)
				<-done
				if tt.then.err != nil {
					require.ErrorIs(t, err, tt.then.err)
				} else {
					require.NoError(t, err)
				}
				require.Equal(t, tt.then.elapsed, time.Since(start))
				require.Equal(t, tt.then.stats, stats)
				sort.Strings(got)
				require.Equal(t, tt.then.got, got)
			})
		})
	}
}

func TestDispatchDropped(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		outcomes := make(chan model.TaskOutcome)
		stop := make(chan struct{})
		gone := make(chan struct{})
		close(gone)

		d := service.NewDispatcher(sleepExec(time.Second), 2)
		stats, err := d.Dispatch(t.Context(), tasks("a1", "a2", "a3"), outcomes, gone, stop)
		require.NoError(t, err)
		require.Equal(t, 3, stats.Dispatched)
		require.Equal(t, 3, stats.Dropped)
		select {
		case <-stop:
		default:
			t.Fatal("stop must be closed")
		}
	})
}

func TestDispatchCanceled(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 1500*time.Millisecond)
		defer cancel()
		outcomes := make(chan model.TaskOutcome)
		stop := make(chan struct{})
		done := make(chan struct{})
		var got []string
		go receive(outcomes, stop, done, &got)

		d := service.NewDispatcher(sleepExec(time.Second), 1)
		_, err := d.Dispatch(ctx, tasks("a1", "a2", "a3"), outcomes, done, stop)
		<-done
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Equal(t, []string{"a1"}, got)
	})
}
