package parallel

import (
	"context"
	"iter"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

type result[D any] struct {
	d D
	e error
}

// Map is a parallel mapping function, which runs mapFunc for every element of
// an input sequence with at most limit calls in flight. A permit is taken from
// the pool before the worker goroutine exists, so a long input never creates
// more than limit workers. Results are yielded in completion order.
//
//	for result, err := range parallel.NewMap(limit, mapFunc).Iter(ctx, input) {}
//
// Map is context aware: a canceled context stops taking new elements. Iter
// returns only after every started mapFunc returned, also when the consumer
// stops early.
type Map[E, D any] struct {
	limit       int
	permits     *semaphore.Weighted
	mapFunc     func(context.Context, E) (D, error)
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func NewMap[E, D any](limit int, mapFunc func(context.Context, E) (D, error)) *Map[E, D] {
	if limit <= 0 {
		limit = 1
	}
	return &Map[E, D]{
		limit:   limit,
		permits: semaphore.NewWeighted(int64(limit)),
		mapFunc: mapFunc,
	}
}

func (m *Map[E, D]) goWorkers(ctx context.Context, seq iter.Seq[E], mapped chan<- result[D]) {
	var g errgroup.Group
	for entry := range seq {
		if ctx.Err() != nil {
			break
		}
		if err := m.permits.Acquire(ctx, 1); err != nil {
			break
		}
		if ctx.Err() != nil {
			m.permits.Release(1)
			break
		}
		g.Go(func() error {
			m.enter()
			d, err := m.mapFunc(ctx, entry)
			m.leave()
			m.permits.Release(1)
			mapped <- result[D]{d: d, e: err}
			return nil
		})
	}
	_ = g.Wait()
	close(mapped)
}

func (m *Map[E, D]) Iter(parentCtx context.Context, seq iter.Seq[E]) iter.Seq2[D, error] {
	return func(yield func(D, error) bool) {
		ctx, cancel := context.WithCancel(parentCtx)
		mapped := make(chan result[D], m.limit)
		go m.goWorkers(ctx, seq, mapped)

		defer func() {
			cancel()
			for range mapped { // wait for running workers
			}
		}()

		for r := range mapped {
			if !yield(r.d, r.e) {
				return
			}
		}
	}
}

// InFlight returns the number of mapFunc calls running right now.
func (m *Map[E, D]) InFlight() int {
	return int(m.inFlight.Load())
}

// MaxInFlight returns the highest number of concurrent mapFunc calls observed.
func (m *Map[E, D]) MaxInFlight() int {
	return int(m.maxInFlight.Load())
}

func (m *Map[E, D]) enter() {
	n := m.inFlight.Add(1)
	for {
		peak := m.maxInFlight.Load()
		if n <= peak || m.maxInFlight.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (m *Map[E, D]) leave() {
	m.inFlight.Add(-1)
}
