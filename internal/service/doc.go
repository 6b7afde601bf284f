// Package service runs the analyzer over a task queue with bounded concurrency.
//
// Overview
// The Supervisor owns one batch. It starts the Collector and the Dispatcher
// under an errgroup and returns when both are done.
//
// The Dispatcher feeds tasks to parallel.Map, which holds at most jobs permits.
// A permit is acquired before the Runner starts the analyzer and released when
// it returns. Outcomes are forwarded over an unbuffered channel, so the
// dispatcher knows whether the collector received each of them.
//
// Runner is a thin wrapper around os/exec:
//   - starts the analyzer in its own process group
//   - captures stdout and stderr into separate buffers
//   - waits for the exit in a goroutine, racing a deadline timer
//   - kills the whole group on deadline and reports model.TimedOut
//
// Data flow:
//
//	Supervisor        Dispatcher           Runner{cmd}          Collector
//	    |                 |                     |                    |
//	    | Dispatch() ---->| parallel.Map ------>| Start()            |
//	    |                 |                     | Wait() | deadline  |
//	    |                 |<---- Outcome -------|                    |
//	    |                 |---- TaskOutcome ------------------------>| classify
//	    |                 |                                          | write record
//	    |                 | close(stop) ---------------------------->| grace
//	    |<----------------|<-----------------------------------------|
//
// Invariants:
//   - At most jobs analyzer processes run at a time.
//   - Each executed task produces exactly one outcome.
//   - The Collector is the only writer of records.
//   - stop is closed once, after every Runner returned.
//   - The Collector stops after Grace once stopped. Without stop it gives up after
//     StallTimeout with ErrStalled, which cancels the remaining dispatch.
//
// Per task failures (a missing source, a timeout, a crash) never abort the
// batch. A failure to spawn the analyzer or to write a record does.
package service
