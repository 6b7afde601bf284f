package model

import "time"

// Outcome is the raw result of running one task: Completed or TimedOut.
type Outcome interface {
	Duration() time.Duration
	outcome()
}

// Completed means the analyzer terminated on its own before the deadline.
type Completed struct {
	Stdout  string
	Stderr  string
	Elapsed time.Duration
}

// TimedOut means the analyzer was killed at the deadline. Its output was discarded.
type TimedOut struct {
	Elapsed time.Duration
}

func (o Completed) Duration() time.Duration { return o.Elapsed }
func (o TimedOut) Duration() time.Duration  { return o.Elapsed }

func (Completed) outcome() {}
func (TimedOut) outcome()  {}

// TaskOutcome is an Outcome tagged with its originating task.
type TaskOutcome struct {
	Task    ContractTask
	Outcome Outcome
}
