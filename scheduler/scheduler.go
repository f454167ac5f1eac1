// Package scheduler orders message delivery across the machines of a run and records the resulting schedule.
package scheduler

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"pruntime/event"
)

var (
	ErrScheduleEnded    = errors.New("scheduler: The schedule has no further choices")
	ErrNoRuns           = errors.New("scheduler: No available new runs to be started")
	ErrReplayDivergence = errors.New("scheduler: Replay diverged from the recorded schedule")
	ErrUnknownMachine   = errors.New("scheduler: Unknown target machine")
	ErrFailed           = errors.New("scheduler: The run has failed")
	ErrInvalidChoice    = errors.New("scheduler: Policy chose a candidate that does not exist")
)

// A message that can be delivered next.
//
// Seq is the global order in which the pending messages were sent.
type Candidate struct {
	Sender  event.MachineID
	Message event.Message
	Seq     int
}

func (c Candidate) String() string {
	return fmt.Sprintf("%v: %v", c.Seq, c.Message)
}

// The choice made at some depth if the candidate is delivered
func (c Candidate) Choice(depth int) Choice {
	return Choice{
		Depth:   depth,
		Sender:  c.Sender,
		Target:  c.Message.Target(),
		Event:   c.Message.Event(),
		Message: c.Message.Id(),
	}
}

// Selects which candidate is delivered at a depth.
//
// Candidates are provided in a deterministic order: externally injected messages first, then machines in creation order.
// Choose returns the index of the selected candidate, ErrScheduleEnded if the policy does not make any further choices,
// or a ReplayDivergenceError if the policy follows a schedule that can no longer be reproduced.
type Policy interface {
	Choose(depth int, candidates []Candidate) (int, error)
}

// A Strategy manages the exploration of the state space over several runs.
//
// Each run is driven by its own RunPolicy. Run policies can be used from separate goroutines.
type Strategy interface {
	GetRunPolicy() RunPolicy
}

// A Policy used for a sequence of runs.
type RunPolicy interface {
	Policy
	// Prepare for starting a new run. Returns ErrNoRuns if all possible runs have been completed. May block until new runs are available.
	StartRun() error
	// Finish the current run. Always called after StartRun succeeded, even if the run failed.
	EndRun()
}

// Returned when a recorded choice is no longer available, or when delivering it no longer has the recorded outcome.
//
// Delivered is set in the second case. It is the choice as delivered by the replay, and Cause the error the delivery
// returned, if any.
type ReplayDivergenceError struct {
	Depth     int
	Expected  Choice
	Available []Choice
	Delivered *Choice
	Cause     error
}

func (e *ReplayDivergenceError) Error() string {
	if e.Delivered == nil {
		return fmt.Sprintf("scheduler: replay diverged at depth %d: expected %v, available %v", e.Depth, e.Expected, e.Available)
	}
	msg := fmt.Sprintf("scheduler: replay diverged at depth %d: expected %v, delivered %v", e.Depth, e.Expected, *e.Delivered)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ReplayDivergenceError) Unwrap() error {
	return ErrReplayDivergence
}

func divergence(depth int, expected Choice, candidates []Candidate) error {
	available := make([]Choice, len(candidates))
	for i, c := range candidates {
		available[i] = c.Choice(depth)
	}
	return &ReplayDivergenceError{
		Depth:     depth,
		Expected:  expected,
		Available: available,
	}
}
