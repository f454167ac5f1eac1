package scheduler

import (
	"fmt"
	"strings"

	"pruntime/event"
)

// A delivery made by the scheduler.
//
// Message is the id of the delivered message. Choices without a message id, e.g. those translated from a containment witness,
// match any message with the same sender, target and event.
// Unhandled is set when the target had no handler for the event. It is not part of matching; a replay compares it after the delivery.
type Choice struct {
	Depth     int
	Sender    event.MachineID
	Target    event.MachineID
	Event     event.Name
	Message   event.EventId
	Unhandled bool
}

func (c Choice) String() string {
	if c.Unhandled {
		return fmt.Sprintf("%d: %v -%v-> %v (unhandled)", c.Depth, c.Sender, c.Event, c.Target)
	}
	return fmt.Sprintf("%d: %v -%v-> %v", c.Depth, c.Sender, c.Event, c.Target)
}

// Returns true if delivering the candidate reproduces the choice
func (c Choice) Matches(cand Candidate) bool {
	if c.Sender != cand.Sender {
		return false
	}
	if c.Message != "" {
		return c.Message == cand.Message.Id()
	}
	return c.Target == cand.Message.Target() && c.Event == cand.Message.Event()
}

// The depth ordered deliveries of a run
type Schedule []Choice

func (s Schedule) String() string {
	lines := make([]string, len(s))
	for i, c := range s {
		lines[i] = c.String()
	}
	return strings.Join(lines, "\n")
}

// Returns the index of the first candidate reproducing the choice, or -1
func find(c Choice, candidates []Candidate) int {
	for i, cand := range candidates {
		if c.Matches(cand) {
			return i
		}
	}
	return -1
}
