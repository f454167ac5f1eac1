// Package checking verifies predicates over an explored state space.
package checking

import (
	"pruntime/scheduler"
	"pruntime/stateManager"
)

// The Checker verifies that properties hold for the state space.
type Checker interface {
	Check(root stateManager.StateSpace) CheckerResponse
}

// CheckerResponse is the result of checking a state space.
type CheckerResponse interface {
	// Returns true if all properties hold, and a description of the result.
	// The description names the violated property and the run that violated it.
	Response() (bool, string)

	// Returns the run that violated a property as a schedule that can be replayed.
	// Returns an empty schedule if all properties hold.
	Export() scheduler.Schedule
}
