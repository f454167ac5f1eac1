package simulator

import (
	"fmt"

	"pruntime/scheduler"
)

// The error of a single failed run.
//
// Schedule holds the deliveries made before the failure and can be replayed to reproduce it.
type RunError struct {
	Schedule scheduler.Schedule
	Err      error
}

func (re *RunError) Error() string {
	return fmt.Sprintf("simulator: run failed at depth %d: %v", len(re.Schedule), re.Err)
}

func (re *RunError) Unwrap() error {
	return re.Err
}

// Aggregates the errors of the runs that failed during a simulation with ignoreErrors enabled
type SimulationError struct {
	Errors []error
}

func (se *SimulationError) Error() string {
	return fmt.Sprintf("simulator: %v errors occurred simulating runs.\nError 1: %v", len(se.Errors), se.Errors[0])
}

func (se *SimulationError) Unwrap() []error {
	return se.Errors
}
