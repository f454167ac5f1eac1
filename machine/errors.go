package machine

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"pruntime/event"
)

var (
	ErrTargetMismatch  = errors.New("machine: message is addressed to another machine")
	ErrUnhandledEvent  = errors.New("machine: unhandled event")
	ErrMachineHalted   = errors.New("machine: machine is halted")
	ErrNotStarted      = errors.New("machine: machine has not been started")
	ErrAlreadyStarted  = errors.New("machine: machine has already been started")
	ErrEmptyMailbox    = errors.New("machine: mailbox is empty")
	ErrHandlerPanic    = errors.New("machine: handler panicked")
	ErrTransitionLimit = errors.New("machine: transition limit exceeded")
	ErrUnknownState    = errors.New("machine: state does not belong to the automaton")
	ErrNoIDSource      = errors.New("machine: machine can not create other machines")
)

// Returned when a machine receives an event it has no handler for in its current state.
//
// The machine is left in State.
type UnhandledEventError struct {
	Machine event.MachineID
	State   string
	Event   event.Name
}

func (e *UnhandledEventError) Error() string {
	return fmt.Sprintf("machine: %v received unhandled event %v in state %v", e.Machine, e.Event, e.State)
}

func (e *UnhandledEventError) Unwrap() error {
	return ErrUnhandledEvent
}
