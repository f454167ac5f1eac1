package checking

import (
	"pruntime/event"
	"pruntime/stateManager"
)

// The state of the program at some point of a run, as seen by a predicate
type State struct {
	Machines map[event.MachineID]stateManager.MachineStatus
	// True if some run ended in this state
	IsTerminal bool
	// The states leading to and including this one
	Sequence []stateManager.GlobalState
}
