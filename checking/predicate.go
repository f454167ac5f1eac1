package checking

import "pruntime/stateManager"

// A function evaluated on every explored state. Returns true if the property holds.
type Predicate func(s State) bool

// Returns a predicate that only evaluates pred on terminal states
func Eventually(pred Predicate) Predicate {
	return func(s State) bool {
		if !s.IsTerminal {
			return true
		}
		return pred(s)
	}
}

// Returns true if cond holds for every machine in the state.
// If skipHalted is true, halted machines are not checked.
func ForAllMachines(cond func(stateManager.MachineStatus) bool, s State, skipHalted bool) bool {
	for _, status := range s.Machines {
		if skipHalted && status.Halted {
			continue
		}
		if !cond(status) {
			return false
		}
	}
	return true
}

// Returns a condition that is true for machines in one of the named states
func InState(names ...string) func(stateManager.MachineStatus) bool {
	return func(status stateManager.MachineStatus) bool {
		for _, name := range names {
			if status.State == name {
				return true
			}
		}
		return false
	}
}
