package checking

import (
	"pruntime/event"
	"pruntime/scheduler"
	"pruntime/stateManager"
)

var (
	a = event.MachineID{Name: "A", Index: 0}
	b = event.MachineID{Name: "B", Index: 0}
)

func status(states map[event.MachineID]string, halted ...event.MachineID) map[event.MachineID]stateManager.MachineStatus {
	out := map[event.MachineID]stateManager.MachineStatus{}
	for id, s := range states {
		out[id] = stateManager.MachineStatus{State: s}
	}
	for _, id := range halted {
		st := out[id]
		st.Halted = true
		out[id] = st
	}
	return out
}

// Builds a state space from runs given as sequences of B's state names. A stays in Idle.
func space(runs ...[]string) stateManager.StateSpace {
	sm := stateManager.NewTreeStateManager()
	for _, names := range runs {
		rsm := sm.GetRunStateManager()
		rsm.Record(stateManager.GlobalState{Machines: status(map[event.MachineID]string{a: "Idle", b: "Init"})})
		for depth, name := range names {
			choice := scheduler.Choice{Depth: depth, Sender: a, Target: b, Event: event.Name(name)}
			rsm.Record(stateManager.GlobalState{
				Machines: status(map[event.MachineID]string{a: "Idle", b: name}),
				Choice:   &choice,
			})
		}
		rsm.EndRun()
	}
	return sm.State()
}
