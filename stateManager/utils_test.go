package stateManager

import (
	"strconv"
	"testing"

	"pruntime/event"
	"pruntime/machine"
	"pruntime/scheduler"
	"pruntime/state"
)

var node = event.MachineID{Name: "Node", Index: 0}

// Creates a mock run where every state is reached by the delivery with the given id
func mockRun(ids ...int) []GlobalState {
	run := []GlobalState{{Machines: map[event.MachineID]MachineStatus{node: {State: "Init"}}}}
	for depth, id := range ids {
		choice := scheduler.Choice{
			Depth:   depth,
			Sender:  node,
			Target:  node,
			Event:   "tick",
			Message: event.EventId(strconv.Itoa(id)),
		}
		run = append(run, GlobalState{
			Machines: map[event.MachineID]MachineStatus{node: {State: "S" + strconv.Itoa(id)}},
			Choice:   &choice,
		})
	}
	return run
}

// Init --go--> Done
func goAutomaton(t *testing.T) *machine.Automaton {
	t.Helper()
	b := machine.NewBuilder("Node", state.NewAllocator())
	initial := b.State("Init", nil)
	done := b.State("Done", nil)
	b.On(initial, "go", func(ctx *machine.Context, msg event.Message) error {
		ctx.Goto(done)
		return nil
	})
	a, err := b.Build()
	if err != nil {
		t.Fatalf("Unexpected error building automaton: %v", err)
	}
	return a
}
