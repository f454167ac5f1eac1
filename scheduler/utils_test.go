package scheduler

import (
	"testing"

	"pruntime/event"
	"pruntime/machine"
	"pruntime/state"
)

// Init --go--> Waiting --ping--> Done where Init sends ping to itself on go
func pingAutomaton(t *testing.T) (*machine.Automaton, map[string]*state.State) {
	t.Helper()
	b := machine.NewBuilder("Pinger", state.NewAllocator())
	initial := b.State("Init", nil)
	waiting := b.State("Waiting", nil)
	done := b.State("Done", nil)
	b.On(initial, "go", func(ctx *machine.Context, msg event.Message) error {
		ctx.Send(ctx.Self(), "ping", nil)
		ctx.Goto(waiting)
		return nil
	})
	b.On(waiting, "ping", func(ctx *machine.Context, msg event.Message) error {
		ctx.Goto(done)
		return nil
	})
	a, err := b.Build()
	if err != nil {
		t.Fatalf("Unexpected error building automaton: %v", err)
	}
	return a, map[string]*state.State{"Init": initial, "Waiting": waiting, "Done": done}
}

// A sink recording the sources of the hits it receives
type sink struct {
	received []event.MachineID
}

func (s *sink) automaton(t *testing.T, alloc *state.Allocator) *machine.Automaton {
	t.Helper()
	b := machine.NewBuilder("Sink", alloc)
	st := b.State("Receiving", nil)
	b.On(st, "hit", func(ctx *machine.Context, msg event.Message) error {
		src, _ := msg.Source()
		s.received = append(s.received, src)
		return nil
	})
	a, err := b.Build()
	if err != nil {
		t.Fatalf("Unexpected error building automaton: %v", err)
	}
	return a
}

// A machine sending n hits to the target when it starts
func hitter(t *testing.T, alloc *state.Allocator, target event.MachineID, n int) *machine.Automaton {
	t.Helper()
	b := machine.NewBuilder("Hitter", alloc)
	st := b.State("Start", nil)
	b.OnEntry(st, func(ctx *machine.Context, msg event.Message) error {
		for i := 0; i < n; i++ {
			ctx.Send(target, "hit", i)
		}
		return nil
	})
	a, err := b.Build()
	if err != nil {
		t.Fatalf("Unexpected error building automaton: %v", err)
	}
	return a
}

// Creates a sink and the given number of hitters, each sending hits hits
func hitProgram(t *testing.T, s *Scheduler, hitters, hits int) *sink {
	t.Helper()
	alloc := state.NewAllocator()
	snk := &sink{}
	id, err := s.Create(snk.automaton(t, alloc))
	if err != nil {
		t.Fatalf("Unexpected error creating sink: %v", err)
	}
	h := hitter(t, alloc, id, hits)
	for i := 0; i < hitters; i++ {
		if _, err := s.Create(h); err != nil {
			t.Fatalf("Unexpected error creating hitter: %v", err)
		}
	}
	return snk
}
