package machine

import (
	"testing"

	"pruntime/event"
	"pruntime/state"
)

// Builds the automaton Init --go--> Waiting --ping--> Done where Init sends ping to itself on go
func pingAutomaton(t *testing.T) (*Automaton, map[string]*state.State) {
	t.Helper()
	b := NewBuilder("Pinger", state.NewAllocator())
	initial := b.State("Init", nil)
	waiting := b.State("Waiting", nil)
	done := b.State("Done", nil)
	b.On(initial, "go", func(ctx *Context, msg event.Message) error {
		ctx.Send(ctx.Self(), "ping", nil)
		ctx.Goto(waiting)
		return nil
	})
	b.On(waiting, "ping", func(ctx *Context, msg event.Message) error {
		ctx.Goto(done)
		return nil
	})
	a, err := b.Build()
	if err != nil {
		t.Fatalf("Unexpected error building automaton: %v", err)
	}
	return a, map[string]*state.State{"Init": initial, "Waiting": waiting, "Done": done}
}

type mockIDSource struct {
	next map[string]int
}

func (m *mockIDSource) NextID(name string) event.MachineID {
	if m.next == nil {
		m.next = map[string]int{}
	}
	id := event.MachineID{Name: name, Index: m.next[name]}
	m.next[name]++
	return id
}

func startedMachine(t *testing.T, a *Automaton, opts ...Option) *Machine {
	t.Helper()
	m := New(event.MachineID{Name: a.Name()}, a, opts...)
	if _, err := m.Start(); err != nil {
		t.Fatalf("Unexpected error starting machine: %v", err)
	}
	return m
}

func deliver(t *testing.T, m *Machine, ev event.Name) (Outcome, error) {
	t.Helper()
	if err := m.Enqueue(event.NewMessage(event.MachineID{}, 0, m.ID(), ev, nil)); err != nil {
		t.Fatalf("Unexpected error enqueueing %v: %v", ev, err)
	}
	return m.ProcessNext()
}
