package simulator

import (
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"

	"pruntime/event"
	"pruntime/machine"
	"pruntime/scheduler"
	"pruntime/state"
)

var errOutOfOrder = errors.New("b arrived before a")

// A sink that expects a before b, and two machines racing to send them
type race struct {
	sink    *machine.Automaton
	senders []*machine.Automaton
	// Number of times the program was set up
	runs atomic.Int64
}

func newRace(t *testing.T) *race {
	t.Helper()
	alloc := state.NewAllocator()
	b := machine.NewBuilder("Sink", alloc)
	waiting := b.State("Waiting", nil)
	gotA := b.State("GotA", nil)
	done := b.State("Done", nil)
	b.On(waiting, "a", func(ctx *machine.Context, msg event.Message) error {
		ctx.Goto(gotA)
		return nil
	})
	b.On(waiting, "b", func(ctx *machine.Context, msg event.Message) error {
		return errOutOfOrder
	})
	b.On(gotA, "b", func(ctx *machine.Context, msg event.Message) error {
		ctx.Goto(done)
		return nil
	})
	sink, err := b.Build()
	if err != nil {
		t.Fatalf("Unexpected error building automaton: %v", err)
	}
	// The sink is the first machine of every run
	target := event.MachineID{Name: "Sink", Index: 0}
	senders := []*machine.Automaton{}
	for _, name := range []event.Name{"a", "b"} {
		name := name
		b := machine.NewBuilder(string(name), alloc)
		st := b.State("Start", nil)
		b.OnEntry(st, func(ctx *machine.Context, msg event.Message) error {
			ctx.Send(target, name, nil)
			return nil
		})
		a, err := b.Build()
		if err != nil {
			t.Fatalf("Unexpected error building automaton: %v", err)
		}
		senders = append(senders, a)
	}
	return &race{sink: sink, senders: senders}
}

func (r *race) program(s *scheduler.Scheduler) error {
	r.runs.Add(1)
	if _, err := s.Create(r.sink); err != nil {
		return err
	}
	for _, sender := range r.senders {
		if _, err := s.Create(sender); err != nil {
			return err
		}
	}
	return nil
}

// A machine that pings itself forever
func pingForever(t *testing.T) *machine.Automaton {
	t.Helper()
	b := machine.NewBuilder("Looper", state.NewAllocator())
	st := b.State("Loop", nil)
	b.OnEntry(st, func(ctx *machine.Context, msg event.Message) error {
		ctx.Send(ctx.Self(), "ping", nil)
		return nil
	})
	b.On(st, "ping", func(ctx *machine.Context, msg event.Message) error {
		ctx.Send(ctx.Self(), "ping", nil)
		return nil
	})
	a, err := b.Build()
	if err != nil {
		t.Fatalf("Unexpected error building automaton: %v", err)
	}
	return a
}

func panicking(t *testing.T) *machine.Automaton {
	t.Helper()
	b := machine.NewBuilder("Panicker", state.NewAllocator())
	st := b.State("Start", nil)
	b.On(st, "boom", func(ctx *machine.Context, msg event.Message) error {
		panic("boom")
	})
	a, err := b.Build()
	if err != nil {
		t.Fatalf("Unexpected error building automaton: %v", err)
	}
	return a
}
