package pruntime

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"pruntime/event"
	"pruntime/formula"
	"pruntime/machine"
	"pruntime/scheduler"
	"pruntime/state"
)

var errOutOfOrder = errors.New("b arrived before a")

// Two senders race to deliver a and b to a sink.
// A strict sink fails if b arrives first, a lenient sink records the order in its state.
func newRace(t *testing.T, strict bool) func(*scheduler.Scheduler) error {
	t.Helper()
	alloc := state.NewAllocator()
	b := machine.NewBuilder("Sink", alloc)
	waiting := b.State("Waiting", nil)
	gotA := b.State("GotA", nil)
	gotB := b.State("GotB", nil)
	done := b.State("Done", nil)
	b.On(waiting, "a", func(ctx *machine.Context, msg event.Message) error {
		ctx.Goto(gotA)
		return nil
	})
	b.On(waiting, "b", func(ctx *machine.Context, msg event.Message) error {
		if strict {
			return errOutOfOrder
		}
		ctx.Goto(gotB)
		return nil
	})
	b.On(gotA, "b", func(ctx *machine.Context, msg event.Message) error {
		ctx.Goto(done)
		return nil
	})
	b.On(gotB, "a", func(ctx *machine.Context, msg event.Message) error {
		ctx.Goto(done)
		return nil
	})
	sink, err := b.Build()
	require.NoError(t, err)

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
		require.NoError(t, err)
		senders = append(senders, a)
	}
	return func(s *scheduler.Scheduler) error {
		if _, err := s.Create(sink); err != nil {
			return err
		}
		for _, sender := range senders {
			if _, err := s.Create(sender); err != nil {
				return err
			}
		}
		return nil
	}
}

func sends(target string, events ...string) []state.Send {
	out := []state.Send{}
	for _, ev := range events {
		out = append(out, state.Send{Target: target, Event: event.Name(ev)})
	}
	return out
}

// A single state automaton whose encoding sends the events to Client and stays
func emitter(t *testing.T, name string, events ...string) *machine.Automaton {
	t.Helper()
	b := machine.NewBuilder(name, state.NewAllocator())
	b.State("Idle", state.Encoded{
		Entry: func(maxSends int, c state.CheckerContext, m state.MachineContext) []state.EntryBranch {
			return []state.EntryBranch{{Guard: c.Sends(sends("Client", events...)...), Outcome: state.Stay}}
		},
	})
	a, err := b.Build()
	require.NoError(t, err)
	return a
}

// A single state automaton whose encoding chooses between sending x and sending y
func chooser(t *testing.T, name string) *machine.Automaton {
	t.Helper()
	alloc := state.NewAllocator()
	id := alloc.Next()
	b := machine.NewBuilder(name, alloc)
	b.State("Choosing", state.Encoded{
		Entry: func(maxSends int, c state.CheckerContext, m state.MachineContext) []state.EntryBranch {
			pick := c.Choice(id, "pick")
			return []state.EntryBranch{
				{Guard: formula.NewAnd(pick, c.Sends(sends("Client", "x")...)), Outcome: state.Stay},
				{Guard: formula.NewAnd(formula.NewNot(pick), c.Sends(sends("Client", "y")...)), Outcome: state.Stay},
			}
		},
	})
	a, err := b.Build()
	require.NoError(t, err)
	return a
}
