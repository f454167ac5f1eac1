package containment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"pruntime/event"
	"pruntime/formula"
	"pruntime/machine"
	"pruntime/solver"
	"pruntime/state"
)

// An entry encoding built from the state's own id, so the closure can refer to it
type entryFunc func(s state.ID, c state.CheckerContext) []state.EntryBranch

// Declare a state whose entry is encoded by fn. The id of the state is the next id of the allocator.
func encodedState(b *machine.Builder, alloc *state.Allocator, name string, fn entryFunc) *state.State {
	id := alloc.Next()
	return b.State(name, state.Encoded{
		Entry: func(maxSends int, c state.CheckerContext, m state.MachineContext) []state.EntryBranch {
			return fn(id, c)
		},
	})
}

func sends(target string, events ...string) []state.Send {
	out := []state.Send{}
	for _, ev := range events {
		out = append(out, state.Send{Target: target, Event: event.Name(ev)})
	}
	return out
}

// A single state automaton that stays after sending the events to Client
func sender(t *testing.T, alloc *state.Allocator, name string, events ...string) *machine.Automaton {
	t.Helper()
	b := machine.NewBuilder(name, alloc)
	encodedState(b, alloc, "Idle", func(s state.ID, c state.CheckerContext) []state.EntryBranch {
		return []state.EntryBranch{{Guard: c.Sends(sends("Client", events...)...), Outcome: state.Stay}}
	})
	a, err := b.Build()
	require.NoError(t, err)
	return a
}

// A single state automaton choosing between sending a or sending b
func chooser(t *testing.T, alloc *state.Allocator, name, a, b string) *machine.Automaton {
	t.Helper()
	bld := machine.NewBuilder(name, alloc)
	encodedState(bld, alloc, "Choosing", func(s state.ID, c state.CheckerContext) []state.EntryBranch {
		pick := c.Choice(s, "pick")
		return []state.EntryBranch{
			{Guard: formula.NewAnd(pick, c.Sends(sends("Client", a)...)), Outcome: state.Stay},
			{Guard: formula.NewAnd(formula.NewNot(pick), c.Sends(sends("Client", b)...)), Outcome: state.Stay},
		}
	})
	out, err := bld.Build()
	require.NoError(t, err)
	return out
}

func check(t *testing.T, candidate, spec Automaton, b Bound, opts ...Option) Result {
	t.Helper()
	res, err := New(solver.NewGini(), opts...).Check(context.Background(), candidate, spec, b)
	require.NoError(t, err)
	return res
}

// An oracle that never decides
type unknownOracle struct{}

func (unknownOracle) Solve(context.Context, formula.Formula) (solver.Result, error) {
	return solver.Result{Status: solver.Unknown, Reason: "gave up"}, nil
}
