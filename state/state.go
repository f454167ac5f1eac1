// Package state defines the nodes of a machine automaton together with their optional symbolic encodings.
package state

import (
	"fmt"

	"pruntime/event"
	"pruntime/formula"
)

// The identity of a state.
//
// Ids are handed out by an Allocator in creation order and are never reused.
// They are used as map keys and in the names of solver variables.
type ID int

// AnySuccessor can be used as the successor of an exit branch that applies to every successor state.
const AnySuccessor ID = -1

// Hands out state identities.
//
// The Allocator is owned by the context constructing the automata.
// Automata that should be compared by the containment checker must share an Allocator so that their states get distinct ids.
// It is not safe for concurrent use.
type Allocator struct {
	next ID
}

func NewAllocator() *Allocator {
	return &Allocator{}
}

// Create a new state with the next identity.
//
// A nil encoding is the same as NoEncoding.
func (a *Allocator) New(name string, enc Encoding) *State {
	if enc == nil {
		enc = NoEncoding{}
	}
	s := &State{
		id:   a.next,
		name: name,
		enc:  enc,
	}
	a.next++
	return s
}

// The identity that will be assigned to the next created state
func (a *Allocator) Next() ID {
	return a.next
}

// A named node of an automaton.
//
// States are immutable after creation and are shared by read-only reference between machines, the scheduler and the containment checker.
type State struct {
	id   ID
	name string
	enc  Encoding
}

func (s *State) ID() ID {
	return s.id
}

// The display name of the state. It is not unique and must never be used for equality.
func (s *State) Name() string {
	return s.name
}

func (s *State) Encoding() Encoding {
	return s.enc
}

func (s *State) String() string {
	return fmt.Sprintf("%s#%d", s.name, s.id)
}

// Returns the symbolic description of what happens when the state is entered.
//
// The branches are returned in the order they were produced by the encoding.
// A state without an entry encoding returns no branches.
func (s *State) EntryEncoding(maxSends int, c CheckerContext, m MachineContext) []EntryBranch {
	switch enc := s.enc.(type) {
	case NoEncoding:
		return nil
	case Encoded:
		if enc.Entry == nil {
			return nil
		}
		return enc.Entry(maxSends, c, m)
	}
	panic(fmt.Sprintf("state: unknown encoding variant %T", s.enc))
}

// Returns the symbolic description of what happens when the state is left.
//
// A state without an exit encoding returns no branches.
func (s *State) ExitEncoding(maxSends int, c CheckerContext, m MachineContext) []ExitBranch {
	switch enc := s.enc.(type) {
	case NoEncoding:
		return nil
	case Encoded:
		if enc.Exit == nil {
			return nil
		}
		return enc.Exit(maxSends, c, m)
	}
	panic(fmt.Sprintf("state: unknown encoding variant %T", s.enc))
}

// A send performed by a machine, as seen by the encoding. Target is the name of the receiving machine.
type Send struct {
	Target string
	Event  event.Name
}

func (s Send) String() string {
	return fmt.Sprintf("%s->%s", s.Event, s.Target)
}

// Provided by the checker to an encoding call.
//
// It names the solver variables of the current call site so that encodings never create the variables themselves.
type CheckerContext interface {
	// The call depth of the current step along the explored path
	Depth() int
	// Holds iff exactly the provided sends are performed by this step, in order. Unused send slots are idle.
	// Returns false if more sends are provided than the bound permits.
	Sends(sends ...Send) formula.Formula
	// Holds iff the step performs no send
	Silent() formula.Formula
	// A local nondeterministic choice of the state at the current depth.
	// The same (state, name) pair at the same depth always returns the same variable.
	Choice(s ID, name string) formula.Formula
}

// The machine on whose behalf an encoding is produced
type MachineContext interface {
	Name() string
}
