// Package machine contains the automaton definitions and the runtime instances executing them.
package machine

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/maps"

	"pruntime/event"
	"pruntime/state"
)

// Handles an event, or the entry or exit of a state.
//
// For entry and exit handlers the message is the zero Message.
// Returning an error discards every effect requested through the context.
type Handler func(ctx *Context, msg event.Message) error

type handlerKey struct {
	state state.ID
	event event.Name
}

// A read-only automaton definition.
//
// It is a named set of states, an initial state and a handler table keyed by (state, event).
// An Automaton can be shared by any number of machines and by the containment checker.
type Automaton struct {
	name    string
	states  []*state.State
	byID    map[state.ID]*state.State
	initial *state.State

	handlers  map[handlerKey]Handler
	entry     map[state.ID]Handler
	exit      map[state.ID]Handler
	ignored   map[event.Name]bool
	ignoredIn map[handlerKey]bool
}

// The name of the automaton. Machines created from it are identified by this name.
func (a *Automaton) Name() string {
	return a.name
}

func (a *Automaton) Initial() *state.State {
	return a.initial
}

// The states of the automaton in declaration order
func (a *Automaton) States() []*state.State {
	out := make([]*state.State, len(a.states))
	copy(out, a.states)
	return out
}

// Returns the state with the given id if it belongs to the automaton
func (a *Automaton) State(id state.ID) (*state.State, bool) {
	s, ok := a.byID[id]
	return s, ok
}

// Returns the handler for the event in the state
func (a *Automaton) Handler(s state.ID, ev event.Name) (Handler, bool) {
	h, ok := a.handlers[handlerKey{s, ev}]
	return h, ok
}

// Returns true if the event is dropped when it is received in the state and there is no handler for it
func (a *Automaton) Ignores(s state.ID, ev event.Name) bool {
	return a.ignored[ev] || a.ignoredIn[handlerKey{s, ev}]
}

// Returns a copy of the automaton with the handler for the given event in the given state removed.
//
// The states are shared with the original automaton.
func (a *Automaton) Without(s *state.State, ev event.Name) *Automaton {
	cp := &Automaton{
		name:      a.name,
		states:    a.states,
		byID:      a.byID,
		initial:   a.initial,
		handlers:  maps.Clone(a.handlers),
		entry:     a.entry,
		exit:      a.exit,
		ignored:   a.ignored,
		ignoredIn: a.ignoredIn,
	}
	delete(cp.handlers, handlerKey{s.ID(), ev})
	return cp
}

// Construct an Automaton.
//
// Errors are collected while building and reported by Build.
type Builder struct {
	a     *Automaton
	alloc *state.Allocator
	errs  []error
}

// Create a builder for an automaton with the given name.
// States are allocated from alloc.
func NewBuilder(name string, alloc *state.Allocator) *Builder {
	b := &Builder{
		alloc: alloc,
		a: &Automaton{
			name:      name,
			byID:      map[state.ID]*state.State{},
			handlers:  map[handlerKey]Handler{},
			entry:     map[state.ID]Handler{},
			exit:      map[state.ID]Handler{},
			ignored:   map[event.Name]bool{},
			ignoredIn: map[handlerKey]bool{},
		},
	}
	if name == "" {
		b.errs = append(b.errs, errors.New("machine: automaton name must not be empty"))
	}
	return b
}

// Declare a new state of the automaton. The first declared state is the initial state unless Initial is called.
func (b *Builder) State(name string, enc state.Encoding) *state.State {
	s := b.alloc.New(name, enc)
	b.a.states = append(b.a.states, s)
	b.a.byID[s.ID()] = s
	if b.a.initial == nil {
		b.a.initial = s
	}
	return s
}

func (b *Builder) Initial(s *state.State) *Builder {
	if b.check(s) {
		b.a.initial = s
	}
	return b
}

// Register the handler for ev in the state s
func (b *Builder) On(s *state.State, ev event.Name, h Handler) *Builder {
	if !b.check(s) {
		return b
	}
	key := handlerKey{s.ID(), ev}
	switch {
	case h == nil:
		b.errs = append(b.errs, errors.Newf("machine: nil handler for %v in state %v", ev, s))
	case b.a.handlers[key] != nil:
		b.errs = append(b.errs, errors.Newf("machine: duplicate handler for %v in state %v", ev, s))
	default:
		b.a.handlers[key] = h
	}
	return b
}

func (b *Builder) OnEntry(s *state.State, h Handler) *Builder {
	if b.check(s) {
		b.a.entry[s.ID()] = h
	}
	return b
}

func (b *Builder) OnExit(s *state.State, h Handler) *Builder {
	if b.check(s) {
		b.a.exit[s.ID()] = h
	}
	return b
}

// Drop the events in every state that has no handler for them
func (b *Builder) Ignore(evs ...event.Name) *Builder {
	for _, ev := range evs {
		b.a.ignored[ev] = true
	}
	return b
}

// Drop the events in the state s if it has no handler for them
func (b *Builder) IgnoreIn(s *state.State, evs ...event.Name) *Builder {
	if !b.check(s) {
		return b
	}
	for _, ev := range evs {
		b.a.ignoredIn[handlerKey{s.ID(), ev}] = true
	}
	return b
}

// Finish the automaton.
//
// The builder must not be used after Build has been called.
func (b *Builder) Build() (*Automaton, error) {
	if b.a.initial == nil {
		b.errs = append(b.errs, errors.Newf("machine: automaton %v has no states", b.a.name))
	}
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	a := b.a
	b.a = nil
	return a, nil
}

func (b *Builder) check(s *state.State) bool {
	if s == nil || b.a.byID[s.ID()] != s {
		b.errs = append(b.errs, errors.Wrapf(ErrUnknownState, "state %v in automaton %v", s, b.a.name))
		return false
	}
	return true
}
