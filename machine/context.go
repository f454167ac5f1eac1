package machine

import (
	"github.com/cockroachdb/errors"

	"pruntime/event"
	"pruntime/state"
)

// Reserves identities for machines created while a handler runs
type IDSource interface {
	NextID(name string) event.MachineID
}

// A machine created by a handler. The machine is created and started by the scheduler after the handler completed.
type Creation struct {
	ID        event.MachineID
	Automaton *Automaton
}

// The effects a handler can request.
//
// A Context is only valid while the handler it was passed to runs.
// None of the requested effects are applied unless the handler and every entry and exit handler it triggers succeed.
type Context struct {
	self      event.MachineID
	current   *state.State
	automaton *Automaton
	ids       IDSource
	// The number of messages the machine sent in earlier handler chains
	sent int

	sends   []event.Message
	created []Creation
	next    *state.State
	halt    bool
	err     error
}

func newContext(self event.MachineID, a *Automaton, current *state.State, ids IDSource, sent int) *Context {
	return &Context{
		self:      self,
		current:   current,
		automaton: a,
		ids:       ids,
		sent:      sent,
	}
}

// The machine executing the handler
func (c *Context) Self() event.MachineID {
	return c.self
}

// The state the handler is executed in
func (c *Context) State() *state.State {
	return c.current
}

// Send an event to the target.
//
// The message is routed by the scheduler after the handler completed.
func (c *Context) Send(target event.MachineID, ev event.Name, payload any) {
	c.sends = append(c.sends, event.NewMessage(c.self, c.sent+len(c.sends), target, ev, payload))
}

// Request a transition to s. A later call replaces an earlier one.
func (c *Context) Goto(s *state.State) {
	if s == nil || c.automaton.byID[s.ID()] != s {
		c.fail(errors.Wrapf(ErrUnknownState, "goto %v from %v", s, c.self))
		return
	}
	c.next = s
}

// Request that the machine halts after the handler completed. A halt takes precedence over a requested transition.
// A halt requested by an exit handler stops the machine in the state it was leaving.
func (c *Context) Halt() {
	c.halt = true
}

// Create a new machine from the automaton and return its identity.
//
// The identity can be used as a send target right away.
func (c *Context) Create(a *Automaton) event.MachineID {
	if c.ids == nil {
		c.fail(errors.Wrapf(ErrNoIDSource, "create %v from %v", a.Name(), c.self))
		return event.MachineID{}
	}
	id := c.ids.NextID(a.Name())
	c.created = append(c.created, Creation{ID: id, Automaton: a})
	return id
}

func (c *Context) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}
