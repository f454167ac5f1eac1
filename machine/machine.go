package machine

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"

	"pruntime/event"
	"pruntime/state"
	"pruntime/trace"
)

// The maximum number of transitions a single delivery can trigger before it is aborted
const MaxTransitions = 1000

// The effects of running a handler chain to completion
type Outcome struct {
	// The messages sent, in send order
	Sends []event.Message
	// The machines created, in creation order
	Created []Creation
	// The number of state transitions taken
	Transitions int
	// The machine halted
	Halted bool
	// The event was dropped by an ignore policy
	Ignored bool
}

type Option func(*Machine)

func WithLogger(l trace.Logger) Option {
	return func(m *Machine) {
		if l == nil {
			l = trace.Nop{}
		}
		m.log = l
	}
}

// Enable the machine to create other machines
func WithIDSource(ids IDSource) Option {
	return func(m *Machine) {
		m.ids = ids
	}
}

func WithMaxTransitions(n int) Option {
	return func(m *Machine) {
		m.maxTransitions = n
	}
}

// Let handler panics propagate to the caller instead of returning them as ErrHandlerPanic
func WithPanics() Option {
	return func(m *Machine) {
		m.panics = true
	}
}

// A runtime instance of an automaton.
//
// A Machine is owned by a single scheduler and is not safe for concurrent use.
type Machine struct {
	id        event.MachineID
	automaton *Automaton
	current   *state.State
	mailbox   []event.Message

	started bool
	halted  bool
	// Messages sent by committed handler chains
	sent int

	log            trace.Logger
	ids            IDSource
	maxTransitions int
	panics         bool
}

func New(id event.MachineID, a *Automaton, opts ...Option) *Machine {
	m := &Machine{
		id:             id,
		automaton:      a,
		current:        a.Initial(),
		log:            trace.Nop{},
		maxTransitions: MaxTransitions,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) ID() event.MachineID {
	return m.id
}

func (m *Machine) Automaton() *Automaton {
	return m.automaton
}

// The current state. Before the machine is started it is the initial state.
func (m *Machine) State() *state.State {
	return m.current
}

func (m *Machine) Halted() bool {
	return m.halted
}

func (m *Machine) Started() bool {
	return m.started
}

// Returns a copy of the undelivered messages in arrival order
func (m *Machine) Mailbox() []event.Message {
	out := make([]event.Message, len(m.mailbox))
	copy(out, m.mailbox)
	return out
}

func (m *Machine) Pending() int {
	return len(m.mailbox)
}

// Run the entry handler of the initial state.
func (m *Machine) Start() (Outcome, error) {
	if m.halted {
		return Outcome{}, errors.Wrapf(ErrMachineHalted, "start %v", m.id)
	}
	if m.started {
		return Outcome{}, errors.Wrapf(ErrAlreadyStarted, "start %v", m.id)
	}
	m.log.Log(trace.Record{Kind: trace.MachineStarted, Machine: m.id})
	m.started = true

	ctx := newContext(m.id, m.automaton, m.current, m.ids, m.sent)
	if h := m.automaton.entry[m.current.ID()]; h != nil {
		if err := m.invoke(h, ctx, event.Message{}); err != nil {
			return Outcome{}, err
		}
	}
	return m.commit(ctx, m.current)
}

// Append the message to the mailbox.
func (m *Machine) Enqueue(msg event.Message) error {
	if msg.Target() != m.id {
		return errors.Wrapf(ErrTargetMismatch, "message for %v enqueued at %v", msg.Target(), m.id)
	}
	if m.halted {
		return errors.Wrapf(ErrMachineHalted, "enqueue at %v", m.id)
	}
	m.mailbox = append(m.mailbox, msg)
	m.log.Log(trace.Record{Kind: trace.Unblock, Target: m.id, Event: msg.Event()})
	return nil
}

// Dequeue the head of the mailbox and dispatch it to the handler of the current state.
//
// The message is consumed even if handling it fails. A failed handler leaves the machine in its current state.
func (m *Machine) ProcessNext() (Outcome, error) {
	if m.halted {
		return Outcome{}, errors.Wrapf(ErrMachineHalted, "process at %v", m.id)
	}
	if !m.started {
		return Outcome{}, errors.Wrapf(ErrNotStarted, "process at %v", m.id)
	}
	if len(m.mailbox) == 0 {
		return Outcome{}, errors.Wrapf(ErrEmptyMailbox, "process at %v", m.id)
	}
	msg := m.mailbox[0]
	m.mailbox[0] = event.Message{}
	m.mailbox = m.mailbox[1:]

	m.log.Log(trace.Record{
		Kind:    trace.EventProcessed,
		Machine: m.id,
		Event:   msg.Event(),
		State:   m.current.Name(),
	})

	h, ok := m.automaton.Handler(m.current.ID(), msg.Event())
	if !ok {
		if m.automaton.Ignores(m.current.ID(), msg.Event()) {
			return Outcome{Ignored: true}, nil
		}
		return Outcome{}, &UnhandledEventError{
			Machine: m.id,
			State:   m.current.Name(),
			Event:   msg.Event(),
		}
	}

	ctx := newContext(m.id, m.automaton, m.current, m.ids, m.sent)
	if err := m.invoke(h, ctx, msg); err != nil {
		return Outcome{}, err
	}
	return m.commit(ctx, m.current)
}

// Halt the machine. The mailbox is left as is.
func (m *Machine) Halt() {
	m.halted = true
}

// Follow the transitions requested through ctx, running exit and entry handlers, and apply the collected effects.
// Nothing is applied if any handler in the chain fails.
func (m *Machine) commit(ctx *Context, from *state.State) (Outcome, error) {
	var transitions []*state.State

	current := from
	for ctx.next != nil && !ctx.halt {
		if len(transitions) >= m.maxTransitions {
			return Outcome{}, errors.Wrapf(ErrTransitionLimit, "%v after %d transitions from %v", m.id, len(transitions), from.Name())
		}
		next := ctx.next
		ctx.next = nil

		if h := m.automaton.exit[current.ID()]; h != nil {
			ctx.current = current
			if err := m.invoke(h, ctx, event.Message{}); err != nil {
				return Outcome{}, err
			}
			// A transition requested while exiting is ignored; the target is already chosen.
			ctx.next = nil
			if ctx.halt {
				break
			}
		}
		current = next
		transitions = append(transitions, next)
		if h := m.automaton.entry[current.ID()]; h != nil {
			ctx.current = current
			if err := m.invoke(h, ctx, event.Message{}); err != nil {
				return Outcome{}, err
			}
		}
	}

	m.current = current
	m.sent += len(ctx.sends)
	for _, s := range transitions {
		m.log.Log(trace.Record{Kind: trace.StateTransition, Machine: m.id, State: s.Name()})
	}
	for _, msg := range ctx.sends {
		m.log.Log(trace.Record{Kind: trace.Send, Machine: m.id, Target: msg.Target(), Event: msg.Event()})
	}
	if ctx.halt {
		m.halted = true
	}
	return Outcome{
		Sends:       ctx.sends,
		Created:     ctx.created,
		Transitions: len(transitions),
		Halted:      ctx.halt,
	}, nil
}

// Run the handler, converting a panic into an error
func (m *Machine) invoke(h Handler, ctx *Context, msg event.Message) (err error) {
	defer func() {
		if m.panics {
			return
		}
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrHandlerPanic, "%v in state %v: %v\n%s", m.id, ctx.current.Name(), r, debug.Stack())
		}
	}()
	if err := h(ctx, msg); err != nil {
		return errors.Wrapf(err, "%v in state %v", m.id, ctx.current.Name())
	}
	if ctx.err != nil {
		return ctx.err
	}
	return nil
}

func (m *Machine) String() string {
	return fmt.Sprintf("%v[%v]", m.id, m.current.Name())
}
