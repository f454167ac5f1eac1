package scheduler

import (
	"context"

	"github.com/cockroachdb/errors"

	"pruntime/event"
	"pruntime/machine"
	"pruntime/state"
	"pruntime/trace"
)

// Decides what happens to a run when a machine receives an event it can not handle
type UnhandledPolicy int

const (
	// Halt the machine that received the event. The error is returned from Step and the run can continue.
	HaltMachine UnhandledPolicy = iota
	// Fail the whole run
	FailRun
)

type Option func(*Scheduler)

func WithLogger(l trace.Logger) Option {
	return func(s *Scheduler) {
		if l == nil {
			l = trace.Nop{}
		}
		s.log = l
	}
}

func WithUnhandledPolicy(p UnhandledPolicy) Option {
	return func(s *Scheduler) {
		s.unhandled = p
	}
}

// Options applied to every machine the scheduler creates
func WithMachineOptions(opts ...machine.Option) Option {
	return func(s *Scheduler) {
		s.machineOpts = append(s.machineOpts, opts...)
	}
}

type pending struct {
	msg event.Message
	seq int
}

// A snapshot of a machine taken between two steps
type MachineSnapshot struct {
	ID      event.MachineID
	State   string
	StateID state.ID
	Halted  bool
}

// Drives the machines of a single run.
//
// Every step delivers exactly one message, chosen by the policy among the oldest undelivered message of every sender.
// The scheduler owns the machines it creates and is not safe for concurrent use.
type Scheduler struct {
	policy    Policy
	log       trace.Logger
	unhandled UnhandledPolicy

	machineOpts []machine.Option

	machines  map[event.MachineID]*machine.Machine
	order     []event.MachineID
	instances map[string]int

	// The external sender is always first
	senders  []event.MachineID
	outboxes map[event.MachineID][]pending
	// Messages injected so far
	injected int

	seq      int
	depth    int
	schedule Schedule
	failed   error
}

func New(policy Policy, opts ...Option) *Scheduler {
	s := &Scheduler{
		policy:    policy,
		log:       trace.Nop{},
		machines:  map[event.MachineID]*machine.Machine{},
		instances: map[string]int{},
		senders:   []event.MachineID{{}},
		outboxes:  map[event.MachineID][]pending{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, ok := policy.(replayer); ok {
		s.log.Log(trace.Record{Kind: trace.ReplayBegin})
	}
	return s
}

// Reserve the identity of a new machine created from the automaton with the given name
func (s *Scheduler) NextID(name string) event.MachineID {
	id := event.MachineID{Name: name, Index: s.instances[name]}
	s.instances[name]++
	return id
}

// Create and start a machine from the automaton.
func (s *Scheduler) Create(a *machine.Automaton) (event.MachineID, error) {
	if s.failed != nil {
		return event.MachineID{}, s.failure()
	}
	id := s.NextID(a.Name())
	if err := s.start(id, a); err != nil {
		return event.MachineID{}, s.fail(err)
	}
	return id, nil
}

func (s *Scheduler) start(id event.MachineID, a *machine.Automaton) error {
	opts := append([]machine.Option{machine.WithLogger(s.log), machine.WithIDSource(s)}, s.machineOpts...)
	m := machine.New(id, a, opts...)
	s.machines[id] = m
	s.order = append(s.order, id)
	s.senders = append(s.senders, id)
	s.log.Log(trace.Record{Kind: trace.MachineCreated, Machine: id})

	out, err := m.Start()
	if err != nil {
		return err
	}
	return s.apply(id, out)
}

// Queue an event sent from outside of the program to the target
func (s *Scheduler) Inject(target event.MachineID, ev event.Name, payload any) error {
	if s.failed != nil {
		return s.failure()
	}
	if _, ok := s.machines[target]; !ok {
		return errors.Wrapf(ErrUnknownMachine, "inject %v", target)
	}
	s.push(event.MachineID{}, event.NewMessage(event.MachineID{}, s.injected, target, ev, payload))
	s.injected++
	return nil
}

// Deliver one message.
//
// Returns false when there is no message left to deliver or the policy makes no further choices.
// A message sent to a halted machine is consumed by the step and dropped.
// When replaying, a delivery that is unhandled now but was handled when recorded, or the other way around, fails the run with a
// ReplayDivergenceError regardless of the unhandled policy.
func (s *Scheduler) Step() (bool, error) {
	if s.failed != nil {
		return false, s.failure()
	}
	candidates := s.Candidates()
	if len(candidates) == 0 {
		if r, ok := s.policy.(replayer); ok {
			if expected, ok := r.expected(); ok {
				return false, s.fail(divergence(s.depth, expected, nil))
			}
		}
		return false, nil
	}
	i, err := s.policy.Choose(s.depth, candidates)
	if errors.Is(err, ErrScheduleEnded) {
		return false, nil
	}
	if err != nil {
		return false, s.fail(err)
	}
	if i < 0 || i >= len(candidates) {
		return false, s.fail(errors.Wrapf(ErrInvalidChoice, "index %d of %d candidates", i, len(candidates)))
	}
	c := candidates[i]
	s.pop(c.Sender)

	choice := c.Choice(s.depth)
	s.schedule = append(s.schedule, choice)
	s.log.Log(trace.Record{
		Kind:    trace.ScheduleStep,
		Depth:   s.depth,
		Machine: c.Sender,
		Event:   choice.Event,
		Target:  choice.Target,
	})
	s.depth++

	target := s.machines[choice.Target]
	if target.Halted() {
		return true, nil
	}
	if err := target.Enqueue(c.Message); err != nil {
		return false, s.fail(err)
	}
	out, err := target.ProcessNext()
	unhandled := errors.Is(err, machine.ErrUnhandledEvent)
	if unhandled {
		choice.Unhandled = true
		s.schedule[len(s.schedule)-1] = choice
	}
	if r, ok := s.policy.(replayer); ok {
		if recorded, ok := r.replayed(); ok && recorded.Unhandled != unhandled {
			return false, s.fail(&ReplayDivergenceError{
				Depth:     choice.Depth,
				Expected:  recorded,
				Delivered: &choice,
				Cause:     err,
			})
		}
	}
	if err != nil {
		if unhandled && s.unhandled == HaltMachine {
			target.Halt()
			return true, err
		}
		return false, s.fail(err)
	}
	if err := s.apply(target.ID(), out); err != nil {
		return false, s.fail(err)
	}
	return true, nil
}

// Step until no message is left, maxSteps steps have been taken, the run failed or the context is done.
// A maxSteps of 0 or less does not bound the run.
//
// Under HaltMachine an unhandled event halts its target and the run goes on. The unhandled event errors are
// returned together when the run stops.
//
// Returns the number of steps taken.
func (s *Scheduler) Run(ctx context.Context, maxSteps int) (int, error) {
	steps := 0
	var halted []error
	for maxSteps <= 0 || steps < maxSteps {
		if err := ctx.Err(); err != nil {
			return steps, join(halted, err)
		}
		ok, err := s.Step()
		if ok {
			steps++
		}
		if err != nil && s.failed != nil {
			return steps, join(halted, err)
		}
		if err != nil {
			halted = append(halted, err)
		}
		if !ok {
			break
		}
	}
	return steps, join(halted, nil)
}

func join(errs []error, err error) error {
	if err != nil {
		errs = append(errs, err)
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return errors.Join(errs...)
}

// Create the machines and route the messages resulting from a handler chain of the sender
func (s *Scheduler) apply(sender event.MachineID, out machine.Outcome) error {
	for _, c := range out.Created {
		if err := s.start(c.ID, c.Automaton); err != nil {
			return err
		}
	}
	for _, msg := range out.Sends {
		if _, ok := s.machines[msg.Target()]; !ok {
			return errors.Wrapf(ErrUnknownMachine, "%v sent %v to %v", sender, msg.Event(), msg.Target())
		}
		s.push(sender, msg)
	}
	return nil
}

func (s *Scheduler) push(sender event.MachineID, msg event.Message) {
	s.outboxes[sender] = append(s.outboxes[sender], pending{msg: msg, seq: s.seq})
	s.seq++
}

func (s *Scheduler) pop(sender event.MachineID) {
	box := s.outboxes[sender]
	box[0] = pending{}
	s.outboxes[sender] = box[1:]
}

func (s *Scheduler) fail(err error) error {
	s.failed = err
	return err
}

func (s *Scheduler) failure() error {
	return errors.Wrapf(ErrFailed, "%v", s.failed)
}

// The candidates of the next step: the oldest undelivered message of every sender, external messages first and then machines in creation order
func (s *Scheduler) Candidates() []Candidate {
	out := []Candidate{}
	for _, sender := range s.senders {
		box := s.outboxes[sender]
		if len(box) == 0 {
			continue
		}
		out = append(out, Candidate{Sender: sender, Message: box[0].msg, Seq: box[0].seq})
	}
	return out
}

// The number of steps taken
func (s *Scheduler) Depth() int {
	return s.depth
}

// Returns a copy of the schedule recorded so far
func (s *Scheduler) Schedule() Schedule {
	out := make(Schedule, len(s.schedule))
	copy(out, s.schedule)
	return out
}

// The number of undelivered messages
func (s *Scheduler) Pending() int {
	n := 0
	for _, box := range s.outboxes {
		n += len(box)
	}
	return n
}

// The machines in creation order
func (s *Scheduler) Machines() []*machine.Machine {
	out := make([]*machine.Machine, len(s.order))
	for i, id := range s.order {
		out[i] = s.machines[id]
	}
	return out
}

func (s *Scheduler) Machine(id event.MachineID) (*machine.Machine, bool) {
	m, ok := s.machines[id]
	return m, ok
}

// The fatal error of the run, if any
func (s *Scheduler) Err() error {
	return s.failed
}

func (s *Scheduler) Snapshot() []MachineSnapshot {
	out := make([]MachineSnapshot, len(s.order))
	for i, id := range s.order {
		m := s.machines[id]
		out[i] = MachineSnapshot{
			ID:      id,
			State:   m.State().Name(),
			StateID: m.State().ID(),
			Halted:  m.Halted(),
		}
	}
	return out
}
