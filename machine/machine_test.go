package machine

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"golang.org/x/exp/slices"

	"pruntime/event"
	"pruntime/state"
	"pruntime/trace"
)

func TestGoThenPing(t *testing.T) {
	a, states := pingAutomaton(t)
	m := startedMachine(t, a)

	out, err := deliver(t, m, "go")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(out.Sends) != 1 || out.Sends[0].Event() != "ping" || out.Sends[0].Target() != m.ID() {
		t.Errorf("Expected a single ping to self. Got %v", out.Sends)
	}
	if m.State() != states["Waiting"] {
		t.Errorf("Expected machine to be in Waiting. Got %v", m.State())
	}

	if err := m.Enqueue(out.Sends[0]); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := m.ProcessNext(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if m.State() != states["Done"] {
		t.Errorf("Expected machine to be in Done. Got %v", m.State())
	}
}

func TestUnhandledEventLeavesStateUnchanged(t *testing.T) {
	a, states := pingAutomaton(t)
	m := startedMachine(t, a)

	_, err := deliver(t, m, "unexpected")
	if !errors.Is(err, ErrUnhandledEvent) {
		t.Fatalf("Expected ErrUnhandledEvent. Got %v", err)
	}
	var unhandled *UnhandledEventError
	if !errors.As(err, &unhandled) {
		t.Fatalf("Expected an UnhandledEventError. Got %T", err)
	}
	if unhandled.State != "Init" || unhandled.Event != "unexpected" {
		t.Errorf("Unexpected error content: %+v", unhandled)
	}
	if m.State() != states["Init"] {
		t.Errorf("Expected machine to stay in Init. Got %v", m.State())
	}
	if m.Pending() != 0 {
		t.Errorf("Expected the message to be consumed. Got %v pending", m.Pending())
	}
}

func TestIgnorePolicy(t *testing.T) {
	for i, test := range ignoreTest {
		alloc := state.NewAllocator()
		b := NewBuilder("M", alloc)
		s1 := b.State("S1", nil)
		s2 := b.State("S2", nil)
		b.On(s1, "next", func(ctx *Context, msg event.Message) error {
			ctx.Goto(s2)
			return nil
		})
		test.setup(b, s1, s2)
		a, err := b.Build()
		if err != nil {
			t.Fatalf("Test %v: unexpected build error: %v", i, err)
		}
		m := startedMachine(t, a)
		if test.inS2 {
			deliver(t, m, "next")
		}
		out, err := deliver(t, m, "noise")
		if test.ignored {
			if err != nil || !out.Ignored {
				t.Errorf("Test %v: expected the event to be ignored. Got %v, %v", i, out, err)
			}
		} else if !errors.Is(err, ErrUnhandledEvent) {
			t.Errorf("Test %v: expected ErrUnhandledEvent. Got %v", i, err)
		}
	}
}

var ignoreTest = []struct {
	setup   func(b *Builder, s1, s2 *state.State)
	inS2    bool
	ignored bool
}{
	{func(b *Builder, s1, s2 *state.State) {}, false, false},
	{func(b *Builder, s1, s2 *state.State) { b.Ignore("noise") }, false, true},
	{func(b *Builder, s1, s2 *state.State) { b.Ignore("noise") }, true, true},
	{func(b *Builder, s1, s2 *state.State) { b.IgnoreIn(s1, "noise") }, false, true},
	{func(b *Builder, s1, s2 *state.State) { b.IgnoreIn(s1, "noise") }, true, false},
}

func TestTargetMismatch(t *testing.T) {
	a, _ := pingAutomaton(t)
	m := startedMachine(t, a)
	err := m.Enqueue(event.NewMessage(event.MachineID{}, 0, event.MachineID{Name: "Other"}, "go", nil))
	if !errors.Is(err, ErrTargetMismatch) {
		t.Errorf("Expected ErrTargetMismatch. Got %v", err)
	}
	if m.Pending() != 0 {
		t.Errorf("Expected an empty mailbox. Got %v", m.Pending())
	}
}

func TestHaltedMachine(t *testing.T) {
	b := NewBuilder("M", state.NewAllocator())
	s := b.State("S", nil)
	b.On(s, "stop", func(ctx *Context, msg event.Message) error {
		ctx.Halt()
		return nil
	})
	a, _ := b.Build()
	m := startedMachine(t, a)
	m.Enqueue(event.NewMessage(event.MachineID{}, 0, m.ID(), "stop", nil))
	m.Enqueue(event.NewMessage(event.MachineID{}, 1, m.ID(), "later", nil))

	out, err := m.ProcessNext()
	if err != nil || !out.Halted || !m.Halted() {
		t.Fatalf("Expected the machine to halt. Got %v, %v", out, err)
	}
	before := m.Mailbox()
	if _, err := m.ProcessNext(); !errors.Is(err, ErrMachineHalted) {
		t.Errorf("Expected ErrMachineHalted. Got %v", err)
	}
	after := m.Mailbox()
	if !slices.EqualFunc(before, after, event.MessagesEquals) || len(after) != 1 {
		t.Errorf("Expected the mailbox to be untouched. Before: %v, after: %v", before, after)
	}
}

func TestLifecycleErrors(t *testing.T) {
	a, _ := pingAutomaton(t)
	m := New(event.MachineID{Name: "Pinger"}, a)
	if _, err := m.ProcessNext(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Expected ErrNotStarted. Got %v", err)
	}
	m.Start()
	if _, err := m.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Expected ErrAlreadyStarted. Got %v", err)
	}
	if _, err := m.ProcessNext(); !errors.Is(err, ErrEmptyMailbox) {
		t.Errorf("Expected ErrEmptyMailbox. Got %v", err)
	}
}

func TestEntryAndExitOrder(t *testing.T) {
	order := []string{}
	record := func(s string) Handler {
		return func(ctx *Context, msg event.Message) error {
			order = append(order, s)
			return nil
		}
	}
	b := NewBuilder("M", state.NewAllocator())
	s1 := b.State("S1", nil)
	s2 := b.State("S2", nil)
	s3 := b.State("S3", nil)
	b.OnEntry(s1, record("enter S1"))
	b.OnExit(s1, record("exit S1"))
	b.OnEntry(s2, func(ctx *Context, msg event.Message) error {
		order = append(order, "enter S2")
		ctx.Goto(s3)
		return nil
	})
	b.OnExit(s2, record("exit S2"))
	b.OnEntry(s3, record("enter S3"))
	b.On(s1, "go", func(ctx *Context, msg event.Message) error {
		order = append(order, "handle go")
		ctx.Goto(s2)
		return nil
	})
	a, _ := b.Build()
	rec := trace.NewRecorder()
	m := startedMachine(t, a, WithLogger(rec))
	out, err := deliver(t, m, "go")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := []string{"enter S1", "handle go", "exit S1", "enter S2", "exit S2", "enter S3"}
	if !slices.Equal(order, expected) {
		t.Errorf("Unexpected handler order.\nGot: %v\nExpected: %v", order, expected)
	}
	if out.Transitions != 2 || m.State() != s3 {
		t.Errorf("Expected two transitions ending in S3. Got %v ending in %v", out.Transitions, m.State())
	}
	transitions := rec.Filter(trace.StateTransition)
	if len(transitions) != 2 || transitions[1].State != "S3" {
		t.Errorf("Unexpected transition records: %v", transitions)
	}
	if started := rec.Filter(trace.MachineStarted); len(started) != 1 {
		t.Errorf("Expected a single start record. Got %v", started)
	}
}

func TestHaltInExitHandler(t *testing.T) {
	entered := false
	b := NewBuilder("M", state.NewAllocator())
	s1 := b.State("S1", nil)
	s2 := b.State("S2", nil)
	b.On(s1, "go", func(ctx *Context, msg event.Message) error {
		ctx.Goto(s2)
		return nil
	})
	b.OnExit(s1, func(ctx *Context, msg event.Message) error {
		ctx.Send(ctx.Self(), "bye", nil)
		ctx.Halt()
		return nil
	})
	b.OnEntry(s2, func(ctx *Context, msg event.Message) error {
		entered = true
		return nil
	})
	a, _ := b.Build()
	m := startedMachine(t, a)
	out, err := deliver(t, m, "go")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if entered {
		t.Errorf("Expected the successor not to be entered after a halt while exiting")
	}
	if !m.Halted() || m.State() != s1 {
		t.Errorf("Expected the machine to halt in S1. Got %v, halted %v", m.State(), m.Halted())
	}
	if !out.Halted || out.Transitions != 0 || len(out.Sends) != 1 {
		t.Errorf("Unexpected outcome %+v", out)
	}
}

func TestSendsAreNumberedPerMachine(t *testing.T) {
	b := NewBuilder("M", state.NewAllocator())
	s := b.State("S", nil)
	b.OnEntry(s, func(ctx *Context, msg event.Message) error {
		ctx.Send(ctx.Self(), "a", nil)
		return nil
	})
	b.On(s, "a", func(ctx *Context, msg event.Message) error {
		ctx.Send(ctx.Self(), "b", new(int))
		ctx.Send(ctx.Self(), "b", new(int))
		return nil
	})
	b.On(s, "fail", func(ctx *Context, msg event.Message) error {
		ctx.Send(ctx.Self(), "lost", nil)
		return errors.New("failed")
	})
	a, _ := b.Build()
	m := New(event.MachineID{Name: "M"}, a)
	start, err := m.Start()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := deliver(t, m, "fail"); err == nil {
		t.Fatalf("Expected the handler to fail")
	}
	out, err := deliver(t, m, "a")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	seqs := []int{start.Sends[0].Seq()}
	for _, msg := range out.Sends {
		seqs = append(seqs, msg.Seq())
	}
	// The sends of the failed handler are discarded and do not use up a number
	if !slices.Equal(seqs, []int{0, 1, 2}) {
		t.Errorf("Unexpected sequence numbers %v", seqs)
	}
	if out.Sends[0].Id() == out.Sends[1].Id() {
		t.Errorf("Expected distinct ids for distinct sends. Got %v", out.Sends[0].Id())
	}
}

func TestFailedHandlerDiscardsEffects(t *testing.T) {
	for i, test := range failingHandlerTest {
		b := NewBuilder("M", state.NewAllocator())
		s1 := b.State("S1", nil)
		s2 := b.State("S2", nil)
		b.On(s1, "go", func(ctx *Context, msg event.Message) error {
			ctx.Send(ctx.Self(), "out", nil)
			ctx.Goto(s2)
			return nil
		})
		b.OnEntry(s2, test.entry)
		a, _ := b.Build()
		rec := trace.NewRecorder()
		m := startedMachine(t, a, WithLogger(rec))
		_, err := deliver(t, m, "go")
		if !errors.Is(err, test.err) {
			t.Errorf("Test %v: expected %v. Got %v", i, test.err, err)
		}
		if m.State() != s1 {
			t.Errorf("Test %v: expected machine to stay in S1. Got %v", i, m.State())
		}
		if sends := rec.Filter(trace.Send); len(sends) != 0 {
			t.Errorf("Test %v: expected no send records. Got %v", i, sends)
		}
	}
}

var errEntry = errors.New("entry failed")

var failingHandlerTest = []struct {
	entry Handler
	err   error
}{
	{func(ctx *Context, msg event.Message) error { return errEntry }, errEntry},
	{func(ctx *Context, msg event.Message) error { panic("boom") }, ErrHandlerPanic},
	{func(ctx *Context, msg event.Message) error {
		ctx.Goto(ctx.State())
		return nil
	}, ErrTransitionLimit},
}

func TestWithPanicsPropagates(t *testing.T) {
	b := NewBuilder("Panicker", state.NewAllocator())
	st := b.State("Start", nil)
	b.On(st, "boom", func(ctx *Context, msg event.Message) error { panic("boom") })
	a, err := b.Build()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	m := startedMachine(t, a, WithPanics())
	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("Expected the handler panic to propagate. Got %v", r)
		}
	}()
	deliver(t, m, "boom")
	t.Errorf("The panic should not be recovered")
}

func TestCreate(t *testing.T) {
	alloc := state.NewAllocator()
	cb := NewBuilder("Child", alloc)
	cb.State("Idle", nil)
	child, _ := cb.Build()

	pb := NewBuilder("Parent", alloc)
	p := pb.State("P", nil)
	pb.On(p, "spawn", func(ctx *Context, msg event.Message) error {
		id := ctx.Create(child)
		ctx.Send(id, "hello", nil)
		return nil
	})
	parent, _ := pb.Build()

	m := startedMachine(t, parent)
	if _, err := deliver(t, m, "spawn"); !errors.Is(err, ErrNoIDSource) {
		t.Errorf("Expected ErrNoIDSource without an id source. Got %v", err)
	}

	m = startedMachine(t, parent, WithIDSource(&mockIDSource{}))
	out, err := deliver(t, m, "spawn")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := event.MachineID{Name: "Child", Index: 0}
	if len(out.Created) != 1 || out.Created[0].ID != expected {
		t.Errorf("Unexpected creations: %v", out.Created)
	}
	if len(out.Sends) != 1 || out.Sends[0].Target() != expected {
		t.Errorf("Expected hello to be sent to the created machine. Got %v", out.Sends)
	}
}

func TestBuilderErrors(t *testing.T) {
	b := NewBuilder("Empty", state.NewAllocator())
	if _, err := b.Build(); err == nil {
		t.Errorf("Expected an error for an automaton without states")
	}

	alloc := state.NewAllocator()
	foreign := alloc.New("Foreign", nil)
	b = NewBuilder("M", alloc)
	s := b.State("S", nil)
	h := func(ctx *Context, msg event.Message) error { return nil }
	b.On(s, "a", h)
	b.On(s, "a", h)
	b.On(foreign, "b", h)
	if _, err := b.Build(); err == nil {
		t.Errorf("Expected errors for a duplicate handler and a foreign state")
	} else if !errors.Is(err, ErrUnknownState) {
		t.Errorf("Expected the foreign state to be reported. Got %v", err)
	}
}

func TestWithout(t *testing.T) {
	a, states := pingAutomaton(t)
	changed := a.Without(states["Init"], "go")
	if _, ok := changed.Handler(states["Init"].ID(), "go"); ok {
		t.Errorf("Expected the handler to be removed")
	}
	if _, ok := a.Handler(states["Init"].ID(), "go"); !ok {
		t.Errorf("Expected the original automaton to be unchanged")
	}
}

func TestMailboxFifo(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("messages are dispatched in arrival order", prop.ForAll(
		func(senders []int) bool {
			received := []event.MachineID{}
			b := NewBuilder("Sink", state.NewAllocator())
			s := b.State("S", nil)
			b.On(s, "msg", func(ctx *Context, msg event.Message) error {
				src, _ := msg.Source()
				received = append(received, src)
				return nil
			})
			a, _ := b.Build()
			m := New(event.MachineID{Name: "Sink"}, a)
			m.Start()

			sent := []event.MachineID{}
			for _, sender := range senders {
				src := event.MachineID{Name: "Sender", Index: sender}
				sent = append(sent, src)
				if err := m.Enqueue(event.NewMessage(src, len(sent), m.ID(), "msg", len(sent))); err != nil {
					return false
				}
			}
			for m.Pending() > 0 {
				if _, err := m.ProcessNext(); err != nil {
					return false
				}
			}
			return slices.Equal(sent, received)
		},
		gen.SliceOf(gen.IntRange(0, 3)),
	))
	properties.TestingRun(t)
}
