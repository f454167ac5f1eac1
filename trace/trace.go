// Package trace is the boundary through which the runtime reports observable events.
//
// Sinks are pure observers. They never change the behavior of the runtime and may drop records.
package trace

import (
	"fmt"
	"sync"
	"sync/atomic"

	"pruntime/event"
)

type Kind int

const (
	MachineCreated Kind = iota
	MachineStarted
	EventProcessed
	StateTransition
	Send
	Unblock
	ScheduleStep
	ReplayBegin
)

func (k Kind) String() string {
	switch k {
	case MachineCreated:
		return "MachineCreated"
	case MachineStarted:
		return "MachineStarted"
	case EventProcessed:
		return "EventProcessed"
	case StateTransition:
		return "StateTransition"
	case Send:
		return "Send"
	case Unblock:
		return "Unblock"
	case ScheduleStep:
		return "ScheduleStep"
	case ReplayBegin:
		return "ReplayBegin"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// A Record of an observable runtime event.
//
// Only the fields relevant for the kind are set:
//
//	MachineCreated, MachineStarted: Machine
//	EventProcessed: Machine, Event, State (the state the event was processed in)
//	StateTransition: Machine, State (the new state)
//	Send: Machine (the sender), Event, Target
//	Unblock: Target, Event
//	ScheduleStep: Depth, Machine (the sender), Event, Target
//	ReplayBegin: none
type Record struct {
	Kind    Kind
	Machine event.MachineID
	Target  event.MachineID
	Event   event.Name
	State   string
	Depth   int
}

func (r Record) String() string {
	switch r.Kind {
	case MachineCreated:
		return fmt.Sprintf("Machine %v was created", r.Machine)
	case MachineStarted:
		return fmt.Sprintf("Machine %v starting", r.Machine)
	case EventProcessed:
		return fmt.Sprintf("Machine %v is processing event %v in state %v", r.Machine, r.Event, r.State)
	case StateTransition:
		return fmt.Sprintf("Machine %v transitioning to state %v", r.Machine, r.State)
	case Send:
		return fmt.Sprintf("Send %v to %v", r.Event, r.Target)
	case Unblock:
		return fmt.Sprintf("Unblock %v on receiving %v", r.Target, r.Event)
	case ScheduleStep:
		return fmt.Sprintf("  Depth %d: %v sent %v to %v", r.Depth, r.Machine, r.Event, r.Target)
	case ReplayBegin:
		return "Replaying Counterexample"
	}
	return fmt.Sprintf("%v %+v", r.Kind, r)
}

// A Logger consumes trace records.
//
// Log must not block for long and must never panic. Records that can not be handled are dropped.
type Logger interface {
	Log(r Record)
}

// A Logger discarding all records
type Nop struct{}

func (Nop) Log(Record) {}

// Forwards records to all loggers in order
type Multi []Logger

func (m Multi) Log(r Record) {
	for _, l := range m {
		if l != nil {
			l.Log(r)
		}
	}
}

// Wraps a Logger so that it can be enabled and disabled at any time.
//
// A Toggle is enabled when created.
type Toggle struct {
	l        Logger
	disabled atomic.Bool
}

func NewToggle(l Logger) *Toggle {
	return &Toggle{l: l}
}

func (t *Toggle) Enable()  { t.disabled.Store(false) }
func (t *Toggle) Disable() { t.disabled.Store(true) }

func (t *Toggle) Log(r Record) {
	if t.disabled.Load() {
		return
	}
	t.l.Log(r)
}

// Stores all records in memory.
//
// Is safe to use from multiple goroutines.
type Recorder struct {
	sync.Mutex
	records []Record
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (rec *Recorder) Log(r Record) {
	rec.Lock()
	defer rec.Unlock()
	rec.records = append(rec.records, r)
}

// Returns a copy of the recorded records
func (rec *Recorder) Records() []Record {
	rec.Lock()
	defer rec.Unlock()
	out := make([]Record, len(rec.records))
	copy(out, rec.records)
	return out
}

// Returns the recorded records of the provided kind
func (rec *Recorder) Filter(kind Kind) []Record {
	rec.Lock()
	defer rec.Unlock()
	out := []Record{}
	for _, r := range rec.records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func (rec *Recorder) Reset() {
	rec.Lock()
	defer rec.Unlock()
	rec.records = nil
}
