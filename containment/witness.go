package containment

import (
	"fmt"
	"strings"

	"pruntime/event"
	"pruntime/formula"
	"pruntime/scheduler"
	"pruntime/state"
)

// A step of a witness: the encoding call of a state at a depth and the sends it performs
type Step struct {
	Depth int
	State string
	Phase string
	Sends []state.Send
}

func (s Step) String() string {
	if len(s.Sends) == 0 {
		return fmt.Sprintf("%d: %s %s (silent)", s.Depth, s.State, s.Phase)
	}
	sends := make([]string, len(s.Sends))
	for i, send := range s.Sends {
		sends[i] = send.String()
	}
	return fmt.Sprintf("%d: %s %s sends %s", s.Depth, s.State, s.Phase, strings.Join(sends, ", "))
}

// A behavior of the candidate that the specification does not have.
//
// Steps end with the last step performing a send. A silent witness has a single step.
type Witness struct {
	Machine string
	Steps   []Step
}

func (w *Witness) String() string {
	lines := make([]string, len(w.Steps))
	for i, s := range w.Steps {
		lines[i] = s.String()
	}
	return fmt.Sprintf("%s:\n%s", w.Machine, strings.Join(lines, "\n"))
}

// The sends of the witness in order
func (w *Witness) Sends() []state.Send {
	out := []state.Send{}
	for _, s := range w.Steps {
		out = append(out, s.Sends...)
	}
	return out
}

// Translate the witness to a schedule delivering its sends in order.
//
// Machines are identified by name with instance index 0, and the choices match on sender, target and event.
func (w *Witness) Schedule() scheduler.Schedule {
	sender := event.MachineID{Name: w.Machine}
	out := scheduler.Schedule{}
	for _, send := range w.Sends() {
		out = append(out, scheduler.Choice{
			Depth:  len(out),
			Sender: sender,
			Target: event.MachineID{Name: send.Target},
			Event:  send.Event,
		})
	}
	return out
}

// Find the candidate path satisfied by the model and decode its sends
func witness(obs *observations, candidate Automaton, q query, m formula.Model) *Witness {
	var p *path
	for i := range q.candidate {
		if q.candidate[i].formula.Eval(m) {
			p = &q.candidate[i]
			break
		}
	}
	w := &Witness{Machine: candidate.Name()}
	if p == nil {
		return w
	}
	last := 0
	for i, ps := range p.steps {
		sends := obs.observed(m, ps.depth)
		if len(sends) > 0 {
			last = i
		}
		w.Steps = append(w.Steps, Step{
			Depth: ps.depth,
			State: ps.state.Name(),
			Phase: ps.phase.String(),
			Sends: sends,
		})
	}
	if len(w.Steps) > 0 {
		w.Steps = w.Steps[:last+1]
	}
	return w
}
