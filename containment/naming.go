package containment

import (
	"fmt"
	"strings"
	"sync"

	"pruntime/formula"
	"pruntime/state"
)

// The role of an automaton in a query. It prefixes the names of local choice variables so that the two sides never share them.
type role string

const (
	candidateRole role = "candidate"
	specRole      role = "spec"
)

// Names the observation variables shared by both sides.
//
// Every call depth owns maxSends send slots. A slot is either idle or observes exactly one send.
// The names are a pure function of (depth, slot, send) so that repeated encodings are identical.
type observations struct {
	maxSends int

	mu    sync.Mutex
	sends map[string]slotSend
	// Roles with an encoding call that asked for more than maxSends sends
	overflow map[role]bool
}

type slotSend struct {
	depth int
	slot  int
	send  state.Send
}

func newObservations(maxSends int) *observations {
	return &observations{
		maxSends: maxSends,
		sends:    map[string]slotSend{},
		overflow: map[role]bool{},
	}
}

func slotPrefix(depth, slot int) string {
	return fmt.Sprintf("obs.d%d.k%d.", depth, slot)
}

func idleName(depth, slot int) string {
	return slotPrefix(depth, slot) + "idle"
}

func (o *observations) idle(depth, slot int) formula.Formula {
	return formula.V(idleName(depth, slot))
}

func (o *observations) send(depth, slot int, s state.Send) formula.Formula {
	name := slotPrefix(depth, slot) + s.String()
	o.mu.Lock()
	o.sends[name] = slotSend{depth: depth, slot: slot, send: s}
	o.mu.Unlock()
	return formula.V(name)
}

func (o *observations) overflowed(r role) {
	o.mu.Lock()
	o.overflow[r] = true
	o.mu.Unlock()
}

// Returns true if some encoding call of the role asked for more sends than a step can observe
func (o *observations) overflows(r role) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.overflow[r]
}

// Returns the send observed by the named variable, if it is a send observation
func (o *observations) lookup(name string) (slotSend, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sends[name]
	return s, ok
}

// Every slot at the depth is idle
func (o *observations) silent(depth int) formula.Formula {
	idle := make([]formula.Formula, o.maxSends)
	for k := range idle {
		idle[k] = o.idle(depth, k)
	}
	return formula.NewAnd(idle...)
}

// Every slot of the depths [from, to) is idle
func (o *observations) silentBetween(from, to int) formula.Formula {
	out := []formula.Formula{}
	for d := from; d < to; d++ {
		out = append(out, o.silent(d))
	}
	return formula.NewAnd(out...)
}

// Each slot of the depths below horizon holds exactly one observation among those occurring in vars
func (o *observations) wellFormed(horizon int, vars []string) formula.Formula {
	bySlot := map[string][]formula.Formula{}
	for _, name := range vars {
		if s, ok := o.lookup(name); ok {
			prefix := slotPrefix(s.depth, s.slot)
			bySlot[prefix] = append(bySlot[prefix], formula.V(name))
		}
	}
	out := []formula.Formula{}
	for d := 0; d < horizon; d++ {
		for k := 0; k < o.maxSends; k++ {
			options := append([]formula.Formula{o.idle(d, k)}, bySlot[slotPrefix(d, k)]...)
			out = append(out, formula.ExactlyOne(options...))
		}
	}
	return formula.NewAnd(out...)
}

func choiceName(r role, s state.ID, depth int, name string) string {
	return fmt.Sprintf("%s.s%d.d%d.%s", r, s, depth, name)
}

func isChoice(r role, name string) bool {
	return strings.HasPrefix(name, string(r)+".")
}

// The CheckerContext handed to a single encoding call
type callContext struct {
	obs   *observations
	role  role
	depth int
}

func (c callContext) Depth() int {
	return c.depth
}

func (c callContext) Sends(sends ...state.Send) formula.Formula {
	if len(sends) > c.obs.maxSends {
		c.obs.overflowed(c.role)
		return formula.False
	}
	out := make([]formula.Formula, c.obs.maxSends)
	for k := range out {
		if k < len(sends) {
			out[k] = c.obs.send(c.depth, k, sends[k])
		} else {
			out[k] = c.obs.idle(c.depth, k)
		}
	}
	return formula.NewAnd(out...)
}

func (c callContext) Silent() formula.Formula {
	return c.obs.silent(c.depth)
}

func (c callContext) Choice(s state.ID, name string) formula.Formula {
	return formula.V(choiceName(c.role, s, c.depth, name))
}

// Sends of the depth as assigned by the model, in slot order
func (o *observations) observed(m formula.Model, depth int) []state.Send {
	out := []state.Send{}
	for k := 0; k < o.maxSends; k++ {
		o.mu.Lock()
		for name, s := range o.sends {
			if s.depth == depth && s.slot == k && m[name] {
				out = append(out, s.send)
				break
			}
		}
		o.mu.Unlock()
	}
	return out
}
