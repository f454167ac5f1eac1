// Package stateManager collects the global states visited by runs of a program into a state space.
package stateManager

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"pruntime/event"
	"pruntime/scheduler"
	"pruntime/tree"

	"golang.org/x/exp/maps"
)

// The status of a single machine in a global state
type MachineStatus struct {
	State  string
	Halted bool
}

// The states of all machines between two steps of a run.
//
// Choice is the delivery that led to the state. It is nil for states recorded before the first delivery.
type GlobalState struct {
	Machines map[event.MachineID]MachineStatus
	Choice   *scheduler.Choice
}

// Builds a GlobalState from a scheduler snapshot
func FromSnapshot(snap []scheduler.MachineSnapshot, choice *scheduler.Choice) GlobalState {
	machines := make(map[event.MachineID]MachineStatus, len(snap))
	for _, m := range snap {
		machines[m.ID] = MachineStatus{State: m.State, Halted: m.Halted}
	}
	return GlobalState{Machines: machines, Choice: choice}
}

// Returns the machine ids in name and index order
func (gs GlobalState) IDs() []event.MachineID {
	ids := maps.Keys(gs.Machines)
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Name != ids[j].Name {
			return ids[i].Name < ids[j].Name
		}
		return ids[i].Index < ids[j].Index
	})
	return ids
}

func (gs GlobalState) String() string {
	parts := []string{}
	for _, id := range gs.IDs() {
		status := gs.Machines[id]
		if status.Halted {
			parts = append(parts, fmt.Sprintf("%v:%v(halted)", id, status.State))
			continue
		}
		parts = append(parts, fmt.Sprintf("%v:%v", id, status.State))
	}
	if gs.Choice == nil {
		return strings.Join(parts, " ")
	}
	return fmt.Sprintf("[%v] %v", gs.Choice, strings.Join(parts, " "))
}

// Two global states are equal if they were reached by the same delivery and every machine has the same status
func Equal(a, b GlobalState) bool {
	if (a.Choice == nil) != (b.Choice == nil) {
		return false
	}
	if a.Choice != nil && *a.Choice != *b.Choice {
		return false
	}
	return maps.Equal(a.Machines, b.Machines)
}

// A space of explored global states
type StateSpace interface {
	Payload() GlobalState
	Children() []StateSpace
	// True if some run ended in this state
	IsTerminal() bool
	Export(io.Writer)
}

type TreeStateSpace struct {
	*tree.Tree[GlobalState]
}

func (t TreeStateSpace) Children() []StateSpace {
	out := make([]StateSpace, 0, len(t.Tree.Children()))
	for _, child := range t.Tree.Children() {
		out = append(out, TreeStateSpace{child})
	}
	return out
}

func (t TreeStateSpace) IsTerminal() bool {
	return t.IsLeaf()
}

// Writes the state space in Newick format
func (t TreeStateSpace) Export(wrt io.Writer) {
	fmt.Fprint(wrt, t.Newick(GlobalState.String))
}
