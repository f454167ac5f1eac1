package checking

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"pruntime/scheduler"
	"pruntime/stateManager"
)

// The response of a PredicateChecker
type PredicateResponse struct {
	Result bool
	// The states leading to the violation. nil if Result is true
	Sequence []stateManager.GlobalState
	// The index of the violated predicate. -1 if Result is true
	Predicate int
}

func (pr PredicateResponse) Response() (bool, string) {
	if pr.Result {
		return true, "All predicates hold"
	}
	var buffer bytes.Buffer
	wrt := tabwriter.NewWriter(&buffer, 4, 4, 0, ' ', 0)
	fmt.Fprintf(&buffer, "Predicate %v broken. Sequence:\n", pr.Predicate)
	for _, gs := range pr.Sequence {
		fmt.Fprintf(wrt, "-> %v\n", gs)
	}
	wrt.Flush()
	return false, buffer.String()
}

// Returns the deliveries leading to the violation
func (pr PredicateResponse) Export() scheduler.Schedule {
	schedule := scheduler.Schedule{}
	for _, gs := range pr.Sequence {
		if gs.Choice != nil {
			schedule = append(schedule, *gs.Choice)
		}
	}
	return schedule
}

// Checks a set of predicates on every state of a state space
type PredicateChecker struct {
	predicates []Predicate
}

func NewPredicateChecker(predicates ...Predicate) *PredicateChecker {
	return &PredicateChecker{predicates: predicates}
}

// Searches the state space depth first and stops at the first state violating a predicate.
// A nil state space satisfies every predicate.
func (pc *PredicateChecker) Check(root stateManager.StateSpace) CheckerResponse {
	if root != nil {
		if resp := pc.checkNode(root, nil); resp != nil {
			return *resp
		}
	}
	return PredicateResponse{Result: true, Predicate: -1}
}

func (pc *PredicateChecker) checkNode(node stateManager.StateSpace, sequence []stateManager.GlobalState) *PredicateResponse {
	sequence = append(sequence, node.Payload())
	s := State{
		Machines:   node.Payload().Machines,
		IsTerminal: node.IsTerminal(),
		Sequence:   sequence,
	}
	for index, pred := range pc.predicates {
		if !pred(s) {
			return &PredicateResponse{
				Sequence:  append([]stateManager.GlobalState(nil), sequence...),
				Predicate: index,
			}
		}
	}
	for _, child := range node.Children() {
		if resp := pc.checkNode(child, sequence); resp != nil {
			return resp
		}
	}
	return nil
}
