// Package solver defines the satisfiability oracle consumed by the containment checker.
package solver

import (
	"context"
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"

	"pruntime/formula"
)

var (
	ErrSolverBusy = errors.New("solver: another query is in flight on this solver context")
	ErrTimeout    = errors.New("solver: timeout")
	ErrCanceled   = errors.New("solver: canceled")
)

type Status int

const (
	Unknown Status = iota
	Satisfiable
	Unsatisfiable
)

func (s Status) String() string {
	switch s {
	case Satisfiable:
		return "Satisfiable"
	case Unsatisfiable:
		return "Unsatisfiable"
	}
	return "Unknown"
}

// The answer to a query.
//
// Model is only set for Satisfiable results and assigns every variable of the query.
// Reason explains an Unknown result.
type Result struct {
	Status Status
	Model  formula.Model
	Reason string
}

func (r Result) String() string {
	if r.Status == Unknown && r.Reason != "" {
		return fmt.Sprintf("%v (%v)", r.Status, r.Reason)
	}
	return r.Status.String()
}

// An Oracle decides the satisfiability of a formula.
//
// A solver that gives up returns an Unknown result, not an error. Errors are reserved for failures to run the query at all.
type Oracle interface {
	Solve(ctx context.Context, f formula.Formula) (Result, error)
}

// Implemented by oracles that can describe themselves
type Named interface {
	Name() string
}

// Returns the name of the oracle, or its type if it has no name
func NameOf(o Oracle) string {
	if n, ok := o.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", o)
}

// Wraps the oracle so that it serves a single query at a time.
// A query issued while another one is in flight fails with ErrSolverBusy instead of waiting.
func Exclusive(o Oracle) Oracle {
	return &exclusive{o: o}
}

type exclusive struct {
	mu sync.Mutex
	o  Oracle
}

func (e *exclusive) Solve(ctx context.Context, f formula.Formula) (Result, error) {
	if !e.mu.TryLock() {
		return Result{}, ErrSolverBusy
	}
	defer e.mu.Unlock()
	return e.o.Solve(ctx, f)
}

func (e *exclusive) Name() string {
	return NameOf(e.o)
}
