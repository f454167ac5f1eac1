package solver

import (
	"context"
	"sync"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"

	"pruntime/formula"
)

// How often a running solve checks whether it should give up
const pollInterval = time.Millisecond

type GiniOption func(*Gini)

// Give up on a query after the duration. A zero duration never gives up.
func WithTimeout(d time.Duration) GiniOption {
	return func(g *Gini) {
		g.timeout = d
	}
}

// An Oracle backed by the gini SAT solver.
//
// Every query is translated to CNF on a fresh solver instance. A Gini value is a single solver context: it serves one query at a time and
// fails overlapping queries with ErrSolverBusy.
type Gini struct {
	busy    sync.Mutex
	timeout time.Duration
}

func NewGini(opts ...GiniOption) *Gini {
	g := &Gini{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gini) Name() string {
	return "gini"
}

func (g *Gini) Solve(ctx context.Context, f formula.Formula) (Result, error) {
	if !g.busy.TryLock() {
		return Result{}, ErrSolverBusy
	}
	defer g.busy.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{Status: Unknown, Reason: ErrCanceled.Error()}, nil
	}

	c := logic.NewC()
	names := formula.Vars(f)
	lits := make(map[string]z.Lit, len(names))
	for _, name := range names {
		lits[name] = c.Lit()
	}
	root := translate(c, lits, f)
	switch root {
	case c.F:
		return Result{Status: Unsatisfiable}, nil
	case c.T:
		return Result{Status: Satisfiable, Model: formula.Model{}}, nil
	}

	s := gini.New()
	c.ToCnf(s)
	s.Assume(root)

	res, reason := g.run(ctx, s)
	switch res {
	case 1:
		model := make(formula.Model, len(names))
		for _, name := range names {
			model[name] = s.Value(lits[name])
		}
		return Result{Status: Satisfiable, Model: model}, nil
	case -1:
		return Result{Status: Unsatisfiable}, nil
	}
	return Result{Status: Unknown, Reason: reason}, nil
}

// Run the solver until it is done, the timeout passes or the context is done
func (g *Gini) run(ctx context.Context, s *gini.Gini) (int, string) {
	if g.timeout == 0 && ctx.Done() == nil {
		return s.Solve(), ""
	}
	var deadline <-chan time.Time
	if g.timeout > 0 {
		timer := time.NewTimer(g.timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	solve := s.GoSolve()
	for {
		if res, done := solve.Test(); done {
			return res, ""
		}
		select {
		case <-ticker.C:
		case <-deadline:
			return solve.Stop(), ErrTimeout.Error()
		case <-ctx.Done():
			return solve.Stop(), ErrCanceled.Error()
		}
	}
}

func translate(c *logic.C, lits map[string]z.Lit, f formula.Formula) z.Lit {
	switch t := f.(type) {
	case formula.Const:
		if t {
			return c.T
		}
		return c.F
	case formula.Var:
		return lits[string(t)]
	case formula.Not:
		return translate(c, lits, t.X).Not()
	case formula.And:
		ms := make([]z.Lit, len(t))
		for i, x := range t {
			ms[i] = translate(c, lits, x)
		}
		return c.Ands(ms...)
	case formula.Or:
		ms := make([]z.Lit, len(t))
		for i, x := range t {
			ms[i] = translate(c, lits, x)
		}
		return c.Ors(ms...)
	}
	return c.F
}
