// Package containment decides, within a bound, whether every behavior of a candidate automaton is matched by a specification automaton.
//
// Both automata are unrolled through the encodings of their states. The observable behavior of a path is the sequence of sends at
// every call depth, and the two sides are compared in lockstep: the send slots of depth d on the candidate side are the same
// solver variables as on the specification side. The query handed to the oracle is
//
//	wellFormed ∧ (∨ candidate paths) ∧ ¬(∨ ∃choices. specification path)
//
// where the local choices of the specification are eliminated per path, so the query is quantifier free.
package containment

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pruntime/formula"
	"pruntime/solver"
)

var (
	ErrInvalidBound     = errors.New("containment: invalid bound")
	ErrUnknownSuccessor = errors.New("containment: encoding names a state outside of the automaton")
)

// Limits the search. MaxSends bounds the sends of a single step, MaxDepth the number of call depths explored.
//
// A step sending more than MaxSends messages is outside the bound and has no path. When a candidate step is dropped
// this way the result says so in its Reason.
type Bound struct {
	MaxSends int
	MaxDepth int
}

func (b Bound) validate() error {
	if b.MaxSends < 0 {
		return errors.Wrapf(ErrInvalidBound, "max sends %d", b.MaxSends)
	}
	if b.MaxDepth < 1 {
		return errors.Wrapf(ErrInvalidBound, "max depth %d", b.MaxDepth)
	}
	return nil
}

type Verdict int

const (
	// No behavior of the candidate up to the bound is missing from the specification
	Contained Verdict = iota
	// The witness is a behavior of the candidate that the specification does not have
	NotContained
	// The oracle could not decide some horizon and no counterexample was found
	Unknown
)

func (v Verdict) String() string {
	switch v {
	case Contained:
		return "Contained"
	case NotContained:
		return "NotContained"
	}
	return "Unknown"
}

// The result of a containment check.
//
// Depth is the horizon of the witness for NotContained, the first undecided horizon for Unknown and the largest horizon checked for Contained.
// Exhaustive is set for Contained results when no path of either automaton reached the horizon, in which case the result holds for every depth.
// Reason explains an Unknown result, and notes behavior left out by MaxSends for the other verdicts.
type Result struct {
	Verdict    Verdict
	Depth      int
	Exhaustive bool
	Witness    *Witness
	Reason     string
}

func (r Result) String() string {
	switch r.Verdict {
	case NotContained:
		if r.Reason != "" {
			return fmt.Sprintf("%v at depth %d: %v", r.Verdict, r.Depth, r.Reason)
		}
		return fmt.Sprintf("%v at depth %d", r.Verdict, r.Depth)
	case Unknown:
		return fmt.Sprintf("%v at depth %d: %v", r.Verdict, r.Depth, r.Reason)
	}
	out := fmt.Sprintf("%v up to depth %d", r.Verdict, r.Depth)
	if r.Exhaustive {
		out = fmt.Sprintf("%v", r.Verdict)
	}
	if r.Reason != "" {
		out += ": " + r.Reason
	}
	return out
}

type Option func(*Checker)

// Check the horizons concurrently. Every concurrent query gets its own oracle from the factory.
func WithOracleFactory(factory func() solver.Oracle, parallelism int) Option {
	return func(c *Checker) {
		c.factory = factory
		c.parallelism = parallelism
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Checker) {
		c.log = log
	}
}

type Checker struct {
	oracle      solver.Oracle
	factory     func() solver.Oracle
	parallelism int
	log         *zap.Logger
}

func New(oracle solver.Oracle, opts ...Option) *Checker {
	c := &Checker{
		oracle: oracle,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// The query of a single horizon
type query struct {
	horizon    int
	formula    formula.Formula
	candidate  []path
	exhaustive bool
}

type horizonResult struct {
	horizon int
	result  solver.Result
	query   query
}

// Check whether the candidate is contained in the specification within the bound.
//
// Horizons 1 to MaxDepth are checked in increasing order, or concurrently when an oracle factory is configured.
// The witness of a NotContained result is found at the smallest failing horizon.
func (c *Checker) Check(ctx context.Context, candidate, spec Automaton, b Bound) (Result, error) {
	if err := b.validate(); err != nil {
		return Result{}, err
	}
	obs := newObservations(b.MaxSends)
	cache := newEncodingCache()

	var (
		res Result
		err error
	)
	if c.factory != nil && c.parallelism > 1 {
		res, err = c.checkParallel(ctx, obs, cache, candidate, spec, b)
	} else {
		res, err = c.checkSequential(ctx, obs, cache, candidate, spec, b)
	}
	if err != nil {
		return Result{}, err
	}
	return outsideBound(obs, b, res), nil
}

func (c *Checker) checkSequential(ctx context.Context, obs *observations, cache *encodingCache, candidate, spec Automaton, b Bound) (Result, error) {
	var unknown *horizonResult
	for h := 1; h <= b.MaxDepth; h++ {
		q, err := buildQuery(obs, cache, candidate, spec, h)
		if err != nil {
			return Result{}, err
		}
		res, err := c.oracle.Solve(ctx, q.formula)
		if err != nil {
			return Result{}, errors.Wrapf(err, "containment: horizon %d", h)
		}
		c.log.Debug("checked horizon", zap.Int("horizon", h), zap.Stringer("status", res.Status))
		hr := horizonResult{horizon: h, result: res, query: q}
		switch res.Status {
		case solver.Satisfiable:
			return notContained(obs, candidate, hr), nil
		case solver.Unknown:
			if unknown == nil {
				unknown = &hr
			}
		case solver.Unsatisfiable:
			if q.exhaustive && unknown == nil {
				return Result{Verdict: Contained, Depth: h, Exhaustive: true}, nil
			}
		}
	}
	if unknown != nil {
		return Result{Verdict: Unknown, Depth: unknown.horizon, Reason: unknown.result.Reason}, nil
	}
	return Result{Verdict: Contained, Depth: b.MaxDepth}, nil
}

func (c *Checker) checkParallel(ctx context.Context, obs *observations, cache *encodingCache, candidate, spec Automaton, b Bound) (Result, error) {
	results := make([]horizonResult, b.MaxDepth)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for h := 1; h <= b.MaxDepth; h++ {
		h := h
		g.Go(func() error {
			q, err := buildQuery(obs, cache, candidate, spec, h)
			if err != nil {
				return err
			}
			res, err := c.factory().Solve(gctx, q.formula)
			if err != nil {
				return errors.Wrapf(err, "containment: horizon %d", h)
			}
			c.log.Debug("checked horizon", zap.Int("horizon", h), zap.Stringer("status", res.Status))
			results[h-1] = horizonResult{horizon: h, result: res, query: q}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var unknown *horizonResult
	for i := range results {
		hr := results[i]
		switch hr.result.Status {
		case solver.Satisfiable:
			return notContained(obs, candidate, hr), nil
		case solver.Unknown:
			if unknown == nil {
				unknown = &results[i]
			}
		case solver.Unsatisfiable:
			if hr.query.exhaustive && unknown == nil {
				return Result{Verdict: Contained, Depth: hr.horizon, Exhaustive: true}, nil
			}
		}
	}
	if unknown != nil {
		return Result{Verdict: Unknown, Depth: unknown.horizon, Reason: unknown.result.Reason}, nil
	}
	return Result{Verdict: Contained, Depth: b.MaxDepth}, nil
}

func buildQuery(obs *observations, cache *encodingCache, candidate, spec Automaton, horizon int) (query, error) {
	cpaths, err := unroll(obs, cache, candidateRole, candidate, horizon)
	if err != nil {
		return query{}, errors.Wrapf(err, "containment: unroll %v", candidate.Name())
	}
	spaths, err := unroll(obs, cache, specRole, spec, horizon)
	if err != nil {
		return query{}, errors.Wrapf(err, "containment: unroll %v", spec.Name())
	}

	exhaustive := true
	cs := make([]formula.Formula, len(cpaths))
	for i, p := range cpaths {
		cs[i] = p.formula
		exhaustive = exhaustive && !p.truncated
	}
	ss := make([]formula.Formula, len(spaths))
	for i, p := range spaths {
		choices := []string{}
		for _, name := range formula.Vars(p.formula) {
			if isChoice(specRole, name) {
				choices = append(choices, name)
			}
		}
		ss[i] = formula.Exists(p.formula, choices...)
		exhaustive = exhaustive && !p.truncated
	}

	body := formula.NewAnd(formula.NewOr(cs...), formula.NewNot(formula.NewOr(ss...)))
	f := formula.NewAnd(obs.wellFormed(horizon, formula.Vars(body)), body)
	return query{
		horizon:    horizon,
		formula:    f,
		candidate:  cpaths,
		exhaustive: exhaustive,
	}, nil
}

// Note the steps dropped for sending more than MaxSends messages
func outsideBound(obs *observations, b Bound, res Result) Result {
	if res.Verdict == Unknown {
		return res
	}
	var side string
	switch {
	case res.Verdict == Contained && obs.overflows(candidateRole):
		side = "candidate"
	case res.Verdict == NotContained && obs.overflows(specRole):
		side = "specification"
	default:
		return res
	}
	res.Reason = fmt.Sprintf("%s steps sending more than %d messages are outside the bound", side, b.MaxSends)
	return res
}

func notContained(obs *observations, candidate Automaton, hr horizonResult) Result {
	return Result{
		Verdict: NotContained,
		Depth:   hr.horizon,
		Witness: witness(obs, candidate, hr.query, hr.result.Model),
	}
}
