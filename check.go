package pruntime

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pruntime/containment"
	"pruntime/solver"
)

// Check whether every observable behavior of candidate is allowed by spec.
//
// Horizons 1 to CheckDepth are checked with iterative deepening, observing MaxSends sends per encoding call.
// A NotContained result carries a witness whose schedule can be replayed against the program.
func CheckContainment(ctx context.Context, candidate, spec containment.Automaton, opts ...CheckOption) (containment.Result, error) {
	var (
		maxSends    = 1
		depth       = 4
		parallelism = 1
		timeout     time.Duration
		oracle      solver.Oracle
		log         = zap.NewNop()
	)
	for _, opt := range opts {
		switch t := opt.(type) {
		case maxSendsOption:
			maxSends = t.n
		case checkDepthOption:
			depth = t.depth
		case parallelismOption:
			parallelism = t.n
		case solverTimeoutOption:
			timeout = t.d
		case oracleOption:
			oracle = t.oracle
		case loggerOption:
			log = t.log
		}
	}

	newGini := func() solver.Oracle {
		var gopts []solver.GiniOption
		if timeout > 0 {
			gopts = append(gopts, solver.WithTimeout(timeout))
		}
		return solver.Exclusive(solver.NewGini(gopts...))
	}
	checkOpts := []containment.Option{containment.WithLogger(log)}
	if oracle == nil {
		oracle = newGini()
		if parallelism > 1 {
			checkOpts = append(checkOpts, containment.WithOracleFactory(newGini, parallelism))
		}
	}
	return containment.New(oracle, checkOpts...).Check(ctx, candidate, spec, containment.Bound{MaxSends: maxSends, MaxDepth: depth})
}
