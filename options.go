package pruntime

import (
	"io"
	"time"

	"go.uber.org/zap"

	"pruntime/checking"
	"pruntime/scheduler"
	"pruntime/solver"
	"pruntime/storage"
	"pruntime/trace"
)

type SimulatorOption interface{}

type strategyOption struct{ strategy scheduler.Strategy }

// Use a random strategy for the simulation.
//
// Every run picks the next delivery uniformly among the candidates.
// It does not guarantee that all runs are explored, nor that the same run is not simulated several times.
func RandomStrategy(seed int64) SimulatorOption {
	return strategyOption{strategy: scheduler.NewRandomStrategy(seed)}
}

// Use a prefix strategy for the simulation.
//
// The prefix strategy performs a depth first search over the interleavings of the program.
// The simulation stops when every interleaving has been explored.
func PrefixStrategy() SimulatorOption {
	return strategyOption{strategy: scheduler.NewPrefixStrategy()}
}

// Replay the schedule once, failing the run if it can not be reproduced
func ReplayStrategy(schedule scheduler.Schedule) SimulatorOption {
	return strategyOption{strategy: scheduler.NewReplayStrategy(schedule)}
}

func WithStrategy(strategy scheduler.Strategy) SimulatorOption {
	return strategyOption{strategy: strategy}
}

type maxRunsOption struct{ maxRuns int }

// Configure the maximum number of runs simulated
//
// Default value is 10000
func MaxRuns(maxRuns int) SimulatorOption {
	return maxRunsOption{maxRuns: maxRuns}
}

type maxDepthOption struct{ maxDepth int }

// Configure the maximum number of deliveries in a run.
//
// Default value is 1000.
//
// Eventually predicates only see the end of runs that are explored to quiescence.
func MaxDepth(maxDepth int) SimulatorOption {
	return maxDepthOption{maxDepth: maxDepth}
}

type numConcurrentOption struct{ n int }

// Configure the number of runs that are simulated concurrently.
//
// Default value is GOMAXPROCS
func NumConcurrent(n int) SimulatorOption {
	return numConcurrentOption{n: n}
}

type ignorePanicOption struct{}

// Let panics raised while simulating propagate instead of returning them as errors.
//
// The simulation stops at the panic, which makes it possible to inspect the state with a debugger.
func IgnorePanic() SimulatorOption {
	return ignorePanicOption{}
}

type ignoreErrorOption struct{}

// Continue simulating when runs fail. The errors are aggregated and returned at the end.
func IgnoreError() SimulatorOption {
	return ignoreErrorOption{}
}

type unhandledOption struct{ policy scheduler.UnhandledPolicy }

// Configure what happens when a machine receives an event it can not handle.
//
// Default value is scheduler.HaltMachine
func WithUnhandledPolicy(p scheduler.UnhandledPolicy) SimulatorOption {
	return unhandledOption{policy: p}
}

type traceOption struct{ log trace.Logger }

// Send the trace of every run to the logger
func WithTrace(l trace.Logger) SimulatorOption {
	return traceOption{log: l}
}

type loggerOption struct{ log *zap.Logger }

// Configure the logger for progress and diagnostics. Accepted both as a SimulatorOption and as a CheckOption.
//
// Default value is a no-op logger
func WithLogger(log *zap.Logger) loggerOption {
	return loggerOption{log: log}
}

type RunOptions interface{}

type predicateOption struct{ pred []checking.Predicate }

// Specify predicates that must hold in every explored state.
func WithPredicate(preds ...checking.Predicate) RunOptions {
	return predicateOption{pred: preds}
}

type exportOption struct{ w io.Writer }

// Write the explored state space to the writer
func Export(w io.Writer) RunOptions {
	return exportOption{w: w}
}

type storeOption struct {
	store *storage.Store
	label string
}

// Save the schedule of a failing run, or of a run violating a predicate, to the store under the label
func SaveCounterexample(store *storage.Store, label string) RunOptions {
	return storeOption{store: store, label: label}
}

type CheckOption interface{}

type maxSendsOption struct{ n int }

// Configure the number of sends observed per encoding call.
//
// Default value is 1
func MaxSends(n int) CheckOption {
	return maxSendsOption{n: n}
}

type checkDepthOption struct{ depth int }

// Configure the deepest horizon checked.
//
// Default value is 4
func CheckDepth(depth int) CheckOption {
	return checkDepthOption{depth: depth}
}

type parallelismOption struct{ n int }

// Check up to n horizons at the same time, each with its own solver.
//
// Default value is 1
func Parallelism(n int) CheckOption {
	return parallelismOption{n: n}
}

type solverTimeoutOption struct{ d time.Duration }

// Bound every solver query. A query that runs out of time makes the horizon Unknown.
//
// Default value is no timeout
func SolverTimeout(d time.Duration) CheckOption {
	return solverTimeoutOption{d: d}
}

type oracleOption struct{ oracle solver.Oracle }

// Use the oracle instead of the built in SAT solver. Parallelism is ignored since the oracle is shared.
func WithOracle(o solver.Oracle) CheckOption {
	return oracleOption{oracle: o}
}
