package pruntime

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap/zapcore"

	"pruntime/config"
	"pruntime/scheduler"
	"pruntime/storage"
	"pruntime/trace"
)

// Convert the simulation section of a configuration file into options.
//
// The replay strategy loads its schedule from the store, which must be non nil for it.
// A positive trace verbosity writes the trace of every run to stderr.
func SimulationOptions(ctx context.Context, f *config.File, store *storage.Store) ([]SimulatorOption, error) {
	sim := f.Simulation
	opts := []SimulatorOption{}
	switch sim.Strategy {
	case config.StrategyRandom:
		opts = append(opts, RandomStrategy(sim.Seed))
	case config.StrategyPrefix:
		opts = append(opts, PrefixStrategy())
	case config.StrategyReplay:
		if store == nil {
			return nil, errors.New("the replay strategy needs a store")
		}
		schedule, err := store.LoadSchedule(ctx, sim.Replay)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ReplayStrategy(schedule))
	}
	if sim.MaxRuns > 0 {
		opts = append(opts, MaxRuns(sim.MaxRuns))
	}
	if sim.MaxDepth > 0 {
		opts = append(opts, MaxDepth(sim.MaxDepth))
	}
	if sim.Concurrency > 0 {
		opts = append(opts, NumConcurrent(sim.Concurrency))
	}
	if sim.IgnoreErrors {
		opts = append(opts, IgnoreError())
	}
	if sim.IgnorePanics {
		opts = append(opts, IgnorePanic())
	}
	switch sim.Unhandled {
	case config.UnhandledHalt:
		opts = append(opts, WithUnhandledPolicy(scheduler.HaltMachine))
	case config.UnhandledFail:
		opts = append(opts, WithUnhandledPolicy(scheduler.FailRun))
	}
	if f.Trace.Verbosity > 0 {
		opts = append(opts, WithTrace(trace.NewConsoleLogger(zapcore.Lock(os.Stderr), f.Trace.Verbosity)))
	}
	return opts, nil
}

// Convert the containment section of a configuration file into options
func CheckOptions(f *config.File) []CheckOption {
	c := f.Containment
	opts := []CheckOption{}
	if c.MaxSends > 0 {
		opts = append(opts, MaxSends(c.MaxSends))
	}
	if c.MaxDepth > 0 {
		opts = append(opts, CheckDepth(c.MaxDepth))
	}
	if c.Parallelism > 0 {
		opts = append(opts, Parallelism(c.Parallelism))
	}
	if c.SolverTimeout > 0 {
		opts = append(opts, SolverTimeout(c.SolverTimeout))
	}
	return opts
}
