// Package pruntime checks programs of communicating state machines.
//
// A program is simulated run by run under a scheduling strategy and the explored states are checked against predicates.
// Failing runs are replayed from their schedule. Machine definitions that carry symbolic encodings of their states
// can be checked for trace containment with CheckContainment.
package pruntime

import (
	"context"
	"runtime"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"pruntime/checking"
	"pruntime/scheduler"
	"pruntime/simulator"
	"pruntime/stateManager"
	"pruntime/storage"
	"pruntime/trace"
)

type simulationConfig struct {
	strategy      scheduler.Strategy
	maxRuns       int
	maxDepth      int
	numConcurrent int
	ignoreErrors  bool
	ignorePanics  bool
	unhandled     scheduler.UnhandledPolicy
	trace         trace.Logger
	log           *zap.Logger
}

func newSimulationConfig(opts []SimulatorOption) simulationConfig {
	cfg := simulationConfig{
		maxRuns:       10000,
		maxDepth:      1000,
		numConcurrent: runtime.GOMAXPROCS(0),
		unhandled:     scheduler.HaltMachine,
		trace:         trace.Nop{},
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		switch t := opt.(type) {
		case strategyOption:
			cfg.strategy = t.strategy
		case maxRunsOption:
			cfg.maxRuns = t.maxRuns
		case maxDepthOption:
			cfg.maxDepth = t.maxDepth
		case numConcurrentOption:
			cfg.numConcurrent = t.n
		case ignoreErrorOption:
			cfg.ignoreErrors = true
		case ignorePanicOption:
			cfg.ignorePanics = true
		case unhandledOption:
			cfg.unhandled = t.policy
		case traceOption:
			cfg.trace = t.log
		case loggerOption:
			cfg.log = t.log
		}
	}
	if cfg.strategy == nil {
		cfg.strategy = scheduler.NewPrefixStrategy()
	}
	return cfg
}

// Prepare a simulation.
//
// Default values are used for options that are not provided. The default strategy is PrefixStrategy.
func PrepareSimulation(opts ...SimulatorOption) Simulation {
	cfg := newSimulationConfig(opts)
	sm := stateManager.NewTreeStateManager()
	sim := simulator.NewSimulator(
		cfg.strategy, sm, cfg.ignoreErrors, cfg.ignorePanics, cfg.maxRuns, cfg.maxDepth, cfg.numConcurrent,
		simulator.WithLogger(cfg.log),
		simulator.WithTrace(cfg.trace),
		simulator.WithUnhandledPolicy(cfg.unhandled),
	)
	return Simulation{sim: sim, sm: sm, log: cfg.log}
}

// A configured simulation.
//
// Only one Run can be in progress at a time.
type Simulation struct {
	sim *simulator.Simulator
	sm  *stateManager.TreeStateManager
	log *zap.Logger
}

// Simulate the program and check the predicates on the explored state space.
//
// A failing run is returned as an error wrapping *simulator.RunError and no predicates are checked.
// With IgnoreError the failures are aggregated in a *simulator.SimulationError returned next to the response.
func (sr Simulation) Run(ctx context.Context, program simulator.Program, opts ...RunOptions) (checking.CheckerResponse, error) {
	var (
		predicates []checking.Predicate
		exports    []exportOption
		stores     []storeOption
	)
	for _, opt := range opts {
		switch t := opt.(type) {
		case predicateOption:
			predicates = append(predicates, t.pred...)
		case exportOption:
			exports = append(exports, t)
		case storeOption:
			stores = append(stores, t)
		}
	}

	simErr := sr.sim.Simulate(ctx, program)
	var aggregated *simulator.SimulationError
	if simErr != nil && !errors.As(simErr, &aggregated) {
		var runErr *simulator.RunError
		if errors.As(simErr, &runErr) {
			if err := save(ctx, stores, runErr.Schedule); err != nil {
				return nil, errors.CombineErrors(simErr, err)
			}
		}
		return nil, simErr
	}

	space := sr.sm.State()
	for _, e := range exports {
		if space != nil {
			space.Export(e.w)
		}
	}

	resp := checking.NewPredicateChecker(predicates...).Check(space)
	if ok, _ := resp.Response(); !ok {
		sr.log.Info("predicate violated", zap.Int("depth", len(resp.Export())))
		if err := save(ctx, stores, resp.Export()); err != nil {
			return resp, errors.CombineErrors(simErr, err)
		}
	} else if aggregated != nil {
		var runErr *simulator.RunError
		if errors.As(aggregated.Errors[0], &runErr) {
			if err := save(ctx, stores, runErr.Schedule); err != nil {
				return resp, errors.CombineErrors(simErr, err)
			}
		}
	}
	if simErr != nil {
		return resp, simErr
	}
	return resp, nil
}

func save(ctx context.Context, stores []storeOption, schedule scheduler.Schedule) error {
	for _, s := range stores {
		if _, err := s.store.SaveSchedule(ctx, s.label, schedule); err != nil {
			return errors.Wrap(err, "save counterexample")
		}
	}
	return nil
}

// Replay the schedule against a fresh instance of the program.
//
// Returns the scheduler of the replayed run so that the final state can be inspected. A schedule
// that can not be reproduced returns an error wrapping scheduler.ErrReplayDivergence.
// The trace, logger, unhandled policy and max depth options apply. Under scheduler.HaltMachine an unhandled event
// halts its target and the replay continues.
func Replay(ctx context.Context, program simulator.Program, schedule scheduler.Schedule, opts ...SimulatorOption) (*scheduler.Scheduler, error) {
	cfg := newSimulationConfig(opts)
	s := scheduler.New(
		scheduler.NewReplay(schedule),
		scheduler.WithLogger(cfg.trace),
		scheduler.WithUnhandledPolicy(cfg.unhandled),
	)
	if err := program(s); err != nil {
		return s, errors.Wrap(err, "replay: program setup")
	}
	for cfg.maxDepth <= 0 || s.Depth() < cfg.maxDepth {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		ok, err := s.Step()
		if err != nil && s.Err() != nil {
			return s, errors.Wrap(err, "replay")
		}
		if err != nil {
			cfg.log.Debug("machine halted", zap.Error(err))
		}
		if !ok {
			break
		}
	}
	return s, nil
}

// Open the store at path, or return nil if path is empty
func OpenStore(ctx context.Context, path string) (*storage.Store, error) {
	if path == "" {
		return nil, nil
	}
	return storage.Open(ctx, path)
}
