// Package simulator runs a program many times under a scheduling strategy.
package simulator

import (
	"context"
	"runtime/debug"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"pruntime/machine"
	"pruntime/scheduler"
	"pruntime/stateManager"
	"pruntime/trace"
)

// Every progressInterval completed runs the simulator logs its progress
const progressInterval = 1000

// Sets up a run: creates the machines and injects the events that start the program
type Program func(s *scheduler.Scheduler) error

type Option func(*Simulator)

func WithLogger(log *zap.Logger) Option {
	return func(s *Simulator) {
		s.log = log
	}
}

// The trace sink handed to the scheduler of every run. It is shared by concurrent runs.
func WithTrace(l trace.Logger) Option {
	return func(s *Simulator) {
		s.trace = l
	}
}

func WithUnhandledPolicy(p scheduler.UnhandledPolicy) Option {
	return func(s *Simulator) {
		s.unhandled = p
	}
}

// Simulates a program.
//
// Every run gets its own scheduler and machines, so runs share nothing but the strategy and the state manager.
type Simulator struct {
	strategy scheduler.Strategy
	// nil if no states are collected
	sm stateManager.StateManager

	log       *zap.Logger
	trace     trace.Logger
	unhandled scheduler.UnhandledPolicy

	// If true, failed runs do not stop the simulation. The errors are aggregated and returned at the end.
	ignoreErrors bool
	// If true, panics are not recovered, neither in handlers nor in the program
	ignorePanics bool

	maxRuns       int
	maxDepth      int
	numConcurrent int
}

// Create a new simulator.
//
// maxRuns bounds the number of runs, maxDepth the number of deliveries in a run and numConcurrent the number of runs simulated at the same time.
func NewSimulator(strategy scheduler.Strategy, sm stateManager.StateManager, ignoreErrors bool, ignorePanics bool, maxRuns int, maxDepth int, numConcurrent int, opts ...Option) *Simulator {
	s := &Simulator{
		strategy:      strategy,
		sm:            sm,
		log:           zap.NewNop(),
		trace:         trace.Nop{},
		ignoreErrors:  ignoreErrors,
		ignorePanics:  ignorePanics,
		maxRuns:       maxRuns,
		maxDepth:      maxDepth,
		numConcurrent: numConcurrent,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.numConcurrent < 1 {
		s.numConcurrent = 1
	}
	return s
}

// Simulate runs of the program until maxRuns runs have been simulated, the strategy has no more runs or the context is done.
//
// Returns nil if every run succeeded. Without ignoreErrors the first failing run stops the simulation and its *RunError is returned.
func (s *Simulator) Simulate(ctx context.Context, program Program) error {
	if program == nil {
		return errors.New("simulator: a program is required")
	}
	if s.maxRuns < 1 {
		return nil
	}
	if s.sm != nil {
		s.sm.Reset()
	}

	// Signals a runner to start the next run
	nextRun := make(chan bool)
	// One status per completed run
	status := make(chan error)
	// Runners signal on closing when they stop
	closing := make(chan bool)

	ongoing := 0
	started := 0
	for ongoing < s.numConcurrent && started < s.maxRuns {
		ongoing++
		r := &runner{sim: s, policy: s.strategy.GetRunPolicy()}
		if s.sm != nil {
			r.sm = s.sm.GetRunStateManager()
		}
		go r.simulateRuns(ctx, program, nextRun, status, closing)
		started++
		nextRun <- true
	}
	return s.mainLoop(ctx, ongoing, started, nextRun, status, closing)
}

// Hands out runs to the runners until maxRuns runs have started, a run fails or the context is done.
// Returns when every runner has stopped.
func (s *Simulator) mainLoop(ctx context.Context, ongoing, started int, nextRun chan bool, status chan error, closing chan bool) error {
	errs := []error{}
	var out error
	completed := 0

	stopped := false
	stop := func() {
		if !stopped {
			stopped = true
			close(nextRun)
		}
	}
	done := ctx.Done()
	for ongoing > 0 {
		select {
		case err := <-status:
			completed++
			if completed%progressInterval == 0 {
				s.log.Info("simulated runs", zap.Int("runs", completed), zap.Int("failed", len(errs)))
			}
			if isCanceled(err) {
				if out == nil {
					out = err
				}
				stop()
				continue
			}
			if err != nil {
				if !s.ignoreErrors {
					if out == nil {
						out = err
					}
					stop()
					continue
				}
				errs = append(errs, err)
			}
			if !stopped && started < s.maxRuns {
				started++
				nextRun <- true
			} else {
				stop()
			}
		case <-closing:
			ongoing--
		case <-done:
			done = nil
			if out == nil {
				out = ctx.Err()
			}
			stop()
		}
	}
	stop()
	s.log.Debug("simulation done", zap.Int("runs", completed), zap.Int("failed", len(errs)))

	if out == nil && len(errs) > 0 {
		return &SimulationError{Errors: errs}
	}
	return out
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Simulates runs for a single goroutine
type runner struct {
	sim    *Simulator
	policy scheduler.RunPolicy
	sm     *stateManager.RunStateManager
}

// Simulates a run for every signal on nextRun.
// Stops when nextRun is closed or the strategy has no more runs.
func (r *runner) simulateRuns(ctx context.Context, program Program, nextRun chan bool, status chan error, closing chan bool) {
	for range nextRun {
		err := r.simulateRun(ctx, program)
		if errors.Is(err, scheduler.ErrNoRuns) {
			break
		}
		status <- err
	}
	closing <- true
}

func (r *runner) simulateRun(ctx context.Context, program Program) (err error) {
	if err := r.policy.StartRun(); err != nil {
		return err
	}
	defer r.policy.EndRun()

	opts := []scheduler.Option{
		scheduler.WithLogger(r.sim.trace),
		scheduler.WithUnhandledPolicy(r.sim.unhandled),
	}
	if r.sim.ignorePanics {
		opts = append(opts, scheduler.WithMachineOptions(machine.WithPanics()))
	}
	s := scheduler.New(r.policy, opts...)

	if !r.sim.ignorePanics {
		defer func() {
			if p := recover(); p != nil {
				err = &RunError{
					Schedule: s.Schedule(),
					Err:      errors.Newf("simulator: panic while simulating a run: %v\n%s", p, debug.Stack()),
				}
			}
		}()
	}
	if r.sm != nil {
		defer r.sm.EndRun()
	}

	if err := program(s); err != nil {
		return &RunError{Schedule: s.Schedule(), Err: errors.Wrap(err, "simulator: program setup")}
	}
	if r.sm != nil {
		r.sm.Observe(s)
	}
	return r.execute(ctx, s)
}

// Deliver messages until the run is quiescent, maxDepth is reached or the run fails
func (r *runner) execute(ctx context.Context, s *scheduler.Scheduler) error {
	for r.sim.maxDepth <= 0 || s.Depth() < r.sim.maxDepth {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := s.Step()
		if err != nil && s.Err() != nil {
			return &RunError{Schedule: s.Schedule(), Err: err}
		}
		if err != nil {
			// The target of an unhandled event was halted and the run continues
			r.sim.log.Debug("machine halted", zap.Error(err))
		}
		if !ok {
			return nil
		}
		if r.sm != nil {
			r.sm.Observe(s)
		}
	}
	return nil
}
