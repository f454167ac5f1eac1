// Package config reads run configuration files.
//
// Zero values leave the defaults of the pruntime package in place.
//
//	simulation:
//	  strategy: prefix
//	  max_runs: 500
//	  unhandled: fail
//	containment:
//	  max_sends: 2
//	  solver_timeout: 5s
package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("config: invalid configuration")

// Names of the strategies a simulation can use
const (
	StrategyRandom = "random"
	StrategyPrefix = "prefix"
	StrategyReplay = "replay"
)

// Names of the unhandled event policies
const (
	UnhandledHalt = "halt"
	UnhandledFail = "fail"
)

type File struct {
	Simulation  Simulation  `yaml:"simulation"`
	Containment Containment `yaml:"containment"`
	Trace       Trace       `yaml:"trace"`
	// Path of the SQLite database schedules are stored in. Empty disables storage.
	Store string `yaml:"store"`
}

type Simulation struct {
	Strategy     string `yaml:"strategy"`
	Seed         int64  `yaml:"seed"`
	MaxRuns      int    `yaml:"max_runs"`
	MaxDepth     int    `yaml:"max_depth"`
	Concurrency  int    `yaml:"concurrency"`
	IgnoreErrors bool   `yaml:"ignore_errors"`
	IgnorePanics bool   `yaml:"ignore_panics"`
	Unhandled    string `yaml:"unhandled"`
	// Id of the stored schedule replayed by the replay strategy
	Replay int64 `yaml:"replay"`
}

type Containment struct {
	MaxSends      int           `yaml:"max_sends"`
	MaxDepth      int           `yaml:"max_depth"`
	Parallelism   int           `yaml:"parallelism"`
	SolverTimeout time.Duration `yaml:"solver_timeout"`
}

type Trace struct {
	Verbosity int `yaml:"verbosity"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read %s", path)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config: %s", path)
	}
	return f, nil
}

// Parse decodes and validates a configuration document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	f := &File{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "config: decode")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, errors.Wrapf(ErrInvalid, format, args...))
	}

	sim := f.Simulation
	switch sim.Strategy {
	case "", StrategyRandom, StrategyPrefix:
		if sim.Replay != 0 {
			invalid("simulation.replay is only used by the %s strategy", StrategyReplay)
		}
	case StrategyReplay:
		if sim.Replay <= 0 {
			invalid("simulation.replay must name a stored schedule")
		}
		if f.Store == "" {
			invalid("the %s strategy needs a store", StrategyReplay)
		}
	default:
		invalid("unknown simulation.strategy %q", sim.Strategy)
	}
	switch sim.Unhandled {
	case "", UnhandledHalt, UnhandledFail:
	default:
		invalid("unknown simulation.unhandled %q", sim.Unhandled)
	}
	if sim.MaxRuns < 0 {
		invalid("simulation.max_runs is negative")
	}
	if sim.MaxDepth < 0 {
		invalid("simulation.max_depth is negative")
	}
	if sim.Concurrency < 0 {
		invalid("simulation.concurrency is negative")
	}

	c := f.Containment
	if c.MaxSends < 0 {
		invalid("containment.max_sends is negative")
	}
	if c.MaxDepth < 0 {
		invalid("containment.max_depth is negative")
	}
	if c.Parallelism < 0 {
		invalid("containment.parallelism is negative")
	}
	if c.SolverTimeout < 0 {
		invalid("containment.solver_timeout is negative")
	}
	if f.Trace.Verbosity < 0 {
		invalid("trace.verbosity is negative")
	}
	return errors.Join(errs...)
}
