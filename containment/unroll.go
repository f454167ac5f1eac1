package containment

import (
	"sync"

	"github.com/cockroachdb/errors"

	"pruntime/formula"
	"pruntime/state"
)

// The automaton definition read by the checker.
type Automaton interface {
	Name() string
	Initial() *state.State
	State(id state.ID) (*state.State, bool)
}

type phase int

const (
	entryPhase phase = iota
	exitPhase
)

func (p phase) String() string {
	if p == exitPhase {
		return "exit"
	}
	return "entry"
}

type cacheKey struct {
	role     role
	state    state.ID
	phase    phase
	depth    int
	maxSends int
}

// Memoizes encoding calls. Encodings are pure, so the same key always yields the same branches.
type encodingCache struct {
	mu    sync.Mutex
	entry map[cacheKey][]state.EntryBranch
	exit  map[cacheKey][]state.ExitBranch
}

func newEncodingCache() *encodingCache {
	return &encodingCache{
		entry: map[cacheKey][]state.EntryBranch{},
		exit:  map[cacheKey][]state.ExitBranch{},
	}
}

func (c *encodingCache) entryBranches(obs *observations, r role, s *state.State, depth int, m state.MachineContext) []state.EntryBranch {
	key := cacheKey{r, s.ID(), entryPhase, depth, obs.maxSends}
	c.mu.Lock()
	branches, ok := c.entry[key]
	c.mu.Unlock()
	if ok {
		return branches
	}
	branches = s.EntryEncoding(obs.maxSends, callContext{obs: obs, role: r, depth: depth}, m)
	c.mu.Lock()
	c.entry[key] = branches
	c.mu.Unlock()
	return branches
}

func (c *encodingCache) exitBranches(obs *observations, r role, s *state.State, depth int, m state.MachineContext) []state.ExitBranch {
	key := cacheKey{r, s.ID(), exitPhase, depth, obs.maxSends}
	c.mu.Lock()
	branches, ok := c.exit[key]
	c.mu.Unlock()
	if ok {
		return branches
	}
	branches = s.ExitEncoding(obs.maxSends, callContext{obs: obs, role: r, depth: depth}, m)
	c.mu.Lock()
	c.exit[key] = branches
	c.mu.Unlock()
	return branches
}

// A step of a path: the encoding call of a state at a depth
type pathStep struct {
	depth int
	state *state.State
	phase phase
}

// A path of an automaton through its encodings up to a horizon.
//
// Formula holds iff the observations at every depth below the horizon are those of the path.
type path struct {
	formula   formula.Formula
	steps     []pathStep
	truncated bool
}

type unroller struct {
	obs     *observations
	cache   *encodingCache
	role    role
	a       Automaton
	horizon int

	paths []path
}

// Enumerate the paths of the automaton from its initial state.
//
// The entry of the state at depth d is followed, for a transition, by the exit of the state at d+1 and the entry of the successor at d+2.
// A state with an empty entry encoding is a silent step after which the machine waits; an empty exit encoding is a silent step accepting the successor.
// Guard space covered by no branch has no transition, so it contributes no path.
func unroll(obs *observations, cache *encodingCache, r role, a Automaton, horizon int) ([]path, error) {
	u := &unroller{
		obs:     obs,
		cache:   cache,
		role:    r,
		a:       a,
		horizon: horizon,
	}
	if err := u.entry(a.Initial(), 0, nil, nil); err != nil {
		return nil, err
	}
	return u.paths, nil
}

func (u *unroller) emit(guards []formula.Formula, steps []pathStep, next int) {
	truncated := next > u.horizon
	if truncated {
		next = u.horizon
	}
	all := make([]formula.Formula, 0, len(guards)+1)
	all = append(all, guards...)
	all = append(all, u.obs.silentBetween(next, u.horizon))
	f := formula.NewAnd(all...)
	if f == formula.False {
		return
	}
	u.paths = append(u.paths, path{
		formula:   f,
		steps:     append([]pathStep(nil), steps...),
		truncated: truncated,
	})
}

func (u *unroller) entry(s *state.State, depth int, guards []formula.Formula, steps []pathStep) error {
	if depth >= u.horizon {
		u.emit(guards, steps, u.horizon+1)
		return nil
	}
	steps = append(steps, pathStep{depth: depth, state: s, phase: entryPhase})
	branches := u.cache.entryBranches(u.obs, u.role, s, depth, u.a)
	if len(branches) == 0 {
		u.emit(append(guards, u.obs.silent(depth)), steps, depth+1)
		return nil
	}
	for _, b := range branches {
		g := guard(b.Guard)
		switch b.Outcome {
		case state.Stay, state.Halt:
			u.emit(append(guards, g), steps, depth+1)
		case state.Goto:
			next, ok := u.a.State(b.Next)
			if !ok {
				return errors.Wrapf(ErrUnknownSuccessor, "%v entry at depth %d names state %d", s, depth, b.Next)
			}
			if err := u.exit(s, next, depth+1, append(guards, g), steps); err != nil {
				return err
			}
		default:
			return errors.AssertionFailedf("unknown outcome %v", b.Outcome)
		}
	}
	return nil
}

func (u *unroller) exit(s, next *state.State, depth int, guards []formula.Formula, steps []pathStep) error {
	if depth >= u.horizon {
		u.emit(guards, steps, u.horizon+1)
		return nil
	}
	steps = append(steps, pathStep{depth: depth, state: s, phase: exitPhase})
	branches := u.cache.exitBranches(u.obs, u.role, s, depth, u.a)
	if len(branches) == 0 {
		return u.entry(next, depth+1, append(guards, u.obs.silent(depth)), steps)
	}
	for _, b := range branches {
		if b.Next != state.AnySuccessor {
			if _, ok := u.a.State(b.Next); !ok {
				return errors.Wrapf(ErrUnknownSuccessor, "%v exit at depth %d names state %d", s, depth, b.Next)
			}
			if b.Next != next.ID() {
				continue
			}
		}
		if err := u.entry(next, depth+1, append(guards, guard(b.Guard)), steps); err != nil {
			return err
		}
	}
	return nil
}

func guard(f formula.Formula) formula.Formula {
	if f == nil {
		return formula.True
	}
	return f
}
