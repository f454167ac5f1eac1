package scheduler

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// Explores every interleaving of a program, one run at a time.
//
// The strategy keeps a frontier of unexplored prefixes. A run follows a prefix it takes from the frontier and
// continues depth first from its end. Every candidate it passes over on the way is pushed back as a new prefix.
// The exploration is done when the frontier is empty and no run is left that could extend it.
//
// The strategy is shared by all run policies it creates and is safe for concurrent use.
type Prefix struct {
	mu sync.Mutex
	// Signalled when the frontier grows or a run ends
	changed  *sync.Cond
	frontier []Schedule
	active   int
}

func NewPrefixStrategy() *Prefix {
	p := &Prefix{frontier: []Schedule{{}}}
	p.changed = sync.NewCond(&p.mu)
	return p
}

func (p *Prefix) GetRunPolicy() RunPolicy {
	return &prefixRun{strategy: p}
}

// Take the most recently pushed prefix, waiting while the frontier is empty but some run can still extend it
func (p *Prefix) take() (Schedule, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.frontier) == 0 && p.active > 0 {
		p.changed.Wait()
	}
	if len(p.frontier) == 0 {
		return nil, false
	}
	last := len(p.frontier) - 1
	prefix := p.frontier[last]
	p.frontier[last] = nil
	p.frontier = p.frontier[:last]
	p.active++
	return prefix, true
}

func (p *Prefix) push(prefixes []Schedule) {
	if len(prefixes) == 0 {
		return
	}
	p.mu.Lock()
	p.frontier = append(p.frontier, prefixes...)
	p.mu.Unlock()
	p.changed.Broadcast()
}

func (p *Prefix) release() {
	p.mu.Lock()
	p.active--
	p.mu.Unlock()
	p.changed.Broadcast()
}

type prefixRun struct {
	strategy *Prefix
	// Follows the prefix taken from the frontier
	follow *Replay
	// The choices of the run so far
	taken Schedule
}

func (pr *prefixRun) Choose(depth int, candidates []Candidate) (int, error) {
	i, err := pr.follow.Choose(depth, candidates)
	if err == nil {
		pr.taken = append(pr.taken, candidates[i].Choice(depth))
		return i, nil
	}
	if !errors.Is(err, ErrScheduleEnded) {
		return 0, err
	}

	chosen, _ := DepthFirst{}.Choose(depth, candidates)
	alternatives := make([]Schedule, 0, len(candidates)-1)
	for i, c := range candidates {
		if i == chosen {
			continue
		}
		alt := make(Schedule, len(pr.taken), len(pr.taken)+1)
		copy(alt, pr.taken)
		alternatives = append(alternatives, append(alt, c.Choice(depth)))
	}
	pr.strategy.push(alternatives)
	pr.taken = append(pr.taken, candidates[chosen].Choice(depth))
	return chosen, nil
}

func (pr *prefixRun) StartRun() error {
	prefix, ok := pr.strategy.take()
	if !ok {
		return ErrNoRuns
	}
	pr.follow = NewReplay(prefix)
	pr.taken = make(Schedule, 0, len(prefix))
	return nil
}

func (pr *prefixRun) EndRun() {
	pr.strategy.release()
}
