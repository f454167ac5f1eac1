package scheduler

import (
	"math/rand"
)

// Always delivers the most recently sent candidate
type DepthFirst struct{}

func (DepthFirst) Choose(_ int, candidates []Candidate) (int, error) {
	best := 0
	for i, c := range candidates {
		if c.Seq > candidates[best].Seq {
			best = i
		}
	}
	return best, nil
}

// Always delivers the candidate that was sent first
type FIFO struct{}

func (FIFO) Choose(_ int, candidates []Candidate) (int, error) {
	best := 0
	for i, c := range candidates {
		if c.Seq < candidates[best].Seq {
			best = i
		}
	}
	return best, nil
}

// A policy that randomly picks the next candidate.
//
// Two Random policies created with the same seed make the same choices when presented with the same candidates.
type Random struct {
	rand *rand.Rand
}

func NewRandom(seed int64) *Random {
	return &Random{
		rand: rand.New(rand.NewSource(seed)),
	}
}

func (r *Random) Choose(_ int, candidates []Candidate) (int, error) {
	return r.rand.Intn(len(candidates)), nil
}

// Follows a recorded schedule.
//
// When the schedule has been followed to its end Choose returns ErrScheduleEnded.
// If the recorded choice at a depth is not among the candidates Choose returns a ReplayDivergenceError.
type Replay struct {
	schedule Schedule
	index    int
}

func NewReplay(schedule Schedule) *Replay {
	return &Replay{
		schedule: schedule,
	}
}

func (r *Replay) Choose(depth int, candidates []Candidate) (int, error) {
	if r.index >= len(r.schedule) {
		return 0, ErrScheduleEnded
	}
	expected := r.schedule[r.index]
	i := find(expected, candidates)
	if i < 0 {
		return 0, divergence(depth, expected, candidates)
	}
	r.index++
	return i, nil
}

// The number of choices that have been replayed
func (r *Replay) Replayed() int {
	return r.index
}

// The next recorded choice, if any
func (r *Replay) expected() (Choice, bool) {
	if r.index >= len(r.schedule) {
		return Choice{}, false
	}
	return r.schedule[r.index], true
}

// The choice returned by the last successful Choose, if any
func (r *Replay) replayed() (Choice, bool) {
	if r.index == 0 {
		return Choice{}, false
	}
	return r.schedule[r.index-1], true
}

// A policy following a recorded schedule to its end.
// The scheduler announces it to the trace logger, checks that every replayed delivery has its recorded outcome and
// fails the run if the program stops before the schedule is done.
type replayer interface {
	expected() (Choice, bool)
	replayed() (Choice, bool)
}

// Follows a prefix schedule before handing over to the fallback policy.
//
// Unlike Replay it does not fail if the prefix can not be followed: it switches to the fallback at the first choice that is unavailable.
type Guided struct {
	prefix   *Replay
	fallback Policy
	guided   bool
}

func NewGuided(prefix Schedule, fallback Policy) *Guided {
	return &Guided{
		prefix:   NewReplay(prefix),
		fallback: fallback,
		guided:   true,
	}
}

func (g *Guided) Choose(depth int, candidates []Candidate) (int, error) {
	if g.guided {
		i, err := g.prefix.Choose(depth, candidates)
		if err == nil {
			return i, nil
		}
		g.guided = false
	}
	return g.fallback.Choose(depth, candidates)
}
