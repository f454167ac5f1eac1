package scheduler

import (
	"math/rand"
	"sync"
)

// A strategy that randomly picks the next candidate in every run.
//
// It is useful for testing a random selection of the state space when the state space is to large to perform an exhaustive search.
// It provides no guarantee that all errors have been found.
type RandomStrategy struct {
	sync.Mutex
	rand *rand.Rand
}

// Create a new RandomStrategy.
//
// The seed is used to generate the seeds of the run policies.
func NewRandomStrategy(seed int64) *RandomStrategy {
	return &RandomStrategy{
		rand: rand.New(rand.NewSource(seed)),
	}
}

func (r *RandomStrategy) GetRunPolicy() RunPolicy {
	r.Lock()
	defer r.Unlock()
	return &randomRun{seeds: rand.New(rand.NewSource(r.rand.Int63()))}
}

// Every run draws a new seed, so that a single run policy explores a different interleaving per run
type randomRun struct {
	seeds   *rand.Rand
	current *Random
}

func (rr *randomRun) Choose(depth int, candidates []Candidate) (int, error) {
	return rr.current.Choose(depth, candidates)
}

func (rr *randomRun) StartRun() error {
	rr.current = NewRandom(rr.seeds.Int63())
	return nil
}

func (rr *randomRun) EndRun() {}
