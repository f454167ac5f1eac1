package scheduler

import "sync"

// A strategy that replays a single recorded schedule. After its only run every run policy returns ErrNoRuns.
type ReplayStrategy struct {
	sync.Mutex
	schedule Schedule
	done     bool
}

func NewReplayStrategy(schedule Schedule) *ReplayStrategy {
	return &ReplayStrategy{
		schedule: schedule,
	}
}

func (r *ReplayStrategy) GetRunPolicy() RunPolicy {
	return &runReplay{strategy: r}
}

func (r *ReplayStrategy) take() (Schedule, bool) {
	r.Lock()
	defer r.Unlock()
	if r.done {
		return nil, false
	}
	r.done = true
	return r.schedule, true
}

type runReplay struct {
	*Replay
	strategy *ReplayStrategy
}

func (rr *runReplay) StartRun() error {
	schedule, ok := rr.strategy.take()
	if !ok {
		return ErrNoRuns
	}
	rr.Replay = NewReplay(schedule)
	return nil
}

func (rr *runReplay) EndRun() {}
