package stateManager

import (
	"fmt"
	"io"
	"sync"

	"pruntime/scheduler"
	"pruntime/tree"
)

// Manages the global states across several runs.
type StateManager interface {
	GetRunStateManager() *RunStateManager
	AddRun(run []GlobalState)
	State() StateSpace
	Reset()
}

// Collects the states of a single run.
//
// Should only be used from the goroutine driving the run.
// EndRun hands the run to the StateManager that created it and prepares for the next run.
type RunStateManager struct {
	sm  StateManager
	run []GlobalState
}

func NewRunStateManager(sm StateManager) *RunStateManager {
	return &RunStateManager{sm: sm}
}

// Records the current global state of the scheduler.
//
// The state is attributed to the latest delivery in the schedule. States recorded before the first delivery have no choice.
func (rsm *RunStateManager) Observe(s *scheduler.Scheduler) {
	var choice *scheduler.Choice
	if schedule := s.Schedule(); len(schedule) > 0 {
		last := schedule[len(schedule)-1]
		choice = &last
	}
	rsm.Record(FromSnapshot(s.Snapshot(), choice))
}

func (rsm *RunStateManager) Record(gs GlobalState) {
	rsm.run = append(rsm.run, gs)
}

func (rsm *RunStateManager) EndRun() {
	rsm.sm.AddRun(rsm.run)
	rsm.run = nil
}

// Merges runs into a tree rooted at the initial state.
//
// A path from the root to a leaf is one run. Runs that share a prefix share the nodes of the prefix.
// Safe for concurrent use.
type TreeStateManager struct {
	sync.RWMutex
	root *tree.Tree[GlobalState]
}

func NewTreeStateManager() *TreeStateManager {
	return &TreeStateManager{}
}

func (sm *TreeStateManager) AddRun(run []GlobalState) {
	if len(run) < 1 {
		return
	}
	sm.Lock()
	defer sm.Unlock()

	if sm.root == nil {
		sm.root = tree.New(run[0], Equal)
	}
	current := sm.root
	for _, gs := range run[1:] {
		current, _ = current.Merge(gs)
	}
}

func (sm *TreeStateManager) GetRunStateManager() *RunStateManager {
	return NewRunStateManager(sm)
}

// Returns the explored state space, or nil if no run has been added
func (sm *TreeStateManager) State() StateSpace {
	sm.RLock()
	defer sm.RUnlock()
	if sm.root == nil {
		return nil
	}
	return TreeStateSpace{sm.root}
}

// Returns the number of distinct states explored
func (sm *TreeStateManager) Len() int {
	sm.RLock()
	defer sm.RUnlock()
	if sm.root == nil {
		return 0
	}
	return sm.root.Len()
}

func (sm *TreeStateManager) Export(wrt io.Writer) {
	sm.RLock()
	defer sm.RUnlock()
	if sm.root == nil {
		return
	}
	fmt.Fprint(wrt, sm.root.Newick(GlobalState.String))
}

func (sm *TreeStateManager) Reset() {
	sm.Lock()
	defer sm.Unlock()
	sm.root = nil
}
