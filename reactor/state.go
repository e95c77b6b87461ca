package reactor

import "sync/atomic"

// State is the loop's lifecycle state machine.
//
//	Awake -> Running -> Sleeping -> Running -> ... -> Terminating -> Terminated
//
// Running/Sleeping transitions use compare-and-swap; Terminated is written
// unconditionally once decided, since it is never left.
type State uint32

const (
	StateAwake State = iota
	StateRunning
	StateSleeping
	StateTerminating
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAwake:
		return "awake"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	case StateTerminating:
		return "terminating"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// atomicState is a thin CAS wrapper, grounded on eventloop's FastState.
type atomicState struct {
	v atomic.Uint32
}

func newAtomicState(initial State) *atomicState {
	s := &atomicState{}
	s.v.Store(uint32(initial))
	return s
}

func (s *atomicState) Load() State { return State(s.v.Load()) }

func (s *atomicState) Store(state State) { s.v.Store(uint32(state)) }

func (s *atomicState) TryTransition(from, to State) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
