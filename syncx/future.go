package syncx

import (
	"github.com/joeycumines/go-actorvm/coreerr"
	"github.com/joeycumines/go-actorvm/fiber"
)

type futureState int

const (
	stateEmpty futureState = iota
	stateValueReady
	stateErrorReady
	stateBroken
)

// sharedState is the design's "future shared state" (spec §3/§4.4), owned
// jointly by a Promise/Future pair returned from New.
type sharedState struct {
	state   futureState
	value   any
	err     error
	waiters []waiter
}

type waiter struct {
	id     uint64
	resume fiber.ResumeFunc
}

// Promise is the write side of a future/promise pair.
type Promise struct {
	s *sharedState
}

// Future is the read side of a future/promise pair.
type Future struct {
	s *sharedState
}

// New returns a linked (promise, future) pair sharing one empty state.
func New() (Promise, Future) {
	s := &sharedState{state: stateEmpty}
	return Promise{s: s}, Future{s: s}
}

// SetValue sets the future's value, waking every waiter. Fails
// promise_already_satisfied if the state is already terminal.
func (p Promise) SetValue(value any) error {
	if p.s.state != stateEmpty {
		return coreerr.ErrPromiseAlreadySatisfied
	}
	p.s.state = stateValueReady
	p.s.value = value
	p.s.wake()
	return nil
}

// SetError is like SetValue but terminalizes the future with an error,
// raised at every waiting future.Get call site.
func (p Promise) SetError(err error) error {
	if p.s.state != stateEmpty {
		return coreerr.ErrPromiseAlreadySatisfied
	}
	p.s.state = stateErrorReady
	p.s.err = err
	p.s.wake()
	return nil
}

// Break transitions an empty future to broken, waking every waiter with
// broken_promise. Calling it on a non-empty state is a no-op, mirroring a
// promise that was already satisfied before being dropped.
func (p Promise) Break() {
	if p.s.state != stateEmpty {
		return
	}
	p.s.state = stateBroken
	p.s.wake()
}

func (s *sharedState) wake() {
	waiters := s.waiters
	s.waiters = nil
	for _, w := range waiters {
		switch s.state {
		case stateValueReady:
			w.resume(s.value, nil)
		case stateErrorReady:
			w.resume(nil, s.err)
		case stateBroken:
			w.resume(nil, coreerr.ErrBrokenPromise)
		}
	}
}

// Get blocks until the future resolves, returning the value on success, the
// error the promise set, or broken_promise if the promise was dropped empty
// (spec §4.4). If already resolved, it returns immediately without
// suspending.
func (f Future) Get(c *fiber.Context) (any, error) {
	switch f.s.state {
	case stateValueReady:
		return f.s.value, nil
	case stateErrorReady:
		return nil, f.s.err
	case stateBroken:
		return nil, coreerr.ErrBrokenPromise
	}

	id := c.ID()
	val, err := c.Suspend(func(resume fiber.ResumeFunc, setInterrupter func(func())) {
		f.s.waiters = append(f.s.waiters, waiter{id: id, resume: resume})
		setInterrupter(func() {
			f.s.removeWaiter(id)
			resume(nil, coreerr.ErrInterrupted)
		})
	})
	return val, err
}

// removeWaiter unlinks id from the waiter list, ignoring the case where
// completion already raced ahead and removed it (spec §4.4).
func (s *sharedState) removeWaiter(id uint64) {
	for i, w := range s.waiters {
		if w.id == id {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
}
