package syncx

import (
	"math"

	"github.com/joeycumines/go-actorvm/coreerr"
	"github.com/joeycumines/go-actorvm/fiber"
)

// RecursiveMutex is the design's recursive_mutex (spec §4.3): reentrant by
// the owning fiber, FIFO-fair across waiters, and deliberately
// non-cancellable while blocked in Lock.
type RecursiveMutex struct {
	ownerID uint64
	nlocked int
	pending []pendingLock
}

type pendingLock struct {
	id     uint64
	resume fiber.ResumeFunc
}

// Lock acquires the mutex, reentering if c's fiber already owns it, or
// enqueuing and suspending otherwise. Suspension here ignores forbid_suspend
// when interruption is disabled, per spec §4.3, and installs no interrupter:
// once enqueued, lock acquisition cannot be cancelled. A fiber whose
// interrupted latch is already set while interruption is enabled gets
// interrupted back from the suspension gate without being enqueued.
func (m *RecursiveMutex) Lock(c *fiber.Context) error {
	id := c.ID()

	if m.ownerID == 0 {
		m.ownerID = id
		m.nlocked = 1
		return nil
	}
	if m.ownerID == id {
		if m.nlocked == math.MaxInt {
			return coreerr.ErrValueTooLarge
		}
		m.nlocked++
		return nil
	}

	_, err := c.SuspendUncancellableLock(func(resume fiber.ResumeFunc, setInterrupter func(func())) {
		setInterrupter(nil)
		m.pending = append(m.pending, pendingLock{id: id, resume: resume})
	})
	if err != nil {
		return err
	}
	// Promoted: the unlock call that woke us already set ownerID/nlocked.
	return nil
}

// TryLock attempts to acquire without suspending, returning false if another
// fiber owns the mutex.
func (m *RecursiveMutex) TryLock(c *fiber.Context) bool {
	id := c.ID()
	if m.ownerID == 0 {
		m.ownerID = id
		m.nlocked = 1
		return true
	}
	if m.ownerID == id {
		if m.nlocked == math.MaxInt {
			return false
		}
		m.nlocked++
		return true
	}
	return false
}

// Unlock releases one level of ownership. Only the owning fiber may call
// it; on reaching depth zero, the head of the pending FIFO (if any) is
// promoted to owner with depth 1 and its resume is posted.
func (m *RecursiveMutex) Unlock(c *fiber.Context) error {
	if m.ownerID != c.ID() {
		return coreerr.ErrOperationNotPermitted
	}
	m.nlocked--
	if m.nlocked > 0 {
		return nil
	}
	if len(m.pending) == 0 {
		m.ownerID = 0
		return nil
	}
	next := m.pending[0]
	m.pending = m.pending[1:]
	m.ownerID = next.id
	m.nlocked = 1
	_ = c.Loop().Post(func() { next.resume(nil, nil) })
	return nil
}
