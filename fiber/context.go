package fiber

import (
	"github.com/joeycumines/go-actorvm/coreerr"
	"github.com/joeycumines/go-actorvm/reactor"
)

// Context is handed to a fiber's Body and is the only way fiber-local and
// scheduler operations should be invoked from inside it — it always
// operates on behalf of whichever fiber currently holds the baton, so every
// method here runs inline without needing to post back to the strand
// (spec §3's "Fiber API (script-visible)" surface).
type Context struct {
	fiber *Fiber
}

// ID returns the calling fiber's registry identity.
func (c *Context) ID() uint64 { return c.fiber.ID() }

// Handle returns the calling fiber's own user-visible join handle (spec
// §3's user_handle attribute).
func (c *Context) Handle() *Handle { return c.fiber.handle }

// IsMain reports whether the calling fiber is a module's main fiber.
func (c *Context) IsMain() bool { return c.fiber.IsMain() }

// Local reads fiber-local storage set by a previous SetLocal call.
func (c *Context) Local(key any) (any, bool) {
	v, ok := c.fiber.local[key]
	return v, ok
}

// SetLocal writes fiber-local storage.
func (c *Context) SetLocal(key, value any) {
	if c.fiber.local == nil {
		c.fiber.local = make(map[any]any)
	}
	c.fiber.local[key] = value
}

// Spawn creates a child fiber from within the calling fiber's body.
func (c *Context) Spawn(body Body) *Handle { return c.fiber.sched.Spawn(body) }

// Loop returns the reactor strand the calling fiber runs on. Cross-VM
// primitives (mailbox sends in particular) need this to post a sender's
// resume back onto its own strand instead of running it inline on
// whichever strand happens to be driving the wakeup (spec §9).
func (c *Context) Loop() *reactor.Loop { return c.fiber.sched.loop }

// Yield re-posts the calling fiber to the strand and suspends, a
// cooperative reschedule (spec §3).
func (c *Context) Yield() error {
	_, err := c.fiber.suspend(func(resume ResumeFunc, _ func(func())) {
		_ = c.fiber.sched.loop.Post(func() { resume(nil, nil) })
	})
	return err
}

// DisableInterruption increments the interruption-disabled counter; while
// non-zero, the interrupted latch is ignored by the suspension gate.
func (c *Context) DisableInterruption() { c.fiber.interruptionDisabled++ }

// RestoreInterruption decrements the counter, failing
// interruption_already_allowed on an unbalanced call.
func (c *Context) RestoreInterruption() error {
	if c.fiber.interruptionDisabled == 0 {
		return coreerr.ErrInterruptionAlreadyAllo
	}
	c.fiber.interruptionDisabled--
	return nil
}

// ForbidSuspend increments the suspension-disallowed counter.
func (c *Context) ForbidSuspend() { c.fiber.suspensionDisallowed++ }

// AllowSuspend decrements the counter, failing suspension_already_allowed
// on an unbalanced call.
func (c *Context) AllowSuspend() error {
	if c.fiber.suspensionDisallowed == 0 {
		return coreerr.ErrSuspensionAlreadyAllow
	}
	c.fiber.suspensionDisallowed--
	return nil
}

// Suspend is the unified wait-queue primitive every blocking operation
// (recursive mutex lock, future.get, inbox send/receive) is built on: it
// runs the suspension gate, then calls register with a ResumeFunc and a
// setInterrupter hook the caller uses to install an operation-specific
// interrupter in place of the default signal-based one.
func (c *Context) Suspend(register func(resume ResumeFunc, setInterrupter func(func()))) (any, error) {
	return c.fiber.suspend(register)
}

// SuspendUncancellableLock is the recursive mutex's dedicated suspend gate
// (spec §4.3): forbid-suspend still blocks normally, unless interruption is
// currently disabled, in which case suspension proceeds anyway. A fiber
// whose interrupted latch is set while interruption is enabled is still
// refused with interrupted before suspending; once suspended, the wait is
// cancellable only through whatever interrupter register installs (the
// mutex installs none).
func (c *Context) SuspendUncancellableLock(register func(resume ResumeFunc, setInterrupter func(func()))) (any, error) {
	return c.fiber.suspendUncancellableLock(register)
}

// Interrupt sets h's target fiber's interrupted latch and, if it is
// currently suspended, fires its installed interrupter once (spec §3).
func (c *Context) Interrupt(h *Handle) error {
	return interruptHandle(h)
}

// interruptHandle is Interrupt's implementation, factored out so
// Scheduler.Interrupt can offer the same operation to callers that have no
// calling fiber's Context at hand (e.g. a VM context cancelling a pending
// operation at close time) — the operation only ever touches the target
// fiber, never the caller's.
func interruptHandle(h *Handle) error {
	h.mu.Lock()
	target := h.fiber
	h.mu.Unlock()
	if target == nil {
		return coreerr.ErrInvalidArgument
	}
	target.interrupted = true
	if target.status == StatusSuspended {
		it := target.interrupter
		target.interrupter = nil
		if it != nil {
			it()
		}
	}
	return nil
}

// Detach marks h's target as detached (spec §3). If the target already
// finished with an error other than interrupted, a diagnostic is logged
// before the registry entry is removed. The handle is invalidated either
// way.
func (c *Context) Detach(h *Handle) error {
	h.mu.Lock()
	target := h.fiber
	if target == nil {
		h.mu.Unlock()
		return coreerr.ErrInvalidArgument
	}
	if !target.status.Finished() {
		target.detached = true
		h.fiber = nil
		h.mu.Unlock()
		return nil
	}
	h.fiber = nil
	h.mu.Unlock()

	if target.err != nil && !coreerr.IsInterrupted(target.err) {
		c.fiber.sched.log.Log(reactor.Entry{
			Level:    reactor.LevelError,
			Category: "fiber",
			Message:  "detached fiber finished with an unhandled error",
			Err:      target.err,
			Fields: map[string]any{
				"fiber_id":   target.id,
				"stacktrace": target.stacktrace,
			},
		})
	}
	c.fiber.sched.removeFiber(target.id)
	return nil
}

// Join implements spec §3's join operation. interrupted reports whether the
// target resolved via interruption (interruption_caught); err is non-nil
// only for a genuine target failure (re-raised at the join site) or for the
// calling fiber itself being interrupted while waiting.
func (c *Context) Join(h *Handle) (results []any, interrupted bool, err error) {
	h.mu.Lock()
	if h.fiber == nil || h.joinInProgress {
		h.mu.Unlock()
		return nil, false, coreerr.ErrInvalidArgument
	}
	target := h.fiber
	if target == c.fiber {
		h.mu.Unlock()
		return nil, false, coreerr.ErrResourceDeadlock
	}

	if target.status.Finished() {
		h.mu.Unlock()
		results, interrupted, err = joinOutcome(target)
		h.recordInterruptionCaught(interrupted)
		c.fiber.sched.removeFiber(target.id)
		return results, interrupted, err
	}

	h.joinInProgress = true
	target.joinWaiter = c.fiber
	h.mu.Unlock()

	val, suspendErr := c.fiber.suspend(func(resume ResumeFunc, setInterrupter func(func())) {
		setInterrupter(func() {
			target.joinWaiter = nil
			h.mu.Lock()
			h.joinInProgress = false
			h.mu.Unlock()
			resume(nil, coreerr.ErrInterrupted)
		})
	})

	h.mu.Lock()
	h.joinInProgress = false
	h.mu.Unlock()

	if suspendErr != nil {
		return nil, false, suspendErr
	}

	jr := val.(*joinResult)
	h.recordInterruptionCaught(jr.caught)
	return jr.results, jr.caught, jr.err
}

func joinOutcome(target *Fiber) (results []any, interrupted bool, err error) {
	if coreerr.IsInterrupted(target.err) {
		return nil, true, nil
	}
	if target.err != nil {
		return nil, false, target.err
	}
	return target.results, false, nil
}

func (h *Handle) recordInterruptionCaught(caught bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if caught {
		h.interruptionCaught = triTrue
	} else {
		h.interruptionCaught = triFalse
	}
}

