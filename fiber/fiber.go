package fiber

import (
	"runtime/debug"
	"sync"

	"github.com/joeycumines/go-actorvm/coreerr"
)

// resumeMsg is what a suspended fiber receives when resumed.
type resumeMsg struct {
	value any
	err   error
}

// ResumeFunc resumes the fiber that is suspended waiting for it. Calling it
// more than once only has an effect the first time (sticky), matching the
// one-shot semantics every wait-queue (recursive mutex, future, inbox) in
// this runtime relies on.
type ResumeFunc func(value any, err error)

// Fiber is the registry entry / control block for one cooperatively
// scheduled coroutine (spec §3). All fields below are only ever mutated
// while the mutator holds the baton — either the reactor strand goroutine
// itself, or this (or another) fiber's goroutine during its turn — so none
// of them need a lock.
type Fiber struct {
	id     uint64
	sched  *Scheduler
	isMain bool

	// toFiber hands the baton (and a resume value) to this fiber's
	// goroutine; toStrand hands it back, either because the fiber
	// suspended again or because it finished. Both are unbuffered: the
	// send only completes once the other side is actually parked on the
	// matching receive, which is what makes "only one active fiber at a
	// time" hold without an explicit lock.
	toFiber  chan resumeMsg
	toStrand chan struct{}

	status Status

	detached   bool
	joinWaiter *Fiber
	handle     *Handle

	interruptionDisabled int
	suspensionDisallowed int
	interrupted          bool
	interrupter          func()

	local map[any]any

	results    []any
	err        error
	stacktrace string
}

// ID returns the fiber's registry identity.
func (f *Fiber) ID() uint64 { return f.id }

// IsMain reports whether this is a module's main fiber (spec §3).
func (f *Fiber) IsMain() bool { return f.isMain }

func newFiber(sched *Scheduler, id uint64, isMain bool) *Fiber {
	return &Fiber{
		id:       id,
		sched:    sched,
		isMain:   isMain,
		toFiber:  make(chan resumeMsg),
		toStrand: make(chan struct{}),
		status:   StatusRunnable,
	}
}

// suspend parks the calling goroutine (which must currently hold the baton
// on behalf of f) until resumed. register is handed a ResumeFunc and a
// setInterrupter callback; if register never calls setInterrupter, a default
// signal-style interrupter is installed that simply resumes with
// coreerr.ErrInterrupted, mirroring the design's default_emit_signal_interrupter.
//
// This is the unified wait-queue primitive the design calls for (spec §9,
// "Implementers should unify this into a single wait-queue type"):
// recursive-mutex lock, future.get and inbox send/receive all go through it.
func (f *Fiber) suspend(register func(resume ResumeFunc, setInterrupter func(func()))) (any, error) {
	return f.suspendGated(register, f.suspensionDisallowed > 0)
}

// suspendUncancellableLock is the recursive mutex's lock gate (spec §4.3):
// forbid-suspend still blocks normally, unless interruption is currently
// disabled, in which case suspension proceeds anyway. The interrupted-latch
// check still runs before suspending; once suspended, the wait is only
// cancellable if register installs a non-nil interrupter.
func (f *Fiber) suspendUncancellableLock(register func(resume ResumeFunc, setInterrupter func(func()))) (any, error) {
	blocked := f.suspensionDisallowed > 0 && f.interruptionDisabled == 0
	return f.suspendGated(register, blocked)
}

func (f *Fiber) suspendGated(register func(resume ResumeFunc, setInterrupter func(func())), forbidden bool) (any, error) {
	if forbidden {
		return nil, coreerr.ErrForbidSuspendBlock
	}
	if f.interruptionDisabled == 0 && f.interrupted {
		return nil, coreerr.ErrInterrupted
	}

	var once sync.Once
	resume := ResumeFunc(func(value any, err error) {
		once.Do(func() {
			f.sched.resume(f, resumeMsg{value: value, err: err})
		})
	})

	f.interrupter = func() { resume(nil, coreerr.ErrInterrupted) }
	setInterrupter := func(fn func()) { f.interrupter = fn }

	if register != nil {
		register(resume, setInterrupter)
	}

	f.status = StatusSuspended
	f.toStrand <- struct{}{}
	msg := <-f.toFiber
	f.interrupter = nil
	f.status = StatusRunning
	return msg.value, msg.err
}

// recordPanic converts a recovered panic into the fiber's terminal error,
// capturing a stacktrace the way the design's trampoline does on error.
func (f *Fiber) recordPanic(r any) {
	f.err = coreerr.Lua(panicError{r})
	f.stacktrace = string(debug.Stack())
}

type panicError struct{ value any }

func (p panicError) Error() string {
	if err, ok := p.value.(error); ok {
		return err.Error()
	}
	return "panic in fiber body"
}
