package fiber

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-actorvm/coreerr"
	"github.com/joeycumines/go-actorvm/reactor"
)

// Scheduler is the fiber registry + scheduler (components C2/C3): it owns
// every fiber spawned against one reactor.Loop strand and is the only thing
// that ever hands the execution baton between the strand and a fiber
// goroutine, or between two fiber goroutines directly (the join-wakeup
// tail-resume described in fiber.go).
type Scheduler struct {
	loop *reactor.Loop
	log  reactor.Logger

	// mu guards only registry bookkeeping (the fibers map); it is
	// independent of the baton rendezvous, since adding/removing map
	// entries does not need strand exclusivity.
	mu     sync.Mutex
	fibers map[uint64]*Fiber
	nextID atomic.Uint64
}

// New creates a Scheduler bound to loop. log may be nil, in which case the
// reactor's noop logger behavior is mirrored here.
func New(loop *reactor.Loop, log reactor.Logger) *Scheduler {
	if log == nil {
		log = reactor.NewNoopLogger()
	}
	return &Scheduler{
		loop:   loop,
		log:    log,
		fibers: make(map[uint64]*Fiber),
	}
}

// Body is a fiber's entry point.
type Body func(ctx *Context) ([]any, error)

// Spawn creates a fiber, posts its initial resume to the strand, and
// returns a handle that owns it (spec §3's spawn operation). Safe to call
// from any goroutine, including from within another fiber's body.
func (s *Scheduler) Spawn(body Body) *Handle {
	return s.spawn(body, false)
}

// SpawnMain is like Spawn but marks the fiber as a module's main fiber
// (spec §3's module_path attribute).
func (s *Scheduler) SpawnMain(body Body) *Handle {
	return s.spawn(body, true)
}

func (s *Scheduler) spawn(body Body, isMain bool) *Handle {
	id := s.nextID.Add(1)
	f := newFiber(s, id, isMain)
	ctx := &Context{fiber: f}
	h := &Handle{fiber: f}
	f.handle = h

	s.mu.Lock()
	s.fibers[id] = f
	s.mu.Unlock()

	go s.run(f, ctx, body)
	_ = s.loop.Post(func() { s.resume(f, resumeMsg{}) })
	return h
}

// run is the fiber's trampoline goroutine: wait for the baton, execute the
// body under panic recovery, then hand off to the epilogue while still
// holding the baton, grounded on the design's "wraps body in a trampoline
// that records a stacktrace on error and runs a root cleanup scope".
func (s *Scheduler) run(f *Fiber, ctx *Context, body Body) {
	<-f.toFiber
	f.status = StatusRunning

	func() {
		defer func() {
			if r := recover(); r != nil {
				f.recordPanic(r)
			}
		}()
		results, err := body(ctx)
		if f.err == nil {
			f.results = results
			f.err = err
		}
	}()

	if f.err != nil {
		f.status = StatusFinishedError
	} else {
		f.status = StatusFinishedOK
	}
	s.epilogue(f)
}

// resume hands the baton to f and blocks until f suspends again or
// finishes. Callers must already hold the baton themselves (the strand
// goroutine running a posted task, or a fiber goroutine during its turn).
func (s *Scheduler) resume(f *Fiber, msg resumeMsg) {
	f.status = StatusRunning
	f.toFiber <- msg
	<-f.toStrand
}

// epilogue runs the resume/yield/epilogue state machine's terminal branch
// (spec §3): deliver to a waiting joiner via tail-resume, or handle the
// detached case, or leave the fiber in the registry for a future Join.
func (s *Scheduler) epilogue(f *Fiber) {
	switch {
	case f.joinWaiter != nil:
		jw := f.joinWaiter
		f.joinWaiter = nil
		caught := coreerr.IsInterrupted(f.err)
		jr := &joinResult{caught: caught, results: f.results}
		if !caught {
			jr.err = f.err
		}
		s.resume(jw, resumeMsg{value: jr})
		s.removeFiber(f.id)

	case f.detached:
		if f.err != nil && !coreerr.IsInterrupted(f.err) {
			s.log.Log(reactor.Entry{
				Level:    reactor.LevelError,
				Category: "fiber",
				Message:  "detached fiber finished with an unhandled error",
				Err:      f.err,
				Fields: map[string]any{
					"fiber_id":   f.id,
					"stacktrace": f.stacktrace,
				},
			})
		}
		s.removeFiber(f.id)

	default:
		// Neither joined nor detached: stay in the registry holding
		// results/err for whichever happens first, a Join or a Detach.
	}

	f.toStrand <- struct{}{}
}

// Interrupt is Context.Interrupt without requiring a calling fiber's
// Context, for callers that act on a handle from outside any fiber's body
// (e.g. a VM context cancelling a pending operation at close time). Must
// still run on the target fiber's own strand.
func (s *Scheduler) Interrupt(h *Handle) error {
	return interruptHandle(h)
}

func (s *Scheduler) removeFiber(id uint64) {
	s.mu.Lock()
	delete(s.fibers, id)
	s.mu.Unlock()
}

// Lookup returns the fiber registered under id, if still present.
func (s *Scheduler) Lookup(id uint64) (*Fiber, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fibers[id]
	return f, ok
}

// Count returns the number of fibers currently registered.
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fibers)
}
