package reactor

import (
	"container/heap"
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Standard errors, grounded on eventloop's Err* sentinels.
var (
	ErrLoopAlreadyRunning = errors.New("reactor: loop is already running")
	ErrLoopTerminated     = errors.New("reactor: loop has been terminated")
	ErrReentrantRun       = errors.New("reactor: cannot call Run from within the loop")
)

// Task is a unit of strand-serialized work.
type Task func()

// Loop is the reactor binding (component C1): a single-goroutine strand with
// timer support and I/O readiness, grounded on eventloop.Loop's goja-style
// batch-swap queue but shorn of that package's multi-mode latency tuning —
// this core needs correctness and a small, auditable state machine more than
// it needs sub-microsecond submit latency.
type Loop struct {
	id uint64

	state  *atomicState
	log    Logger
	strict bool

	poller poller

	wakeFD int
	wakeCh chan struct{}
	ioFDs  atomic.Int32 // count of registered I/O fds, excluding wakeFD

	mu       sync.Mutex // guards external, deferred
	external []Task
	spare    []Task
	deferred []Task

	timers timerHeap

	loopGoroutine atomic.Uint64
	done          chan struct{}
	stopOnce      sync.Once

	workGuards atomic.Int64
}

var loopIDSeq atomic.Uint64

// New creates a Loop in StateAwake; call Run to start it.
func New(opts ...Option) (*Loop, error) {
	cfg := resolveOptions(opts)

	wakeFD, err := createWakeFD()
	if err != nil {
		return nil, err
	}

	l := &Loop{
		id:     loopIDSeq.Add(1),
		state:  newAtomicState(StateAwake),
		log:    cfg.logger,
		strict: cfg.strictMicrotaskOrdering,
		poller: newPoller(),
		wakeFD: wakeFD,
		wakeCh: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	if err := l.poller.init(); err != nil {
		closeWakeFD(wakeFD)
		return nil, err
	}
	if err := l.poller.registerFD(wakeFD, EventRead, func(IOEvents) { drainWake(wakeFD) }); err != nil {
		_ = l.poller.close()
		closeWakeFD(wakeFD)
		return nil, err
	}

	return l, nil
}

// ID returns a process-unique identifier for this loop, for diagnostics.
func (l *Loop) ID() uint64 { return l.id }

// State returns the current lifecycle state.
func (l *Loop) State() State { return l.state.Load() }

// Strict reports the value passed to WithStrictMicrotaskOrdering.
func (l *Loop) Strict() bool { return l.strict }

// IsStrandGoroutine reports whether the calling goroutine is this loop's
// strand — the invariant every other component relies on before touching
// strand-local state directly instead of posting a Task.
func (l *Loop) IsStrandGoroutine() bool {
	id := l.loopGoroutine.Load()
	return id != 0 && id == goroutineID()
}

// TakeWorkGuard returns a guard that, while held, is a documented reason for
// the owning VM not to treat this loop as quiescent (spec §3's actor address
// work guard). Reactor itself does not auto-terminate on an empty queue, so
// the guard is advisory bookkeeping other packages (mailbox) consult.
func (l *Loop) TakeWorkGuard() *WorkGuard {
	l.workGuards.Add(1)
	return &WorkGuard{loop: l}
}

// WorkGuardCount reports the number of outstanding work guards.
func (l *Loop) WorkGuardCount() int64 { return l.workGuards.Load() }

// WorkGuard is a reference that keeps a Loop's owner from considering it
// abandoned. Release is idempotent.
type WorkGuard struct {
	loop     *Loop
	released atomic.Bool
}

func (g *WorkGuard) Release() {
	if g.released.CompareAndSwap(false, true) {
		g.loop.workGuards.Add(-1)
	}
}

// Run blocks on the calling goroutine, which becomes the strand, until ctx
// is cancelled or Shutdown/Close is called.
func (l *Loop) Run(ctx context.Context) error {
	if l.IsStrandGoroutine() {
		return ErrReentrantRun
	}
	if !l.state.TryTransition(StateAwake, StateRunning) {
		if l.state.Load() == StateTerminated {
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}

	defer close(l.done)

	l.loopGoroutine.Store(goroutineID())
	defer l.loopGoroutine.Store(0)

	ctxDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			l.wake()
		case <-ctxDone:
		}
	}()
	defer close(ctxDone)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-ctx.Done():
			l.beginTermination()
			l.drain()
			l.state.Store(StateTerminated)
			l.closeFDs()
			return ctx.Err()
		default:
		}

		st := l.state.Load()
		if st == StateTerminating || st == StateTerminated {
			l.drain()
			l.state.Store(StateTerminated)
			l.closeFDs()
			return nil
		}

		l.tick()
	}
}

func (l *Loop) beginTermination() {
	for {
		cur := l.state.Load()
		if cur == StateTerminating || cur == StateTerminated {
			return
		}
		if l.state.TryTransition(cur, StateTerminating) {
			return
		}
	}
}

// Shutdown requests graceful termination and waits for the strand to drain
// and exit, or for ctx to expire.
func (l *Loop) Shutdown(ctx context.Context) error {
	l.stopOnce.Do(func() {
		l.beginTermination()
		l.wake()
	})
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close immediately marks the loop terminating without waiting; if the loop
// was never started it closes file descriptors synchronously.
func (l *Loop) Close() error {
	for {
		cur := l.state.Load()
		if cur == StateTerminated {
			return ErrLoopTerminated
		}
		if cur == StateAwake {
			if l.state.TryTransition(StateAwake, StateTerminated) {
				l.closeFDs()
				return nil
			}
			continue
		}
		l.beginTermination()
		l.wake()
		return nil
	}
}

func (l *Loop) closeFDs() {
	_ = l.poller.close()
	closeWakeFD(l.wakeFD)
}

// Post submits a task to the strand's FIFO queue. Safe from any goroutine.
func (l *Loop) Post(t Task) error {
	if t == nil {
		return nil
	}
	if l.state.Load() == StateTerminated {
		return ErrLoopTerminated
	}
	l.mu.Lock()
	l.external = append(l.external, t)
	l.mu.Unlock()
	l.wake()
	return nil
}

// Defer submits a task that must not run in the same drain batch as the code
// that submits it — the "remap post->defer" variant spec §5 calls out for
// preserving strict FIFO among handler-posted continuations. Only meaningful
// when called from the strand goroutine; from any other goroutine it behaves
// like Post.
func (l *Loop) Defer(t Task) error {
	if t == nil {
		return nil
	}
	if l.state.Load() == StateTerminated {
		return ErrLoopTerminated
	}
	if l.IsStrandGoroutine() {
		l.mu.Lock()
		l.deferred = append(l.deferred, t)
		l.mu.Unlock()
		return nil
	}
	return l.Post(t)
}

func (l *Loop) wake() {
	select {
	case l.wakeCh <- struct{}{}:
	default:
	}
	if l.ioFDs.Load() > 0 {
		_ = writeWake(l.wakeFD)
	}
}

// RegisterFD registers fd for I/O readiness callbacks on the strand.
func (l *Loop) RegisterFD(fd int, events IOEvents, cb IOCallback) error {
	err := l.poller.registerFD(fd, events, cb)
	if err == nil {
		l.ioFDs.Add(1)
		l.wake()
	}
	return err
}

// UnregisterFD removes fd from I/O readiness monitoring.
func (l *Loop) UnregisterFD(fd int) error {
	err := l.poller.unregisterFD(fd)
	if err == nil {
		l.ioFDs.Add(-1)
	}
	return err
}

// ModifyFD changes the monitored event set for an already-registered fd.
func (l *Loop) ModifyFD(fd int, events IOEvents) error {
	return l.poller.modifyFD(fd, events)
}

// AfterFunc schedules fn to run on the strand after d elapses, returning a
// Timer that can cancel it before it fires.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	when := time.Now().Add(d)
	_ = l.Post(func() {
		if t.cancelled.Load() {
			return
		}
		heap.Push(&l.timers, timerEntry{when: when, fn: fn, timer: t})
	})
	return t
}

// Timer is a cancellation handle for a scheduled AfterFunc callback.
type Timer struct {
	cancelled atomic.Bool
}

// Stop cancels the timer if it has not already fired.
func (t *Timer) Stop() { t.cancelled.Store(true) }

type timerEntry struct {
	when  time.Time
	fn    func()
	timer *Timer
}

type timerHeap []timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)         { *h = append(*h, x.(timerEntry)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// tick runs one iteration: expired timers, queued tasks, then a bounded I/O
// poll, grounded on eventloop.Loop.tick's shape (runTimers/process*/poll).
func (l *Loop) tick() {
	l.runTimers()
	l.runTasks()

	timeout := l.calculateTimeout()
	if l.ioFDs.Load() > 0 {
		l.state.TryTransition(StateRunning, StateSleeping)
		_, err := l.poller.pollIO(timeout)
		l.state.TryTransition(StateSleeping, StateRunning)
		if err != nil {
			l.log.Log(Entry{Level: LevelError, Category: "poll", LoopID: l.id, Message: "poll error", Err: err})
		}
		return
	}

	if timeout == 0 {
		return
	}
	l.state.TryTransition(StateRunning, StateSleeping)
	if timeout < 0 {
		<-l.wakeCh
	} else {
		timer := time.NewTimer(time.Duration(timeout) * time.Millisecond)
		select {
		case <-l.wakeCh:
			timer.Stop()
		case <-timer.C:
		}
	}
	l.state.TryTransition(StateSleeping, StateRunning)
}

func (l *Loop) calculateTimeout() int {
	l.mu.Lock()
	hasWork := len(l.external) > 0 || len(l.deferred) > 0
	l.mu.Unlock()
	if hasWork {
		return 0
	}
	if len(l.timers) == 0 {
		return -1 // block indefinitely, woken by wake()
	}
	delay := l.timers[0].when.Sub(time.Now())
	if delay < 0 {
		return 0
	}
	ms := delay.Milliseconds()
	if delay > 0 && ms == 0 {
		return 1
	}
	const maxMs = 10_000
	if ms > maxMs {
		ms = maxMs
	}
	return int(ms)
}

func (l *Loop) runTimers() {
	now := time.Now()
	for len(l.timers) > 0 && !l.timers[0].when.After(now) {
		e := heap.Pop(&l.timers).(timerEntry)
		if e.timer.cancelled.Load() {
			continue
		}
		l.safeExec(e.fn)
	}
}

func (l *Loop) runTasks() {
	l.mu.Lock()
	jobs := l.external
	l.external = l.spare
	l.mu.Unlock()

	for i, t := range jobs {
		l.safeExec(t)
		jobs[i] = nil
	}
	l.spare = jobs[:0]

	l.mu.Lock()
	deferred := l.deferred
	l.deferred = nil
	l.mu.Unlock()
	for _, t := range deferred {
		l.safeExec(t)
	}
}

// drain runs every remaining queued task (including ones enqueued while
// draining) until the queues are empty, used during shutdown so Post callers
// from other goroutines never silently lose work, matching eventloop's
// shutdown drain loop.
func (l *Loop) drain() {
	for {
		l.mu.Lock()
		n := len(l.external) + len(l.deferred) + len(l.timers)
		l.mu.Unlock()
		if n == 0 {
			break
		}
		l.runTimers()
		l.runTasks()
	}
}

func (l *Loop) safeExec(t Task) {
	if t == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.log.Log(Entry{Level: LevelError, Category: "task", LoopID: l.id, Message: "task panicked", Fields: map[string]any{"panic": r}})
		}
	}()
	t()
}

// goroutineID is used only for the strand-affinity assertion
// (IsStrandGoroutine); it is never on a hot path.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
