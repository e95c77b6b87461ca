package spawn

import (
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-actorvm/coreerr"
	"github.com/joeycumines/go-actorvm/fiber"
	"github.com/joeycumines/go-actorvm/reactor"
)

// defaultKillSignal mirrors SIGTERM's value; spawn_other.go has no signal
// package import reason to pull in syscall just for one constant shared by
// both builds.
const defaultKillSignal = 15 // SIGTERM

// Handle is the subprocess handle spec §4.5 describes: it owns the
// process descriptor (a pidfd on Linux) and reaps through the reactor
// strand instead of a blocking waitpid call. It lives in its owning VM's
// pending_operations the way a future or mutex waiter does (spec §5,
// "process reaping") — dropping it without awaiting sends killSignal and
// reaps asynchronously with no suspension.
type Handle struct {
	loop        *reactor.Loop
	pid         int
	fd          int
	killSignal  int
	waitTimeout time.Duration

	waitInProgress atomic.Bool
	done           atomic.Bool
	closed         atomic.Bool

	exitCode   int
	exitSignal int
	hasSignal  bool
}

func newHandle(loop *reactor.Loop, pid, fd, killSignal int, waitTimeout time.Duration) *Handle {
	if killSignal == 0 {
		killSignal = defaultKillSignal
	}
	return &Handle{loop: loop, pid: pid, fd: fd, killSignal: killSignal, waitTimeout: waitTimeout}
}

// Pid returns the child's process id.
func (h *Handle) Pid() int { return h.pid }

// ExitCode returns the process's exit code, or 128+signo if it died from
// a signal (spec §4.5).
func (h *Handle) ExitCode() int { return h.exitCode }

// ExitSignal returns the terminating signal and true, or (0, false) if
// the process exited normally or hasn't been reaped yet.
func (h *Handle) ExitSignal() (int, bool) { return h.exitSignal, h.hasSignal }

// Exited reports whether the process has already been reaped.
func (h *Handle) Exited() bool { return h.done.Load() }

// Wait suspends the calling fiber until the process descriptor reports
// readiness, then reaps the exit status and returns the exit code. Only
// one Wait may be in flight at a time (spec §4.5's "only one wait in
// flight at a time"); a concurrent second call fails immediately rather
// than queueing, since the original gives callers no queueing semantics
// to fall back on here.
func (h *Handle) Wait(c *fiber.Context) (int, error) {
	if h.done.Load() {
		return h.exitCode, nil
	}
	if !h.waitInProgress.CompareAndSwap(false, true) {
		return 0, coreerr.ErrOperationNotPermitted
	}
	defer h.waitInProgress.Store(false)

	_, err := c.Suspend(func(resume fiber.ResumeFunc, setInterrupter func(func())) {
		cb := func(reactor.IOEvents) {
			_ = h.loop.UnregisterFD(h.fd)
			code, sig, hasSig, rerr := procReap(h.pid)
			if rerr == nil {
				h.done.Store(true)
				h.exitCode = code
				h.exitSignal = sig
				h.hasSignal = hasSig
			}
			resume(nil, rerr)
		}
		if rerr := h.loop.RegisterFD(h.fd, reactor.EventRead, cb); rerr != nil {
			resume(nil, rerr)
			return
		}
		setInterrupter(func() {
			_ = h.loop.UnregisterFD(h.fd)
			resume(nil, coreerr.ErrInterrupted)
		})
	})
	if err != nil {
		return 0, err
	}
	return h.exitCode, nil
}

// Close drops the handle. If the process has not already been reaped, it
// is sent killSignal and reaped by a detached background wait with no
// fiber suspension (spec §5), mirroring the reactor's own WorkGuard
// idempotent-release discipline: Close is safe to call more than once.
func (h *Handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	if !h.done.Load() {
		_ = procKill(h.pid, h.killSignal)
		go func() { _, _, _, _ = procReap(h.pid) }()
	}
	return procCloseFD(h.fd)
}
