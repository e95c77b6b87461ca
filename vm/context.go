package vm

import (
	"github.com/joeycumines/go-actorvm/coreerr"
	"github.com/joeycumines/go-actorvm/fiber"
	"github.com/joeycumines/go-actorvm/mailbox"
	"github.com/joeycumines/go-actorvm/reactor"
)

// ScriptVM is the opaque script runtime handle a Context owns alongside its
// strand and inbox (spec §3's "the script VM" attribute). The concrete
// binding (vm/gojavm) supplies this; Context only needs to be able to shut
// it down in lockstep with its own close.
type ScriptVM interface {
	Close() error
}

// reserveSize is the emergency allocation a Context holds in reserve for
// the duration outside fiber code (spec §4.1's "Reserved zone"), so a
// resume epilogue that itself allocates has some headroom even if the
// script runtime has otherwise exhausted memory. Go's garbage collector
// gives no API for actually pre-reserving an arena the way a native
// allocator would; a held-then-released byte slice is the closest
// approximation the standard library allows, and is documented as such in
// DESIGN.md rather than silently passed over.
const reserveSize = 64 * 1024

// Context is the design's VM context (spec §3 "VM context", component C4):
// it owns a script VM, the strand it is pinned to, an inbox, and the list
// of pending operations that must be cancelled on close.
type Context struct {
	loop  *reactor.Loop
	sched *fiber.Scheduler
	inbox *mailbox.Inbox
	log   reactor.Logger

	script ScriptVM

	pendingHead, pendingTail *pendingNode

	reserve []byte

	valid              bool
	luaErrMem          bool
	exitRequest        bool
	suppressTailErrors bool
}

// NewContext builds a VM context bound to loop's strand, scheduling fibers
// via sched and delivering actor messages via inbox. script may be nil for
// a context that doesn't embed a script runtime (e.g. a pure actor-host
// test fixture); log may be nil, which installs reactor's noop logger.
func NewContext(loop *reactor.Loop, sched *fiber.Scheduler, inbox *mailbox.Inbox, script ScriptVM, log reactor.Logger) *Context {
	if log == nil {
		log = reactor.NewNoopLogger()
	}
	return &Context{
		loop:    loop,
		sched:   sched,
		inbox:   inbox,
		log:     log,
		script:  script,
		reserve: make([]byte, reserveSize),
		valid:   true,
	}
}

// Loop returns the context's strand.
func (ctx *Context) Loop() *reactor.Loop { return ctx.loop }

// Scheduler returns the context's fiber scheduler.
func (ctx *Context) Scheduler() *fiber.Scheduler { return ctx.sched }

// Inbox returns the context's inbox.
func (ctx *Context) Inbox() *mailbox.Inbox { return ctx.inbox }

// Valid reports whether the context has not yet been closed.
func (ctx *Context) Valid() bool { return ctx.valid }

// ErrMem reports whether lua_errmem has latched: the script runtime (or
// the scheduler's own reserve) ran out of memory.
func (ctx *Context) ErrMem() bool { return ctx.luaErrMem }

// ExitRequested reports whether RequestExit has been called.
func (ctx *Context) ExitRequested() bool { return ctx.exitRequest }

// RequestExit sets the exit_request flag (spec §3). It does not itself
// close the context; a script-visible exit builtin is expected to observe
// this flag and unwind.
func (ctx *Context) RequestExit() { ctx.exitRequest = true }

// SuppressTailErrors reports whether the VM was closed following a
// detached main-fiber runtime error (spec §4.1), in which case later
// cleanup failures should not also be surfaced.
func (ctx *Context) SuppressTailErrors() bool { return ctx.suppressTailErrors }

// latchErrMem sets lua_errmem and closes the context, per spec §4.1's
// out-of-memory resume branch and the "fiber stack cannot be grown by the
// minimum reserve" fallback. Idempotent.
func (ctx *Context) latchErrMem() {
	ctx.luaErrMem = true
	ctx.Close()
}

// enterFiberCode releases the reserve before running fiber-owned code and
// reclaims it on the way back out (spec §4.1's "Reserved zone"), returning
// a function to call unconditionally on the way out.
func (ctx *Context) enterFiberCode() (exit func()) {
	ctx.reserve = nil
	return func() {
		if ctx.valid && ctx.reserve == nil {
			ctx.reserve = make([]byte, reserveSize)
		}
	}
}

// Close implements the VM-close contract (spec §3): cancel every pending
// operation, drain the inbox (waking queued senders and any receiver with
// channel_closed), close the owned script VM if any, and mark the context
// invalid so no further resume may occur. Idempotent.
func (ctx *Context) Close() error {
	if !ctx.valid {
		return nil
	}
	ctx.valid = false
	ctx.cancelPending()
	if ctx.inbox != nil {
		ctx.inbox.Close()
	}
	if ctx.script != nil {
		return ctx.script.Close()
	}
	return nil
}

// mustBeValid is a guard for operations that are documented as invalid
// once the context has closed.
func (ctx *Context) mustBeValid() error {
	if !ctx.valid {
		return coreerr.ErrInvalidArgument
	}
	return nil
}
