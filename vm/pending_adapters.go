package vm

import (
	"github.com/joeycumines/go-actorvm/fiber"
	"github.com/joeycumines/go-actorvm/spawn"
)

// subprocessCancel adapts a spawn.Handle onto PendingOperation: dropping a
// VM before a subprocess reaper it owns has been waited on triggers the
// handle's own kill-then-reap close path (spec's subprocess handle
// "reaper... waits complete via reactor readiness", closed via drop
// sending a signal and reaping asynchronously with no suspension).
type subprocessCancel struct{ h *spawn.Handle }

func (c subprocessCancel) Cancel() { _ = c.h.Close() }

// TrackSubprocess registers h as a pending operation of ctx. Call the
// returned untrack function once the caller has waited h through to
// completion via h.Wait, so a normally-reaped process doesn't linger in
// the pending list until the VM itself eventually closes.
func (ctx *Context) TrackSubprocess(h *spawn.Handle) (untrack func()) {
	return ctx.Track(subprocessCancel{h: h})
}

// fiberInterrupt adapts a fiber handle onto PendingOperation: cancelling it
// fires the target fiber's installed interrupter exactly as
// fiber.Context.Interrupt would, for primitives (future.Get, a pending
// inbox send/receive elsewhere than this VM's own inbox) whose suspended
// fiber belongs to this VM.
type fiberInterrupt struct {
	sched *fiber.Scheduler
	h     *fiber.Handle
}

func (c fiberInterrupt) Cancel() { _ = c.sched.Interrupt(c.h) }

// TrackFiber registers h's target fiber as a pending operation of ctx, so
// that closing the VM interrupts it if still suspended when the pending
// operation it's blocked in hasn't already unregistered via the returned
// untrack function.
func (ctx *Context) TrackFiber(h *fiber.Handle) (untrack func()) {
	return ctx.Track(fiberInterrupt{sched: ctx.sched, h: h})
}
