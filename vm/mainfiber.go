package vm

import (
	"github.com/joeycumines/go-actorvm/coreerr"
	"github.com/joeycumines/go-actorvm/fiber"
	"github.com/joeycumines/go-actorvm/reactor"
)

// Outcome is what RunMain reports once the main fiber has resolved and
// this context has applied the spec §4.1 resume-epilogue side effects that
// apply to it.
type Outcome struct {
	Results     []any
	Interrupted bool
	Err         error
}

// EnterFiberCode releases the reserve held for the emergency allocation
// zone (spec §4.1's "Reserved zone") and returns a function that reclaims
// it. A script-VM binding can call this around each resume it drives into
// the scheduler, and must then always call the returned function, even on
// panic recovery paths. vm/gojavm does not call it.
func (ctx *Context) EnterFiberCode() (exit func()) { return ctx.enterFiberCode() }

// RunMain spawns body as this context's main fiber (spec's module_path
// "main" fiber) and arranges for the resume-epilogue side effects that the
// spec assigns to a detached main fiber — sealing the inbox on success, a
// panic diagnostic plus a suppress_tail_errors close on an unhandled
// runtime error, and the lua_errmem latch on an out-of-memory outcome — to
// run regardless of whether any script-visible code ever calls detach or
// join on the returned handle.
//
// There is no parent fiber at VM bootstrap to call fiber.Context.Detach
// from, so RunMain spawns an internal reaper fiber that joins the main
// handle instead: architecturally that is exactly the spec's "detached"
// case, since no sibling fiber is joining the main fiber for its own
// business logic. fiber.Context.Join already converts a target that
// resolved via interruption into a (nil err, interrupted=true) result, so
// this layer does not need to special-case interruption itself.
func (ctx *Context) RunMain(body fiber.Body) (*fiber.Handle, <-chan Outcome) {
	mainHandle := ctx.sched.SpawnMain(body)

	out := make(chan Outcome, 1)
	ctx.sched.Spawn(func(c *fiber.Context) ([]any, error) {
		results, interrupted, err := c.Join(mainHandle)
		ctx.handleMainOutcome(err)
		out <- Outcome{Results: results, Interrupted: interrupted, Err: err}
		return nil, nil
	})
	return mainHandle, out
}

// handleMainOutcome applies spec §4.1's resume-epilogue side effects for a
// detached main fiber, keyed on the join error fiber.Context.Join reports
// (nil covers both a genuine ok outcome and an interruption-caught one).
func (ctx *Context) handleMainOutcome(err error) {
	switch {
	case err == nil:
		if ctx.inbox != nil {
			ctx.inbox.Close()
		}
	case coreerr.IsOutOfMemory(err):
		ctx.latchErrMem()
	default:
		ctx.log.Log(reactor.Entry{
			Level:    reactor.LevelError,
			Category: "vm",
			Message:  "main fiber finished with an unhandled error",
			Err:      err,
		})
		ctx.suppressTailErrors = true
		ctx.Close()
	}
}
