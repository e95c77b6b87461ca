package gojavm

import (
	"github.com/dop251/goja"

	"github.com/joeycumines/go-actorvm/coreerr"
	"github.com/joeycumines/go-actorvm/fiber"
	"github.com/joeycumines/go-actorvm/vm"
)

// closeSentinel and oomSentinel are the two values this package ever hands
// to (*goja.Runtime).Interrupt. goja hands whichever value we passed back
// out wrapped in a *goja.InterruptedError (via InterruptedError.Value), so
// classify can tell the two apart and only latch lua_errmem for the latter.
type closeSentinel struct{}
type oomSentinel struct{}

var (
	errClosed = closeSentinel{}
	errOOM    = oomSentinel{}
)

// VM adapts a *goja.Runtime to vm.ScriptVM. Like vm.Context, every method
// other than Close assumes the caller is on the VM's strand; Close may run
// from any goroutine, since that is goja's own contract for Interrupt.
type VM struct {
	rt      *goja.Runtime
	current *fiber.Context
}

// New wraps rt, which must not be shared with another VM.
func New(rt *goja.Runtime) *VM { return &VM{rt: rt} }

// Runtime returns the wrapped goja runtime, for binding additional globals
// before a program starts running on it.
func (v *VM) Runtime() *goja.Runtime { return v.rt }

// Close aborts whatever script is currently executing on rt. Safe to call
// from any goroutine, matching vm.ScriptVM's contract that Close may run as
// part of vm.Context.Close's strand-bound sweep.
func (v *VM) Close() error {
	v.rt.Interrupt(errClosed)
	return nil
}

// InterruptOutOfMemory requests that the script running on rt latch
// out-of-memory at its next statement boundary. This stands in for spec
// §4.1's reserved-zone allocation-failure trap: goja has no allocator hook
// to drive this automatically, so a host-side resource monitor is expected
// to call it directly when it decides the runtime has exceeded its budget.
func (v *VM) InterruptOutOfMemory() { v.rt.Interrupt(errOOM) }

// classify turns an error returned by rt.RunProgram (or a called JS
// function) into the coreerr taxonomy the resume epilogue switches on.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if ie, ok := err.(*goja.InterruptedError); ok {
		if _, ok := ie.Value().(oomSentinel); ok {
			return coreerr.ErrOutOfMemory
		}
		return coreerr.ErrInterrupted
	}
	if exc, ok := err.(*goja.Exception); ok {
		return coreerr.Lua(exc)
	}
	return coreerr.Lua(err)
}

// withFiber runs fn with v.current set to c for the duration, restoring the
// previous value afterwards. Only one fiber ever holds the strand's baton
// at a time, so this plain field (rather than anything synchronized) is
// enough to let bound host functions find the Context of whichever fiber
// is currently calling into goja.
func (v *VM) withFiber(c *fiber.Context, fn func() (goja.Value, error)) (goja.Value, error) {
	prev := v.current
	v.current = c
	defer func() { v.current = prev }()
	return fn()
}

// Run compiles src under name and executes it on ctx's main fiber, wiring
// the program's outcome into ctx's resume epilogue via vm.Context.RunMain.
func Run(ctx *vm.Context, v *VM, name, src string) (*fiber.Handle, <-chan vm.Outcome, error) {
	prog, err := goja.Compile(name, src, true)
	if err != nil {
		return nil, nil, coreerr.Lua(err)
	}
	h, out := ctx.RunMain(func(c *fiber.Context) ([]any, error) {
		result, err := v.withFiber(c, func() (goja.Value, error) { return v.rt.RunProgram(prog) })
		if err != nil {
			return nil, classify(err)
		}
		return []any{result.Export()}, nil
	})
	return h, out, nil
}
