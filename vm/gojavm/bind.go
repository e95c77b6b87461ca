package gojavm

import (
	"github.com/dop251/goja"

	"github.com/joeycumines/go-actorvm/fiber"
	"github.com/joeycumines/go-actorvm/mailbox"
	"github.com/joeycumines/go-actorvm/vm"
)

// Bind installs the actor-facing host API (self/spawn/send/receive) as
// globals on v's runtime, the same shape goja-eventloop's Adapter.Bind
// installs setTimeout/Promise: each binding validates its arguments and
// panics a goja TypeError on misuse, the idiomatic way for a bound Go
// function to surface as a thrown JS exception.
func Bind(ctx *vm.Context, v *VM) error {
	rt := v.rt
	if err := rt.Set("self", v.self(ctx)); err != nil {
		return err
	}
	if err := rt.Set("spawn", v.spawn(ctx)); err != nil {
		return err
	}
	if err := rt.Set("send", v.send()); err != nil {
		return err
	}
	if err := rt.Set("receive", v.receive(ctx)); err != nil {
		return err
	}
	return nil
}

// requireFiber panics a TypeError when a host function is invoked outside
// of any fiber's execution (e.g. from a raw goja.Runtime.RunString call the
// VM's own bookkeeping never saw) rather than a nil-pointer dereference.
func (v *VM) requireFiber() *fiber.Context {
	if v.current == nil {
		panic(v.rt.NewTypeError("actor host function called outside of fiber execution"))
	}
	return v.current
}

// self returns this VM's inbox address, the value other actors need in
// order to send() to it.
func (v *VM) self(ctx *vm.Context) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		return v.rt.ToValue(mailbox.NewAddress(ctx.Inbox()))
	}
}

// spawn runs fn as the body of a new fiber and returns its join handle.
func (v *VM) spawn(ctx *vm.Context) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn := call.Argument(0)
		callable, ok := goja.AssertFunction(fn)
		if !ok {
			panic(v.rt.NewTypeError("spawn requires a function as first argument"))
		}
		h := ctx.Scheduler().Spawn(func(c *fiber.Context) ([]any, error) {
			result, err := v.withFiber(c, func() (goja.Value, error) { return callable(goja.Undefined()) })
			if err != nil {
				return nil, classify(err)
			}
			return []any{result.Export()}, nil
		})
		return v.rt.ToValue(h)
	}
}

// send delivers a value to an address obtained from self(), suspending the
// calling fiber until a receiver takes it or the destination is closed.
func (v *VM) send() func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		c := v.requireFiber()
		addr, ok := call.Argument(0).Export().(*mailbox.Address)
		if !ok {
			panic(v.rt.NewTypeError("send requires an address as first argument"))
		}
		if err := mailbox.Send(c, addr, call.Argument(1).Export()); err != nil {
			panic(v.rt.NewGoError(err))
		}
		return goja.Undefined()
	}
}

// receive suspends the calling fiber until a value arrives on the VM's own
// inbox, returning it.
func (v *VM) receive(ctx *vm.Context) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		c := v.requireFiber()
		val, err := ctx.Inbox().Receive(c)
		if err != nil {
			panic(v.rt.NewGoError(err))
		}
		return v.rt.ToValue(val)
	}
}
