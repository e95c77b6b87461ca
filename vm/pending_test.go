package vm_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-actorvm/mailbox"
	"github.com/joeycumines/go-actorvm/vm"
)

type countingOp struct{ cancelled int }

func (c *countingOp) Cancel() { c.cancelled++ }

func TestCloseCancelsEveryPendingOperation(t *testing.T) {
	loop, sched := newRunningScheduler(t)
	ib := mailbox.New(loop, nil)
	ctx := vm.NewContext(loop, sched, ib, nil, nil)

	a, b := &countingOp{}, &countingOp{}
	require.NoError(t, loop.Post(func() {
		ctx.Track(a)
		ctx.Track(b)
	}))
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, loop.Post(func() {
		require.NoError(t, ctx.Close())
	}))
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, loop.Post(func() {
		require.Equal(t, 1, a.cancelled)
		require.Equal(t, 1, b.cancelled)
	}))
	time.Sleep(10 * time.Millisecond)
}

func TestUntrackRemovesOperationBeforeClose(t *testing.T) {
	loop, sched := newRunningScheduler(t)
	ib := mailbox.New(loop, nil)
	ctx := vm.NewContext(loop, sched, ib, nil, nil)

	op := &countingOp{}
	var untrack func()
	require.NoError(t, loop.Post(func() {
		untrack = ctx.Track(op)
		untrack()
		untrack() // idempotent
	}))
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, loop.Post(func() {
		require.NoError(t, ctx.Close())
	}))
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, loop.Post(func() {
		require.Equal(t, 0, op.cancelled)
	}))
	time.Sleep(10 * time.Millisecond)
}
