package gojavm_test

import (
	"context"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-actorvm/coreerr"
	"github.com/joeycumines/go-actorvm/fiber"
	"github.com/joeycumines/go-actorvm/mailbox"
	"github.com/joeycumines/go-actorvm/reactor"
	"github.com/joeycumines/go-actorvm/vm"
	"github.com/joeycumines/go-actorvm/vm/gojavm"
)

func newRunningScheduler(t *testing.T) (*reactor.Loop, *fiber.Scheduler) {
	t.Helper()
	l, err := reactor.New()
	require.NoError(t, err)
	sched := fiber.New(l, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = l.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("loop did not stop")
		}
	})
	return l, sched
}

func newContext(t *testing.T) (*vm.Context, *gojavm.VM) {
	t.Helper()
	loop, sched := newRunningScheduler(t)
	ib := mailbox.New(loop, nil)
	gv := gojavm.New(goja.New())
	vc := vm.NewContext(loop, sched, ib, gv, nil)
	require.NoError(t, gojavm.Bind(vc, gv))
	return vc, gv
}

func TestRunOkReturnsScriptResult(t *testing.T) {
	vc, gv := newContext(t)

	_, outcome, err := gojavm.Run(vc, gv, "main.js", "1 + 2")
	require.NoError(t, err)

	select {
	case o := <-outcome:
		require.NoError(t, o.Err)
		require.False(t, o.Interrupted)
		require.Len(t, o.Results, 1)
		require.EqualValues(t, 3, o.Results[0])
	case <-time.After(2 * time.Second):
		t.Fatal("script never reported an outcome")
	}
}

func TestRunScriptExceptionClosesContextWithLuaError(t *testing.T) {
	vc, gv := newContext(t)

	_, outcome, err := gojavm.Run(vc, gv, "main.js", `throw new Error("boom")`)
	require.NoError(t, err)

	select {
	case o := <-outcome:
		require.Error(t, o.Err)
		var ce *coreerr.Error
		require.ErrorAs(t, o.Err, &ce)
		require.Equal(t, coreerr.CategoryLua, ce.Category)
	case <-time.After(2 * time.Second):
		t.Fatal("script never reported an outcome")
	}

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, vc.Loop().Post(func() {
		require.False(t, vc.Valid())
		require.True(t, vc.SuppressTailErrors())
	}))
	time.Sleep(10 * time.Millisecond)
}

func TestRunCloseInterruptsRunningScript(t *testing.T) {
	vc, gv := newContext(t)

	_, outcome, err := gojavm.Run(vc, gv, "main.js", "for (;;) {}")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, gv.Close())

	select {
	case o := <-outcome:
		require.NoError(t, o.Err)
		require.True(t, o.Interrupted)
	case <-time.After(2 * time.Second):
		t.Fatal("script was never interrupted")
	}
}

func TestRunOutOfMemoryLatchesErrMem(t *testing.T) {
	vc, gv := newContext(t)

	_, outcome, err := gojavm.Run(vc, gv, "main.js", "for (;;) {}")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	gv.InterruptOutOfMemory()

	select {
	case o := <-outcome:
		require.True(t, coreerr.IsOutOfMemory(o.Err))
	case <-time.After(2 * time.Second):
		t.Fatal("script was never interrupted")
	}

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, vc.Loop().Post(func() {
		require.False(t, vc.Valid())
		require.True(t, vc.ErrMem())
	}))
	time.Sleep(10 * time.Millisecond)
}
