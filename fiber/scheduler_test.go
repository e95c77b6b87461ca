package fiber_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-actorvm/coreerr"
	"github.com/joeycumines/go-actorvm/fiber"
	"github.com/joeycumines/go-actorvm/reactor"
)

func newRunningLoop(t *testing.T) (*reactor.Loop, *fiber.Scheduler) {
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

// waitFinished blocks, from plain test-goroutine code outside any fiber, until
// h's target finishes, by spawning a tiny fiber that joins it. This stands in for
// a host-side "drive the VM until quiescent" loop the vm package will
// eventually provide.
func waitFinished(t *testing.T, sched *fiber.Scheduler, h *fiber.Handle) ([]any, bool, error) {
	t.Helper()
	type outcome struct {
		results     []any
		interrupted bool
		err         error
	}
	resultCh := make(chan outcome, 1)
	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		results, interrupted, err := c.Join(h)
		resultCh <- outcome{results, interrupted, err}
		return nil, nil
	})
	select {
	case o := <-resultCh:
		return o.results, o.interrupted, o.err
	case <-time.After(2 * time.Second):
		t.Fatal("join never resolved")
		return nil, false, nil
	}
}

func TestSpawnAndJoinReturnsResults(t *testing.T) {
	_, sched := newRunningLoop(t)

	h := sched.Spawn(func(c *fiber.Context) ([]any, error) {
		return []any{"ok", 42}, nil
	})

	results, interrupted, err := waitFinished(t, sched, h)
	require.NoError(t, err)
	require.False(t, interrupted)
	require.Equal(t, []any{"ok", 42}, results)
}

func TestJoinReRaisesTargetError(t *testing.T) {
	_, sched := newRunningLoop(t)
	sentinel := coreerr.New(coreerr.InvalidArgument)

	h := sched.Spawn(func(c *fiber.Context) ([]any, error) {
		return nil, sentinel
	})

	_, interrupted, err := waitFinished(t, sched, h)
	require.False(t, interrupted)
	require.ErrorIs(t, err, sentinel)
}

func TestJoinSelfFailsResourceDeadlock(t *testing.T) {
	_, sched := newRunningLoop(t)

	var joinErr error
	done := make(chan struct{})
	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		_, _, joinErr = c.Join(c.Handle())
		close(done)
		return nil, nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fiber never finished")
	}
	require.ErrorIs(t, joinErr, coreerr.ErrResourceDeadlock)
}

func TestInterruptSuspendedFiberThenJoinReportsCaught(t *testing.T) {
	_, sched := newRunningLoop(t)

	var target *fiber.Handle
	var mu sync.Mutex
	suspended := make(chan struct{})

	target = sched.Spawn(func(c *fiber.Context) ([]any, error) {
		_, err := c.Suspend(func(resume fiber.ResumeFunc, setInterrupter func(func())) {
			setInterrupter(func() { resume(nil, coreerr.ErrInterrupted) })
			mu.Lock()
			close(suspended)
			mu.Unlock()
		})
		return nil, err
	})

	<-suspended

	interrupterDone := make(chan struct{})
	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		err := c.Interrupt(target)
		require.NoError(t, err)
		close(interrupterDone)
		return nil, nil
	})
	<-interrupterDone

	_, interrupted, err := waitFinished(t, sched, target)
	require.NoError(t, err)
	require.True(t, interrupted)

	caught, known := target.InterruptionCaught()
	require.True(t, known)
	require.True(t, caught)
}

func TestYieldReschedulesCooperatively(t *testing.T) {
	_, sched := newRunningLoop(t)

	var order []int
	done := make(chan struct{})
	var mu sync.Mutex

	for i := 0; i < 3; i++ {
		i := i
		sched.Spawn(func(c *fiber.Context) ([]any, error) {
			require.NoError(t, c.Yield())
			mu.Lock()
			order = append(order, i)
			if len(order) == 3 {
				close(done)
			}
			mu.Unlock()
			return nil, nil
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fibers never finished")
	}
	require.ElementsMatch(t, []int{0, 1, 2}, order)
}

func TestForbidSuspendBlocksYield(t *testing.T) {
	_, sched := newRunningLoop(t)

	var yieldErr error
	done := make(chan struct{})
	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		c.ForbidSuspend()
		yieldErr = c.Yield()
		done2 := c.AllowSuspend()
		require.NoError(t, done2)
		close(done)
		return nil, nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fiber never finished")
	}
	require.ErrorIs(t, yieldErr, coreerr.ErrForbidSuspendBlock)
}

func TestUnbalancedRestoreInterruptionFails(t *testing.T) {
	_, sched := newRunningLoop(t)

	var restoreErr error
	done := make(chan struct{})
	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		restoreErr = c.RestoreInterruption()
		close(done)
		return nil, nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fiber never finished")
	}
	require.ErrorIs(t, restoreErr, coreerr.ErrInterruptionAlreadyAllo)
}

func TestDetachOfAlreadyFinishedFiberLogsUnhandledError(t *testing.T) {
	sentinel := coreerr.New(coreerr.InvalidArgument)

	var mu sync.Mutex
	var logged []reactor.Entry
	logger := reactor.NewFuncLogger(reactor.LevelDebug, func(e reactor.Entry) {
		mu.Lock()
		logged = append(logged, e)
		mu.Unlock()
	})

	loop, err := reactor.New()
	require.NoError(t, err)
	sched := fiber.New(loop, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	finishedTarget := make(chan struct{})
	h := sched.Spawn(func(c *fiber.Context) ([]any, error) {
		close(finishedTarget)
		return nil, sentinel
	})
	<-finishedTarget
	// Give the target's epilogue a chance to run on the strand before we
	// detach it, so Detach observes status.Finished() == true.
	time.Sleep(20 * time.Millisecond)

	detachDone := make(chan struct{})
	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		require.NoError(t, c.Detach(h))
		close(detachDone)
		return nil, nil
	})

	select {
	case <-detachDone:
	case <-time.After(2 * time.Second):
		t.Fatal("detach never completed")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, logged)
	require.Equal(t, reactor.LevelError, logged[0].Level)
	require.False(t, h.Joinable())
}
