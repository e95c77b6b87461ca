package syncx_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-actorvm/coreerr"
	"github.com/joeycumines/go-actorvm/fiber"
	"github.com/joeycumines/go-actorvm/reactor"
	"github.com/joeycumines/go-actorvm/syncx"
)

func newRunningScheduler(t *testing.T) *fiber.Scheduler {
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
	return sched
}

func waitAll(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fibers never finished")
	}
}

func TestRecursiveMutexReentrantAndFairFIFO(t *testing.T) {
	sched := newRunningScheduler(t)
	var m syncx.RecursiveMutex

	var order []string
	done := make(chan struct{})

	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		require.NoError(t, m.Lock(c))
		require.NoError(t, m.Lock(c)) // reentrant
		order = append(order, "A-locked")
		require.NoError(t, c.Yield())

		sched.Spawn(func(c2 *fiber.Context) ([]any, error) {
			require.NoError(t, m.Lock(c2))
			order = append(order, "B-locked")
			require.NoError(t, m.Unlock(c2))
			return nil, nil
		})
		sched.Spawn(func(c3 *fiber.Context) ([]any, error) {
			require.NoError(t, m.Lock(c3))
			order = append(order, "C-locked")
			require.NoError(t, m.Unlock(c3))
			close(done)
			return nil, nil
		})

		require.NoError(t, c.Yield())
		require.NoError(t, m.Unlock(c)) // depth 2 -> 1
		order = append(order, "A-still-holds")
		require.NoError(t, m.Unlock(c)) // depth 1 -> 0, promotes B
		return nil, nil
	})

	waitAll(t, done)
	require.Equal(t, []string{"A-locked", "A-still-holds", "B-locked", "C-locked"}, order)
}

func TestRecursiveMutexUnlockByNonOwnerFails(t *testing.T) {
	sched := newRunningScheduler(t)
	var m syncx.RecursiveMutex

	holderParked := make(chan fiber.ResumeFunc, 1)
	done := make(chan struct{})
	var unlockErr error

	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		require.NoError(t, m.Lock(c))
		_, err := c.Suspend(func(resume fiber.ResumeFunc, setInterrupter func(func())) {
			holderParked <- resume
		})
		return nil, err
	})

	resumeHolder := <-holderParked

	sched.Spawn(func(c2 *fiber.Context) ([]any, error) {
		unlockErr = m.Unlock(c2)
		close(done)
		return nil, nil
	})

	waitAll(t, done)
	require.ErrorIs(t, unlockErr, coreerr.ErrOperationNotPermitted)
	resumeHolder(nil, nil)
}

func TestFutureGetBlocksThenResolvesWithValue(t *testing.T) {
	sched := newRunningScheduler(t)
	p, f := syncx.New()

	var got any
	var gotErr error
	done := make(chan struct{})

	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		got, gotErr = f.Get(c)
		close(done)
		return nil, nil
	})

	time.Sleep(20 * time.Millisecond)
	// Promise resolution, like every other mutation of shared fiber-scoped
	// state, must happen while holding the strand baton (spec §4.4's
	// "waking waiters is strand-posted"); a tiny fiber stands in for
	// whatever strand-posted completion handler would resolve it in
	// production.
	resolved := make(chan struct{})
	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		require.NoError(t, p.SetValue("hello"))
		close(resolved)
		return nil, nil
	})
	waitAll(t, resolved)

	waitAll(t, done)
	require.NoError(t, gotErr)
	require.Equal(t, "hello", got)
}

func TestFutureDoubleSetFails(t *testing.T) {
	p, _ := syncx.New()
	require.NoError(t, p.SetValue(1))
	require.ErrorIs(t, p.SetValue(2), coreerr.ErrPromiseAlreadySatisfied)
}

func TestBrokenPromiseWakesWaiterWithBrokenPromise(t *testing.T) {
	sched := newRunningScheduler(t)
	p, f := syncx.New()

	var gotErr error
	done := make(chan struct{})
	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		_, gotErr = f.Get(c)
		close(done)
		return nil, nil
	})

	time.Sleep(20 * time.Millisecond)
	broken := make(chan struct{})
	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		p.Break()
		close(broken)
		return nil, nil
	})
	waitAll(t, broken)

	waitAll(t, done)
	require.ErrorIs(t, gotErr, coreerr.ErrBrokenPromise)
}

func TestInterruptedFutureGetReportsInterrupted(t *testing.T) {
	sched := newRunningScheduler(t)
	_, f := syncx.New()

	var gotErr error
	done := make(chan struct{})
	var target *fiber.Handle
	target = sched.Spawn(func(c *fiber.Context) ([]any, error) {
		_, gotErr = f.Get(c)
		close(done)
		return nil, gotErr
	})

	time.Sleep(20 * time.Millisecond)
	interrupterDone := make(chan struct{})
	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		require.NoError(t, c.Interrupt(target))
		close(interrupterDone)
		return nil, nil
	})
	waitAll(t, interrupterDone)
	waitAll(t, done)
	require.ErrorIs(t, gotErr, coreerr.ErrInterrupted)
}
