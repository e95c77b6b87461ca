package mailbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-actorvm/coreerr"
	"github.com/joeycumines/go-actorvm/fiber"
	"github.com/joeycumines/go-actorvm/mailbox"
	"github.com/joeycumines/go-actorvm/reactor"
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

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fibers never finished")
	}
}

func TestSendThenReceiveDeliversQueuedMessage(t *testing.T) {
	loop, sched := newRunningScheduler(t)
	ib := mailbox.New(loop, nil)
	addr := mailbox.NewAddress(ib)

	var got mailbox.Value
	var gotErr, sendErr error
	recvDone := make(chan struct{})
	sendDone := make(chan struct{})

	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		sendErr = mailbox.Send(c, addr, "hello")
		close(sendDone)
		return nil, nil
	})
	time.Sleep(10 * time.Millisecond) // let the send stage onto the inbox's queue

	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		got, gotErr = ib.Receive(c)
		close(recvDone)
		return nil, nil
	})
	waitDone(t, recvDone)
	waitDone(t, sendDone)

	require.NoError(t, sendErr)
	require.NoError(t, gotErr)
	require.Equal(t, "hello", got)
}

func TestReceiveBypassesQueueWhenWaiting(t *testing.T) {
	loop, sched := newRunningScheduler(t)
	ib := mailbox.New(loop, nil)
	addr := mailbox.NewAddress(ib)

	waiting := make(chan struct{})
	var got mailbox.Value
	var gotErr, sendErr error
	recvDone := make(chan struct{})
	sendDone := make(chan struct{})

	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		close(waiting)
		got, gotErr = ib.Receive(c)
		close(recvDone)
		return nil, nil
	})
	<-waiting
	time.Sleep(10 * time.Millisecond) // let the receiver actually park

	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		sendErr = mailbox.Send(c, addr, "fast-path")
		close(sendDone)
		return nil, nil
	})

	waitDone(t, sendDone)
	waitDone(t, recvDone)
	require.NoError(t, sendErr)
	require.NoError(t, gotErr)
	require.Equal(t, "fast-path", got)
}

func TestReceiveFailsImmediatelyWhenNoAddressEverImported(t *testing.T) {
	loop, sched := newRunningScheduler(t)
	ib := mailbox.New(loop, nil)

	var gotErr error
	done := make(chan struct{})
	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		_, gotErr = ib.Receive(c)
		close(done)
		return nil, nil
	})
	waitDone(t, done)
	require.ErrorIs(t, gotErr, coreerr.ErrNoSenders)
}

func TestAddressCloseWakesBlockedReceiverWithNoSenders(t *testing.T) {
	loop, sched := newRunningScheduler(t)
	ib := mailbox.New(loop, nil)
	addr := mailbox.NewAddress(ib)

	waiting := make(chan struct{})
	var gotErr error
	done := make(chan struct{})
	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		close(waiting)
		_, gotErr = ib.Receive(c)
		close(done)
		return nil, nil
	})
	<-waiting
	time.Sleep(10 * time.Millisecond)

	addr.Close()
	waitDone(t, done)
	require.ErrorIs(t, gotErr, coreerr.ErrNoSenders)
}

func TestCloseDrainsQueuedSenderWithChannelClosed(t *testing.T) {
	loop, sched := newRunningScheduler(t)
	ib := mailbox.New(loop, nil)
	addr := mailbox.NewAddress(ib)

	var sendErr error
	sendDone := make(chan struct{})
	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		sendErr = mailbox.Send(c, addr, "orphaned")
		close(sendDone)
		return nil, nil
	})
	time.Sleep(10 * time.Millisecond) // let the send stage onto the inbox's queue

	closeDone := make(chan struct{})
	require.NoError(t, loop.Post(func() {
		ib.Close()
		close(closeDone)
	}))
	waitDone(t, closeDone)
	waitDone(t, sendDone)

	require.ErrorIs(t, sendErr, coreerr.ErrChannelClosed)
}

func TestInterruptedSendIsRemovedFromQueue(t *testing.T) {
	loop, sched := newRunningScheduler(t)
	ib := mailbox.New(loop, nil)
	addr := mailbox.NewAddress(ib)

	var sendErr error
	sendDone := make(chan struct{})
	var target *fiber.Handle
	target = sched.Spawn(func(c *fiber.Context) ([]any, error) {
		sendErr = mailbox.Send(c, addr, "to-be-cancelled")
		close(sendDone)
		return nil, sendErr
	})

	time.Sleep(10 * time.Millisecond) // let the send stage onto the inbox's strand

	interruptDone := make(chan struct{})
	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		require.NoError(t, c.Interrupt(target))
		close(interruptDone)
		return nil, nil
	})
	waitDone(t, interruptDone)
	waitDone(t, sendDone)
	require.ErrorIs(t, sendErr, coreerr.ErrInterrupted)

	// the cancelled message must not still be queued for a later receiver:
	// the receiver parks, and dropping the only address wakes it with
	// no_senders instead of a message
	var gotErr error
	recvDone := make(chan struct{})
	sched.Spawn(func(c *fiber.Context) ([]any, error) {
		_, gotErr = ib.Receive(c)
		close(recvDone)
		return nil, nil
	})
	time.Sleep(10 * time.Millisecond)
	addr.Close()
	waitDone(t, recvDone)
	require.ErrorIs(t, gotErr, coreerr.ErrNoSenders)
}

func TestSendAcrossSeparateVMStrands(t *testing.T) {
	destLoop, destSched := newRunningScheduler(t)
	_, srcSched := newRunningScheduler(t)

	ib := mailbox.New(destLoop, nil)
	addr := mailbox.NewAddress(ib)

	var got mailbox.Value
	var gotErr error
	recvDone := make(chan struct{})
	destSched.Spawn(func(c *fiber.Context) ([]any, error) {
		got, gotErr = ib.Receive(c)
		close(recvDone)
		return nil, nil
	})
	time.Sleep(10 * time.Millisecond)

	var sendErr error
	sendDone := make(chan struct{})
	srcSched.Spawn(func(c *fiber.Context) ([]any, error) {
		sendErr = mailbox.Send(c, addr, map[string]mailbox.Value{"kind": "ping"})
		close(sendDone)
		return nil, nil
	})

	waitDone(t, sendDone)
	waitDone(t, recvDone)
	require.NoError(t, sendErr)
	require.NoError(t, gotErr)
	require.Equal(t, map[string]mailbox.Value{"kind": "ping"}, got)
}

func TestValidateRejectsExcessiveFanout(t *testing.T) {
	big := make([]mailbox.Value, mailbox.MaxMessageFanout+1)
	require.ErrorIs(t, mailbox.Validate(big), coreerr.ErrInvalidArgument)
}

func TestValidateRejectsUnsupportedType(t *testing.T) {
	require.ErrorIs(t, mailbox.Validate(make(chan int)), coreerr.ErrInvalidArgument)
}
