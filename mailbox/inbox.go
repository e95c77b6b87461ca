package mailbox

import (
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/joeycumines/go-actorvm/coreerr"
	"github.com/joeycumines/go-actorvm/fiber"
	"github.com/joeycumines/go-actorvm/reactor"
)

// Inbox is the design's per-VM inbox (spec §4.2). nsenders and imported
// are the only fields touched from outside the owning loop's strand
// (address creation/drop can happen from any goroutine); every other
// field is strand-local, matching the rest of this runtime's "all
// mutation happens on strand" discipline.
type Inbox struct {
	loop     *reactor.Loop
	open     bool
	imported atomic.Bool
	nsenders atomic.Int64

	recv     *recvWaiter
	incoming []*senderState

	limiter *catrate.Limiter
}

type recvWaiter struct {
	resume fiber.ResumeFunc
	guard  *reactor.WorkGuard
}

type senderState struct {
	fiberID uint64
	message Value
	resume  fiber.ResumeFunc
	loop    *reactor.Loop // the sending fiber's own strand, not dst's
	timer   *reactor.Timer
}

// wake resumes the sender from whatever strand happens to be running this
// code, by posting back onto the sender's own loop (spec §9: a cross-VM
// wakeup must never touch the sender fiber's VM state from dst's strand).
func (ss *senderState) wake(value any, err error) {
	_ = ss.loop.Post(func() { ss.resume(value, err) })
}

// New creates an open inbox bound to loop's strand. limiter is optional
// token-bucket backpressure (SPEC_FULL.md's supplemental hardening
// feature grounded on the teacher's own transitive dependency choice,
// github.com/joeycumines/go-catrate) keyed per sending fiber; pass nil
// for unbounded delivery.
func New(loop *reactor.Loop, limiter *catrate.Limiter) *Inbox {
	return &Inbox{loop: loop, open: true, limiter: limiter}
}

func (ib *Inbox) takeGuard() *reactor.WorkGuard { return ib.loop.TakeWorkGuard() }

// Send stages value on dst's owning strand and suspends the caller until
// the message is consumed, the channel closes, or the caller is
// interrupted (spec §4.2). The caller always suspends, even along the
// bypass-the-queue fast path, so interruption always races cleanly
// against delivery regardless of which VM's strand the caller runs on.
func Send(c *fiber.Context, dst *Address, value Value) error {
	if err := Validate(value); err != nil {
		return err
	}
	ss := &senderState{fiberID: c.ID(), message: value, loop: c.Loop()}
	_, err := c.Suspend(func(resume fiber.ResumeFunc, setInterrupter func(func())) {
		ss.resume = resume
		setInterrupter(func() {
			_ = dst.inbox.loop.Post(func() { dst.inbox.cancelSender(ss) })
			resume(nil, coreerr.ErrInterrupted)
		})
		_ = dst.inbox.loop.Post(func() { dst.inbox.stage(ss) })
	})
	return err
}

// stage runs on the inbox's own strand: it delivers directly to a
// waiting receiver, bypassing the queue, or enqueues otherwise (spec
// §4.2). A configured limiter can delay staging without failing the
// send, so a flooding sender degrades instead of erroring.
func (ib *Inbox) stage(ss *senderState) {
	if !ib.open {
		ss.wake(nil, coreerr.ErrChannelClosed)
		return
	}
	if ib.limiter != nil {
		if next, ok := ib.limiter.Allow(ss.fiberID); !ok {
			ss.timer = ib.loop.AfterFunc(time.Until(next), func() { ib.stage(ss) })
			return
		}
	}
	if ib.recv != nil {
		rw := ib.recv
		ib.recv = nil
		rw.guard.Release()
		rw.resume(ss.message, nil)
		ss.wake(nil, nil)
		return
	}
	ib.incoming = append(ib.incoming, ss)
}

// cancelSender best-effort-removes ss from the queue (or stops its
// pending rate-limit retry); it is a no-op if delivery already raced
// ahead, since Send's resume is idempotent either way.
func (ib *Inbox) cancelSender(ss *senderState) {
	if ss.timer != nil {
		ss.timer.Stop()
	}
	for i, s := range ib.incoming {
		if s == ss {
			ib.incoming = append(ib.incoming[:i], ib.incoming[i+1:]...)
			return
		}
	}
}

// Receive blocks until a message arrives, the channel closes, or no
// senders remain (spec §4.2). Must be called from a fiber that belongs
// to this inbox's own scheduler/strand.
func (ib *Inbox) Receive(c *fiber.Context) (Value, error) {
	if len(ib.incoming) > 0 {
		ss := ib.incoming[0]
		ib.incoming = ib.incoming[1:]
		ss.wake(nil, nil)
		return ss.message, nil
	}
	if !ib.open {
		return nil, coreerr.ErrChannelClosed
	}
	if ib.nsenders.Load() == 0 && !ib.imported.Load() {
		return nil, coreerr.ErrNoSenders
	}

	guard := ib.takeGuard()
	return c.Suspend(func(resume fiber.ResumeFunc, setInterrupter func(func())) {
		ib.recv = &recvWaiter{resume: resume, guard: guard}
		setInterrupter(func() {
			ib.recv = nil
			guard.Release()
			resume(nil, coreerr.ErrInterrupted)
		})
	})
}

// recheckNoSenders re-verifies nsenders on the owning strand, waking a
// blocked receiver with no_senders if it is still zero — the recheck
// spec §4.2 requires to avoid losing a race with concurrent address
// creation.
func (ib *Inbox) recheckNoSenders() {
	_ = ib.loop.Post(func() {
		if ib.open && ib.recv != nil && ib.nsenders.Load() == 0 {
			rw := ib.recv
			ib.recv = nil
			rw.guard.Release()
			rw.resume(nil, coreerr.ErrNoSenders)
		}
	})
}

// Close drains the inbox (spec §4.2): every queued sender and any
// blocked receiver wake with channel_closed rather than being silently
// dropped. Must run on the owning strand.
func (ib *Inbox) Close() {
	ib.open = false
	if ib.recv != nil {
		rw := ib.recv
		ib.recv = nil
		rw.guard.Release()
		rw.resume(nil, coreerr.ErrChannelClosed)
	}
	pending := ib.incoming
	ib.incoming = nil
	for _, ss := range pending {
		ss.wake(nil, coreerr.ErrChannelClosed)
	}
}
