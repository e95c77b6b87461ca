package mailbox

import (
	"sync/atomic"

	"github.com/joeycumines/go-actorvm/reactor"
)

// Address is a weak reference to a destination Inbox plus a work guard
// that keeps the destination VM's reactor alive for as long as the
// address exists (spec §4.2). Cloning bumps the destination's nsenders;
// Close decrements it and schedules the no-senders recheck on the
// destination's own strand.
type Address struct {
	inbox  *Inbox
	guard  *reactor.WorkGuard
	closed atomic.Bool
}

// NewAddress creates the first address referencing inbox, marking it as
// having imported an address — a one-way flag that, together with
// nsenders, gates the immediate no_senders failure on Receive (spec
// §4.2: "if nsenders==0 and the inbox has not imported any address").
func NewAddress(inbox *Inbox) *Address {
	inbox.nsenders.Add(1)
	inbox.imported.Store(true)
	return &Address{inbox: inbox, guard: inbox.takeGuard()}
}

// Clone returns an independent address to the same inbox, bumping
// nsenders. Safe to call from any goroutine (spec's "across threads"
// requirement on nsenders).
func (a *Address) Clone() *Address {
	a.inbox.nsenders.Add(1)
	return &Address{inbox: a.inbox, guard: a.inbox.takeGuard()}
}

// Close drops this reference. Idempotent. Safe to call from any
// goroutine; the actual no-senders recheck is deferred onto the
// destination's strand.
func (a *Address) Close() {
	if a.closed.CompareAndSwap(false, true) {
		a.inbox.nsenders.Add(-1)
		a.guard.Release()
		a.inbox.recheckNoSenders()
	}
}
