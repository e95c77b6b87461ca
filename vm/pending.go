package vm

// PendingOperation is anything a VM context must be able to cancel on
// close without waiting for it to resolve on its own: a future waiter, a
// mutex waiter, a subprocess reaper, an inbox receive. Cancel must be safe
// to call even if the operation has already resolved through its normal
// path (Track's returned untrack function races it).
type PendingOperation interface {
	Cancel()
}

// pendingNode is the intrusive list entry backing Context's pending
// operation list (spec §3: "a list of pending_operation nodes, intrusive,
// auto-unlinked"). A node unlinks itself exactly once, whichever comes
// first: the operation's own untrack call, or Close's cancellation sweep.
type pendingNode struct {
	op         PendingOperation
	prev, next *pendingNode
}

// track appends a node for op and returns the node so the caller can wire
// up an idempotent untrack closure.
func (ctx *Context) track(op PendingOperation) *pendingNode {
	n := &pendingNode{op: op}
	if ctx.pendingTail == nil {
		ctx.pendingHead = n
	} else {
		ctx.pendingTail.next = n
		n.prev = ctx.pendingTail
	}
	ctx.pendingTail = n
	return n
}

func (ctx *Context) unlink(n *pendingNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else if ctx.pendingHead == n {
		ctx.pendingHead = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else if ctx.pendingTail == n {
		ctx.pendingTail = n.prev
	}
	n.prev, n.next = nil, nil
}

// Track registers op as a pending operation of this VM context and returns
// an untrack function the operation must call once it resolves through its
// own normal path (not via Cancel). Calling the returned function more than
// once is a no-op. Must be called on the context's strand.
func (ctx *Context) Track(op PendingOperation) (untrack func()) {
	n := ctx.track(op)
	done := false
	return func() {
		if done {
			return
		}
		done = true
		ctx.unlink(n)
	}
}

// cancelPending walks the list once, unlinking and cancelling every node.
// Cancel implementations are free to call their own untrack during this
// sweep (it is then a no-op against an already-unlinked node), but must
// not register new pending operations on this context — it is no longer
// valid by the time this runs.
func (ctx *Context) cancelPending() {
	n := ctx.pendingHead
	ctx.pendingHead, ctx.pendingTail = nil, nil
	for n != nil {
		next := n.next
		n.prev, n.next = nil, nil
		n.op.Cancel()
		n = next
	}
}
