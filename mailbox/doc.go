// Package mailbox implements component C5: a per-VM message inbox with
// typed values (including remote addresses), backpressure, and the
// no-senders wakeup rule (spec §3, §4.2). Every Inbox method that mutates
// shared state other than the sender count must run on the owning VM's
// reactor.Loop strand — exactly the same discipline fiber and syncx already
// follow — except nsenders itself, which is the one field genuinely shared
// across VM strands and is kept atomic for that reason.
package mailbox
