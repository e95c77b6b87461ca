// Package vm assembles the design's VM context (component C4, spec §3
// "VM context"): one script VM bound to one reactor.Loop strand, carrying
// an inbox, a list of pending operations, and the close/errmem/exit_request
// lifecycle that the fiber scheduler's resume epilogue (spec §4.1) drives.
//
// Every exported method here assumes the caller already holds the baton for
// the context's own strand — the same discipline reactor, fiber, and
// mailbox already follow — except where a method is explicitly documented
// as safe from any goroutine (mirroring mailbox.Address.Close).
package vm
