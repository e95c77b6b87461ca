// Package fiber implements components C2 (fiber registry) and C3 (scheduler):
// cooperatively scheduled fibers pinned to a single reactor.Loop strand, with
// spawn, join, detach, interrupt, yield and the suspension/interruption
// gating counters spec'd for the runtime's concurrency core.
//
// A fiber's body runs on its own goroutine, but only one fiber's goroutine
// (or the reactor strand itself) is ever unblocked at a time: control passes
// between them with a synchronous rendezvous (see suspend in fiber.go and
// resume in scheduler.go), so every mutation of registry or fiber state below happens
// without a lock, the same way single-threaded strand code in reactor.Loop
// does.
package fiber
