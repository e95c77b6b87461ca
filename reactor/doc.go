// Package reactor wraps a single-threaded event loop exposing timed/IO
// readiness, strand (single-producer FIFO) execution, and work guards — the
// reactor binding component (C1) of the go-actorvm concurrency core.
//
// A *Loop* is deliberately small next to a general-purpose event loop: it
// carries no microtask/promise machinery of its own (that lives in syncx and
// fiber, built on top of the strand contract), just task submission, a timer
// heap, and I/O readiness. Every other component in this module treats a Loop
// as the thing that makes "resume on the right goroutine" true.
package reactor
