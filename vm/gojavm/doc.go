// Package gojavm implements vm.ScriptVM with github.com/dop251/goja, the
// scripting-language binding layer the design's component diagram treats as
// a collaborator external to the VM context (spec §2: "external calls enter
// through language bindings, acquire the VM context, and dispatch a
// scheduler operation").
//
// It is grounded on goja-eventloop's Adapter, generalized from that
// package's browser-API surface (setTimeout, Promise, fetch-adjacent globals)
// down to the one thing this runtime actually needs: running a compiled
// program on a fiber, feeding its outcome back through vm.Context's resume
// epilogue, and a small actor-facing host API (spawn/send/receive/self)
// bound into the runtime's global scope the same way goja-eventloop binds
// its own globals in Adapter.Bind.
package gojavm
