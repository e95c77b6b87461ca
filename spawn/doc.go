// Package spawn implements component C8: subprocess actor spawning (spec
// §4.5/§4.6) — a structured Config, the pre-exec fd-table rewrite
// algorithm (PlanFDTable), and a pidfd-backed reaper Handle wired onto a
// reactor.Loop. The fork/pre-exec/exec sequence itself goes through
// os/exec to get Go's fork machinery (the one piece genuinely unsafe to
// hand-roll in a multi-threaded, garbage-collected process), but the full
// pre-exec option table — namespaces, scheduler, umask, credentials,
// capabilities, PlanFDTable's fd-table rewrite — runs as ordinary Go code
// in a re-exec'd helper process rather than being squeezed through
// syscall.SysProcAttr's narrower surface; see preexec_linux.go.
package spawn
