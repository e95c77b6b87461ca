package spawn

import "time"

// SchedPolicy mirrors the Linux sched_setscheduler policy constants the
// original pre-exec sequencer passes straight through.
type SchedPolicy int

const (
	SchedOther SchedPolicy = iota
	SchedFIFO
	SchedRR
	SchedBatch
	SchedIdle
)

// Scheduler is the scheduler.{policy,priority,reset_on_fork} option group
// (spec §4.5).
type Scheduler struct {
	Policy      SchedPolicy
	Priority    int
	ResetOnFork bool
}

// Program selects how the child's image is loaded: by PATH lookup (a name
// without a slash is searched in the calling process's PATH), by an
// absolute/relative path, or by fexecve against an already-open fd. Exactly
// one of Path or FD may be set; FD >= 0 takes fexecve precedence.
type Program struct {
	Path string
	FD   int // -1 when unused
}

// TTY groups the ctty/process-group/foreground option cluster, which spec
// §4.5 forbids combining set_ctty with process_group+foreground.
type TTY struct {
	SetCtty      bool
	CttyFD       int // child-side fd number; also the tcsetpgrp target when Foreground is set
	ProcessGroup bool
	Foreground   bool
}

// Credentials groups ruid/euid, rgid/egid, extra_groups (spec §4.5);
// negative values mean "leave unchanged".
type Credentials struct {
	RUID, EUID  int
	RGID, EGID  int
	ExtraGroups []int
}

// Namespaces groups the Linux nsenter_{user,mount,uts,ipc,net} fds; -1
// means "do not enter this namespace".
type Namespaces struct {
	User, Mount, UTS, IPC, Net int
}

// Capabilities groups the pre-exec capability table (spec §4.5): the
// ambient set to raise, capabilities to drop from the bounding set, and
// the securebits word, all applied to the child itself in the same
// pre-exec window as Scheduler/Namespaces/Credentials. This is distinct
// from the cred package's actor-service sidecar (spec §4.8), which
// mirrors a subset of the same primitives across two already-running
// processes rather than configuring a fresh child before its first exec.
type Capabilities struct {
	AmbientSet   []uintptr
	BoundingDrop []uintptr
	Secbits      uint32
}

// Config is the structured subprocess spawn request (spec §4.5).
type Config struct {
	Program     Program
	Arguments   []string
	Environment []string

	Stdin, Stdout, Stderr StreamSource
	ExtraFDs              []ExtraFD

	Scheduler Scheduler

	StartNewSession bool
	TTY             TTY

	Credentials Credentials
	Umask       *uint32 // nil means "leave unchanged"

	WorkingDirectory   string
	WorkingDirectoryFD int // -1 when unused; takes precedence over the path form

	// Pdeathsig is delivered to the child if its parent dies first; zero
	// means "do not install one".
	Pdeathsig int

	Namespaces Namespaces

	Capabilities Capabilities

	// KillSignal is sent when the returned Handle is closed before the
	// process has been reaped; zero means SIGTERM. Handle.Close sends it
	// once and then reaps in the background; it never escalates to SIGKILL.
	KillSignal int

	// WaitTimeout is stored on the returned Handle but nothing reads it:
	// Handle.Close does not time its background reap and sends no
	// follow-up signal.
	WaitTimeout time.Duration
}
