//go:build linux

package spawn

import (
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"

	"golang.org/x/sys/unix"
)

// reexecArg marks a re-exec of the current binary as this package's own
// pre-exec helper rather than whatever the binary's real main does. Spawn
// always re-execs /proc/self/exe with this as argv[1]; the helper process
// never reaches the caller's main logic.
const reexecArg = "go-actorvm:spawn-preexec-helper"

// preExecConfigFD is the fixed fd number the config pipe lands at in the
// helper's fd table: the config pipe is always the first thing placed in
// ExtraFiles (fd 3). buildPreExecPlan pads the rest of the plumbing so the
// report pipe lands at or past 12, clear of PlanFDTable's [3,10) rewrite window
// and its reserved slots 10/11 (neither of which PlanFDTable itself
// protects — it only relocates ExtraFDs sources out of that range).
const preExecConfigFD = 3

// preExecPlan is the fully-resolved pre-exec program, gob-encoded across
// the config pipe from Spawn (still running as the original process) to
// the re-exec'd helper (a fresh process image, safe to run ordinary Go
// code in without the fork+exec async-signal-safety constraints the
// original implementation's hand-rolled pre-exec sequencer has to
// navigate). Every fd field here is a number in the helper's own fd
// table, already relocated by buildPreExecPlan, not the caller's.
type preExecPlan struct {
	Argv []string
	Envp []string

	// Program is the exec path; empty when UsesProgramFD, in which case
	// the helper execs "/proc/self/fd/<reservedHigh>" once the fd-table
	// replay has placed the program fd there.
	Program       string
	UsesProgramFD bool

	WorkingDirectory   string
	WorkingDirectoryFD int // -1 when unused

	// NSJoinFDs are setns targets, in spec §4.5's nsenter_{user,mount,uts,ipc,net} order.
	NSJoinFDs []int

	Scheduler    Scheduler
	SchedulerSet bool
	Umask        *uint32

	Credentials  Credentials
	Capabilities Capabilities

	FDTable FDTableRequest
}

// ReexecInit must be called early in every process built with this
// package (before flag parsing, before any other fd-sensitive setup):
// when the running binary was invoked as Spawn's own re-exec helper, it
// takes over and never returns. Mirrors the Docker/runc "re-exec self as
// a fresh, fully-initialized process" pattern, chosen specifically so the
// code between fork and exec can be ordinary Go — goroutines, defer,
// the full syscall surface — instead of the narrow async-signal-safe
// subset a raw post-fork child is restricted to.
func ReexecInit() {
	if len(os.Args) < 2 || os.Args[1] != reexecArg {
		return
	}
	runPreExec()
	// runPreExec only returns by calling os.Exit itself; this is
	// unreachable, but guards against a future refactor forgetting to.
	os.Exit(125)
}

func runPreExec() {
	configFile := os.NewFile(preExecConfigFD, "spawn-preexec-config")
	var plan preExecPlan
	if err := gob.NewDecoder(configFile).Decode(&plan); err != nil {
		// Nothing sane to report through: the report pipe's fd number is
		// itself inside the plan that failed to decode.
		os.Exit(125)
	}
	_ = configFile.Close()

	reportFD := plan.FDTable.ReportPipeWriteFD
	fail := func(err error) {
		reportErrno(reportFD, errnoOf(err))
		os.Exit(1)
	}
	must := func(err error) {
		if err != nil {
			fail(err)
		}
	}

	for _, fd := range plan.NSJoinFDs {
		must(unix.Setns(fd, 0))
	}

	switch {
	case plan.WorkingDirectoryFD >= 0:
		must(unix.Fchdir(plan.WorkingDirectoryFD))
	case plan.WorkingDirectory != "":
		must(unix.Chdir(plan.WorkingDirectory))
	}

	if plan.SchedulerSet {
		must(applySchedPolicy(plan.Scheduler))
	}

	if plan.Umask != nil {
		unix.Umask(int(*plan.Umask))
	}

	if plan.Credentials.ExtraGroups != nil {
		must(unix.Setgroups(plan.Credentials.ExtraGroups))
	}
	if plan.Credentials.RGID >= 0 || plan.Credentials.EGID >= 0 {
		must(unix.Setresgid(orMinusOne(plan.Credentials.RGID), orMinusOne(plan.Credentials.EGID), -1))
	}
	if plan.Credentials.RUID >= 0 || plan.Credentials.EUID >= 0 {
		must(unix.Setresuid(orMinusOne(plan.Credentials.RUID), orMinusOne(plan.Credentials.EUID), -1))
	}

	for _, c := range plan.Capabilities.BoundingDrop {
		must(unix.Prctl(unix.PR_CAPBSET_DROP, uintptr(c), 0, 0, 0))
	}
	for _, c := range plan.Capabilities.AmbientSet {
		must(unix.Prctl(unix.PR_CAP_AMBIENT, unix.PR_CAP_AMBIENT_RAISE, uintptr(c), 0, 0))
	}
	if plan.Capabilities.Secbits != 0 {
		must(unix.Prctl(unix.PR_SET_SECUREBITS, uintptr(plan.Capabilities.Secbits), 0, 0, 0))
	}

	ops, err := PlanFDTable(plan.FDTable)
	must(err)
	for _, op := range ops {
		switch op.Kind {
		case OpDup2:
			flags := 0
			if op.CloseOnExec {
				flags = unix.O_CLOEXEC
			}
			must(unix.Dup3(op.From, op.To, flags))
		case OpClose:
			_ = unix.Close(op.From)
		}
	}
	// The replay above just dup2'd the report pipe onto reservedLow and
	// marked it close-on-exec; the original fd (always >= 12, by
	// buildPreExecPlan's padding) is about to be swept by close_range, so
	// any failure reported from here on must go through its new home.
	reportFD = reservedLow
	closeRangeFrom(CloseRangeFirst(plan.FDTable.ProgramFD >= 0))

	execPath := plan.Program
	if plan.UsesProgramFD {
		execPath = fmt.Sprintf("/proc/self/fd/%d", reservedHigh)
	}
	fail(unix.Exec(execPath, plan.Argv, plan.Envp))
}

func applySchedPolicy(s Scheduler) error {
	policies := map[SchedPolicy]int{
		SchedOther: unix.SCHED_OTHER,
		SchedFIFO:  unix.SCHED_FIFO,
		SchedRR:    unix.SCHED_RR,
		SchedBatch: unix.SCHED_BATCH,
		SchedIdle:  unix.SCHED_IDLE,
	}
	policy, ok := policies[s.Policy]
	if !ok {
		return unix.EINVAL
	}
	if s.ResetOnFork {
		policy |= unix.SCHED_RESET_ON_FORK
	}
	return unix.SchedSetscheduler(0, policy, &unix.SchedParam{Priority: int32(s.Priority)})
}

func orMinusOne(v int) int {
	if v < 0 {
		return -1
	}
	return v
}

func errnoOf(err error) unix.Errno {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return unix.EINVAL
}

// reportErrno writes the spec §4.5 "4-byte errno reply" wrapErrno expects
// to read back on the parent side.
func reportErrno(fd int, errno unix.Errno) {
	if fd < 0 {
		return
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(errno))
	f := os.NewFile(uintptr(fd), "spawn-preexec-report")
	_, _ = f.Write(buf[:])
}

// closeRangeFrom sweeps every fd from first upward, close_range(2) when
// available (Linux 5.9+) and a bounded linear close loop otherwise.
func closeRangeFrom(first int) {
	if unix.CloseRange(first, math.MaxInt, 0) == nil {
		return
	}
	limit := 4096
	var rlim unix.Rlimit
	if unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim) == nil && rlim.Cur > 0 && rlim.Cur < 1<<20 {
		limit = int(rlim.Cur)
	}
	for fd := first; fd < limit; fd++ {
		_ = unix.Close(fd)
	}
}
