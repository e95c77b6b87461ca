//go:build linux

package spawn

import (
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-actorvm/coreerr"
	"github.com/joeycumines/go-actorvm/reactor"
)

// Spawn starts a subprocess actor (spec §4.5). Rather than build the
// pre-exec option set onto syscall.SysProcAttr — whose public surface
// covers only a fraction of the §4.5 option table — Spawn re-execs the
// running binary itself as a one-shot pre-exec helper (the same
// "/proc/self/exe" trick containerd/runc use to re-enter a clean process
// image before a privileged exec), and hands it a gob-encoded plan over a
// pipe. The helper (ReexecInit, preexec_linux.go) applies namespaces,
// scheduler, umask, the full credential/capability table and the
// PlanFDTable-driven fd-table rewrite as ordinary, fully-initialized Go
// code — sidestepping the async-signal-safety limits a raw post-fork
// child would be under — then execs the real target. Any failure along
// that path is reported back over a second pipe and surfaces here as an
// error instead of leaving a half-configured process running.
func Spawn(loop *reactor.Loop, cfg Config) (*Handle, error) {
	if cfg.Program.Path == "" && cfg.Program.FD < 0 {
		return nil, coreerr.NewArg(coreerr.InvalidArgument, "program")
	}
	if cfg.TTY.SetCtty && cfg.TTY.ProcessGroup {
		return nil, coreerr.NewArg(coreerr.InvalidArgument, "set_ctty")
	}

	plan, plumbing, err := buildPreExecPlan(cfg)
	if err != nil {
		return nil, err
	}
	defer plumbing.configW.Close()
	defer plumbing.reportR.Close()

	self, err := os.Executable()
	if err != nil {
		self = "/proc/self/exe"
	}
	cmd := exec.Command(self, reexecArg)
	cmd.ExtraFiles = plumbing.files

	var pidfd int
	attr := &syscall.SysProcAttr{
		Setsid:     cfg.StartNewSession,
		Setpgid:    cfg.TTY.ProcessGroup,
		Foreground: cfg.TTY.Foreground,
		Setctty:    cfg.TTY.SetCtty,
		Ctty:       cfg.TTY.CttyFD,
		PidFD:      &pidfd,
	}
	if cfg.Pdeathsig != 0 {
		attr.Pdeathsig = syscall.Signal(cfg.Pdeathsig)
	}
	cmd.SysProcAttr = attr

	startErr := cmd.Start()
	// The helper received its own dup of every plumbing fd across fork;
	// the parent's copies are no longer needed and would otherwise leak
	// across repeated Spawn calls, plus keep the report pipe's read end
	// from ever seeing EOF.
	for _, f := range plumbing.files {
		_ = f.Close()
	}
	if startErr != nil {
		return nil, wrapStartError(startErr)
	}

	if err := gob.NewEncoder(plumbing.configW).Encode(plan); err != nil {
		_, _ = unix.Wait4(cmd.Process.Pid, nil, 0, nil)
		return nil, coreerr.Wrap(coreerr.InvalidArgument, err)
	}
	_ = plumbing.configW.Close()

	report, _ := io.ReadAll(io.LimitReader(plumbing.reportR, 4))
	if len(report) == 4 {
		_, _ = unix.Wait4(cmd.Process.Pid, nil, 0, nil)
		return nil, wrapErrno(unix.Errno(binary.LittleEndian.Uint32(report)))
	}

	return newHandle(loop, cmd.Process.Pid, pidfd, cfg.KillSignal, cfg.WaitTimeout), nil
}

// preExecPlumbing is the parent-side half of a buildPreExecPlan call:
// files becomes the helper's Cmd.ExtraFiles (fd 3.. in the helper),
// configW is this process's end of the pipe plan is sent over, reportR
// is this process's end of the pipe the helper's pre-exec errno reply
// (or EOF, on success) arrives on.
type preExecPlumbing struct {
	files   []*os.File
	configW *os.File
	reportR *os.File
}

// buildPreExecPlan resolves cfg into a preExecPlan plus the ExtraFiles
// list backing it. Every fd the helper will touch — stream sources,
// extra fds, namespace fds, the working-directory fd, the program fd —
// is placed in plumbing.files in the exact order it will land at fd
// 3, 4, 5... in the helper, and plan's fd fields reference those
// positions rather than the caller's own fd numbers. The config and
// report pipes are padded past fd 12 so neither can be swept by
// PlanFDTable's [3,10) rewrite or collide with its reserved slots 10/11,
// since PlanFDTable itself only protects ExtraFDs sources from that.
func buildPreExecPlan(cfg Config) (plan preExecPlan, plumbing preExecPlumbing, err error) {
	defer func() {
		if err == nil {
			return
		}
		for _, f := range plumbing.files {
			_ = f.Close()
		}
		if plumbing.configW != nil {
			_ = plumbing.configW.Close()
		}
		if plumbing.reportR != nil {
			_ = plumbing.reportR.Close()
		}
		plan, plumbing = preExecPlan{}, preExecPlumbing{}
	}()

	nextFD := func() int { return 3 + len(plumbing.files) }
	addFile := func(f *os.File) int {
		fd := nextFD()
		plumbing.files = append(plumbing.files, f)
		return fd
	}

	configR, configW, perr := os.Pipe()
	if perr != nil {
		err = coreerr.Wrap(coreerr.Unsupported, perr)
		return
	}
	addFile(configR) // always lands at fd 3, per preExecConfigFD
	plumbing.configW = configW

	plan = preExecPlan{
		Scheduler:          cfg.Scheduler,
		SchedulerSet:       cfg.Scheduler != (Scheduler{}),
		Umask:              cfg.Umask,
		Credentials:        cfg.Credentials,
		Capabilities:       cfg.Capabilities,
		WorkingDirectory:   cfg.WorkingDirectory,
		WorkingDirectoryFD: -1,
	}

	if cfg.WorkingDirectoryFD >= 0 {
		plan.WorkingDirectoryFD = addFile(os.NewFile(uintptr(cfg.WorkingDirectoryFD), "workdir"))
	}

	for _, nsfd := range []int{cfg.Namespaces.User, cfg.Namespaces.Mount, cfg.Namespaces.UTS, cfg.Namespaces.IPC, cfg.Namespaces.Net} {
		if nsfd > 0 {
			plan.NSJoinFDs = append(plan.NSJoinFDs, addFile(os.NewFile(uintptr(nsfd), "ns")))
		}
	}

	resolveStream := func(s StreamSource, parent *os.File) (StreamSource, error) {
		switch s.Action {
		case FDInherit:
			return StreamSource{Action: FDUse, FD: addFile(parent)}, nil
		case FDUse:
			return StreamSource{Action: FDUse, FD: addFile(os.NewFile(uintptr(s.FD), "stream"))}, nil
		case FDNone:
			return StreamSource{Action: FDNone}, nil
		default:
			return StreamSource{}, coreerr.NewArg(coreerr.InvalidArgument, "stream_action")
		}
	}
	reqStdin, err := resolveStream(cfg.Stdin, os.Stdin)
	if err != nil {
		return
	}
	reqStdout, serr := resolveStream(cfg.Stdout, os.Stdout)
	if serr != nil {
		err = serr
		return
	}
	reqStderr, serr := resolveStream(cfg.Stderr, os.Stderr)
	if serr != nil {
		err = serr
		return
	}

	req := FDTableRequest{Stdin: reqStdin, Stdout: reqStdout, Stderr: reqStderr, ProgramFD: -1}

	if cfg.Stdin.Action == FDNone || cfg.Stdout.Action == FDNone || cfg.Stderr.Action == FDNone {
		noneR, noneW, perr := os.Pipe()
		if perr != nil {
			err = coreerr.Wrap(coreerr.Unsupported, perr)
			return
		}
		req.NonePipeReadFD = addFile(noneR)
		req.NonePipeWriteFD = addFile(noneW)
	}

	if verr := validateExtraFDs(cfg.ExtraFDs); verr != nil {
		err = verr
		return
	}
	for _, e := range cfg.ExtraFDs {
		req.ExtraFDs = append(req.ExtraFDs, ExtraFD{Target: e.Target, Source: addFile(os.NewFile(uintptr(e.Source), "extra"))})
	}

	for nextFD() < 12 {
		filler, fillerW, perr := os.Pipe()
		if perr != nil {
			err = coreerr.Wrap(coreerr.Unsupported, perr)
			return
		}
		_ = fillerW.Close()
		addFile(filler)
	}

	reportR, reportW, perr2 := os.Pipe()
	if perr2 != nil {
		err = coreerr.Wrap(coreerr.Unsupported, perr2)
		return
	}
	req.ReportPipeWriteFD = addFile(reportW)
	plumbing.reportR = reportR

	argv0 := cfg.Program.Path
	if cfg.Program.FD >= 0 {
		req.ProgramFD = addFile(os.NewFile(uintptr(cfg.Program.FD), "program"))
		argv0 = fmt.Sprintf("/proc/self/fd/%d", cfg.Program.FD)
		plan.UsesProgramFD = true
	} else {
		plan.Program = cfg.Program.Path
		if p, lerr := exec.LookPath(cfg.Program.Path); lerr == nil {
			plan.Program = p
		}
	}
	plan.Argv = append([]string{argv0}, cfg.Arguments...)
	if cfg.Environment != nil {
		plan.Envp = cfg.Environment
	} else {
		plan.Envp = os.Environ()
	}
	plan.FDTable = req

	return
}

func wrapStartError(err error) error {
	var errno unix.Errno
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		if n, ok := pathErr.Err.(syscall.Errno); ok {
			errno = unix.Errno(n)
		}
	}
	if errno != 0 {
		return wrapErrno(errno)
	}
	return coreerr.Wrap(coreerr.InvalidArgument, err)
}

func procReap(pid int) (code, sig int, hasSig bool, err error) {
	var ws unix.WaitStatus
	for {
		_, werr := unix.Wait4(pid, &ws, 0, nil)
		if werr == unix.EINTR {
			continue
		}
		if werr != nil {
			return 0, 0, false, coreerr.Wrap(coreerr.InvalidArgument, werr)
		}
		break
	}
	switch {
	case ws.Exited():
		return ws.ExitStatus(), 0, false, nil
	case ws.Signaled():
		s := int(ws.Signal())
		return 128 + s, s, true, nil
	default:
		return 0, 0, false, coreerr.New(coreerr.InvalidArgument)
	}
}

func procKill(pid, sig int) error {
	if sig == 0 {
		sig = defaultKillSignal
	}
	return unix.Kill(pid, unix.Signal(sig))
}

func procCloseFD(fd int) error {
	if fd < 0 {
		return nil
	}
	return unix.Close(fd)
}
