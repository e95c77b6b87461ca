package spawn

import "github.com/joeycumines/go-actorvm/coreerr"

// FDAction selects how a standard stream is sourced in the child (spec
// §4.5's stdin/stdout/stderr option).
type FDAction int

const (
	// FDInherit shares the parent's descriptor for this slot; no dup2
	// needed, since the slot already holds the right content.
	FDInherit FDAction = iota
	// FDUse dup2s an explicit fd onto the slot.
	FDUse
	// FDNone dup2s the read end of a fresh pipe onto the slot, with the
	// write end closed immediately and never written to — a sandboxed
	// stand-in for /dev/null that needs no filesystem access from the
	// child.
	FDNone
)

// StreamSource describes one of stdin/stdout/stderr's pre-exec sourcing.
type StreamSource struct {
	Action FDAction
	FD     int // meaningful only when Action == FDUse
}

// ExtraFD is one extra_fds[i] request (spec §4.5): Target must be in
// [3,9] and Targets across a request must be distinct.
type ExtraFD struct {
	Target int
	Source int
}

// FDTableRequest is the fully-resolved input to PlanFDTable: every
// FDNone stream source has already had its backing pipe created, and the
// error-report pipe's write end and any program fd are ready to be
// placed at their reserved slots.
type FDTableRequest struct {
	Stdin, Stdout, Stderr StreamSource
	// NonePipeReadFD/NonePipeWriteFD back every FDNone stream; a single
	// pipe pair is reused across all three slots that request it, since
	// none of them ever read or write through it.
	NonePipeReadFD, NonePipeWriteFD int
	ExtraFDs                        []ExtraFD
	ReportPipeWriteFD               int
	ProgramFD                       int // -1 if program is sourced by path/argv0 lookup instead of fexecve
}

// FDOpKind is one step of a fd-table rewrite plan.
type FDOpKind int

const (
	OpDup2 FDOpKind = iota
	OpClose
)

// FDOp is one step of the plan PlanFDTable returns, intended to be
// replayed verbatim (in order) between fork and exec.
type FDOp struct {
	Kind        FDOpKind
	From        int
	To          int // meaningful only for OpDup2
	CloseOnExec bool
}

// reservedLow, reservedHigh are the fixed report-pipe/program-fd slots
// (spec §4.6) no ExtraFD target or relocation may land on.
const (
	reservedLow  = 10
	reservedHigh = 11
)

// PlanFDTable computes the exact dup2/close sequence spec §4.6 describes:
// stage the three standard streams, relocate any extra_fds source that
// would otherwise collide with its own target range or the reserved
// slots, fill or close every slot in [3,10), then place the report pipe
// (and optional program fd) at their reserved, close-on-exec slots. The
// caller is expected to execute the returned ops with raw dup2/close
// syscalls in the narrow pre-exec window — this function does no I/O
// itself, only the "pure integer juggling" spec calls for.
func PlanFDTable(req FDTableRequest) ([]FDOp, error) {
	if err := validateStreams(req.Stdin, req.Stdout, req.Stderr); err != nil {
		return nil, err
	}
	if err := validateExtraFDs(req.ExtraFDs); err != nil {
		return nil, err
	}

	var ops []FDOp

	// Step 1: stage fds 0/1/2.
	var toClose []int
	for target, s := range [3]StreamSource{req.Stdin, req.Stdout, req.Stderr} {
		switch s.Action {
		case FDInherit:
			// already correct, nothing to do
		case FDUse:
			ops = append(ops, FDOp{Kind: OpDup2, From: s.FD, To: target})
		case FDNone:
			ops = append(ops, FDOp{Kind: OpDup2, From: req.NonePipeReadFD, To: target})
			toClose = append(toClose, req.NonePipeWriteFD)
		default:
			return nil, coreerr.NewArg(coreerr.InvalidArgument, "stream_action")
		}
	}
	for _, fd := range dedupInts(toClose) {
		ops = append(ops, FDOp{Kind: OpClose, From: fd})
	}

	// Step 2: relocate any extra_fds source that collides with [3,10) or
	// the reserved slots, to the lowest free slot >= 10 (never a source fd,
	// the report pipe or the program fd).
	occupied := map[int]bool{reservedLow: true, reservedHigh: true, req.ReportPipeWriteFD: true}
	if req.ProgramFD >= 0 {
		occupied[req.ProgramFD] = true
	}
	for _, e := range req.ExtraFDs {
		occupied[e.Source] = true
	}
	relocated := make(map[int]int, len(req.ExtraFDs))
	scratch := reservedLow
	nextFree := func() int {
		for {
			scratch++
			if !occupied[scratch] {
				occupied[scratch] = true
				return scratch
			}
		}
	}
	for _, e := range req.ExtraFDs {
		if (e.Source >= 3 && e.Source < 10) || e.Source == reservedLow || e.Source == reservedHigh {
			dst := nextFree()
			ops = append(ops, FDOp{Kind: OpDup2, From: e.Source, To: dst})
			ops = append(ops, FDOp{Kind: OpClose, From: e.Source})
			relocated[e.Source] = dst
		}
	}

	// Step 3: fill or close every slot in [3,10).
	wanted := make(map[int]int, len(req.ExtraFDs))
	for _, e := range req.ExtraFDs {
		src := e.Source
		if r, ok := relocated[src]; ok {
			src = r
		}
		wanted[e.Target] = src
	}
	for i := 3; i < 10; i++ {
		if src, ok := wanted[i]; ok {
			ops = append(ops, FDOp{Kind: OpDup2, From: src, To: i})
		} else {
			ops = append(ops, FDOp{Kind: OpClose, From: i})
		}
	}
	for _, dst := range relocated {
		ops = append(ops, FDOp{Kind: OpClose, From: dst})
	}

	// Step 4: report pipe and optional program fd at the reserved slots.
	ops = append(ops, FDOp{Kind: OpDup2, From: req.ReportPipeWriteFD, To: reservedLow, CloseOnExec: true})
	if req.ProgramFD >= 0 {
		ops = append(ops, FDOp{Kind: OpDup2, From: req.ProgramFD, To: reservedHigh, CloseOnExec: true})
	}

	return ops, nil
}

// CloseRangeFirst returns the first fd close_range should start at (spec
// §4.6 step 5): 11 normally, or 12 when a program fd occupies slot 11.
func CloseRangeFirst(usesProgramFD bool) int {
	if usesProgramFD {
		return 12
	}
	return 11
}

func validateStreams(stdin, stdout, stderr StreamSource) error {
	streams := [3]StreamSource{stdin, stdout, stderr}
	for target, s := range streams {
		if s.Action != FDUse {
			continue
		}
		if s.FD >= 0 && s.FD <= 2 && s.FD != target {
			// Spec §4.5: "sources for these three cannot collide with
			// themselves" — an explicit source reusing a different
			// stream's target slot would read back whatever step 1
			// already overwrote it with, not the fd the caller meant.
			return coreerr.NewArg(coreerr.InvalidArgument, "stream_source_collision")
		}
	}
	return nil
}

func validateExtraFDs(fds []ExtraFD) error {
	seen := map[int]bool{}
	for _, e := range fds {
		if e.Target < 3 || e.Target > 9 {
			return coreerr.NewArg(coreerr.InvalidArgument, "extra_fd_target")
		}
		if seen[e.Target] {
			return coreerr.NewArg(coreerr.InvalidArgument, "extra_fd_target_duplicate")
		}
		seen[e.Target] = true
	}
	return nil
}

func dedupInts(in []int) []int {
	seen := map[int]bool{}
	out := in[:0]
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
