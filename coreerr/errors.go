package coreerr

import (
	"errors"
	"fmt"
)

// Category classifies an Error the way the design's error taxonomy does:
// lua (script runtime failures), core (the fixed emilua.core list below), or
// system (a wrapped errno/OS error).
type Category string

const (
	CategoryLua    Category = "lua"
	CategoryCore   Category = "emilua.core"
	CategorySystem Category = "system"
)

// Code enumerates the emilua.core taxonomy from spec §6, verbatim.
type Code string

const (
	InvalidModuleName       Code = "invalid_module_name"
	ModuleNotFound          Code = "module_not_found"
	RootCannotImportParent  Code = "root_cannot_import_parent"
	CyclicImport            Code = "cyclic_import"
	LeafCannotImportChild   Code = "leaf_cannot_import_child"
	OnlyMainFiberMayImport  Code = "only_main_fiber_may_import"
	BadRootContext          Code = "bad_root_context"
	BadIndex                Code = "bad_index"
	BadCoroutine            Code = "bad_coroutine"
	SuspensionAlreadyAllow  Code = "suspension_already_allowed"
	InterruptionAlreadyAllo Code = "interruption_already_allowed"
	ForbidSuspendBlock      Code = "forbid_suspend_block"
	Interrupted             Code = "interrupted"
	UnmatchedScopeCleanup   Code = "unmatched_scope_cleanup"
	ChannelClosed           Code = "channel_closed"
	NoSenders               Code = "no_senders"
	InternalModule          Code = "internal_module"
	RaiseError              Code = "raise_error"
	BrokenPromise           Code = "broken_promise"
	PromiseAlreadySatisfied Code = "promise_already_satisfied"
	CurrentModuleNotKnown   Code = "current_module_not_known"

	// ValueTooLarge and OperationNotPermitted are system-style codes used by
	// the recursive mutex (spec §4.3) and reused here rather than inventing a
	// parallel errno wrapper for two specific POSIX-flavoured conditions.
	ValueTooLarge       Code = "value_too_large"
	OperationNotPermit  Code = "operation_not_permitted"
	ResourceDeadlock    Code = "resource_deadlock_would_occur"
	InvalidArgument     Code = "invalid_argument"
	Unsupported         Code = "unsupported"

	// OutOfMemory is the scheduler's emergency-allocation / script-runtime
	// exhaustion outcome (spec §4.1's "out-of-memory" resume branch), latched
	// on a VM as lua_errmem rather than raised at a join site.
	OutOfMemory Code = "out_of_memory"
)

// Error is the tagged record that crosses component boundaries: {code,
// category}, plus an optional arg side-channel and wrapped cause.
type Error struct {
	Code     Code
	Category Category
	// Arg is the structured side-channel carrying an argument name or index,
	// when the failure is attributable to one call argument.
	Arg   string
	Cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Category, e.Code)
	if e.Arg != "" {
		msg = fmt.Sprintf("%s (arg %s)", msg, e.Arg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches by Code, ignoring Category/Arg/Cause — two *Error values with
// the same Code are considered the same error for errors.Is purposes.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// New builds a core-category Error with no cause.
func New(code Code) *Error {
	return &Error{Code: code, Category: CategoryCore}
}

// NewArg builds a core-category Error attributed to one argument.
func NewArg(code Code, arg string) *Error {
	return &Error{Code: code, Category: CategoryCore, Arg: arg}
}

// Wrap builds a system-category Error, wrapping cause (typically a
// golang.org/x/sys/unix.Errno) under the given core-taxonomy code.
func Wrap(code Code, cause error) *Error {
	return &Error{Code: code, Category: CategorySystem, Cause: cause}
}

// Lua builds a lua-category Error, used when a script runtime panic is
// converted into a value the scheduler's epilogue can inspect.
func Lua(cause error) *Error {
	return &Error{Code: RaiseError, Category: CategoryLua, Cause: cause}
}

// IsInterrupted reports whether err is (or wraps) the sentinel interrupted
// condition — the only error the scheduler ever swallows silently at detach
// time (spec §9).
func IsInterrupted(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == Interrupted
}

// IsOutOfMemory reports whether err is (or wraps) the out-of-memory
// condition the resume epilogue latches as lua_errmem (spec §4.1).
func IsOutOfMemory(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == OutOfMemory
}

// Sentinel instances for direct comparison / errors.Is without constructing
// a fresh *Error, mirroring eventloop's package-level Err* variables.
var (
	ErrInterrupted             = New(Interrupted)
	ErrChannelClosed           = New(ChannelClosed)
	ErrNoSenders               = New(NoSenders)
	ErrBrokenPromise           = New(BrokenPromise)
	ErrPromiseAlreadySatisfied = New(PromiseAlreadySatisfied)
	ErrUnmatchedScopeCleanup   = New(UnmatchedScopeCleanup)
	ErrForbidSuspendBlock      = New(ForbidSuspendBlock)
	ErrSuspensionAlreadyAllow  = New(SuspensionAlreadyAllow)
	ErrInterruptionAlreadyAllo = New(InterruptionAlreadyAllo)
	ErrInvalidArgument         = New(InvalidArgument)
	ErrResourceDeadlock        = New(ResourceDeadlock)
	ErrValueTooLarge           = New(ValueTooLarge)
	ErrOperationNotPermitted   = New(OperationNotPermit)
	ErrUnsupported             = New(Unsupported)
	ErrOutOfMemory             = New(OutOfMemory)
)
