package cred

// Action is one privileged operation the host may ask the actor service
// to mirror (spec §6's ipc_actor_start_vm_request.action enum).
type Action uint8

const (
	ActionCreateProcess Action = iota
	ActionSetResUID
	ActionSetResGID
	ActionSetGroups
	ActionCapSetProc
	ActionCapDropBound
	ActionCapSetAmbient
	ActionCapResetAmbient
	ActionCapSetSecbits
	ActionChdir
	ActionUmask
)

// StreamAction is one of the three dispositions §6 allows for a standard
// stream when the service itself creates the process (CREATE_PROCESS).
type StreamAction uint8

const (
	StreamCloseFD StreamAction = iota
	StreamShareParent
	StreamUsePipe
)

// StartVMRequest is the typed control message sent to the actor service
// (spec §6). Only the fields relevant to Action are meaningful; the rest
// are zero. ResUID/ResGID hold the real/effective/saved triple in that
// order, matching setresuid/setresgid's argument order. Variable-length
// data (a setgroups list, a chdir path, a raw cap_user_data_t blob) rides
// the ancillary memfd, never inline in the struct itself; its length is
// carried in PayloadSize, except for a chdir path, whose length the
// service reads from ChdirPayloadSize.
type StartVMRequest struct {
	Action Action

	CloneFlags int32

	StdinAction, StdoutAction, StderrAction StreamAction
	StderrHasColor, HasLuaHook              bool

	ResUID [3]int32
	ResGID [3]int32

	SetGroupsCount int32

	CapValue     int32
	CapFlagValue int32
	SecBits      uint32

	ChdirPayloadSize int64
	UmaskMask        uint32

	// PayloadSize is the number of meaningful bytes in the ancillary
	// memfd, when one is attached (zero means no memfd was sent).
	PayloadSize int64
}

// StartVMReply is read back as a single byte on success (spec §6); the
// service closes its end instead of writing on failure, which the host
// observes as EOF. ChildPID is populated only for ActionCreateProcess.
type StartVMReply struct {
	ChildPID int32
	Error    int32
}
