// Package cred implements component C9: credential propagation from the
// master VM to a privilege-separated "actor service" sidecar (spec
// §4.8). A handful of operations — setresuid, setresgid, setgroups, and
// the Linux capability set mutators — must take effect identically in
// both processes, and the original's rule is that failure of a
// setuid-like operation is only ever safe to recover from if it is
// atomic across both sides. Host and service therefore apply the change
// in lock-step over a pre-established UNIX seqpacket connection, and the
// host self-terminates rather than risk running with credentials that
// diverge from its sidecar's.
package cred
