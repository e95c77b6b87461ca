package cred

import "testing"

// SetSelfKillForTest overrides the package's self-termination hook for
// the duration of t, restoring it on cleanup — lets external tests
// observe the "must self-kill" decision (spec §4.8) without actually
// killing the test binary.
func SetSelfKillForTest(t *testing.T, fn func()) {
	t.Helper()
	orig := selfKill
	selfKill = fn
	t.Cleanup(func() { selfKill = orig })
}
