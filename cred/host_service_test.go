package cred_test

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-actorvm/cred"
	"github.com/joeycumines/go-actorvm/ipcwire"
)

func TestPropagateAndServeOnceRoundTripUmask(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("seqpacket transport is Linux-only")
	}

	a, b, err := ipcwire.SocketPair()
	require.NoError(t, err)
	defer a.Close()
	defer b.Close()

	serviceErr := make(chan error, 1)
	go func() { serviceErr <- cred.ServeOnce(b.FD()) }()

	req := cred.StartVMRequest{Action: cred.ActionUmask, UmaskMask: 0o027}
	err = cred.Propagate(a.FD(), req, nil)
	require.NoError(t, err)

	select {
	case serr := <-serviceErr:
		require.NoError(t, serr)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not reply in time")
	}
}

func TestPropagateSelfKillsOnServiceFailure(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("seqpacket transport is Linux-only")
	}

	a, b, err := ipcwire.SocketPair()
	require.NoError(t, err)
	defer a.Close()
	defer b.Close()

	killed := make(chan struct{}, 1)
	cred.SetSelfKillForTest(t, func() { killed <- struct{}{} })

	go func() {
		// an unknown action makes apply() fail, closing the reply pipe
		// without writing — the host must observe that as a fatal EOF.
		_ = cred.ServeOnce(b.FD())
	}()

	req := cred.StartVMRequest{Action: cred.Action(200)}
	_ = cred.Propagate(a.FD(), req, nil)

	select {
	case <-killed:
	case <-time.After(2 * time.Second):
		t.Fatal("host never invoked its self-kill hook")
	}
}
