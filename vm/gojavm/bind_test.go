package gojavm_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-actorvm/mailbox"
	"github.com/joeycumines/go-actorvm/vm/gojavm"
)

func TestBindSelfSpawnSendReceiveRoundTrip(t *testing.T) {
	vc, gv := newContext(t)

	const script = `
		var addr = self();
		spawn(function() { send(addr, 42); return null; });
		receive();
	`
	_, outcome, err := gojavm.Run(vc, gv, "main.js", script)
	require.NoError(t, err)

	select {
	case o := <-outcome:
		require.NoError(t, o.Err)
		require.Len(t, o.Results, 1)
		require.EqualValues(t, 42, o.Results[0])
	case <-time.After(2 * time.Second):
		t.Fatal("round trip never completed")
	}
}

func TestSendRejectsNonAddressArgument(t *testing.T) {
	vc, gv := newContext(t)

	_, outcome, err := gojavm.Run(vc, gv, "main.js", `send(123, "x")`)
	require.NoError(t, err)

	select {
	case o := <-outcome:
		require.Error(t, o.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("script never reported an outcome")
	}
}

func TestSelfReturnsUsableAddressExport(t *testing.T) {
	vc, gv := newContext(t)
	require.NoError(t, gojavm.Bind(vc, gv))

	rt := gv.Runtime()
	v, err := rt.RunString("self()")
	require.NoError(t, err)
	_, ok := v.Export().(*mailbox.Address)
	require.True(t, ok)
}
