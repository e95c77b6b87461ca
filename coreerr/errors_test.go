package coreerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-actorvm/coreerr"
)

func TestErrorMessageIncludesCategoryArgAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := coreerr.Wrap(coreerr.InvalidArgument, cause)
	err.Arg = "path"
	require.Equal(t, "system: invalid_argument (arg path): boom", err.Error())
	require.Equal(t, cause, errors.Unwrap(err))
}

func TestErrorMessageOmitsEmptyArgAndCause(t *testing.T) {
	err := coreerr.New(coreerr.ChannelClosed)
	require.Equal(t, "emilua.core: channel_closed", err.Error())
	require.Nil(t, errors.Unwrap(err))
}

func TestIsMatchesByCodeAlone(t *testing.T) {
	a := coreerr.NewArg(coreerr.InvalidArgument, "x")
	b := coreerr.Wrap(coreerr.InvalidArgument, errors.New("cause"))
	require.True(t, errors.Is(a, b))
	require.True(t, errors.Is(a, coreerr.ErrInvalidArgument))
	require.False(t, errors.Is(a, coreerr.ErrChannelClosed))
}

func TestIsInterrupted(t *testing.T) {
	require.True(t, coreerr.IsInterrupted(coreerr.ErrInterrupted))
	require.True(t, coreerr.IsInterrupted(fmt.Errorf("wrapped: %w", coreerr.ErrInterrupted)))
	require.False(t, coreerr.IsInterrupted(coreerr.ErrChannelClosed))
	require.False(t, coreerr.IsInterrupted(nil))
	require.False(t, coreerr.IsInterrupted(errors.New("plain")))
}

func TestLuaBuildsLuaCategoryRaiseError(t *testing.T) {
	cause := errors.New("script panic")
	err := coreerr.Lua(cause)
	require.Equal(t, coreerr.CategoryLua, err.Category)
	require.Equal(t, coreerr.RaiseError, err.Code)
	require.Equal(t, cause, errors.Unwrap(err))
}

func TestSentinelsRoundTripThroughErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", coreerr.ErrOutOfMemory)
	var target *coreerr.Error
	require.True(t, errors.As(wrapped, &target))
	require.Equal(t, coreerr.OutOfMemory, target.Code)
	require.Equal(t, coreerr.CategoryCore, target.Category)
}
