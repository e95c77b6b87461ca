package vm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/logiface"

	"github.com/joeycumines/go-actorvm/reactor"
	"github.com/joeycumines/go-actorvm/vm"
)

type fakeEvent struct {
	logiface.UnimplementedEvent
	level  logiface.Level
	fields map[string]any
	msg    string
	err    error
}

func (e *fakeEvent) Level() logiface.Level { return e.level }

func (e *fakeEvent) AddField(key string, val any) {
	if e.fields == nil {
		e.fields = make(map[string]any)
	}
	e.fields[key] = val
}

func (e *fakeEvent) AddMessage(msg string) bool { e.msg = msg; return true }

func (e *fakeEvent) AddError(err error) bool { e.err = err; return true }

type fakeWriter struct{ events []*fakeEvent }

func (w *fakeWriter) Write(event *fakeEvent) error {
	w.events = append(w.events, event)
	return nil
}

func newFakeLogger(level logiface.Level) (*logiface.Logger[logiface.Event], *fakeWriter) {
	w := &fakeWriter{}
	typed := logiface.New[*fakeEvent](
		logiface.WithLevel[*fakeEvent](level),
		logiface.WithEventFactory[*fakeEvent](logiface.NewEventFactoryFunc(func(l logiface.Level) *fakeEvent {
			return &fakeEvent{level: l}
		})),
		logiface.WithWriter[*fakeEvent](w),
	)
	return typed.Logger(), w
}

func TestLogifeAdapterForwardsEnabledEntry(t *testing.T) {
	logger, w := newFakeLogger(logiface.LevelInformational)
	a := vm.NewLogifeAdapter(logger)

	require.True(t, a.IsEnabled(reactor.LevelInfo))
	require.False(t, a.IsEnabled(reactor.LevelDebug))

	cause := errors.New("broke")
	a.Log(reactor.Entry{
		Level:    reactor.LevelError,
		Category: "vm",
		LoopID:   7,
		Message:  "something failed",
		Err:      cause,
		Fields:   map[string]any{"fiber_id": uint64(3)},
	})

	require.Len(t, w.events, 1)
	ev := w.events[0]
	require.Equal(t, "something failed", ev.msg)
	require.Equal(t, cause, ev.err)
	require.Equal(t, "vm", ev.fields["category"])
	require.EqualValues(t, 7, ev.fields["loop_id"])
	require.EqualValues(t, 3, ev.fields["fiber_id"])
}

func TestLogifeAdapterDropsDisabledEntry(t *testing.T) {
	logger, w := newFakeLogger(logiface.LevelError)
	a := vm.NewLogifeAdapter(logger)

	a.Log(reactor.Entry{Level: reactor.LevelDebug, Message: "noisy"})
	require.Empty(t, w.events)
}

func TestLogifeAdapterNilLoggerIsNoop(t *testing.T) {
	a := vm.NewLogifeAdapter(nil)
	require.False(t, a.IsEnabled(reactor.LevelError))
	require.NotPanics(t, func() { a.Log(reactor.Entry{Message: "ignored"}) })
}
