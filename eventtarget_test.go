package await

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTarget_dispatchOrder(t *testing.T) {
	target := NewEventTarget()

	var order []string
	target.AddListener(`message`, func(*Event) { order = append(order, `a`) })
	target.AddListener(`message`, func(*Event) { order = append(order, `b`) })
	target.AddListener(`other`, func(*Event) { order = append(order, `x`) })

	target.Dispatch(&Event{Type: `message`})

	assert.Equal(t, []string{`a`, `b`}, order)
}

func TestEventTarget_dispatchSetsTarget(t *testing.T) {
	target := NewEventTarget()

	var got *Event
	target.AddListener(`message`, func(event *Event) { got = event })
	target.Dispatch(&Event{Type: `message`, Detail: 42})

	require.NotNil(t, got)
	assert.Same(t, target, got.Target)
	assert.Equal(t, 42, got.Detail)
}

func TestEventTarget_removeListener(t *testing.T) {
	target := NewEventTarget()

	var calls int
	id := target.AddListener(`message`, func(*Event) { calls++ })

	assert.True(t, target.RemoveListener(`message`, id))
	assert.False(t, target.RemoveListener(`message`, id))

	target.Dispatch(&Event{Type: `message`})
	assert.Zero(t, calls)
}

func TestEventTarget_nilListenerNotRegistered(t *testing.T) {
	target := NewEventTarget()
	assert.Zero(t, target.AddListener(`message`, nil))
	target.Dispatch(&Event{Type: `message`})
}

func TestEventTarget_onceListenerFiresOnce(t *testing.T) {
	target := NewEventTarget()

	var calls int
	target.AddListenerOnce(`message`, func(*Event) { calls++ })

	target.Dispatch(&Event{Type: `message`})
	target.Dispatch(&Event{Type: `message`})

	assert.Equal(t, 1, calls)
}

func TestEventTarget_onceListenerRemovedBeforeInvocation(t *testing.T) {
	target := NewEventTarget()

	var calls int
	target.AddListenerOnce(`message`, func(event *Event) {
		calls++
		// Re-dispatching from within the listener must not double-fire.
		if calls == 1 {
			event.Target.Dispatch(&Event{Type: `message`})
		}
	})

	target.Dispatch(&Event{Type: `message`})
	assert.Equal(t, 1, calls)
}

func TestEventTarget_removalDuringDispatchSkipsListener(t *testing.T) {
	target := NewEventTarget()

	var bCalls int
	var bID ListenerID
	target.AddListener(`message`, func(*Event) {
		target.RemoveListener(`message`, bID)
	})
	bID = target.AddListener(`message`, func(*Event) { bCalls++ })

	target.Dispatch(&Event{Type: `message`})
	assert.Zero(t, bCalls)
}

func TestEventTarget_additionDuringDispatchDeferred(t *testing.T) {
	target := NewEventTarget()

	var lateCalls int
	target.AddListener(`message`, func(*Event) {
		target.AddListener(`message`, func(*Event) { lateCalls++ })
	})

	target.Dispatch(&Event{Type: `message`})
	assert.Zero(t, lateCalls)

	target.Dispatch(&Event{Type: `message`})
	assert.Equal(t, 1, lateCalls)
}

func TestEventTarget_dispatchNilPanics(t *testing.T) {
	target := NewEventTarget()
	assert.PanicsWithValue(t, `await: nil event`, func() {
		target.Dispatch(nil)
	})
}

func TestSubscription_buffersEventsInOrder(t *testing.T) {
	target := NewEventTarget()
	sub := target.On(`message`)

	target.Dispatch(&Event{Type: `message`, Detail: 1})
	target.Dispatch(&Event{Type: `message`, Detail: 2})
	target.Dispatch(&Event{Type: `other`, Detail: 99})

	event, err := sub.TryNext()
	require.NoError(t, err)
	assert.Equal(t, 1, event.Detail)

	event, err = sub.TryNext()
	require.NoError(t, err)
	assert.Equal(t, 2, event.Detail)

	_, err = sub.TryNext()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestSubscription_nextWakesOnDispatch(t *testing.T) {
	target := NewEventTarget()
	sub := target.On(`message`)

	var x countingWaker
	future := sub.Next()
	_, err := future.Poll(x.waker())
	require.ErrorIs(t, err, ErrEmpty)

	target.Dispatch(&Event{Type: `message`, Detail: `hi`})
	assert.Equal(t, 1, x.n)

	event, err := future.Poll(x.waker())
	require.NoError(t, err)
	assert.Equal(t, `hi`, event.Detail)
}

func TestSubscription_closeStopsDeliveryAndDrains(t *testing.T) {
	target := NewEventTarget()
	sub := target.On(`message`)

	target.Dispatch(&Event{Type: `message`, Detail: 1})
	sub.Close()
	sub.Close() // idempotent
	target.Dispatch(&Event{Type: `message`, Detail: 2})

	event, err := sub.TryNext()
	require.NoError(t, err)
	assert.Equal(t, 1, event.Detail)

	_, err = sub.TryNext()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOccurrence_capturesFirstEventOnly(t *testing.T) {
	target := NewEventTarget()
	oc := target.Once(`message`)

	_, err := oc.TryRecv()
	require.ErrorIs(t, err, ErrEmpty)

	target.Dispatch(&Event{Type: `message`, Detail: `first`})
	target.Dispatch(&Event{Type: `message`, Detail: `second`})

	event, err := oc.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, `first`, event.Detail)

	_, err = oc.TryRecv()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOccurrence_pollWakesOnDispatch(t *testing.T) {
	target := NewEventTarget()
	oc := target.Once(`message`)

	var x countingWaker
	_, err := oc.Poll(x.waker())
	require.ErrorIs(t, err, ErrEmpty)

	target.Dispatch(&Event{Type: `message`, Detail: `hi`})
	assert.Equal(t, 1, x.n)

	event, err := oc.Poll(x.waker())
	require.NoError(t, err)
	assert.Equal(t, `hi`, event.Detail)
}

func TestOccurrence_closeWakesSuspendedPoll(t *testing.T) {
	target := NewEventTarget()
	oc := target.Once(`message`)

	var x countingWaker
	_, err := oc.Poll(x.waker())
	require.ErrorIs(t, err, ErrEmpty)

	oc.Close()
	oc.Close() // idempotent
	assert.Equal(t, 1, x.n)

	_, err = oc.Poll(x.waker())
	assert.ErrorIs(t, err, ErrClosed)

	// The once-listener is gone, so a later dispatch reaches nobody.
	target.Dispatch(&Event{Type: `message`})
}
