package await

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeout_fires(t *testing.T) {
	l, err := New()
	require.NoError(t, err)

	results := make(chan time.Time, 1)
	before := time.Now()
	require.NoError(t, l.Submit(func() {
		timeout, err := l.After(10 * time.Millisecond)
		require.NoError(t, err)
		require.NoError(t, Await[time.Time](l, timeout, func(v time.Time, err error) {
			require.NoError(t, err)
			results <- v
		}))
	}))

	stop := startLoop(t, l)
	defer stop()

	select {
	case v := <-results:
		assert.False(t, v.Before(before))
	case <-time.After(5 * time.Second):
		t.Fatal(`timed out waiting for the timeout to fire`)
	}
}

func TestTimeout_cancelWakesSuspendedPoll(t *testing.T) {
	l, err := New()
	require.NoError(t, err)

	results := make(chan error, 1)
	require.NoError(t, l.Submit(func() {
		timeout, err := l.After(time.Hour)
		require.NoError(t, err)
		require.NoError(t, Await[time.Time](l, timeout, func(_ time.Time, err error) {
			results <- err
		}))
		_ = l.Submit(timeout.Cancel)
	}))

	stop := startLoop(t, l)
	defer stop()

	select {
	case err := <-results:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(5 * time.Second):
		t.Fatal(`timed out waiting for the cancelled timeout`)
	}
}

func TestTimeout_tryRecvBeforeFire(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	defer l.Close()

	timeout, err := l.After(time.Hour)
	require.NoError(t, err)

	_, err = timeout.TryRecv()
	assert.ErrorIs(t, err, ErrEmpty)

	timeout.Cancel()
	timeout.Cancel() // idempotent

	_, err = timeout.TryRecv()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestInterval_invalidPeriod(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Interval(0)
	assert.Error(t, err)
}

func TestInterval_ticksRepeatedly(t *testing.T) {
	l, err := New()
	require.NoError(t, err)

	results := make(chan []time.Time, 1)
	require.NoError(t, l.Submit(func() {
		interval, err := l.Interval(5 * time.Millisecond)
		require.NoError(t, err)
		var ticks []time.Time
		var pump func(v time.Time, err error)
		pump = func(v time.Time, err error) {
			require.NoError(t, err)
			ticks = append(ticks, v)
			if len(ticks) == 3 {
				interval.Close()
				results <- ticks
				return
			}
			_ = Await[time.Time](l, interval.Next(), pump)
		}
		_ = Await[time.Time](l, interval.Next(), pump)
	}))

	stop := startLoop(t, l)
	defer stop()

	select {
	case ticks := <-results:
		require.Len(t, ticks, 3)
		assert.False(t, ticks[1].Before(ticks[0]))
		assert.False(t, ticks[2].Before(ticks[1]))
	case <-time.After(5 * time.Second):
		t.Fatal(`timed out waiting for ticks`)
	}
}

func TestInterval_closeDrainsBufferedTicks(t *testing.T) {
	l, err := New()
	require.NoError(t, err)

	done := make(chan struct{})
	require.NoError(t, l.Submit(func() {
		defer close(done)
		interval, err := l.Interval(time.Hour)
		require.NoError(t, err)

		// Deliver two ticks directly, then close.
		interval.fire()
		interval.fire()
		interval.Close()
		interval.Close() // idempotent

		_, err = interval.TryNext()
		assert.NoError(t, err)
		_, err = interval.TryNext()
		assert.NoError(t, err)
		_, err = interval.TryNext()
		assert.ErrorIs(t, err, ErrClosed)
	}))

	stop := startLoop(t, l)
	defer stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal(`timed out`)
	}
}

func TestInterval_fireAfterCloseDropsTick(t *testing.T) {
	l, err := New()
	require.NoError(t, err)

	done := make(chan struct{})
	require.NoError(t, l.Submit(func() {
		defer close(done)
		interval, err := l.Interval(time.Hour)
		require.NoError(t, err)
		interval.Close()
		interval.fire()
		_, err = interval.TryNext()
		assert.ErrorIs(t, err, ErrClosed)
	}))

	stop := startLoop(t, l)
	defer stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal(`timed out`)
	}
}
