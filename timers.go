// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package await

import (
	"errors"
	"time"
)

type (
	// Interval is a repeating timer exposed as an awaitable stream. Each
	// fire delivers the fire time into an unbounded channel, so a slow
	// consumer observes every tick (late, rather than coalesced).
	//
	// Interval is loop-confined. [Interval.Close] stops the underlying
	// timer; an interval that is never closed fires forever.
	Interval struct {
		loop   *Loop
		sender *Sender[time.Time]
		recv   *Receiver[time.Time]
		period time.Duration
		timer  TimerID
		closed bool
	}

	// Timeout is a one-shot timer exposed as a [Future] completing with
	// the fire time. [Timeout.Cancel] releases the pending timer; a
	// suspended poll then completes with [ErrClosed] instead of hanging.
	Timeout struct {
		loop     *Loop
		producer *Oneshot[time.Time]
		once     *Once[time.Time]
		timer    TimerID
		fired    bool
		closed   bool
	}
)

// Interval creates a repeating timer stream with the given period,
// scheduled on the loop's timer service. The next fire is scheduled after
// each callback runs, in the manner of a rescheduling timeout, so ticks do
// not stack up behind a stalled loop.
//
// Loop-confined, like [Loop.ScheduleTimer].
func (l *Loop) Interval(period time.Duration) (*Interval, error) {
	if period <= 0 {
		return nil, errors.New(`await: interval period must be positive`)
	}
	sender, recv := Channel[time.Time]()
	x := &Interval{
		loop:   l,
		sender: sender,
		recv:   recv,
		period: period,
	}
	id, err := l.ScheduleTimer(period, x.fire)
	if err != nil {
		sender.Close()
		recv.Close()
		return nil, err
	}
	x.timer = id
	return x, nil
}

func (x *Interval) fire() {
	if x.closed {
		return
	}
	_ = x.sender.Send(time.Now())
	id, err := x.loop.ScheduleTimer(x.period, x.fire)
	if err != nil {
		x.timer = 0
		return
	}
	x.timer = id
}

// TryNext pops the next tick, if any. With no tick buffered it returns
// [ErrEmpty], or [ErrClosed] once the interval was closed and drained.
func (x *Interval) TryNext() (time.Time, error) {
	return x.recv.TryRecv()
}

// Next returns a [Future] completing with the next tick.
func (x *Interval) Next() Future[time.Time] {
	return x.recv.Recv()
}

// Close stops the interval and releases its timer. Ticks already buffered
// remain receivable via [Interval.TryNext], after which [ErrClosed] is
// observed. Idempotent, and loop-confined.
func (x *Interval) Close() {
	if x.closed {
		return
	}
	x.closed = true
	if x.timer != 0 {
		_ = x.loop.CancelTimer(x.timer)
	}
	x.sender.Close()
}

// After creates a one-shot timer completing with the fire time after
// delay. Loop-confined, like [Loop.ScheduleTimer].
func (l *Loop) After(delay time.Duration) (*Timeout, error) {
	producer, once := OneshotPair[time.Time]()
	x := &Timeout{
		loop:     l,
		producer: producer,
		once:     once,
	}
	id, err := l.ScheduleTimer(delay, func() {
		x.fired = true
		_ = x.producer.Resolve(time.Now())
	})
	if err != nil {
		return nil, err
	}
	x.timer = id
	return x, nil
}

// TryRecv takes the fire time, if the timer has fired. Otherwise it
// returns [ErrEmpty], or [ErrClosed] after [Timeout.Cancel] (or after the
// fire time was already received).
func (x *Timeout) TryRecv() (time.Time, error) {
	return x.once.TryRecv()
}

// Poll implements [Future].
func (x *Timeout) Poll(w Waker) (time.Time, error) {
	return x.once.Poll(w)
}

// Cancel releases the pending timer. A suspended poll wakes and completes
// with [ErrClosed]. Cancelling a fired or already-cancelled timeout is a
// no-op. Loop-confined.
func (x *Timeout) Cancel() {
	if x.closed {
		return
	}
	x.closed = true
	if !x.fired {
		_ = x.loop.CancelTimer(x.timer)
	}
	x.producer.Close()
}
