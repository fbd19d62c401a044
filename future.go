package await

import (
	"errors"
)

// Standard errors.
var (
	// ErrEmpty indicates no value is available yet. It is transient: values
	// may still arrive, and poll-style operations will have stored the
	// caller's [Waker] before returning it.
	ErrEmpty = errors.New(`await: no value available yet`)

	// ErrClosed indicates no value will ever arrive. It is terminal.
	ErrClosed = errors.New(`await: closed`)

	// ErrNoReceiver is returned by producer-side operations when no live
	// consumer handle remains. The rejected value stays with the caller,
	// which decides whether dropping it is acceptable.
	ErrNoReceiver = errors.New(`await: no receiver`)
)

type (
	// Waker is an opaque reschedule handle. Firing it signals "poll me
	// again" to whatever scheduler suspended the operation that stored it.
	//
	// Wakers must be safe to call from any goroutine (the loop-provided
	// wakers are), and must tolerate firing after the suspended operation
	// has already completed or been abandoned.
	Waker func()

	// Future is a pollable asynchronous result.
	//
	// Poll attempts to complete the future. On success it returns the value
	// and a nil error. If the future can terminate without ever producing a
	// value, it returns [ErrClosed]. Otherwise it stores w, replacing any
	// previously stored waker, and returns [ErrEmpty]; w will be fired when
	// polling again may make progress.
	//
	// Poll must only be called from a single active consumer, conventionally
	// the loop goroutine, see [Await].
	Future[T any] interface {
		Poll(w Waker) (T, error)
	}
)

// wake fires w if non-nil. State structs call this only after releasing
// their exclusive borrow, so a waker observing or re-entering the same
// state is safe.
func wake(w Waker) {
	if w != nil {
		w()
	}
}
