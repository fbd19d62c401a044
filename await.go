package await

// Await drives f to completion on l's goroutine: the future is polled on
// the loop, suspends by storing the loop-provided waker, and is polled
// again each time that waker fires. When the future completes, done is
// invoked on the loop goroutine with the value, or with [ErrClosed] (or
// whatever terminal error the future yields) if no value will ever arrive.
// done may be nil, discarding the outcome.
//
// The first poll is submitted, not run inline, so Await is safe to call
// from any goroutine; it returns [ErrLoopClosed] if the loop has shut
// down before the first poll could be scheduled.
//
// Providing a nil future will cause a panic.
func Await[T any](l *Loop, f Future[T], done func(T, error)) error {
	if f == nil {
		panic(`await: nil future`)
	}
	var (
		step      func()
		completed bool
	)
	waker := Waker(func() {
		if err := l.Submit(step); err != nil {
			l.logger.Warning().
				Str(`component`, `await`).
				Err(err).
				Log(`wake dropped`)
		}
	})
	step = func() {
		if completed {
			return
		}
		v, err := f.Poll(waker)
		if err == ErrEmpty { //nolint:errorlint // sentinel, never wrapped
			return
		}
		completed = true
		if done != nil {
			done(v, err)
		}
	}
	return l.Submit(step)
}
