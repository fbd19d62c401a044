package await

type (
	// Oneshot is the producer handle of a single-value handoff. It is
	// single-use: [Oneshot.Resolve] consumes it, and a handle that will
	// never resolve must be released via [Oneshot.Close] so the consumer
	// observes closure instead of suspending forever.
	Oneshot[T any] struct {
		state *oneshotState[T]
		done  bool
	}

	// Once is the consumer handle of a single-value handoff. It implements
	// [Future]. Like the producer side it is single-use, modelling an
	// exactly-once producer / exactly-once consumer exchange.
	Once[T any] struct {
		state  *oneshotState[T]
		closed bool
	}

	oneshotState[T any] struct {
		slot           T
		waker          Waker
		slotFull       bool
		producerExists bool
		consumerExists bool
	}
)

// OneshotPair creates a linked single-value handoff: a producer that can
// deliver exactly one value, and a consumer that can receive it exactly
// once. Neither handle is clonable.
func OneshotPair[T any]() (*Oneshot[T], *Once[T]) {
	state := &oneshotState[T]{
		producerExists: true,
		consumerExists: true,
	}
	return &Oneshot[T]{state: state}, &Once[T]{state: state}
}

// Resolve delivers v, consuming the producer handle and waking a suspended
// receive, if any. It fails with [ErrNoReceiver] if the consumer handle
// has been closed; the value is not consumed, and remains the caller's.
//
// Calling Resolve again after it has already succeeded, or after
// [Oneshot.Close], is ignored: the first outcome wins. This mirrors the
// uniform first-write-wins policy of [Resolver.Resolve].
func (x *Oneshot[T]) Resolve(v T) error {
	if x.done {
		return nil
	}
	x.done = true
	state := x.state
	state.producerExists = false
	if !state.consumerExists {
		return ErrNoReceiver
	}
	state.slot = v
	state.slotFull = true
	w := state.waker
	state.waker = nil
	wake(w)
	return nil
}

// Close releases the producer handle without resolving. A suspended
// receive is woken and observes [ErrClosed] rather than hanging forever.
// Close after [Oneshot.Resolve], or a repeated Close, is a no-op.
func (x *Oneshot[T]) Close() {
	if x.done {
		return
	}
	x.done = true
	state := x.state
	state.producerExists = false
	w := state.waker
	state.waker = nil
	wake(w)
}

// TryRecv takes the value out of the slot if one was delivered. The
// handoff is terminal after a successful receive: the slot is cleared, and
// further calls return [ErrClosed]. With an empty slot it returns
// [ErrClosed] once the producer handle is gone, else [ErrEmpty].
func (x *Once[T]) TryRecv() (T, error) {
	if x.closed {
		panic(`await: once used after close`)
	}
	state := x.state
	if state.slotFull {
		v := state.slot
		var zero T
		state.slot = zero
		state.slotFull = false
		return v, nil
	}
	var zero T
	if !state.producerExists {
		return zero, ErrClosed
	}
	return zero, ErrEmpty
}

// Poll implements [Future]. It behaves as [Once.TryRecv], additionally
// storing w (replacing any previously stored waker) while the handoff is
// still pending.
func (x *Once[T]) Poll(w Waker) (T, error) {
	v, err := x.TryRecv()
	if err == ErrEmpty { //nolint:errorlint // sentinel, never wrapped
		x.state.waker = w
	}
	return v, err
}

// Close releases the consumer handle, causing a later [Oneshot.Resolve] to
// fail with [ErrNoReceiver] instead of delivering into the void. Close is
// idempotent.
func (x *Once[T]) Close() {
	if x.closed {
		return
	}
	x.closed = true
	x.state.consumerExists = false
}
