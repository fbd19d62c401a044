package await

import (
	"github.com/eapache/queue"
)

type (
	// Sender is the producer handle of a [Channel]. Senders are cheap to
	// [Sender.Clone]; every handle carries its own [Sender.Close]
	// obligation, and the channel reports closed to the consumer only once
	// every sender handle has been closed.
	//
	// WARNING: Like all primitives in this package, Sender is not safe for
	// concurrent use. Operations must be serialized, conventionally on the
	// owning [Loop] goroutine.
	Sender[T any] struct {
		state  *channelState[T]
		closed bool
	}

	// Receiver is the consumer handle of a [Channel].
	//
	// Only one waker slot exists per channel: if multiple cloned receivers
	// poll concurrently, the most recent poller's waker wins and earlier
	// pollers may starve. Single active consumer is the intended usage.
	Receiver[T any] struct {
		state  *channelState[T]
		closed bool
	}

	channelState[T any] struct {
		queue     fifo[T]
		waker     Waker
		senders   int
		receivers int
	}
)

// Channel creates a linked producer/consumer handle pair around an
// unbounded FIFO value stream. Values sent via any (cloned) sender are
// received in send order. There is no capacity bound and no backpressure.
func Channel[T any]() (*Sender[T], *Receiver[T]) {
	state := &channelState[T]{
		queue:     newFifo[T](),
		senders:   1,
		receivers: 1,
	}
	return &Sender[T]{state: state}, &Receiver[T]{state: state}
}

// Send appends v to the channel's queue and wakes a suspended receive, if
// any. It fails with [ErrNoReceiver] if every receiver handle has been
// closed; the value is not consumed, and remains the caller's to keep or
// drop. Send never blocks and never suspends.
func (x *Sender[T]) Send(v T) error {
	if x.closed {
		panic(`await: sender used after close`)
	}
	state := x.state
	if state.receivers == 0 {
		return ErrNoReceiver
	}
	state.queue.push(v)
	w := state.waker
	state.waker = nil
	wake(w)
	return nil
}

// Clone returns a new independent sender handle for the same channel.
// The clone has its own [Sender.Close] obligation.
func (x *Sender[T]) Clone() *Sender[T] {
	if x.closed {
		panic(`await: sender used after close`)
	}
	x.state.senders++
	return &Sender[T]{state: x.state}
}

// Close releases this sender handle. When the last sender handle is
// closed, any suspended receive is woken so the consumer observes closure
// promptly. Close is idempotent per handle.
func (x *Sender[T]) Close() {
	if x.closed {
		return
	}
	x.closed = true
	state := x.state
	state.senders--
	if state.senders == 0 {
		w := state.waker
		state.waker = nil
		wake(w)
	}
}

// TryRecv pops the front of the queue, if non-empty. With an empty queue it
// returns [ErrClosed] once every sender handle has been closed, else
// [ErrEmpty]. TryRecv never stores a waker; use [Receiver.Recv] to suspend.
func (x *Receiver[T]) TryRecv() (T, error) {
	if x.closed {
		panic(`await: receiver used after close`)
	}
	state := x.state
	if v, ok := state.queue.pop(); ok {
		return v, nil
	}
	var zero T
	if state.senders == 0 {
		return zero, ErrClosed
	}
	return zero, ErrEmpty
}

// Recv returns a [Future] completing with the next value in FIFO order, or
// with [ErrClosed] if the queue is empty and every sender has been closed.
// A recv future never suspends on a closed channel.
//
// Each poll of the returned future re-runs [Receiver.TryRecv], storing the
// poller's waker (replacing any previous) while the channel is empty.
func (x *Receiver[T]) Recv() Future[T] {
	return recvFuture[T]{x}
}

// Len returns the number of values currently buffered in the channel.
func (x *Receiver[T]) Len() int {
	return x.state.queue.len()
}

// Clone returns a new independent receiver handle for the same channel.
// See the warning on [Receiver] regarding multiple concurrent pollers.
func (x *Receiver[T]) Clone() *Receiver[T] {
	if x.closed {
		panic(`await: receiver used after close`)
	}
	x.state.receivers++
	return &Receiver[T]{state: x.state}
}

// Close releases this receiver handle. Once every receiver handle is
// closed, subsequent sends fail with [ErrNoReceiver]. No wake occurs:
// senders observe the receiver count at send time, not via waker. Close is
// idempotent per handle.
func (x *Receiver[T]) Close() {
	if x.closed {
		return
	}
	x.closed = true
	x.state.receivers--
}

type recvFuture[T any] struct {
	r *Receiver[T]
}

func (x recvFuture[T]) Poll(w Waker) (T, error) {
	v, err := x.r.TryRecv()
	if err == ErrEmpty { //nolint:errorlint // sentinel, never wrapped
		x.r.state.waker = w
	}
	return v, err
}

// fifo adapts the untyped [queue.Queue] ring buffer.
type fifo[T any] struct {
	q *queue.Queue
}

func newFifo[T any]() fifo[T] {
	return fifo[T]{q: queue.New()}
}

func (x fifo[T]) push(v T) {
	x.q.Add(v)
}

func (x fifo[T]) pop() (v T, ok bool) {
	if x.q.Length() == 0 {
		return
	}
	return x.q.Remove().(T), true
}

func (x fifo[T]) len() int {
	return x.q.Length()
}
