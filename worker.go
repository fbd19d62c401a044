package await

import (
	"context"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"
)

// ErrWorkerClosed is returned by worker bridge operations once the worker
// has been closed, or its body has returned.
var ErrWorkerClosed = errors.New(`await: worker closed`)

// workerInboxCapacity bounds the in-flight messages toward the worker.
// The bound exists only to cap the encoded backlog; [Worker.Send] blocks
// rather than failing when it is reached.
const workerInboxCapacity = 1024

type (
	// WorkerFunc is the body of a worker. It runs on a dedicated
	// goroutine, receives the decoded spawn arguments, and exchanges
	// messages with the spawning loop through the port. The worker stops
	// when the body returns, or when ctx cancels ([Worker.Close]).
	WorkerFunc[A, In, Out any] func(ctx context.Context, args A, port *WorkerPort[In, Out]) error

	// Worker is the loop-side handle of a message-passing worker bridge.
	//
	// All values crossing the bridge (spawn arguments included) are
	// msgpack-encoded on the sending side and decoded on the receiving
	// side, so no memory is shared between the two worlds. Inbound
	// messages surface through the awaitable channel primitives, one
	// [Sender.Send] per message, in send order.
	//
	// Worker is loop-confined, except as documented on [Worker.Send].
	Worker[In, Out any] struct {
		loop   *Loop
		recv   *Receiver[Out]
		inbox  chan []byte
		done   <-chan struct{}
		cancel context.CancelFunc
		closed bool
	}

	// WorkerPort is the worker-side endpoint of the bridge. Unlike the
	// loop side it may block: the worker goroutine is its own world, and
	// [WorkerPort.Recv] parks it until a message or termination.
	WorkerPort[In, Out any] struct {
		ctx    context.Context
		loop   *Loop
		sender *Sender[Out] // only touched inside Submit closures
		inbox  <-chan []byte
	}
)

// SpawnWorker starts fn on a dedicated goroutine, returning the loop-side
// handle. The args value is encoded immediately and decoded inside the
// worker, like every subsequent message, preserving value isolation
// between the two worlds.
//
// A worker body error (other than cancellation) is logged on the loop's
// logger. Whichever way the body ends, the loop-side receive stream
// drains any delivered messages and then observes [ErrClosed].
//
// Providing a nil fn will cause a panic.
func SpawnWorker[A, In, Out any](l *Loop, args A, fn WorkerFunc[A, In, Out]) (*Worker[In, Out], error) {
	if fn == nil {
		panic(`await: nil worker function`)
	}
	argsData, err := msgpack.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf(`await: worker args encode: %w`, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	sender, recv := Channel[Out]()
	inbox := make(chan []byte, workerInboxCapacity)

	w := &Worker[In, Out]{
		loop:   l,
		recv:   recv,
		inbox:  inbox,
		done:   ctx.Done(),
		cancel: cancel,
	}
	port := &WorkerPort[In, Out]{
		ctx:    ctx,
		loop:   l,
		sender: sender,
		inbox:  inbox,
	}

	group.Go(func() error {
		var decoded A
		if err := msgpack.Unmarshal(argsData, &decoded); err != nil {
			return fmt.Errorf(`await: worker args decode: %w`, err)
		}
		return fn(ctx, decoded, port)
	})
	go func() {
		defer cancel()
		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Err().
				Str(`component`, `worker`).
				Err(err).
				Log(`worker stopped`)
		}
		// Runs after every port.Send submission, so the loop side
		// observes closure only after the delivered backlog.
		_ = l.Submit(func() { sender.Close() })
	}()

	return w, nil
}

// Send encodes v and queues it toward the worker. It blocks while the
// worker's inbox is full, and fails with [ErrWorkerClosed] once the worker
// has terminated. Safe to call from any goroutine.
func (x *Worker[In, Out]) Send(v In) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf(`await: worker send encode: %w`, err)
	}
	select {
	case x.inbox <- data:
		return nil
	case <-x.done:
		return ErrWorkerClosed
	}
}

// TryRecv pops the next message delivered by the worker, if any.
// Otherwise it returns [ErrEmpty], or [ErrClosed] once the worker has
// terminated and the backlog is drained.
func (x *Worker[In, Out]) TryRecv() (Out, error) {
	if x.closed {
		var zero Out
		return zero, ErrClosed
	}
	return x.recv.TryRecv()
}

// Recv returns a [Future] completing with the next message delivered by
// the worker, or [ErrClosed] once the worker has terminated and the
// backlog is drained. Not valid after [Worker.Close].
func (x *Worker[In, Out]) Recv() Future[Out] {
	return x.recv.Recv()
}

// Close terminates the worker (cancelling its ctx) and stops receiving:
// messages it may have delivered but that were not yet received are
// dropped. Idempotent, and loop-confined.
func (x *Worker[In, Out]) Close() {
	if x.closed {
		return
	}
	x.closed = true
	x.cancel()
	x.recv.Close()
	x.loop.logger.Debug().
		Str(`component`, `worker`).
		Log(`worker closed`)
}

// Recv blocks until the next message from the loop side, decoding it, or
// until termination ([ErrWorkerClosed]).
func (x *WorkerPort[In, Out]) Recv() (In, error) {
	select {
	case data := <-x.inbox:
		return decodeWorkerMessage[In](data)
	case <-x.ctx.Done():
		var zero In
		return zero, ErrWorkerClosed
	}
}

// TryRecv pops and decodes the next message from the loop side, if any,
// without blocking. It returns [ErrEmpty] when the inbox is empty, and
// [ErrWorkerClosed] after termination.
func (x *WorkerPort[In, Out]) TryRecv() (In, error) {
	select {
	case data := <-x.inbox:
		return decodeWorkerMessage[In](data)
	default:
	}
	var zero In
	select {
	case <-x.ctx.Done():
		return zero, ErrWorkerClosed
	default:
		return zero, ErrEmpty
	}
}

// Send encodes v and delivers it to the loop side, where it surfaces via
// [Worker.TryRecv] / [Worker.Recv] in send order. It fails with
// [ErrLoopClosed] if the loop has shut down. A message that fails to
// decode on the loop side is logged and dropped there.
func (x *WorkerPort[In, Out]) Send(v Out) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf(`await: worker send encode: %w`, err)
	}
	sender, loop := x.sender, x.loop
	return loop.Submit(func() {
		var decoded Out
		if err := msgpack.Unmarshal(data, &decoded); err != nil {
			loop.logger.Err().
				Str(`component`, `worker`).
				Err(err).
				Log(`worker message decode failed`)
			return
		}
		_ = sender.Send(decoded)
	})
}

func decodeWorkerMessage[T any](data []byte) (T, error) {
	var v T
	if err := msgpack.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, fmt.Errorf(`await: worker message decode: %w`, err)
	}
	return v, nil
}
