// Package await provides single-threaded cooperative concurrency primitives
// that adapt callback-driven external events into a poll-based, awaitable
// programming model.
//
// # Architecture
//
// The package is built around three primitives that share one ownership
// pattern (state reachable from multiple handles, mutated exclusively and
// non-reentrantly, alive while any handle remains open):
//
//   - [Channel]: an unbounded multi-producer FIFO value stream with close
//     detection, consumed via [Receiver.TryRecv] or the awaitable
//     [Receiver.Recv].
//   - [OneshotPair]: a single-value, single-use handoff with close detection
//     in both directions.
//   - [NewTask]: a generic bridge that wraps a one-off, externally-driven
//     callback as an awaitable [Future].
//
// A [Loop] drives futures to completion. It is a cooperative scheduler:
// all polls, wakers, timer callbacks, and event listeners execute on a
// single goroutine, so the primitives require no locks or atomics. The only
// goroutine-safe entry point is [Loop.Submit], which adapters use to funnel
// externally-originated events onto the loop.
//
// Built on top of the core are the adapters the primitives exist to serve:
// [EventTarget] subscriptions ([EventTarget.On], [EventTarget.Once]),
// timer streams ([Loop.Interval], [Loop.After]), and a message-passing
// worker bridge ([SpawnWorker]).
//
// # Suspension Model
//
// "Suspension" never blocks a goroutine. [Future.Poll] either completes, or
// stores the caller's [Waker] and returns [ErrEmpty]; firing the waker
// means "poll me again". Each unit of shared state holds at most one waker:
// the most recent registration supersedes any earlier one, a deliberate
// single-active-consumer design (not a broadcast channel).
//
// # Outcomes
//
// Consumer-side operations distinguish [ErrEmpty] (transient, values may
// still arrive) from [ErrClosed] (terminal, no value will ever arrive).
// Producer-side operations fail with [ErrNoReceiver] when no live consumer
// remains, leaving the rejected value with the caller rather than
// discarding it. No retries happen inside the primitives.
//
// # Handles
//
// Handles are the unit of ownership. Channel handles are cheap to [Sender.Clone]
// and carry an individual close obligation; one-shot and task handles are
// single-use. Closing a handle is the only cancellation mechanism, and
// adapter handles (subscriptions, intervals, timeouts, workers) release
// their external registration on every exit path, including when no value
// was ever delivered.
package await
