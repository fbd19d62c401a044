package await

type (
	// Task wraps one externally-driven operation as an awaitable [Future].
	//
	// A task is constructed with a registration closure that arranges,
	// synchronously or via some external asynchronous mechanism, for the
	// provided [Resolver] to deliver exactly one result. The closure is not
	// invoked until the task is first polled.
	//
	// Tasks are single-award: the result is returned by exactly one poll
	// and cleared, after which the task remains pending indefinitely.
	// Awaiting a task more than once is not a supported usage.
	Task[T any] struct {
		state    *taskState[T]
		register func(*Resolver[T])
	}

	// Resolver delivers the result of a [Task]. It is single-use and not
	// clonable; it may be retained by external code (a listener, a timer
	// callback, another goroutine hopping through [Loop.Submit]) for as
	// long as needed before resolving.
	Resolver[T any] struct {
		state *taskState[T]
		done  bool
	}

	taskState[T any] struct {
		result     T
		waker      Waker
		resultFull bool
	}
)

// NewTask creates a [Task] from a registration closure. The closure is
// stored without being invoked; the first poll invokes it exactly once,
// passing a fresh [Resolver] bound to the task's result slot.
//
// Immediately after invoking the closure, the poll re-checks the result
// slot, so a synchronous [Resolver.Resolve] inside the closure completes
// the task on that same poll, with no extra wake cycle.
//
// A nil register will cause a panic.
func NewTask[T any](register func(*Resolver[T])) *Task[T] {
	if register == nil {
		panic(`await: nil task registration`)
	}
	return &Task[T]{
		state:    &taskState[T]{},
		register: register,
	}
}

// Poll implements [Future]. The first poll transitions the task from
// unstarted to running by invoking the registration closure; subsequent
// polls return the result once the resolver has delivered it, storing w
// (replacing any previously stored waker) until then.
func (x *Task[T]) Poll(w Waker) (T, error) {
	state := x.state
	if state.resultFull {
		return state.take()
	}
	if f := x.register; f != nil {
		x.register = nil
		// No state is borrowed across this call: the closure may resolve,
		// dispatch events, or poll other futures synchronously.
		f(&Resolver[T]{state: state})
		state.waker = w
		if state.resultFull {
			return state.take()
		}
		var zero T
		return zero, ErrEmpty
	}
	state.waker = w
	var zero T
	return zero, ErrEmpty
}

// Resolve delivers the task's result and fires the stored waker, if any.
//
// The first write wins: calling Resolve more than once is silently
// ignored. This is the uniform duplicate-resolution policy across the
// package, see also [Oneshot.Resolve].
func (x *Resolver[T]) Resolve(v T) {
	if x.done {
		return
	}
	x.done = true
	state := x.state
	state.result = v
	state.resultFull = true
	w := state.waker
	state.waker = nil
	wake(w)
}

func (x *taskState[T]) take() (T, error) {
	v := x.result
	var zero T
	x.result = zero
	x.resultFull = false
	return v, nil
}
