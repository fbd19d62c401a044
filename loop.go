package await

import (
	"container/heap"
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

// Standard errors.
var (
	// ErrLoopAlreadyRunning is returned when Run is called on a loop that is already running.
	ErrLoopAlreadyRunning = errors.New(`await: loop is already running`)

	// ErrLoopClosed is returned when operations are attempted on a loop that has shut down.
	ErrLoopClosed = errors.New(`await: loop is closed`)

	// ErrTimerNotFound is returned by [Loop.CancelTimer] for unknown or already-fired timers.
	ErrTimerNotFound = errors.New(`await: timer not found`)
)

// Loop lifecycle states.
const (
	loopStateNew int32 = iota
	loopStateRunning
	loopStateClosed
)

// TimerID identifies a timer scheduled via [Loop.ScheduleTimer].
type TimerID uint64

type (
	// Loop is a cooperative, single-goroutine scheduler. It is the external
	// scheduler the primitives in this package suspend against: [Await]
	// drives a [Future] by polling it on the loop, and the waker it hands
	// out re-enqueues the poll.
	//
	// All submitted functions, timer callbacks, wakes, and (by convention)
	// every operation on this package's primitives execute on the single
	// goroutine that called [Loop.Run]. [Loop.Submit], [Loop.Shutdown],
	// and [Loop.Close] are the only methods safe to call from other
	// goroutines.
	Loop struct {
		logger *logiface.Logger[logiface.Event]

		// Cross-goroutine ingress (the only concurrent entry point).
		ingress chan func()

		// Loop-confined overflow for submissions made on the loop
		// goroutine itself (wakers firing mid-tick). Only the loop
		// goroutine reads or writes it.
		local []func()

		// Timer service. Loop-confined.
		timers      timerHeap
		timerIndex  map[TimerID]*loopTimer
		nextTimerID TimerID

		stop     chan struct{}
		done     chan struct{}
		stopOnce sync.Once

		loopGoroutineID atomic.Uint64
		state           atomic.Int32
	}

	// loopTimer is a pending timer heap entry.
	loopTimer struct {
		when      time.Time
		fn        func()
		id        TimerID
		heapIndex int
	}

	// timerHeap is a min-heap of pending timers, earliest deadline first.
	timerHeap []*loopTimer
)

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*loopTimer)
	t.heapIndex = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.heapIndex = -1
	*h = old[:n-1]
	return t
}

// New creates a stopped [Loop]. Call [Loop.Run] to start it, and
// [Loop.Close] or [Loop.Shutdown] when it is no longer needed.
func New(opts ...Option) (*Loop, error) {
	options, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Loop{
		logger:     options.logger,
		ingress:    make(chan func(), options.ingressCapacity),
		timerIndex: make(map[TimerID]*loopTimer),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Run executes the loop on the calling goroutine until ctx cancels or the
// loop is shut down. It returns ctx's error on cancellation, and nil on
// [Loop.Shutdown] / [Loop.Close]. A loop runs at most once; a second call
// returns [ErrLoopAlreadyRunning], or [ErrLoopClosed] after termination.
// Work still queued when Run returns is dropped.
//
// Providing a nil ctx will cause a panic.
func (l *Loop) Run(ctx context.Context) error {
	if ctx == nil {
		panic(`await: nil context`)
	}
	if !l.state.CompareAndSwap(loopStateNew, loopStateRunning) {
		if l.state.Load() == loopStateClosed {
			return ErrLoopClosed
		}
		return ErrLoopAlreadyRunning
	}

	l.loopGoroutineID.Store(getGoroutineID())
	defer l.loopGoroutineID.Store(0)
	defer close(l.done)
	defer l.state.Store(loopStateClosed)
	defer l.stopOnce.Do(func() { close(l.stop) })

	l.logger.Debug().Str(`component`, `loop`).Log(`run started`)
	defer l.logger.Debug().Str(`component`, `loop`).Log(`run stopped`)

	for {
		l.runLocal()
		l.runTimers(time.Now())

		// Termination takes priority over pending work.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		default:
		}

		if len(l.local) != 0 {
			// A waker or callback enqueued more work mid-tick: keep
			// going, only draining ingress opportunistically.
			select {
			case fn := <-l.ingress:
				l.safeExecute(fn)
			default:
			}
			continue
		}

		var (
			sleep  *time.Timer
			expiry <-chan time.Time
		)
		if len(l.timers) != 0 {
			sleep = time.NewTimer(time.Until(l.timers[0].when))
			expiry = sleep.C
		}

		select {
		case <-ctx.Done():
			stopTimer(sleep)
			return ctx.Err()
		case <-l.stop:
			stopTimer(sleep)
			return nil
		case fn := <-l.ingress:
			stopTimer(sleep)
			l.safeExecute(fn)
		case <-expiry:
		}
	}
}

// Submit enqueues fn to run on the loop goroutine. It is safe to call from
// any goroutine, including the loop's own (in which case fn runs later in
// the current tick, preserving submission order). It returns
// [ErrLoopClosed] once the loop has shut down.
//
// Providing a nil fn will cause a panic.
func (l *Loop) Submit(fn func()) error {
	if fn == nil {
		panic(`await: nil task`)
	}
	if l.state.Load() == loopStateClosed {
		return ErrLoopClosed
	}
	if l.isLoopGoroutine() {
		l.local = append(l.local, fn)
		return nil
	}
	select {
	case l.ingress <- fn:
		return nil
	case <-l.stop:
		return ErrLoopClosed
	}
}

// ScheduleTimer schedules fn to run on the loop goroutine after delay,
// returning an ID for [Loop.CancelTimer].
//
// The timer service is loop-confined: ScheduleTimer may be called before
// [Loop.Run], or on the loop goroutine, but never concurrently from other
// goroutines (hop through [Loop.Submit] instead).
func (l *Loop) ScheduleTimer(delay time.Duration, fn func()) (TimerID, error) {
	if fn == nil {
		panic(`await: nil task`)
	}
	l.assertConfined()
	if l.state.Load() == loopStateClosed {
		return 0, ErrLoopClosed
	}
	if delay < 0 {
		delay = 0
	}
	l.nextTimerID++
	t := &loopTimer{
		when: time.Now().Add(delay),
		fn:   fn,
		id:   l.nextTimerID,
	}
	heap.Push(&l.timers, t)
	l.timerIndex[t.id] = t
	l.logger.Trace().
		Str(`component`, `timer`).
		Uint64(`timer_id`, uint64(t.id)).
		Dur(`delay`, delay).
		Log(`timer scheduled`)
	return t.id, nil
}

// CancelTimer cancels a pending timer. It returns [ErrTimerNotFound] if
// the ID is unknown or the timer already fired; cancelling twice is safe.
// Loop-confined, like [Loop.ScheduleTimer].
func (l *Loop) CancelTimer(id TimerID) error {
	l.assertConfined()
	t, ok := l.timerIndex[id]
	if !ok {
		return ErrTimerNotFound
	}
	delete(l.timerIndex, id)
	heap.Remove(&l.timers, t.heapIndex)
	l.logger.Trace().
		Str(`component`, `timer`).
		Uint64(`timer_id`, uint64(id)).
		Log(`timer canceled`)
	return nil
}

// Shutdown stops the loop and waits for [Loop.Run] to return, or for ctx
// to cancel. Safe to call from any goroutine, and idempotent.
//
// Providing a nil ctx will cause a panic.
func (l *Loop) Shutdown(ctx context.Context) error {
	if ctx == nil {
		panic(`await: nil context`)
	}
	l.initiateShutdown()
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop without waiting for it to wind down. Safe to call
// from any goroutine, and idempotent. It never returns a non-nil error; the
// signature matches [io.Closer].
func (l *Loop) Close() error {
	l.initiateShutdown()
	return nil
}

func (l *Loop) initiateShutdown() {
	l.stopOnce.Do(func() {
		if l.state.CompareAndSwap(loopStateNew, loopStateClosed) {
			// Never ran; nothing will close done for us.
			close(l.stop)
			close(l.done)
			return
		}
		close(l.stop)
	})
}

// runLocal drains the loop-confined submission queue, in FIFO order.
// Functions appended mid-drain (wakers, again) are executed in the same
// pass.
func (l *Loop) runLocal() {
	for i := 0; i < len(l.local); i++ {
		l.safeExecute(l.local[i])
		l.local[i] = nil
	}
	l.local = l.local[:0]
}

// runTimers executes every expired timer, earliest deadline first.
func (l *Loop) runTimers(now time.Time) {
	for len(l.timers) != 0 {
		if l.timers[0].when.After(now) {
			break
		}
		t := heap.Pop(&l.timers).(*loopTimer)
		delete(l.timerIndex, t.id)
		l.safeExecute(t.fn)
	}
}

// safeExecute executes fn with panic recovery.
func (l *Loop) safeExecute(fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Err().
				Str(`component`, `loop`).
				Any(`recovered`, r).
				Log(`task panicked`)
		}
	}()
	fn()
}

func (l *Loop) isLoopGoroutine() bool {
	id := l.loopGoroutineID.Load()
	return id != 0 && id == getGoroutineID()
}

// assertConfined panics if called off the loop goroutine while the loop is
// running. Reentrant exclusive access to loop-confined state is a
// programming error, caught here rather than recovered from.
func (l *Loop) assertConfined() {
	if l.loopGoroutineID.Load() != 0 && !l.isLoopGoroutine() {
		panic(`await: loop-confined operation called off the loop goroutine`)
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// getGoroutineID returns the current goroutine's ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
