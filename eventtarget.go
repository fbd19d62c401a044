package await

type (
	// EventListenerFunc is a callback function for [EventTarget.AddListener].
	EventListenerFunc func(event *Event)

	// ListenerID uniquely identifies a registered listener for removal
	// purposes. Go functions cannot be reliably compared for equality, so
	// each registration is assigned a unique ID instead.
	ListenerID uint64

	// listenerEntry pairs a listener with its ID for removal.
	listenerEntry struct {
		listener EventListenerFunc
		id       ListenerID
		once     bool // remove after first dispatch
	}

	// EventTarget is a listener registry in the style of the DOM API,
	// reduced to what the awaitable adapters need: typed registration,
	// removal by ID, once-listeners, and ordered dispatch.
	//
	// EventTarget is loop-confined: registration, removal, and dispatch
	// all happen on one goroutine, conventionally via [Loop.Submit] for
	// externally-originated events. The adapter contract is that every
	// observed host event produces exactly one Dispatch, in observation
	// order.
	EventTarget struct {
		listeners      map[string][]listenerEntry
		nextListenerID ListenerID
	}

	// Event is a value dispatched through an [EventTarget].
	Event struct {
		// Type is the name of the event (e.g. "message", "close").
		Type string
		// Target is the EventTarget the event was dispatched on.
		Target *EventTarget
		// Detail holds arbitrary event data.
		Detail any
	}

	// Subscription adapts a stream of events of one type into an awaitable
	// channel: one listener registration, one [Sender.Send] per dispatch,
	// FIFO order preserved. [Subscription.Close] removes the listener.
	Subscription struct {
		target    *EventTarget
		sender    *Sender[*Event]
		recv      *Receiver[*Event]
		eventType string
		id        ListenerID
		closed    bool
	}

	// Occurrence adapts the next event of one type into an awaitable
	// one-shot. The listener is registered once-only and removed on first
	// dispatch; [Occurrence.Close] removes it early, and a suspended poll
	// then completes with [ErrClosed].
	Occurrence struct {
		target    *EventTarget
		producer  *Oneshot[*Event]
		once      *Once[*Event]
		eventType string
		id        ListenerID
		closed    bool
	}
)

// NewEventTarget creates an empty [EventTarget].
func NewEventTarget() *EventTarget {
	return &EventTarget{
		listeners:      make(map[string][]listenerEntry),
		nextListenerID: 1,
	}
}

// AddListener registers a listener for events of the given type, returning
// an ID for [EventTarget.RemoveListener]. A nil listener returns 0 without
// registering.
func (x *EventTarget) AddListener(eventType string, listener EventListenerFunc) ListenerID {
	return x.addListener(eventType, listener, false)
}

// AddListenerOnce registers a listener that is removed after its first
// dispatch.
func (x *EventTarget) AddListenerOnce(eventType string, listener EventListenerFunc) ListenerID {
	return x.addListener(eventType, listener, true)
}

func (x *EventTarget) addListener(eventType string, listener EventListenerFunc, once bool) ListenerID {
	if listener == nil {
		return 0
	}
	id := x.nextListenerID
	x.nextListenerID++
	x.listeners[eventType] = append(x.listeners[eventType], listenerEntry{
		listener: listener,
		id:       id,
		once:     once,
	})
	return id
}

// RemoveListener removes a listener by ID, reporting whether one was
// removed. Removing twice is safe.
func (x *EventTarget) RemoveListener(eventType string, id ListenerID) bool {
	entries := x.listeners[eventType]
	for i, entry := range entries {
		if entry.id == id {
			x.listeners[eventType] = append(entries[:i], entries[i+1:]...)
			return true
		}
	}
	return false
}

// Dispatch delivers event to every listener registered for its type, in
// registration order. Once-listeners are removed before their invocation,
// so a listener re-dispatching the same type cannot double-fire them.
// Listeners added during dispatch do not observe the current event;
// listeners removed during dispatch are skipped.
func (x *EventTarget) Dispatch(event *Event) {
	if event == nil {
		panic(`await: nil event`)
	}
	event.Target = x
	entries := x.listeners[event.Type]
	snapshot := make([]listenerEntry, len(entries))
	copy(snapshot, entries)
	for _, entry := range snapshot {
		if !x.registered(event.Type, entry.id) {
			continue
		}
		if entry.once {
			x.RemoveListener(event.Type, entry.id)
		}
		entry.listener(event)
	}
}

func (x *EventTarget) registered(eventType string, id ListenerID) bool {
	for _, entry := range x.listeners[eventType] {
		if entry.id == id {
			return true
		}
	}
	return false
}

// On adapts events of the given type into an awaitable stream. Every
// dispatch of that type is delivered, in order, until the subscription is
// closed.
func (x *EventTarget) On(eventType string) *Subscription {
	sender, recv := Channel[*Event]()
	sub := &Subscription{
		target:    x,
		sender:    sender,
		recv:      recv,
		eventType: eventType,
	}
	sub.id = x.AddListener(eventType, func(event *Event) {
		_ = sub.sender.Send(event)
	})
	return sub
}

// TryNext pops the next buffered event, if any. With no event buffered it
// returns [ErrEmpty], or [ErrClosed] once the subscription was closed and
// drained.
func (x *Subscription) TryNext() (*Event, error) {
	return x.recv.TryRecv()
}

// Next returns a [Future] completing with the next event.
func (x *Subscription) Next() Future[*Event] {
	return x.recv.Recv()
}

// Close removes the listener registration. Events already buffered remain
// receivable via [Subscription.TryNext], after which [ErrClosed] is
// observed. Idempotent.
func (x *Subscription) Close() {
	if x.closed {
		return
	}
	x.closed = true
	x.target.RemoveListener(x.eventType, x.id)
	x.sender.Close()
}

// Once adapts the next event of the given type into an awaitable one-shot.
func (x *EventTarget) Once(eventType string) *Occurrence {
	producer, once := OneshotPair[*Event]()
	oc := &Occurrence{
		target:    x,
		producer:  producer,
		once:      once,
		eventType: eventType,
	}
	oc.id = x.AddListenerOnce(eventType, func(event *Event) {
		_ = oc.producer.Resolve(event)
	})
	return oc
}

// TryRecv takes the event, if one was dispatched. Otherwise it returns
// [ErrEmpty], or [ErrClosed] after [Occurrence.Close] (or after the event
// was already received).
func (x *Occurrence) TryRecv() (*Event, error) {
	return x.once.TryRecv()
}

// Poll implements [Future].
func (x *Occurrence) Poll(w Waker) (*Event, error) {
	return x.once.Poll(w)
}

// Close removes the listener registration if the event has not fired; a
// suspended poll wakes and completes with [ErrClosed]. Idempotent.
func (x *Occurrence) Close() {
	if x.closed {
		return
	}
	x.closed = true
	x.target.RemoveListener(x.eventType, x.id)
	x.producer.Close()
}
