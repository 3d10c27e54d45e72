package coordinator

import (
	"fmt"
	"sync"
	"time"
)

// EventKind identifies a coordinator notification.
type EventKind string

const (
	// EventDevicesUpdated is sent after every successful cycle.
	EventDevicesUpdated EventKind = "devices_updated"

	// EventNewDevice is sent after EventDevicesUpdated when the cycle
	// created at least one new record.
	EventNewDevice EventKind = "new_device"

	// EventStateChanged is sent when the coordinator lifecycle state changes.
	EventStateChanged EventKind = "state_changed"
)

// Event is a notification emitted by a Coordinator.
type Event struct {
	Kind          EventKind
	CoordinatorID string
	Time          time.Time

	// State is the coordinator state after the change. Only meaningful
	// for EventStateChanged.
	State State

	// Err is the error that caused the state change, if any.
	Err error
}

// Notifier receives coordinator events. Notify must not block for long;
// it is called synchronously from the refresh cycle.
type Notifier interface {
	Notify(ev Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ev Event)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ev Event) {
	f(ev)
}

type subscription struct {
	id uint64
	n  Notifier
}

// Dispatcher fans events out to connected notifiers in registration order.
//
// A panicking notifier is recovered and logged; it does not stop delivery
// to the remaining notifiers or abort the cycle.
type Dispatcher struct {
	subs   []subscription
	nextID uint64
	mu     sync.RWMutex
	logger Logger
}

// NewDispatcher creates a dispatcher with no subscribers.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{logger: noopLogger{}}
}

// SetLogger sets the logger used to report notifier panics.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.mu.Lock()
	d.logger = logger
	d.mu.Unlock()
}

// Connect subscribes n and returns a function that unsubscribes it.
// The returned function is safe to call more than once.
func (d *Dispatcher) Connect(n Notifier) (disconnect func()) {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subs = append(d.subs, subscription{id: id, n: n})
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { d.remove(id) })
	}
}

// Len returns the number of connected notifiers.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Notify delivers ev to every connected notifier.
func (d *Dispatcher) Notify(ev Event) {
	d.mu.RLock()
	subs := make([]subscription, len(d.subs))
	copy(subs, d.subs)
	logger := d.logger
	d.mu.RUnlock()

	for _, s := range subs {
		d.deliver(s.n, ev, logger)
	}
}

func (d *Dispatcher) deliver(n Notifier, ev Event, logger Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("notifier panicked",
				"event", string(ev.Kind),
				"coordinator", ev.CoordinatorID,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	n.Notify(ev)
}

func (d *Dispatcher) remove(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, s := range d.subs {
		if s.id == id {
			d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
			return
		}
	}
}
