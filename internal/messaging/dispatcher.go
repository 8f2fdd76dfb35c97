package messaging

import (
	"fmt"
	"sync"
	"sync/atomic"

	"media-vfs/internal/logging"
	"media-vfs/internal/metrics"
)

// Context is what a subscriber receives for one dispatched message.
type Context struct {
	// Name is the dispatched message name.
	Name string
	// Extension is the name the subscriber registered under, or "" for
	// plain registrations.
	Extension string
	// Payload is the dispatched value.
	Payload interface{}
}

// Int64 returns the payload as an int64 when it holds an integer.
func (c Context) Int64() (int64, bool) {
	switch v := c.Payload.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	default:
		return 0, false
	}
}

// Callback handles a dispatched message. A returned error or a panic is
// logged and does not stop delivery to other subscribers.
type Callback func(Context) error

// Subscription identifies one registration for Unregister.
type Subscription struct {
	name string
	id   uint64
}

type subscriber struct {
	id        uint64
	extension string
	callback  Callback
}

// Dispatcher routes named messages to registered callbacks. It is safe for
// concurrent use; callbacks run synchronously on the dispatching goroutine.
type Dispatcher struct {
	mu     sync.RWMutex
	subs   map[string][]subscriber
	nextID atomic.Uint64
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[string][]subscriber)}
}

// Register subscribes callback to name.
func (d *Dispatcher) Register(name string, callback Callback) Subscription {
	return d.register(name, "", callback)
}

// RegisterExtension subscribes callback to name on behalf of the named
// extension. An extension holds at most one subscription per message; a
// repeated registration replaces the callback and keeps the original handle.
func (d *Dispatcher) RegisterExtension(name, extension string, callback Callback) Subscription {
	return d.register(name, extension, callback)
}

func (d *Dispatcher) register(name, extension string, callback Callback) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	if extension != "" {
		for i, s := range d.subs[name] {
			if s.extension == extension {
				d.subs[name][i].callback = callback
				return Subscription{name: name, id: s.id}
			}
		}
	}

	id := d.nextID.Add(1)
	d.subs[name] = append(d.subs[name], subscriber{id: id, extension: extension, callback: callback})
	logging.Debug("messaging: registered subscriber %d for %s (extension=%q)", id, name, extension)
	return Subscription{name: name, id: id}
}

// Unregister removes one subscription. Unknown handles are ignored.
func (d *Dispatcher) Unregister(sub Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(sub.name, func(s subscriber) bool { return s.id == sub.id })
}

// UnregisterExtension removes every subscription held by extension for name.
func (d *Dispatcher) UnregisterExtension(name, extension string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(name, func(s subscriber) bool { return s.extension == extension })
}

func (d *Dispatcher) removeLocked(name string, match func(subscriber) bool) {
	list := d.subs[name]
	kept := list[:0]
	for _, s := range list {
		if !match(s) {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(d.subs, name)
		return
	}
	d.subs[name] = kept
}

// Subscribers returns the number of subscriptions for name.
func (d *Dispatcher) Subscribers(name string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs[name])
}

// Dispatch delivers payload to every subscriber of name in registration
// order and returns how many of them failed.
func (d *Dispatcher) Dispatch(name string, payload interface{}) int {
	d.mu.RLock()
	list := append([]subscriber(nil), d.subs[name]...)
	d.mu.RUnlock()

	if len(list) == 0 {
		logging.Debug("messaging: no subscribers for %s", name)
		metrics.MessagesDispatchedTotal.WithLabelValues(name, "unhandled").Inc()
		return 0
	}

	failed := 0
	for _, s := range list {
		if err := deliver(s, Context{Name: name, Extension: s.extension, Payload: payload}); err != nil {
			failed++
			logging.Error("messaging: subscriber %d for %s failed: %v", s.id, name, err)
			metrics.MessagesDispatchedTotal.WithLabelValues(name, "error").Inc()
			continue
		}
		metrics.MessagesDispatchedTotal.WithLabelValues(name, "success").Inc()
	}
	return failed
}

func deliver(s subscriber, ctx Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.callback(ctx)
}
