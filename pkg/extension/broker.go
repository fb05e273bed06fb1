package extension

import (
	"slices"
	"sync"
)

// listener pairs a registration name with its callback.
type listener[F any] struct {
	name string
	fn   F
}

// listenerList is an ordered set of named listeners; adding a name that is already present
// replaces the earlier entry.
type listenerList[F any] struct {
	sync.RWMutex
	entries []listener[F]
}

func (ll *listenerList[F]) add(name string, fn F) {
	ll.Lock()
	defer ll.Unlock()

	ll.entries = slices.DeleteFunc(ll.entries, func(l listener[F]) bool { return l.name == name })
	ll.entries = append(ll.entries, listener[F]{name: name, fn: fn})
}

func (ll *listenerList[F]) remove(name string) {
	ll.Lock()
	defer ll.Unlock()

	ll.entries = slices.DeleteFunc(ll.entries, func(l listener[F]) bool { return l.name == name })
}

// Names returns the registered listener names in call order.
func (ll *listenerList[F]) Names() []string {
	ll.RLock()
	defer ll.RUnlock()

	names := make([]string, len(ll.entries))
	for i, l := range ll.entries {
		names[i] = l.name
	}
	return names
}

// EventBroker calls its listeners synchronously, in order, until one returns a non-nil
// result.
type EventBroker[E any, R any] struct {
	listenerList[func(E) *R]
}

// Emit sends a copy of event to each listener until one responds. A nil result means no
// listener had an opinion.
func (eb *EventBroker[E, R]) Emit(event *E) *R {
	eb.RLock()
	defer eb.RUnlock()

	for _, l := range eb.entries {
		if result := l.fn(*event); result != nil {
			return result
		}
	}
	return nil
}

// AddListener registers the named listener, replacing one with a duplicate name. Listeners
// should be added most significant first.
func (eb *EventBroker[E, R]) AddListener(name string, fn func(E) *R) {
	eb.add(name, fn)
}

// RemoveListener unregisters the named listener.
func (eb *EventBroker[E, R]) RemoveListener(name string) {
	eb.remove(name)
}
