package extension

import (
	"errors"
	"sync"
	"time"
)

// AsyncEventBroker sends events to all of its listeners in parallel; no result is returned.
type AsyncEventBroker[E any] struct {
	listenerList[func(E)]
	pending sync.WaitGroup
}

// Emit starts each listener on its own goroutine with a copy of event.
func (eb *AsyncEventBroker[E]) Emit(event *E) {
	eb.RLock()
	defer eb.RUnlock()

	for _, l := range eb.entries {
		eb.pending.Add(1)
		go func(fn func(E), ev E) {
			defer eb.pending.Done()
			fn(ev)
		}(l.fn, *event)
	}
}

// Wait blocks until every listener started by Emit has returned. Short lived processes call
// this before exiting so after-events are not lost.
func (eb *AsyncEventBroker[E]) Wait() {
	eb.pending.Wait()
}

// AddListener registers the named listener, replacing one with a duplicate name.
func (eb *AsyncEventBroker[E]) AddListener(name string, fn func(E)) {
	eb.add(name, fn)
}

// RemoveListener unregisters the named listener.
func (eb *AsyncEventBroker[E]) RemoveListener(name string) {
	eb.remove(name)
}

// AsyncTestListener registers a listener that captures up to capacity events, returning a
// func that waits for the next one or times out.
func (eb *AsyncEventBroker[E]) AsyncTestListener(name string, capacity int) func() (*E, error) {
	events := make(chan E, capacity)
	eb.AddListener(name, func(ev E) {
		events <- ev
	})

	count := 0
	return func() (*E, error) {
		count++
		defer func() {
			if count >= capacity {
				eb.RemoveListener(name)
			}
		}()

		select {
		case ev := <-events:
			return &ev, nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("timeout waiting for event")
		}
	}
}
