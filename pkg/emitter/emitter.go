// Package emitter provides an ordered, synchronous publish/subscribe dispatcher
// keyed by a fixed set of event kinds.
//
// Registrations live in one flat list. Emitting walks the list in registration
// order and calls every handler registered for the emitted kind. Handler counts
// are expected to be small, so the flat list keeps ordering and removal trivial.
package emitter

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Handler receives the payload of an emitted event.
type Handler[P any] func(P)

// Registration identifies one (kind, handler) pair. The zero value means the
// registration was rejected.
type Registration uint64

// PanicError reports a handler that panicked during Emit.
type PanicError struct {
	Kind         any
	Registration Registration
	Value        any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler %d for %v panicked: %v", e.Registration, e.Kind, e.Value)
}

type entry[K comparable, P any] struct {
	id      Registration
	kind    K
	handler Handler[P]
}

type Dispatcher[K comparable, P any] struct {
	mu      sync.Mutex
	entries []entry[K, P] // replaced, never mutated in place
	nextID  Registration
	valid   func(K) bool
	log     *zap.Logger
}

// New creates a dispatcher. valid reports whether a kind may be registered;
// nil accepts every non-zero kind.
func New[K comparable, P any](valid func(K) bool, log *zap.Logger) *Dispatcher[K, P] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher[K, P]{valid: valid, log: log}
}

func (d *Dispatcher[K, P]) acceptable(kind K) bool {
	var zero K
	if kind == zero {
		return false
	}
	return d.valid == nil || d.valid(kind)
}

// Register appends handler to the ordered list for kind. An invalid kind or a
// nil handler is ignored and the zero Registration is returned.
func (d *Dispatcher[K, P]) Register(kind K, handler Handler[P]) Registration {
	if handler == nil || !d.acceptable(kind) {
		return 0
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	next := make([]entry[K, P], len(d.entries), len(d.entries)+1)
	copy(next, d.entries)
	d.entries = append(next, entry[K, P]{id: d.nextID, kind: kind, handler: handler})
	return d.nextID
}

// Unregister removes the first registration matching kind and reg. It is a
// no-op when nothing matches.
func (d *Dispatcher[K, P]) Unregister(kind K, reg Registration) {
	if reg == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i, e := range d.entries {
		if e.kind == kind && e.id == reg {
			next := make([]entry[K, P], 0, len(d.entries)-1)
			next = append(next, d.entries[:i]...)
			d.entries = append(next, d.entries[i+1:]...)
			return
		}
	}
}

// Emit calls every handler registered for kind, in registration order, on the
// calling goroutine. A panicking handler does not stop later handlers; the
// recovered panics are returned together.
func (d *Dispatcher[K, P]) Emit(kind K, payload P) error {
	d.mu.Lock()
	snapshot := d.entries
	d.mu.Unlock()

	var errs error
	for _, e := range snapshot {
		if e.kind != kind {
			continue
		}
		if err := d.call(e, payload); err != nil {
			d.log.Warn("handler panicked",
				zap.Any("kind", kind),
				zap.Uint64("registration", uint64(e.id)),
				zap.Error(err),
			)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (d *Dispatcher[K, P]) call(e entry[K, P], payload P) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Kind: e.kind, Registration: e.id, Value: r}
		}
	}()
	e.handler(payload)
	return nil
}

// Clear removes every registration.
func (d *Dispatcher[K, P]) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = nil
}

// Count returns the number of handlers registered for kind.
func (d *Dispatcher[K, P]) Count(kind K) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, e := range d.entries {
		if e.kind == kind {
			n++
		}
	}
	return n
}
