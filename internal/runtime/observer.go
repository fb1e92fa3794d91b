package runtime

import (
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/google/uuid"
)

// Observer is notified of every state change and every reported error.
// Evaluate returns true once the observer is satisfied and should be removed;
// persistent observers ignore it.
type Observer interface {
	Evaluate(result domain.Result) bool
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(result domain.Result) bool

// Evaluate calls f.
func (f ObserverFunc) Evaluate(result domain.Result) bool { return f(result) }

type observerEntry struct {
	observer   Observer
	filter     uuid.UUID
	persistent bool
	removed    bool
}

// accepts reports whether the result concerns the experience instance the
// entry is filtered on. Results without an experience always pass.
func (e *observerEntry) accepts(r domain.Result) bool {
	if e.filter == uuid.Nil {
		return true
	}
	exp := r.Experience()
	return exp == nil || exp.InstanceID == e.filter
}

// AddObserver registers a persistent observer. It stays registered until the
// returned func is called or the machine returns to idling, whichever comes first.
func (m *Machine) AddObserver(o Observer) (remove func()) {
	entry := m.register(o, uuid.Nil, true)
	return func() { m.unregister(entry) }
}

// TransitionAndObserve registers fn as a transient observer and attempts the
// transition. An illegal action is reported to fn as a no-transition failure.
// A filter other than uuid.Nil restricts delivery to results about that experience instance.
func (m *Machine) TransitionAndObserve(action domain.MachineAction, filter uuid.UUID, fn ObserverFunc) {
	entry := m.register(fn, filter, false)

	t, ok := m.route(action)
	if !ok {
		if !entry.removed && fn(domain.Failure(domain.NoTransitionError(m.state))) {
			m.unregister(entry)
		}
		return
	}
	if err := m.apply(action, t); err != nil {
		m.logger.Warn("continuation rejected", "action", action.String(), "err", err)
	}
}

// ObserverCount returns the number of registered observers.
func (m *Machine) ObserverCount() int {
	return len(m.observers)
}

func (m *Machine) register(o Observer, filter uuid.UUID, persistent bool) *observerEntry {
	entry := &observerEntry{observer: o, filter: filter, persistent: persistent}
	m.observers = append(m.observers, entry)
	return entry
}

func (m *Machine) unregister(entry *observerEntry) {
	if entry.removed {
		return
	}
	entry.removed = true
	kept := m.observers[:0]
	for _, e := range m.observers {
		if e != entry {
			kept = append(kept, e)
		}
	}
	m.observers = kept
}

// notify delivers r to every observer in registration order. Observers may
// trigger transitions from inside Evaluate, so delivery works on a snapshot
// and skips entries removed along the way.
func (m *Machine) notify(r domain.Result) {
	snapshot := make([]*observerEntry, len(m.observers))
	copy(snapshot, m.observers)

	for _, entry := range snapshot {
		if entry.removed || !entry.accepts(r) {
			continue
		}
		if satisfied := entry.observer.Evaluate(r); satisfied && !entry.persistent {
			m.unregister(entry)
		}
	}
}

func (m *Machine) clearPersistent() {
	for _, entry := range append([]*observerEntry(nil), m.observers...) {
		if entry.persistent {
			m.unregister(entry)
		}
	}
}
