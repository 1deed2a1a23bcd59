package dispatch

// PendingCallbacks is the agent-thread-side table mapping callback IDs to
// stored script closures awaiting delivery. Per spec.md §4.3 it is
// accessed only from the agent thread, so no internal locking is used —
// a second caller thread would be a programming error, not a race this
// type defends against.
//
// It is generic over the stored closure type so ScriptBridge can store
// whatever representation of "a script closure" its host embedding uses
// without this package knowing about script-runtime types.
type PendingCallbacks[T any] struct {
	next    uint64
	entries map[uint64]T
}

// NewPendingCallbacks constructs an empty table.
func NewPendingCallbacks[T any]() *PendingCallbacks[T] {
	return &PendingCallbacks[T]{entries: make(map[uint64]T)}
}

// AllocateID returns a fresh non-zero id. IDs increase monotonically and
// skip 0, the "no callback" sentinel. Unsigned 64-bit wraparound is
// treated as unreachable in practice (spec.md §4.3).
func (p *PendingCallbacks[T]) AllocateID() uint64 {
	p.next++
	if p.next == 0 {
		p.next = 1
	}
	return p.next
}

// Store records closure under id. Called at submit time when a callback
// was supplied.
func (p *PendingCallbacks[T]) Store(id uint64, closure T) {
	p.entries[id] = closure
}

// Take removes and returns the closure for id, if present. Called at
// drain time to deliver exactly one envelope per id (one-shot).
func (p *PendingCallbacks[T]) Take(id uint64) (T, bool) {
	c, ok := p.entries[id]
	if ok {
		delete(p.entries, id)
	}
	return c, ok
}

// Discard removes the entry for id without returning it, used when a
// submit is rejected after a callback was already allocated and stored
// (spec.md §4.1: "the stored callback is revoked").
func (p *PendingCallbacks[T]) Discard(id uint64) {
	delete(p.entries, id)
}

// Len reports the number of callbacks currently awaiting delivery.
func (p *PendingCallbacks[T]) Len() int {
	return len(p.entries)
}

// Shutdown drops all surviving closures, invoking notify for each first
// so ScriptBridge can tell them apart as Dropped(shutdown) before they
// are discarded. The table is empty after Shutdown returns.
func (p *PendingCallbacks[T]) Shutdown(notify func(id uint64, closure T)) {
	for id, c := range p.entries {
		if notify != nil {
			notify(id, c)
		}
		delete(p.entries, id)
	}
}
