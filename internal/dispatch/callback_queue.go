package dispatch

// DefaultCallbackQueueCapacity is the source default of 500 (spec.md §4.2).
const DefaultCallbackQueueCapacity = 500

// CallbackRouter is the mirror image of CommandQueue: a lock-free bounded
// SPSC ring buffer carrying CallbackEnvelope values from the host thread
// to the agent thread. Push is host-thread only; Drain is agent-thread
// only (spec.md §5).
//
// Overflow on Push is catastrophic for the associated callback — the
// agent will never be notified — so the Executor must treat a Full
// result as a failed-delivery condition: log it, count it, and release
// the PendingCallbacks entry so it doesn't leak (spec.md §4.2).
type CallbackRouter struct {
	r *ring[CallbackEnvelope]
}

// NewCallbackRouter constructs a CallbackRouter. capacity must be >= 1;
// the source default is DefaultCallbackQueueCapacity.
func NewCallbackRouter(capacity int) (*CallbackRouter, error) {
	r, err := newRing[CallbackEnvelope](capacity)
	if err != nil {
		return nil, err
	}
	return &CallbackRouter{r: r}, nil
}

// Push enqueues env. Callable only from the producer (host) thread.
func (q *CallbackRouter) Push(env CallbackEnvelope) PushOutcome {
	if q.r.push(env) {
		return Accepted
	}
	return Full
}

// Drain pops up to limit envelopes in FIFO order, invoking f on each.
// Callable only from the consumer (agent) thread.
func (q *CallbackRouter) Drain(limit int, f func(CallbackEnvelope)) int {
	return q.r.drain(limit, f)
}

func (q *CallbackRouter) ApproximateSize() int { return q.r.approximateSize() }
func (q *CallbackRouter) IsEmpty() bool        { return q.r.isEmpty() }
func (q *CallbackRouter) IsFull() bool         { return q.r.isFull() }
func (q *CallbackRouter) Capacity() int        { return q.r.capacity() }
