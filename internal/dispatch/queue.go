package dispatch

// DefaultCommandQueueCapacity is the source default of 500 (spec.md §4.1).
const DefaultCommandQueueCapacity = 500

// PushOutcome is CommandQueue.Push's result: there are no other failure
// modes than Accepted/Full (spec.md §4.1).
type PushOutcome int

const (
	Accepted PushOutcome = iota
	Full
)

// CommandQueue is the lock-free bounded SPSC ring buffer carrying Command
// values from the agent thread to the host thread. Push is agent-thread
// only; Drain is host-thread only (spec.md §5).
type CommandQueue struct {
	r *ring[Command]
}

// NewCommandQueue constructs a CommandQueue. capacity must be >= 1; the
// source default is DefaultCommandQueueCapacity.
func NewCommandQueue(capacity int) (*CommandQueue, error) {
	r, err := newRing[Command](capacity)
	if err != nil {
		return nil, err
	}
	return &CommandQueue{r: r}, nil
}

// Push enqueues cmd. Callable only from the producer (agent) thread. It
// never blocks and never overwrites: a full queue yields Full and the
// command is not retained anywhere.
func (q *CommandQueue) Push(cmd Command) PushOutcome {
	if q.r.push(cmd) {
		return Accepted
	}
	return Full
}

// Drain pops up to limit commands in FIFO order, invoking f on each.
// Callable only from the consumer (host) thread. Returns the number
// popped.
func (q *CommandQueue) Drain(limit int, f func(Command)) int {
	return q.r.drain(limit, f)
}

// ApproximateSize, IsEmpty, IsFull are best-effort observers safe from
// either thread.
func (q *CommandQueue) ApproximateSize() int { return q.r.approximateSize() }
func (q *CommandQueue) IsEmpty() bool        { return q.r.isEmpty() }
func (q *CommandQueue) IsFull() bool         { return q.r.isFull() }
func (q *CommandQueue) Capacity() int        { return q.r.capacity() }
