package dispatch

import "errors"

// Error taxonomy (spec.md §7). These are sentinels; callers match with
// errors.Is. None of them are fatal to the process.
var (
	// ErrQueueFull is returned synchronously from submit when CommandQueue
	// is at capacity. Any callback allocated for the rejected command is
	// revoked before this error reaches the caller.
	ErrQueueFull = errors.New("dispatch: command queue is full")

	// ErrValidation covers AgentFacade argument/schema validation failures.
	// Returned synchronously; no state change occurs on the host side.
	ErrValidation = errors.New("dispatch: validation failed")

	// ErrNotRunning names the shut-down condition for an
	// Executor/ScriptBridge. No operation in this package returns it:
	// Submit, RunOnce and Drain keep working after ScriptBridge.Shutdown.
	ErrNotRunning = errors.New("dispatch: shut down")

	// ErrCapacity is a construction-time error: capacity < 1 for either
	// ring buffer, per spec.md §9's resolution of that open question.
	ErrCapacity = errors.New("dispatch: capacity must be >= 1")
)
