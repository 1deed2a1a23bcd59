package dispatch

import (
	"fmt"
	"time"

	"github.com/oriys/dispatchfabric/internal/logging"
)

// Closure is an opaque handle to a script-side closure. ScriptBridge never
// interprets it; it only stores it in PendingCallbacks and later hands it
// back to Runtime.Invoke. A concrete embedding (e.g. a V8 or goja host)
// defines what this actually is.
type Closure any

// Runtime is the minimal interface ScriptBridge needs from the script
// engine it sits next to (spec.md §6). Nothing else about the script
// runtime — its isolate, handles, or event loop — leaks into the core.
//
// The caller is responsible for having entered whatever locking/scope the
// script engine requires before calling ScriptBridge.Drain; the core has
// no notion of that scope and does not acquire it itself.
type Runtime interface {
	// ToPayload deep-copies a script-native value tree into the erased
	// payload shape (spec.md §3): nil, bool, int64, float64, string,
	// []Value, or map[string]Value. No script references may survive in
	// the result.
	ToPayload(value any) (map[string]Value, error)
	// ToScriptValue converts a delivered Outcome into a script-native
	// value to pass to the stored closure.
	ToScriptValue(outcome Outcome) any
	// Invoke calls closure with value. Any script-side fault the runtime
	// can detect should be returned as an error; ScriptBridge additionally
	// wraps this call in its own panic recovery as a last resort.
	Invoke(closure Closure, value any) error
}

// ScriptBridge is the anti-corruption boundary between the script runtime
// and the host-side dispatch fabric (spec.md §4.7). Submit and Drain are
// agent-thread only.
type ScriptBridge struct {
	queue   *CommandQueue
	router  *CallbackRouter
	pending *PendingCallbacks[Closure]
	runtime Runtime
	now     func() int64
}

// NewScriptBridge constructs a bridge over queue/router using runtime for
// script value conversion. now defaults to time.Now().UnixNano() when nil.
func NewScriptBridge(queue *CommandQueue, router *CallbackRouter, runtime Runtime, now func() int64) *ScriptBridge {
	if now == nil {
		now = func() int64 { return time.Now().UnixNano() }
	}
	return &ScriptBridge{
		queue:   queue,
		router:  router,
		pending: NewPendingCallbacks[Closure](),
		runtime: runtime,
		now:     now,
	}
}

// Submit converts payload to the erased shape, optionally allocates and
// stores a callback, and pushes the resulting Command onto the
// CommandQueue. On ErrQueueFull or a validation failure, any allocated
// callback is revoked before the error is returned — no side effect
// survives a rejected submit (spec.md §4.1, §4.7).
func (b *ScriptBridge) Submit(cmdType string, payload any, agentID string, closure Closure) error {
	erased, err := b.runtime.ToPayload(payload)
	if err != nil {
		return fmt.Errorf("%w: convert payload: %v", ErrValidation, err)
	}

	var callbackID uint64
	if closure != nil {
		callbackID = b.pending.AllocateID()
		b.pending.Store(callbackID, closure)
	}

	cmd := Command{
		Type:        cmdType,
		Payload:     erased,
		AgentID:     agentID,
		SubmittedAt: b.now(),
		CallbackID:  callbackID,
	}

	if err := cmd.Validate(); err != nil {
		if callbackID != 0 {
			b.pending.Discard(callbackID)
		}
		return err
	}

	if b.queue.Push(cmd) == Full {
		if callbackID != 0 {
			b.pending.Discard(callbackID)
		}
		return fmt.Errorf("%w: agent %q type %q", ErrQueueFull, agentID, cmdType)
	}
	return nil
}

// Drain pops up to limit envelopes from the CallbackRouter and invokes
// the matching stored closure for each, converting the outcome to a
// script-native value first (spec.md §4.7). Returns the number of
// envelopes processed. Must be called once per agent tick, with the
// script engine's scope already entered by the caller.
func (b *ScriptBridge) Drain(limit int) int {
	processed := 0
	b.router.Drain(limit, func(env CallbackEnvelope) {
		processed++
		closure, ok := b.pending.Take(env.CallbackID)
		if !ok {
			// Expected after hot-reload: the closure's owner is gone.
			logging.Op().Debug("no pending callback for envelope", "callback_id", env.CallbackID)
			return
		}
		b.invokeClosure(closure, env.Outcome)
	})
	return processed
}

// invokeClosure calls the closure within a fault-isolation boundary: any
// fault is logged and swallowed so it cannot abort the drain loop.
func (b *ScriptBridge) invokeClosure(closure Closure, outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logging.Op().Error("recovered panic invoking script closure", "panic", r)
		}
	}()
	value := b.runtime.ToScriptValue(outcome)
	if err := b.runtime.Invoke(closure, value); err != nil {
		logging.Op().Error("script closure invocation failed", "error", err)
	}
}

// Shutdown notifies every surviving pending callback as Dropped(shutdown)
// and drops them (spec.md §3's lifecycle, §7's ShutdownLoss).
func (b *ScriptBridge) Shutdown() {
	b.pending.Shutdown(func(id uint64, closure Closure) {
		b.invokeClosure(closure, Outcome{Kind: OutcomeDropped, Reason: DropShutdown})
	})
}

// PendingCount reports how many callbacks are currently awaiting
// delivery, for tests and observability.
func (b *ScriptBridge) PendingCount() int {
	return b.pending.Len()
}

// DefaultOutcomeToScriptValue is a reference Runtime.ToScriptValue
// implementation following spec.md §4.7's mapping: Success(data) becomes
// a mapping with a truthy success field and the original data; Error or
// Dropped becomes a mapping with success=false and an error string.
// Runtime implementations that target a real script engine will usually
// call this and then convert the resulting map[string]Value into their
// engine's native object type.
func DefaultOutcomeToScriptValue(outcome Outcome) map[string]Value {
	switch outcome.Kind {
	case OutcomeSuccess:
		out := make(map[string]Value, len(outcome.Data)+1)
		for k, v := range outcome.Data {
			out[k] = v
		}
		out["success"] = true
		return out
	case OutcomeError:
		return map[string]Value{"success": false, "error": outcome.Message}
	default: // OutcomeDropped
		msg := outcome.Message
		if msg == "" {
			msg = outcome.Reason.String()
		}
		return map[string]Value{"success": false, "error": msg}
	}
}
