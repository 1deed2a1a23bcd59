package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/oriys/dispatchfabric/internal/logging"
	"github.com/oriys/dispatchfabric/internal/observability"
	"go.opentelemetry.io/otel/trace"
)

// HandlerFunc is the signature every registered handler must satisfy
// (spec.md §4.6). It must be safe to call from the host thread only and
// must not block indefinitely; short host-side I/O is permitted.
type HandlerFunc func(payload map[string]Value) HandlerResult

// rateLimitLogEvery is the executor's log-spam policy for rate-limit
// denials: log the first denial and every Nth subsequent one per agent
// (spec.md §4.4).
const rateLimitLogEvery = 100

// Executor is the host-side handler registry, dispatch loop, and policy
// glue — the heart of the dispatch fabric (spec.md §4.6).
//
// The registry is published as an immutable snapshot behind an atomic
// pointer (copy-on-write): register/unregister build a new map under a
// mutex and swap the pointer, so RunOnce never takes a lock on its hot
// path — it captures one snapshot reference at the start of a pass and
// uses it throughout, exactly as spec.md's "Lock discipline" paragraph
// requires.
type Executor struct {
	queue   *CommandQueue
	router  *CallbackRouter
	limiter RateLimiter
	stats   *Statistics
	audit   *AuditLogger

	registryMu sync.Mutex
	registry   atomic.Pointer[map[string]HandlerFunc]

	denialMu     sync.Mutex
	denialCounts map[string]uint64
}

// NewExecutor constructs an Executor wired to the given queue, router,
// and rate limiter. A nil limiter disables rate limiting entirely.
func NewExecutor(queue *CommandQueue, router *CallbackRouter, limiter RateLimiter) *Executor {
	if limiter == nil {
		limiter = NewTokenBucketLimiter(0, 0)
	}
	e := &Executor{
		queue:        queue,
		router:       router,
		limiter:      limiter,
		stats:        NewStatistics(),
		audit:        NewAuditLogger(),
		denialCounts: make(map[string]uint64),
	}
	empty := map[string]HandlerFunc{}
	e.registry.Store(&empty)
	return e
}

// Register installs fn as the handler for cmdType, replacing any prior
// handler for the same type atomically from the dispatch loop's view.
func (e *Executor) Register(cmdType string, fn HandlerFunc) {
	e.registryMu.Lock()
	defer e.registryMu.Unlock()

	cur := *e.registry.Load()
	next := make(map[string]HandlerFunc, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[cmdType] = fn
	e.registry.Store(&next)
}

// Unregister removes the handler for cmdType, if any.
func (e *Executor) Unregister(cmdType string) {
	e.registryMu.Lock()
	defer e.registryMu.Unlock()

	cur := *e.registry.Load()
	if _, ok := cur[cmdType]; !ok {
		return
	}
	next := make(map[string]HandlerFunc, len(cur))
	for k, v := range cur {
		if k != cmdType {
			next[k] = v
		}
	}
	e.registry.Store(&next)
}

// Has reports whether a handler is currently registered for cmdType.
func (e *Executor) Has(cmdType string) bool {
	e.registryMu.Lock()
	defer e.registryMu.Unlock()
	_, ok := (*e.registry.Load())[cmdType]
	return ok
}

// Types returns the currently registered command types.
func (e *Executor) Types() []string {
	e.registryMu.Lock()
	defer e.registryMu.Unlock()
	cur := *e.registry.Load()
	out := make([]string, 0, len(cur))
	for k := range cur {
		out = append(out, k)
	}
	return out
}

// SetRateLimit reconfigures the rate limiter. capacity == refill == 0
// disables limiting.
func (e *Executor) SetRateLimit(capacity, refillPerSecond float64) {
	e.limiter.SetLimits(capacity, refillPerSecond)
}

// SetAudit toggles per-command audit logging.
func (e *Executor) SetAudit(enabled bool) {
	e.stats.SetAuditEnabled(enabled)
}

// Snapshot returns a deep copy of the current statistics.
func (e *Executor) Snapshot() Snapshot {
	return e.stats.GetSnapshot()
}

// AuditLogger exposes the audit sink so the host application can route it
// to a file in addition to the console (see SetOutput).
func (e *Executor) AuditLogger() *AuditLogger {
	return e.audit
}

// RunOnce drains up to budget commands from the CommandQueue and
// dispatches each one through the rate limiter and handler registry,
// producing a CallbackEnvelope for every command that requested one.
// Called from the host thread each tick. Returns the number of commands
// actually dispatched.
func (e *Executor) RunOnce(now int64, budget int) int {
	snapshot := *e.registry.Load() // one snapshot for the whole pass
	executed := 0

	e.queue.Drain(budget, func(cmd Command) {
		e.dispatchOne(cmd, now, snapshot)
		executed++
	})
	return executed
}

func (e *Executor) dispatchOne(cmd Command, now int64, handlers map[string]HandlerFunc) {
	auditOn := e.stats.AuditEnabled()
	e.stats.IncSubmitted(cmd.AgentID)

	reqID := ""
	var span trace.Span
	if auditOn {
		reqID = uuid.New().String()[:8]
		logging.Op().Debug("dispatch received", "request_id", reqID, "agent", cmd.AgentID, "type", cmd.Type, "callback_id", cmd.CallbackID)

		_, span = observability.StartSpan(context.Background(), "nova.dispatch.command",
			observability.AttrDispatchCommandType.String(cmd.Type),
			observability.AttrDispatchAgentID.String(cmd.AgentID),
			observability.AttrDispatchCallbackID.Int64(int64(cmd.CallbackID)),
		)
		defer span.End()
	}

	handler, ok := handlers[cmd.Type]
	if !ok {
		e.stats.IncUnhandled(cmd.AgentID)
		e.finish(cmd, Outcome{Kind: OutcomeDropped, Reason: DropNoHandler}, auditOn, reqID, span)
		return
	}

	if e.limiter.TryConsume(cmd.AgentID, now) == Denied {
		e.stats.IncRateLimited(cmd.AgentID)
		e.logRateLimitDenial(cmd.AgentID)
		e.finish(cmd, Outcome{Kind: OutcomeDropped, Reason: DropRateLimited}, auditOn, reqID, span)
		return
	}

	result, panicked := e.invoke(handler, cmd.Payload)

	if panicked {
		e.stats.IncFailed(cmd.AgentID, cmd.Type)
		e.finish(cmd, Outcome{Kind: OutcomeDropped, Reason: DropPanic, Message: "handler panicked"}, auditOn, reqID, span)
		return
	}

	switch result.Kind {
	case ResultSuccess:
		e.stats.IncExecuted(cmd.AgentID, cmd.Type)
		e.finish(cmd, Outcome{Kind: OutcomeSuccess, Data: result.Data}, auditOn, reqID, span)
	case ResultError:
		e.stats.IncFailed(cmd.AgentID, cmd.Type)
		e.finish(cmd, Outcome{Kind: OutcomeError, Message: result.Message}, auditOn, reqID, span)
	}
}

// invoke calls handler, recovering any panic so a faulty handler can
// never crash the host thread. The panicked return lets dispatchOne tell
// a recovered panic apart from a handler-returned Error unambiguously,
// even if the handler's error message happens to collide with anything
// invoke itself might have used as a sentinel. This mirrors the safeGo
// recover()/log idiom used elsewhere in this codebase for fire-and-forget
// background work.
func (e *Executor) invoke(handler HandlerFunc, payload map[string]Value) (result HandlerResult, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Op().Error("recovered panic in dispatch handler", "panic", r)
			panicked = true
		}
	}()
	return handler(payload), false
}

func (e *Executor) finish(cmd Command, outcome Outcome, auditOn bool, reqID string, span trace.Span) {
	if cmd.CallbackID != 0 {
		env := CallbackEnvelope{CallbackID: cmd.CallbackID, Outcome: outcome}
		if e.router.Push(env) == Full {
			logging.Op().Warn("callback router full, dropping envelope", "agent", cmd.AgentID, "type", cmd.Type, "callback_id", cmd.CallbackID)
			e.stats.IncFailed(cmd.AgentID, cmd.Type)
		}
	}

	if auditOn {
		if outcome.Kind == OutcomeSuccess {
			observability.SetSpanOK(span)
		} else {
			span.SetAttributes(observability.AttrDispatchOutcome.String(outcomeLabel(outcome)))
		}
		e.audit.Log(AuditEntry{
			AgentID:    cmd.AgentID,
			Type:       cmd.Type,
			CallbackID: cmd.CallbackID,
			Outcome:    outcomeLabel(outcome),
			Error:      outcome.Message,
		})
		logging.Op().Debug("dispatch completed", "request_id", reqID, "agent", cmd.AgentID, "type", cmd.Type, "outcome", outcomeLabel(outcome))
	}
}

func outcomeLabel(o Outcome) string {
	switch o.Kind {
	case OutcomeSuccess:
		return "success"
	case OutcomeError:
		return "error"
	case OutcomeDropped:
		return "dropped:" + o.Reason.String()
	default:
		return "unknown"
	}
}

// logRateLimitDenial implements spec.md §4.4's log-spam policy: log the
// first denial and every 100th subsequent denial for a given agent.
func (e *Executor) logRateLimitDenial(agentID string) {
	e.denialMu.Lock()
	e.denialCounts[agentID]++
	n := e.denialCounts[agentID]
	e.denialMu.Unlock()

	if n == 1 || n%rateLimitLogEvery == 0 {
		logging.Op().Warn("agent rate limited", "agent", agentID, "denials", n)
	}
}

// ShutdownSummary emits one summary log with totals, per spec.md §4.5.
func (e *Executor) ShutdownSummary() {
	snap := e.stats.GetSnapshot()
	var submitted, executed, failed, rateLimited, unhandled uint64
	for _, a := range snap.Agents {
		submitted += a.Submitted
		executed += a.Executed
		failed += a.Failed
		rateLimited += a.RateLimited
		unhandled += a.Unhandled
	}
	logging.Op().Info("dispatch executor shutdown",
		"submitted", submitted, "executed", executed, "failed", failed,
		"rate_limited", rateLimited, "unhandled", unhandled, "agents", len(snap.Agents))
}
