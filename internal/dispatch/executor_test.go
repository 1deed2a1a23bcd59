package dispatch

import (
	"fmt"
	"testing"
)

func newTestExecutor(t *testing.T, queueCap int) (*Executor, *CommandQueue, *CallbackRouter) {
	t.Helper()
	q, err := NewCommandQueue(queueCap)
	if err != nil {
		t.Fatalf("NewCommandQueue: %v", err)
	}
	r, err := NewCallbackRouter(queueCap)
	if err != nil {
		t.Fatalf("NewCallbackRouter: %v", err)
	}
	return NewExecutor(q, r, nil), q, r
}

func drainOneEnvelope(t *testing.T, r *CallbackRouter) CallbackEnvelope {
	t.Helper()
	var env CallbackEnvelope
	var found bool
	r.Drain(1, func(e CallbackEnvelope) { env, found = e, true })
	if !found {
		t.Fatal("expected one callback envelope, found none")
	}
	return env
}

// TestHappyPath mirrors spec scenario 1: a registered handler echoes its
// payload back and the resulting envelope carries success=true.
func TestHappyPath(t *testing.T) {
	e, q, r := newTestExecutor(t, 8)
	e.Register("echo", func(payload map[string]Value) HandlerResult {
		return Success(map[string]Value{"reply": payload["msg"]})
	})

	q.Push(Command{Type: "echo", Payload: map[string]Value{"msg": "hi"}, AgentID: "A", CallbackID: 1})
	if n := e.RunOnce(0, 10); n != 1 {
		t.Fatalf("RunOnce executed %d commands, want 1", n)
	}

	env := drainOneEnvelope(t, r)
	if env.Outcome.Kind != OutcomeSuccess || env.Outcome.Data["reply"] != "hi" {
		t.Fatalf("outcome = %+v, want Success{reply: hi}", env.Outcome)
	}

	snap := e.Snapshot()
	if snap.Agents["A"].Submitted != 1 || snap.Agents["A"].Executed != 1 {
		t.Fatalf("counters = %+v, want submitted=1 executed=1", snap.Agents["A"])
	}
}

// TestUnknownCommand mirrors spec scenario 2.
func TestUnknownCommand(t *testing.T) {
	e, q, r := newTestExecutor(t, 8)

	q.Push(Command{Type: "nope", AgentID: "A", CallbackID: 1})
	e.RunOnce(0, 10)

	env := drainOneEnvelope(t, r)
	if env.Outcome.Kind != OutcomeDropped || env.Outcome.Reason != DropNoHandler {
		t.Fatalf("outcome = %+v, want Dropped(no_handler)", env.Outcome)
	}

	snap := e.Snapshot()
	if snap.Agents["A"].Unhandled != 1 {
		t.Fatalf("unhandled[A] = %d, want 1", snap.Agents["A"].Unhandled)
	}
	if snap.Agents["A"].Executed != 0 {
		t.Fatalf("executed[A] = %d, want 0", snap.Agents["A"].Executed)
	}
}

// TestRateLimit mirrors spec scenario 3.
func TestRateLimit(t *testing.T) {
	e, q, r := newTestExecutor(t, 8)
	e.Register("echo", func(payload map[string]Value) HandlerResult {
		return Success(nil)
	})
	e.SetRateLimit(2, 2)

	for i := 0; i < 5; i++ {
		q.Push(Command{Type: "echo", AgentID: "A", CallbackID: uint64(i + 1)})
	}
	if n := e.RunOnce(0, 10); n != 5 {
		t.Fatalf("RunOnce executed %d, want 5", n)
	}

	var successes, denials int
	r.Drain(10, func(env CallbackEnvelope) {
		switch {
		case env.Outcome.Kind == OutcomeSuccess:
			successes++
		case env.Outcome.Kind == OutcomeDropped && env.Outcome.Reason == DropRateLimited:
			denials++
		}
	})
	if successes != 2 || denials != 3 {
		t.Fatalf("successes=%d denials=%d, want 2 and 3", successes, denials)
	}

	snap := e.Snapshot()
	if snap.Agents["A"].RateLimited != 3 {
		t.Fatalf("rate_limited[A] = %d, want 3", snap.Agents["A"].RateLimited)
	}
}

// TestHandlerFault mirrors spec scenario 4: a panicking handler must not
// crash the host and must still produce a delivered error envelope.
func TestHandlerFault(t *testing.T) {
	e, q, r := newTestExecutor(t, 8)
	e.Register("boom", func(payload map[string]Value) HandlerResult {
		panic("kaboom")
	})

	q.Push(Command{Type: "boom", AgentID: "A", CallbackID: 1})
	e.RunOnce(0, 10)

	env := drainOneEnvelope(t, r)
	if env.Outcome.Kind != OutcomeDropped || env.Outcome.Reason != DropPanic {
		t.Fatalf("outcome = %+v, want Dropped(panic)", env.Outcome)
	}

	snap := e.Snapshot()
	if snap.Agents["A"].Failed != 1 {
		t.Fatalf("failed[A] = %d, want 1", snap.Agents["A"].Failed)
	}

	// Subsequent commands still dispatch; the host process did not abort.
	q.Push(Command{Type: "boom", AgentID: "A", CallbackID: 2})
	if n := e.RunOnce(0, 10); n != 1 {
		t.Fatalf("second RunOnce executed %d, want 1 (host must keep running)", n)
	}
}

// TestHandlerFaultIsolationOnlyAffectsFailedAndSubmitted mirrors the
// fault-isolation testable property: repeated panics must not grow any
// counter besides failed/submitted.
func TestHandlerFaultIsolationOnlyAffectsFailedAndSubmitted(t *testing.T) {
	e, q, _ := newTestExecutor(t, 100)
	e.Register("boom", func(payload map[string]Value) HandlerResult {
		panic("kaboom")
	})

	for i := 0; i < 50; i++ {
		q.Push(Command{Type: "boom", AgentID: "A"})
	}
	e.RunOnce(0, 100)

	snap := e.Snapshot()
	a := snap.Agents["A"]
	if a.Submitted != 50 || a.Failed != 50 {
		t.Fatalf("submitted=%d failed=%d, want 50 and 50", a.Submitted, a.Failed)
	}
	if a.Executed != 0 || a.RateLimited != 0 || a.Unhandled != 0 {
		t.Fatalf("unexpected growth in other counters: %+v", a)
	}
}

// TestQueueFull mirrors spec scenario 5.
func TestQueueFull(t *testing.T) {
	q, err := NewCommandQueue(1)
	if err != nil {
		t.Fatalf("NewCommandQueue: %v", err)
	}
	if q.Push(Command{Type: "t", AgentID: "A", CallbackID: 1}) != Accepted {
		t.Fatal("first push should be accepted")
	}
	if q.Push(Command{Type: "t", AgentID: "A", CallbackID: 2}) != Full {
		t.Fatal("second push before any drain should be Full")
	}
}

// TestHotReplace mirrors spec scenario 6: a command dispatched in a pass
// run before the replace gets the old handler's result, and a command
// dispatched in a pass run after it gets the new handler's.
func TestHotReplace(t *testing.T) {
	e, q, r := newTestExecutor(t, 8)
	e.Register("get", func(payload map[string]Value) HandlerResult {
		return Success(map[string]Value{"v": "v1"})
	})

	q.Push(Command{Type: "get", AgentID: "A", CallbackID: 1})
	e.RunOnce(0, 10)
	envA := drainOneEnvelope(t, r)
	if envA.Outcome.Data["v"] != "v1" {
		t.Fatalf("A's result = %v, want v1", envA.Outcome.Data["v"])
	}

	e.Register("get", func(payload map[string]Value) HandlerResult {
		return Success(map[string]Value{"v": "v2"})
	})

	q.Push(Command{Type: "get", AgentID: "B", CallbackID: 2})
	e.RunOnce(0, 10)
	envB := drainOneEnvelope(t, r)
	if envB.Outcome.Data["v"] != "v2" {
		t.Fatalf("B's result = %v, want v2", envB.Outcome.Data["v"])
	}
}

// TestRegisterIdempotence checks register(T, h1); register(T, h2) always
// dispatches to h2 afterward.
func TestRegisterIdempotence(t *testing.T) {
	e, q, r := newTestExecutor(t, 8)
	e.Register("t", func(map[string]Value) HandlerResult { return Success(map[string]Value{"v": 1}) })
	e.Register("t", func(map[string]Value) HandlerResult { return Success(map[string]Value{"v": 2}) })

	q.Push(Command{Type: "t", AgentID: "A", CallbackID: 1})
	e.RunOnce(0, 10)
	env := drainOneEnvelope(t, r)
	if env.Outcome.Data["v"] != 2 {
		t.Fatalf("result = %v, want 2 (latest registration wins)", env.Outcome.Data["v"])
	}
}

// TestCallbackIDZeroProducesNoEnvelope covers the callback_id=0 boundary
// behavior: the handler still runs, but nothing is enqueued or pending.
func TestCallbackIDZeroProducesNoEnvelope(t *testing.T) {
	ran := false
	e, q, r := newTestExecutor(t, 8)
	e.Register("t", func(map[string]Value) HandlerResult {
		ran = true
		return Success(nil)
	})

	q.Push(Command{Type: "t", AgentID: "A", CallbackID: 0})
	e.RunOnce(0, 10)

	if !ran {
		t.Fatal("handler should still run when callback_id is 0")
	}
	if !r.IsEmpty() {
		t.Fatal("no envelope should be enqueued when callback_id is 0")
	}
}

// TestNoLostAccounting checks the accounting identity from the testable
// properties section across a mixed batch of outcomes.
func TestNoLostAccounting(t *testing.T) {
	e, q, _ := newTestExecutor(t, 200)
	e.Register("ok", func(map[string]Value) HandlerResult { return Success(nil) })
	e.Register("err", func(map[string]Value) HandlerResult { return Error("nope") })
	e.Register("boom", func(map[string]Value) HandlerResult { panic("x") })

	for i := 0; i < 10; i++ {
		q.Push(Command{Type: "ok", AgentID: "A"})
	}
	for i := 0; i < 5; i++ {
		q.Push(Command{Type: "err", AgentID: "A"})
	}
	for i := 0; i < 3; i++ {
		q.Push(Command{Type: "boom", AgentID: "A"})
	}
	for i := 0; i < 2; i++ {
		q.Push(Command{Type: "missing", AgentID: "A"})
	}

	e.RunOnce(0, 100)

	snap := e.Snapshot()
	a := snap.Agents["A"]
	total := a.Executed + a.Failed + a.RateLimited + a.Unhandled
	if total != a.Submitted {
		t.Fatalf("executed(%d)+failed(%d)+rate_limited(%d)+unhandled(%d) = %d, want submitted = %d",
			a.Executed, a.Failed, a.RateLimited, a.Unhandled, total, a.Submitted)
	}
	if a.Executed != 10 || a.Failed != 8 || a.Unhandled != 2 {
		t.Fatalf("counters = %+v, want executed=10 failed=8 unhandled=2", a)
	}
}

func TestRegisterUnregisterHasTypes(t *testing.T) {
	e, _, _ := newTestExecutor(t, 1)
	if e.Has("t") {
		t.Fatal("Has should be false before registration")
	}
	e.Register("t", func(map[string]Value) HandlerResult { return Success(nil) })
	if !e.Has("t") {
		t.Fatal("Has should be true after registration")
	}
	if len(e.Types()) != 1 || e.Types()[0] != "t" {
		t.Fatalf("Types() = %v, want [t]", e.Types())
	}
	e.Unregister("t")
	if e.Has("t") {
		t.Fatal("Has should be false after Unregister")
	}
	e.Unregister("absent") // no-op, must not panic
}

func TestCallbackRouterFullIsCountedFailed(t *testing.T) {
	q, _ := NewCommandQueue(8)
	r, _ := NewCallbackRouter(1) // capacity 1, filled below so the executor's push fails
	e := NewExecutor(q, r, nil)
	e.Register("t", func(map[string]Value) HandlerResult { return Success(nil) })

	r.Push(CallbackEnvelope{CallbackID: 999})

	q.Push(Command{Type: "t", AgentID: "A", CallbackID: 1})
	e.RunOnce(0, 10)

	snap := e.Snapshot()
	if snap.Agents["A"].Failed != 1 {
		t.Fatalf("failed[A] = %d, want 1 when the router is full", snap.Agents["A"].Failed)
	}
}

func ExampleExecutor_RunOnce() {
	q, _ := NewCommandQueue(4)
	r, _ := NewCallbackRouter(4)
	e := NewExecutor(q, r, nil)
	e.Register("double", func(payload map[string]Value) HandlerResult {
		n := payload["n"].(int64)
		return Success(map[string]Value{"result": n * 2})
	})

	q.Push(Command{Type: "double", Payload: map[string]Value{"n": int64(21)}, AgentID: "A", CallbackID: 1})
	e.RunOnce(0, 1)
	r.Drain(1, func(env CallbackEnvelope) {
		fmt.Println(env.Outcome.Data["result"])
	})
	// Output: 42
}
