package dispatch

import (
	"errors"
	"testing"
)

func newTestFacade(t *testing.T, queueCap int) (*AgentFacade, *CommandQueue, *CallbackRouter) {
	t.Helper()
	q, err := NewCommandQueue(queueCap)
	if err != nil {
		t.Fatalf("NewCommandQueue: %v", err)
	}
	r, err := NewCallbackRouter(queueCap)
	if err != nil {
		t.Fatalf("NewCallbackRouter: %v", err)
	}
	bridge := NewScriptBridge(q, r, NativeRuntime{}, func() int64 { return 0 })
	return NewAgentFacade(bridge), q, r
}

func TestAgentFacadeSubmitRejectsEmptyType(t *testing.T) {
	f, _, _ := newTestFacade(t, 4)
	if err := f.Submit("", nil, "A", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestAgentFacadeSubmitRejectsEmptyAgent(t *testing.T) {
	f, _, _ := newTestFacade(t, 4)
	if err := f.Submit("t", nil, "", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestAgentFacadeSchemaRequiredField(t *testing.T) {
	f, _, _ := newTestFacade(t, 4)
	f.RegisterSchema("greet", Schema{
		"name": {Type: TypeString, Required: true},
	})

	if err := f.Submit("greet", map[string]Value{}, "A", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing required field should fail validation, got %v", err)
	}
	if err := f.Submit("greet", map[string]Value{"name": "Ada"}, "A", nil); err != nil {
		t.Fatalf("Submit with required field present should succeed: %v", err)
	}
}

func TestAgentFacadeSchemaDefaultFill(t *testing.T) {
	f, q, _ := newTestFacade(t, 4)
	f.RegisterSchema("greet", Schema{
		"greeting": {Type: TypeString, Default: "hello"},
	})

	if err := f.Submit("greet", map[string]Value{}, "A", nil); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	var cmd Command
	q.Drain(1, func(c Command) { cmd = c })
	if cmd.Payload["greeting"] != "hello" {
		t.Fatalf("payload = %+v, want default-filled greeting", cmd.Payload)
	}
}

func TestAgentFacadeSchemaTypeMismatch(t *testing.T) {
	f, _, _ := newTestFacade(t, 4)
	f.RegisterSchema("greet", Schema{
		"name": {Type: TypeString, Required: true},
	})
	if err := f.Submit("greet", map[string]Value{"name": int64(5)}, "A", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("wrong leaf type should fail validation, got %v", err)
	}
}

func TestAgentFacadeSchemaNested(t *testing.T) {
	f, _, _ := newTestFacade(t, 4)
	f.RegisterSchema("configure", Schema{
		"options": {Type: TypeMap, Required: true, Nested: Schema{
			"retries": {Type: TypeInt, Default: int64(3)},
		}},
	})

	if err := f.Submit("configure", map[string]Value{"options": map[string]Value{}}, "A", nil); err != nil {
		t.Fatalf("Submit: %v", err)
	}
}

func TestAgentFacadeSetValidationEnabledBypassesSchema(t *testing.T) {
	f, _, _ := newTestFacade(t, 4)
	f.RegisterSchema("greet", Schema{"name": {Type: TypeString, Required: true}})
	f.SetValidationEnabled(false)

	if err := f.Submit("greet", map[string]Value{}, "A", nil); err != nil {
		t.Fatalf("with validation disabled, missing required field should not error: %v", err)
	}
}

func TestAgentFacadeUnregisterSchema(t *testing.T) {
	f, _, _ := newTestFacade(t, 4)
	f.RegisterSchema("greet", Schema{"name": {Type: TypeString, Required: true}})
	f.UnregisterSchema("greet")

	if err := f.Submit("greet", map[string]Value{}, "A", nil); err != nil {
		t.Fatalf("after unregistering the schema, submit should succeed: %v", err)
	}
}

func TestAgentFacadeSubmitFutureResolves(t *testing.T) {
	f, q, r := newTestFacade(t, 4)

	future, err := f.SubmitFuture("echo", map[string]Value{"msg": "hi"}, "A")
	if err != nil {
		t.Fatalf("SubmitFuture: %v", err)
	}
	if future.Done() {
		t.Fatal("future should not be resolved before the envelope is delivered")
	}

	var cmd Command
	q.Drain(1, func(c Command) { cmd = c })
	r.Push(CallbackEnvelope{CallbackID: cmd.CallbackID, Outcome: Outcome{
		Kind: OutcomeSuccess,
		Data: map[string]Value{"reply": cmd.Payload["msg"]},
	}})

	f.bridge.Drain(10)

	result := future.Wait()
	if result["success"] != true || result["reply"] != "hi" {
		t.Fatalf("future result = %+v, want success=true reply=hi", result)
	}
	if !future.Done() {
		t.Fatal("future should report Done() true after resolution")
	}
}
