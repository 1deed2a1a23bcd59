package dispatch

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// FieldType enumerates the leaf kinds a schema field may require (spec.md
// §4.8, mirroring §3's erased-payload kinds).
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeList
	TypeMap
)

// FieldSchema describes one payload field: its required leaf type, whether
// it must be present, a default value filled in when absent, and — for
// TypeMap fields — a nested Schema applied recursively.
type FieldSchema struct {
	Type     FieldType
	Required bool
	Default  Value
	Nested   Schema
}

// Schema maps field name to its FieldSchema. Registered per command type.
type Schema map[string]FieldSchema

// Future is the promise side of AgentFacade.SubmitFuture: a one-shot,
// thread-safe handle that resolves exactly once when the corresponding
// callback envelope is delivered and invoked.
type Future struct {
	done   chan struct{}
	once   sync.Once
	result map[string]Value
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(result map[string]Value) {
	f.once.Do(func() {
		f.result = result
		close(f.done)
	})
}

// Wait blocks until the future resolves and returns the delivered result,
// the same shape DefaultOutcomeToScriptValue produces: a map with a
// "success" field plus either the handler's data or an "error" string.
func (f *Future) Wait() map[string]Value {
	<-f.done
	return f.result
}

// Done reports whether the future has resolved without blocking.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// NativeClosure is the Closure representation NativeRuntime understands:
// a plain Go function receiving the converted script value. It lets
// AgentFacade's promise adapter and tests drive ScriptBridge without a
// real script engine behind it.
type NativeClosure func(map[string]Value)

// NativeRuntime is a reference Runtime implementation with no script
// engine at all: payloads must already be map[string]Value, and closures
// must be NativeClosure. It is what AgentFacade.SubmitFuture requires the
// wired ScriptBridge to use, and it doubles as the Runtime used by this
// package's own tests.
type NativeRuntime struct{}

// ToPayload implements Runtime. It accepts nil (treated as an empty
// payload) or map[string]Value, deep-copying the latter so no reference
// to the caller's map survives in the queued Command.
func (NativeRuntime) ToPayload(value any) (map[string]Value, error) {
	if value == nil {
		return map[string]Value{}, nil
	}
	m, ok := value.(map[string]Value)
	if !ok {
		return nil, fmt.Errorf("native runtime: payload must be map[string]Value, got %T", value)
	}
	return deepCopyPayload(m), nil
}

// ToScriptValue implements Runtime using the package's reference mapping.
func (NativeRuntime) ToScriptValue(outcome Outcome) any {
	return DefaultOutcomeToScriptValue(outcome)
}

// Invoke implements Runtime, requiring closure to be a NativeClosure.
func (NativeRuntime) Invoke(closure Closure, value any) error {
	fn, ok := closure.(NativeClosure)
	if !ok {
		return fmt.Errorf("native runtime: closure must be NativeClosure, got %T", closure)
	}
	v, _ := value.(map[string]Value)
	fn(v)
	return nil
}

func deepCopyPayload(m map[string]Value) map[string]Value {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v Value) Value {
	switch t := v.(type) {
	case map[string]Value:
		return deepCopyPayload(t)
	case []Value:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v // nil, bool, int64, float64, string are copied by value
	}
}

// AgentFacade is the thin agent-side wrapper spec.md §4.8 describes:
// argument validation, optional per-type schema validation, and a
// promise adapter for the no-callback case. It is the entry point a
// script binding or a plain Go caller submits commands through.
type AgentFacade struct {
	bridge *ScriptBridge

	schemasMu sync.Mutex
	schemas   map[string]Schema

	validationEnabled atomic.Bool
}

// NewAgentFacade wraps bridge. Validation is enabled by default (spec.md
// §6's validation_enabled default of true).
func NewAgentFacade(bridge *ScriptBridge) *AgentFacade {
	f := &AgentFacade{
		bridge:  bridge,
		schemas: make(map[string]Schema),
	}
	f.validationEnabled.Store(true)
	return f
}

// RegisterSchema installs schema as the validation rule for cmdType,
// replacing any prior schema for that type.
func (a *AgentFacade) RegisterSchema(cmdType string, schema Schema) {
	a.schemasMu.Lock()
	defer a.schemasMu.Unlock()
	a.schemas[cmdType] = schema
}

// UnregisterSchema removes the schema for cmdType, if any.
func (a *AgentFacade) UnregisterSchema(cmdType string) {
	a.schemasMu.Lock()
	defer a.schemasMu.Unlock()
	delete(a.schemas, cmdType)
}

// SetValidationEnabled toggles whether Submit applies registered schemas.
func (a *AgentFacade) SetValidationEnabled(enabled bool) {
	a.validationEnabled.Store(enabled)
}

// Submit validates the arguments and, if a schema is registered for
// cmdType and validation is enabled, structurally validates and
// default-fills payload before handing it to ScriptBridge.Submit.
// Validation failures are returned synchronously; nothing is submitted.
func (a *AgentFacade) Submit(cmdType string, payload map[string]Value, agentID string, callback Closure) error {
	if cmdType == "" {
		return fmt.Errorf("%w: command type is empty", ErrValidation)
	}
	if agentID == "" {
		return fmt.Errorf("%w: agent_id is empty", ErrValidation)
	}
	if payload == nil {
		payload = map[string]Value{}
	}

	if a.validationEnabled.Load() {
		validated, err := a.validate(cmdType, payload)
		if err != nil {
			return err
		}
		payload = validated
	}

	return a.bridge.Submit(cmdType, payload, agentID, callback)
}

// SubmitFuture submits with no script closure and returns a Future that
// resolves when the command's callback envelope is delivered and
// processed. It requires the wrapped ScriptBridge to have been
// constructed with NativeRuntime, since it drives the callback through a
// NativeClosure rather than a script-side closure.
func (a *AgentFacade) SubmitFuture(cmdType string, payload map[string]Value, agentID string) (*Future, error) {
	future := newFuture()
	closure := NativeClosure(func(result map[string]Value) {
		future.resolve(result)
	})
	if err := a.Submit(cmdType, payload, agentID, closure); err != nil {
		return nil, err
	}
	return future, nil
}

// validate applies the schema registered for cmdType, if any, returning
// payload unchanged when none is registered.
func (a *AgentFacade) validate(cmdType string, payload map[string]Value) (map[string]Value, error) {
	a.schemasMu.Lock()
	schema, ok := a.schemas[cmdType]
	a.schemasMu.Unlock()
	if !ok {
		return payload, nil
	}
	return validateAgainst(schema, payload)
}

// validateAgainst checks required fields, fills defaults, checks leaf
// types, and recurses into nested schemas, returning a new mutable copy
// rather than mutating payload in place.
func validateAgainst(schema Schema, payload map[string]Value) (map[string]Value, error) {
	out := make(map[string]Value, len(payload))
	for k, v := range payload {
		out[k] = v
	}

	for field, fs := range schema {
		v, present := out[field]
		if !present {
			if fs.Required {
				return nil, fmt.Errorf("%w: field %q is required", ErrValidation, field)
			}
			if fs.Default != nil {
				out[field] = fs.Default
			}
			continue
		}
		if v == nil {
			continue
		}
		if err := checkLeafType(field, fs.Type, v); err != nil {
			return nil, err
		}
		if fs.Type == TypeMap && fs.Nested != nil {
			nested, ok := v.(map[string]Value)
			if !ok {
				return nil, fmt.Errorf("%w: field %q must be a mapping", ErrValidation, field)
			}
			validatedNested, err := validateAgainst(fs.Nested, nested)
			if err != nil {
				return nil, err
			}
			out[field] = validatedNested
		}
	}
	return out, nil
}

func checkLeafType(field string, t FieldType, v Value) error {
	ok := false
	switch t {
	case TypeString:
		_, ok = v.(string)
	case TypeInt:
		switch v.(type) {
		case int, int64:
			ok = true
		}
	case TypeFloat:
		switch v.(type) {
		case float32, float64:
			ok = true
		}
	case TypeBool:
		_, ok = v.(bool)
	case TypeList:
		_, ok = v.([]Value)
	case TypeMap:
		_, ok = v.(map[string]Value)
	default:
		ok = true
	}
	if !ok {
		return fmt.Errorf("%w: field %q has the wrong type", ErrValidation, field)
	}
	return nil
}
