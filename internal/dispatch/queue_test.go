package dispatch

import "testing"

func TestCommandQueuePushFullAtCapacity(t *testing.T) {
	q, err := NewCommandQueue(1)
	if err != nil {
		t.Fatalf("NewCommandQueue: %v", err)
	}
	first := Command{Type: "echo", AgentID: "A", CallbackID: 1}
	second := Command{Type: "echo", AgentID: "A", CallbackID: 2}

	if q.Push(first) != Accepted {
		t.Fatal("first push into an empty capacity-1 queue should be Accepted")
	}
	if q.Push(second) != Full {
		t.Fatal("second push before any drain should be Full")
	}
	if !q.IsFull() {
		t.Fatal("queue should report full")
	}
}

func TestCommandQueueDrainOrder(t *testing.T) {
	q, _ := NewCommandQueue(8)
	for i := 0; i < 3; i++ {
		q.Push(Command{Type: "t", AgentID: "A", CallbackID: uint64(i + 1)})
	}
	var ids []uint64
	q.Drain(8, func(c Command) { ids = append(ids, c.CallbackID) })
	want := []uint64{1, 2, 3}
	for i, id := range ids {
		if id != want[i] {
			t.Fatalf("ids[%d] = %d, want %d", i, id, want[i])
		}
	}
	if !q.IsEmpty() {
		t.Fatal("queue should be empty after draining everything pushed")
	}
}

func TestCallbackRouterPushDrain(t *testing.T) {
	r, err := NewCallbackRouter(2)
	if err != nil {
		t.Fatalf("NewCallbackRouter: %v", err)
	}
	env := CallbackEnvelope{CallbackID: 7, Outcome: Outcome{Kind: OutcomeSuccess, Data: map[string]Value{"x": 1}}}
	if r.Push(env) != Accepted {
		t.Fatal("push into a fresh router should be Accepted")
	}
	var got CallbackEnvelope
	n := r.Drain(1, func(e CallbackEnvelope) { got = e })
	if n != 1 || got.CallbackID != 7 {
		t.Fatalf("drained envelope = %+v, want callback_id 7", got)
	}
}
