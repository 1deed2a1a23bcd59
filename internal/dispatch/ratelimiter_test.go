package dispatch

import "testing"

func TestTokenBucketLimiterAllowsBurstThenDenies(t *testing.T) {
	l := NewTokenBucketLimiter(2, 2) // capacity=2, refill=2/s
	now := int64(0)

	if l.TryConsume("A", now) != Allowed {
		t.Fatal("first request within burst should be allowed")
	}
	if l.TryConsume("A", now) != Allowed {
		t.Fatal("second request within burst should be allowed")
	}
	if l.TryConsume("A", now) != Denied {
		t.Fatal("third request with no elapsed time should be denied")
	}
}

func TestTokenBucketLimiterRefillsOverTime(t *testing.T) {
	l := NewTokenBucketLimiter(2, 2) // refill 2 tokens/second
	l.TryConsume("A", 0)
	l.TryConsume("A", 0)
	if l.TryConsume("A", 0) != Denied {
		t.Fatal("bucket should be empty immediately after exhausting the burst")
	}
	// 500ms later, one token should have refilled.
	if l.TryConsume("A", int64(500*1e6)) != Allowed {
		t.Fatal("request 500ms later should be allowed after refill")
	}
}

func TestTokenBucketLimiterZeroDisables(t *testing.T) {
	l := NewTokenBucketLimiter(0, 0)
	for i := 0; i < 1000; i++ {
		if l.TryConsume("A", int64(i)) != Allowed {
			t.Fatalf("capacity=0 must disable the limiter, denied on iteration %d", i)
		}
	}
}

func TestTokenBucketLimiterPerAgentIsolation(t *testing.T) {
	l := NewTokenBucketLimiter(1, 1)
	if l.TryConsume("A", 0) != Allowed {
		t.Fatal("agent A's first request should be allowed")
	}
	if l.TryConsume("B", 0) != Allowed {
		t.Fatal("agent B's bucket is independent of agent A's")
	}
	if l.TryConsume("A", 0) != Denied {
		t.Fatal("agent A's second immediate request should be denied")
	}
}

func TestTokenBucketLimiterSetLimits(t *testing.T) {
	l := NewTokenBucketLimiter(1, 1)
	l.TryConsume("A", 0)
	l.SetLimits(0, 0)
	if l.TryConsume("A", 0) != Allowed {
		t.Fatal("SetLimits(0, 0) should disable limiting immediately")
	}
}
