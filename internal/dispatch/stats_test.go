package dispatch

import "testing"

func TestStatisticsSnapshotIsDeepCopy(t *testing.T) {
	s := NewStatistics()
	s.IncSubmitted("A")
	s.IncExecuted("A", "echo")

	snap := s.GetSnapshot()
	snap.Agents["A"] = AgentCounters{Submitted: 999}

	fresh := s.GetSnapshot()
	if fresh.Agents["A"].Submitted != 1 {
		t.Fatalf("mutating a snapshot must not affect Statistics, got %+v", fresh.Agents["A"])
	}
}

func TestStatisticsAuditEnabledToggle(t *testing.T) {
	s := NewStatistics()
	if s.AuditEnabled() {
		t.Fatal("audit should default to disabled")
	}
	s.SetAuditEnabled(true)
	if !s.AuditEnabled() {
		t.Fatal("SetAuditEnabled(true) should take effect")
	}
}

func TestStatisticsPerTypeCounters(t *testing.T) {
	s := NewStatistics()
	s.IncExecuted("A", "echo")
	s.IncExecuted("B", "echo")
	s.IncFailed("A", "boom")

	snap := s.GetSnapshot()
	if snap.Types["echo"].Executed != 2 {
		t.Fatalf("types[echo].Executed = %d, want 2", snap.Types["echo"].Executed)
	}
	if snap.Types["boom"].Failed != 1 {
		t.Fatalf("types[boom].Failed = %d, want 1", snap.Types["boom"].Failed)
	}
}
