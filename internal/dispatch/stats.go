package dispatch

import "sync"

// AgentCounters holds the monotonically non-decreasing per-agent counters
// spec.md §3 defines. Submitted is counted when the Executor drains a
// command, so in-flight commands (still in the CommandQueue) are not
// in it. RejectedAtSubmit is only advanced by IncRejectedAtSubmit, and
// neither ScriptBridge nor AgentFacade calls it: a submit rejected with
// ErrQueueFull is not counted in Statistics.
type AgentCounters struct {
	Submitted    uint64
	Executed     uint64
	Failed       uint64
	RateLimited  uint64
	Unhandled    uint64
	RejectedAtSubmit uint64
}

// TypeCounters holds the per-command-type counters.
type TypeCounters struct {
	Executed uint64
	Failed   uint64
}

// Snapshot is a deep copy of Statistics suitable for monitoring. Taking
// one is a cold path — allocation is acceptable (spec.md §4.5).
type Snapshot struct {
	Agents       map[string]AgentCounters
	Types        map[string]TypeCounters
	AuditEnabled bool
}

// Statistics holds per-agent and per-type counters plus the audit-enabled
// flag, mutated only by the Executor on the host thread. Every method
// takes the internal mutex, so GetSnapshot is safe to call from any
// thread and returns a consistent view.
type Statistics struct {
	mu           sync.RWMutex
	agents       map[string]*AgentCounters
	types        map[string]*TypeCounters
	auditEnabled bool
}

// NewStatistics constructs an empty Statistics.
func NewStatistics() *Statistics {
	return &Statistics{
		agents: make(map[string]*AgentCounters),
		types:  make(map[string]*TypeCounters),
	}
}

func (s *Statistics) agent(id string) *AgentCounters {
	a, ok := s.agents[id]
	if !ok {
		a = &AgentCounters{}
		s.agents[id] = a
	}
	return a
}

func (s *Statistics) typ(t string) *TypeCounters {
	c, ok := s.types[t]
	if !ok {
		c = &TypeCounters{}
		s.types[t] = c
	}
	return c
}

// IncSubmitted records a command having been drained for dispatch.
func (s *Statistics) IncSubmitted(agentID string) {
	s.mu.Lock()
	s.agent(agentID).Submitted++
	s.mu.Unlock()
}

// IncRejectedAtSubmit records a QueueFullAtSubmit rejection.
func (s *Statistics) IncRejectedAtSubmit(agentID string) {
	s.mu.Lock()
	s.agent(agentID).RejectedAtSubmit++
	s.mu.Unlock()
}

// IncExecuted records a successful handler execution.
func (s *Statistics) IncExecuted(agentID, cmdType string) {
	s.mu.Lock()
	s.agent(agentID).Executed++
	s.typ(cmdType).Executed++
	s.mu.Unlock()
}

// IncFailed records a handler error, panic, or undelivered envelope.
func (s *Statistics) IncFailed(agentID, cmdType string) {
	s.mu.Lock()
	s.agent(agentID).Failed++
	s.typ(cmdType).Failed++
	s.mu.Unlock()
}

// IncRateLimited records a rate-limit rejection at dispatch time.
func (s *Statistics) IncRateLimited(agentID string) {
	s.mu.Lock()
	s.agent(agentID).RateLimited++
	s.mu.Unlock()
}

// IncUnhandled records a dispatch for which no handler was registered.
func (s *Statistics) IncUnhandled(agentID string) {
	s.mu.Lock()
	s.agent(agentID).Unhandled++
	s.mu.Unlock()
}

// SetAuditEnabled toggles per-command audit logging.
func (s *Statistics) SetAuditEnabled(enabled bool) {
	s.mu.Lock()
	s.auditEnabled = enabled
	s.mu.Unlock()
}

// AuditEnabled reports whether audit logging is currently on.
func (s *Statistics) AuditEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auditEnabled
}

// GetSnapshot returns a deep copy of the current counters.
func (s *Statistics) GetSnapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents := make(map[string]AgentCounters, len(s.agents))
	for id, a := range s.agents {
		agents[id] = *a
	}
	types := make(map[string]TypeCounters, len(s.types))
	for t, c := range s.types {
		types[t] = *c
	}
	return Snapshot{Agents: agents, Types: types, AuditEnabled: s.auditEnabled}
}
