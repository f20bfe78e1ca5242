package api

import (
	"sync"

	"github.com/appdotbuild/agent/pkg/agentsession"
	"github.com/appdotbuild/agent/pkg/llm"
)

// SessionManager maps one (applicationId, traceId) pair to the
// AgentSession that drives it, per spec §6's one-session-per-trace
// contract — a session is scoped to a single conversation thread, not
// the whole application, so two traces on the same application run
// independently.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*agentsession.AgentSession

	client    llm.AsyncLLM
	apps      agentsession.AppBuilder
	names     agentsession.NameGenerator
	snapshots *agentsession.SnapshotStore
}

// NewSessionManager builds a manager that constructs sessions lazily,
// sharing the given LLM client, app builder, name generator, and
// snapshot store across every session it creates.
func NewSessionManager(client llm.AsyncLLM, apps agentsession.AppBuilder, names agentsession.NameGenerator, snapshots *agentsession.SnapshotStore) *SessionManager {
	return &SessionManager{
		sessions:  map[string]*agentsession.AgentSession{},
		client:    client,
		apps:      apps,
		names:     names,
		snapshots: snapshots,
	}
}

// Get returns the session for (applicationID, traceID), constructing
// one on first use.
func (m *SessionManager) Get(applicationID, traceID string) *agentsession.AgentSession {
	key := applicationID + "/" + traceID

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[key]; ok {
		return s
	}
	s := agentsession.New(applicationID, traceID, m.client, m.apps, m.names, m.snapshots)
	m.sessions[key] = s
	return s
}

// Count reports the number of live sessions, for health/diagnostics.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
