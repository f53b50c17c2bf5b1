package booking

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"tablebook/internal/availability"
	"tablebook/internal/metrics"
)

// DefaultSessionTimeout is how long an idle booking flow is kept.
const DefaultSessionTimeout = 30 * time.Minute

// SessionStore manages booking flows by session id.
type SessionStore struct {
	flows   map[string]*Flow
	mu      sync.RWMutex
	timeout time.Duration
	checker availability.Checker
}

// NewSessionStore creates a new session store.
func NewSessionStore(checker availability.Checker, timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &SessionStore{
		flows:   make(map[string]*Flow),
		timeout: timeout,
		checker: checker,
	}
}

// Create starts a new flow for owner on date.
func (ss *SessionStore) Create(owner, date string) *Flow {
	f := NewFlow(uuid.NewString(), owner, date, ss.checker)

	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.flows[f.ID] = f
	metrics.SetActiveSessions(len(ss.flows))
	return f
}

// Get returns a live flow. Expired flows are reported as missing.
func (ss *SessionStore) Get(id string) (*Flow, bool) {
	ss.mu.RLock()
	f, ok := ss.flows[id]
	ss.mu.RUnlock()
	if !ok || f.IsExpired(ss.timeout) {
		return nil, false
	}
	return f, true
}

// Delete removes a flow and cancels its pending check.
func (ss *SessionStore) Delete(id string) bool {
	ss.mu.Lock()
	f, ok := ss.flows[id]
	delete(ss.flows, id)
	metrics.SetActiveSessions(len(ss.flows))
	ss.mu.Unlock()

	if ok {
		f.Close()
	}
	return ok
}

// Len returns the number of stored flows, expired ones included.
func (ss *SessionStore) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.flows)
}

// Cleanup removes expired flows.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	var expired []*Flow
	for id, f := range ss.flows {
		if f.IsExpired(ss.timeout) {
			delete(ss.flows, id)
			expired = append(expired, f)
		}
	}
	metrics.SetActiveSessions(len(ss.flows))
	ss.mu.Unlock()

	for _, f := range expired {
		f.Close()
	}
	return len(expired)
}
