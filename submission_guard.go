package authweb

import (
	"sync"
	"time"
)

// DefaultSubmissionTTL bounds how long a form id stays locked if a handler
// never releases it.
const DefaultSubmissionTTL = 30 * time.Second

// SubmissionGuard tracks in-flight submissions across requests, keyed by the
// form id rendered with each form.
type SubmissionGuard struct {
	mu       sync.Mutex
	inflight map[string]time.Time
	ttl      time.Duration
	now      func() time.Time
}

// NewSubmissionGuard returns a guard whose locks expire after ttl.
func NewSubmissionGuard(ttl time.Duration) *SubmissionGuard {
	if ttl <= 0 {
		ttl = DefaultSubmissionTTL
	}
	return &SubmissionGuard{
		inflight: map[string]time.Time{},
		ttl:      ttl,
		now:      time.Now,
	}
}

// Acquire locks formID. It returns false when the id is already locked.
// An empty id is never locked.
func (g *SubmissionGuard) Acquire(formID string) bool {
	if formID == "" {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if expires, ok := g.inflight[formID]; ok && now.Before(expires) {
		return false
	}

	g.inflight[formID] = now.Add(g.ttl)
	g.sweep(now)
	return true
}

// Release unlocks formID.
func (g *SubmissionGuard) Release(formID string) {
	if formID == "" {
		return
	}
	g.mu.Lock()
	delete(g.inflight, formID)
	g.mu.Unlock()
}

// InFlight returns the number of locked ids.
func (g *SubmissionGuard) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight)
}

func (g *SubmissionGuard) sweep(now time.Time) {
	for id, expires := range g.inflight {
		if !now.Before(expires) {
			delete(g.inflight, id)
		}
	}
}
