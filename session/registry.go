package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Registry keeps the live sessions of the process.
type Registry struct {
	log     *log.Logger
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates a registry evicting sessions idle for longer than
// idleTTL. A non-positive idleTTL disables eviction.
func NewRegistry(logger *log.Logger, idleTTL time.Duration) *Registry {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Registry{
		log:      logger,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session with a random id.
func (r *Registry) Create() *Session {
	s := New(uuid.NewString(), r.log)
	s.now = r.now
	s.lastUsed = r.now()
	r.mu.Lock()
	r.sessions[s.id] = s
	n := len(r.sessions)
	r.mu.Unlock()
	r.log.WithFields(log.Fields{"session": s.id, "live": n}).Info("session created")
	return s
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch()
	return s, nil
}

// Remove drops a session. It reports whether the session existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		r.log.WithField("session", id).Info("session removed")
	}
	return ok
}

// Sweep evicts idle sessions without subscribers and returns how many were
// removed.
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTTL)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.sessions {
		if s.subscribers() > 0 || s.idleSince().After(cutoff) {
			continue
		}
		delete(r.sessions, id)
		removed++
	}
	if removed > 0 {
		r.log.WithFields(log.Fields{"evicted": removed, "live": len(r.sessions)}).Info("idle sessions evicted")
	}
	return removed
}

// Run sweeps idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || r.idleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
