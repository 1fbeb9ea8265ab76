package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fuunylmz/Re-aniname/internal/resolver"
)

// SessionIdleTimeout is how long an analysis session survives without use.
const SessionIdleTimeout = 30 * time.Minute

type batchSession struct {
	cache    *resolver.Cache
	lastUsed time.Time
}

// BatchSessions holds the resolution caches of client-driven batches, so
// a client analyzing files one request at a time still gets batch-wide
// title unification.
type BatchSessions struct {
	mu       sync.Mutex
	sessions map[string]*batchSession
	idle     time.Duration
	now      func() time.Time
}

func NewBatchSessions(idle time.Duration) *BatchSessions {
	if idle <= 0 {
		idle = SessionIdleTimeout
	}
	return &BatchSessions{
		sessions: make(map[string]*batchSession),
		idle:     idle,
		now:      time.Now,
	}
}

// Open starts a session with an empty cache and returns its id.
func (s *BatchSessions) Open() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	id := uuid.NewString()
	s.sessions[id] = &batchSession{cache: resolver.NewCache(), lastUsed: s.now()}
	return id
}

// Get returns the cache of a live session and refreshes its idle timer.
func (s *BatchSessions) Get(id string) (*resolver.Cache, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.lastUsed = s.now()
	return sess.cache, true
}

// Close ends a session and returns its final cache counters.
func (s *BatchSessions) Close(id string) (resolver.Stats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	sess, ok := s.sessions[id]
	if !ok {
		return resolver.Stats{}, false
	}
	delete(s.sessions, id)
	return sess.cache.Stats(), true
}

// Len returns the number of live sessions.
func (s *BatchSessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.sessions)
}

func (s *BatchSessions) sweepLocked() {
	cutoff := s.now().Add(-s.idle)
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}
