// Package session provides the in-memory session store for active USSD
// conversations. Sessions live for at most one conversation and are never
// persisted.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/natnaelb/microloan-ussd/internal/domain"
)

// Store maps session ids to live session records. Safe for concurrent use
// by requests from different sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	timeout  time.Duration
	onEvict  func(id string)

	now func() time.Time // replaceable in tests
}

// NewStore creates a session store with the given idle timeout.
func NewStore(timeout time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*domain.Session),
		timeout:  timeout,
		now:      time.Now,
	}
}

// LoadOrCreate returns the session for id, creating a fresh one at the PIN
// screen if none exists. The second return reports whether a new session
// was created.
func (s *Store) LoadOrCreate(id string) (*domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		return sess, false
	}

	sess := &domain.Session{
		ID:           id,
		Screen:       domain.ScreenPIN,
		LastActivity: s.now(),
	}
	s.sessions[id] = sess
	return sess, true
}

// Get returns the session for id, or nil.
func (s *Store) Get(id string) *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// Touch updates the session's last-activity timestamp.
func (s *Store) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.LastActivity = s.now()
	}
}

// Delete removes the session. Deleting an absent id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// OnEvict registers a callback invoked with the id of every session the
// sweep removes, so callers can release per-session state they keyed on
// the id. Set it before StartSweeper.
func (s *Store) OnEvict(fn func(id string)) {
	s.onEvict = fn
}

// Expired reports whether the session has been idle longer than the
// configured timeout.
func (s *Store) Expired(sess *domain.Session) bool {
	return s.now().Sub(sess.LastActivity) > s.timeout
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes all expired sessions and returns how many were evicted.
// Expiry is primarily lazy (checked per request); the sweep only reclaims
// memory for sessions that never come back.
func (s *Store) Sweep() int {
	s.mu.Lock()
	cutoff := s.now().Add(-s.timeout)
	var evicted []string
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
			evicted = append(evicted, id)
		}
	}
	s.mu.Unlock()

	// The callback runs outside the lock; it may take other locks.
	if s.onEvict != nil {
		for _, id := range evicted {
			s.onEvict(id)
		}
	}
	return len(evicted)
}

// StartSweeper runs a background goroutine that periodically evicts idle
// sessions until ctx is cancelled.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "timeout", s.timeout)

		for {
			select {
			case <-ticker.C:
				if evicted := s.Sweep(); evicted > 0 {
					slog.Info("Session sweeper evicted idle sessions", "count", evicted)
				}
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
