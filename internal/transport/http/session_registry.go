package http

import (
	"context"
	"sync"

	"github.com/kbase/review-engine/internal/application/review"
	"go.uber.org/zap"
)

// SessionFactory builds a session for one resource instance.
type SessionFactory func(resourceType, resourceID string) *review.Session

// SessionRegistry holds at most one live session per resource, creating
// them lazily on first access and closing them on screen close or
// shutdown. Closing a session stops its watcher, so tearing the
// registry down never leaks a poll loop.
type SessionRegistry struct {
	factory SessionFactory
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*review.Session
}

// NewSessionRegistry creates a new session registry
func NewSessionRegistry(factory SessionFactory, logger *zap.Logger) *SessionRegistry {
	return &SessionRegistry{
		factory:  factory,
		logger:   logger,
		sessions: make(map[string]*review.Session),
	}
}

func sessionKey(resourceType, resourceID string) string {
	return resourceType + "/" + resourceID
}

// Get returns the live session for a resource, creating and loading one
// if needed.
func (r *SessionRegistry) Get(ctx context.Context, resourceType, resourceID string) (*review.Session, error) {
	key := sessionKey(resourceType, resourceID)

	r.mu.Lock()
	if sess, ok := r.sessions[key]; ok {
		r.mu.Unlock()
		return sess, nil
	}
	r.mu.Unlock()

	sess := r.factory(resourceType, resourceID)
	if err := sess.Load(ctx); err != nil {
		sess.Close()
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.sessions[key]; ok {
		// Lost the race; keep the first session.
		r.mu.Unlock()
		sess.Close()
		return existing, nil
	}
	r.sessions[key] = sess
	r.mu.Unlock()

	return sess, nil
}

// Close tears down the session for a resource, if any.
func (r *SessionRegistry) Close(resourceType, resourceID string) {
	key := sessionKey(resourceType, resourceID)

	r.mu.Lock()
	sess, ok := r.sessions[key]
	delete(r.sessions, key)
	r.mu.Unlock()

	if ok {
		sess.Close()
	}
}

// CloseAll tears down every live session. Called on server shutdown.
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*review.Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.sessions = make(map[string]*review.Session)
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}

	r.logger.Info("All review sessions closed", zap.Int("count", len(sessions)))
}

// Count returns the number of live sessions.
func (r *SessionRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
