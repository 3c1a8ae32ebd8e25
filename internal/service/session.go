package service

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"marketplace/internal/domain"
	"marketplace/internal/repository"
)

// Session is the login state of one scope, typically one browser.
type Session struct {
	store *Store
	scope string

	mu      sync.Mutex
	current *domain.User
}

// OpenSession returns the session of scope with its persisted state restored.
func (s *Store) OpenSession(ctx context.Context, scope string) *Session {
	sess := &Session{store: s, scope: scope}
	sess.Restore(ctx)
	return sess
}

// Scope names the storage scope of the session, empty for the shared one.
func (s *Session) Scope() string {
	return s.scope
}

// Restore reloads the persisted session record. Missing or unreadable
// records leave the session logged out.
func (s *Session) Restore(ctx context.Context) repository.Load[*domain.User] {
	loaded := s.store.state.LoadSession(ctx, s.scope)
	if loaded.Degraded() {
		s.store.logger.WithField("scope", s.scope).Warnf("restore session, continuing logged out: %v", loaded.Err)
	}

	s.mu.Lock()
	s.current = loaded.Value
	s.mu.Unlock()
	return loaded
}

// Login authenticates against the registry. On failure the current session
// is left untouched.
func (s *Session) Login(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.store.Authenticate(email, password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = user
	s.mu.Unlock()

	if err := s.store.state.SaveSession(ctx, s.scope, *user); err != nil {
		s.store.logger.WithField("scope", s.scope).Warnf("persist session: %v", err)
	}
	s.store.logger.WithFields(logrus.Fields{"scope": s.scope, "user_id": user.ID}).Info("user logged in")

	out := *user
	return &out, nil
}

// Logout clears the session and its persisted record.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if err := s.store.state.ClearSession(ctx, s.scope); err != nil {
		s.store.logger.WithField("scope", s.scope).Warnf("clear session: %v", err)
	}
}

// CurrentUser returns the logged-in account, or nil.
func (s *Session) CurrentUser() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	out := *s.current
	return &out
}
