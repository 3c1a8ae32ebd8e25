package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"marketplace/internal/domain"
	"marketplace/internal/readiness"
	"marketplace/internal/repository"
)

// RegisterInput carries the fields submitted with a registration form.
// Category and Description are kept for providers only.
type RegisterInput struct {
	Type        domain.UserType
	Name        string
	Email       string
	Phone       string
	Password    string
	Category    string
	Description string
}

// StoreConfig carries the dependencies of a Store. Only Storage is required.
type StoreConfig struct {
	Storage   repository.KeyValue
	Passwords PasswordPolicy
	Logger    *logrus.Logger
	// Ready is resolved with the store once its state is restored. Dependents
	// may subscribe to it before the store exists.
	Ready *readiness.Future[*Store]
	Now   func() time.Time
}

// Store owns the user registry and hands out sessions over the same storage.
type Store struct {
	state     *repository.StateRepository
	passwords PasswordPolicy
	logger    *logrus.Entry
	ready     *readiness.Future[*Store]
	now       func() time.Time

	mu      sync.RWMutex
	users   []domain.User
	byEmail map[string]int
	// degraded is set when the registry could not be read; the next persist
	// replaces whatever the backend holds.
	degraded bool
}

// NewStore restores the registry from storage and then resolves the readiness
// future. Storage problems never fail construction; the store starts empty.
func NewStore(ctx context.Context, cfg StoreConfig) *Store {
	if cfg.Passwords == nil {
		cfg.Passwords = PlaintextPasswords{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Ready == nil {
		cfg.Ready = readiness.New[*Store]()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Store{
		state:     repository.NewStateRepository(cfg.Storage),
		passwords: cfg.Passwords,
		logger:    cfg.Logger.WithField("component", "session_store"),
		ready:     cfg.Ready,
		now:       cfg.Now,
		byEmail:   make(map[string]int),
	}

	loaded := s.Restore(ctx)
	s.logger.WithField("users", len(loaded.Value)).Info("session store ready")
	if !s.ready.Resolve(s) {
		// a shared future already carries another store
		s.logger.Warn("readiness future already resolved, signalling on a new one")
		s.ready = readiness.New[*Store]()
		s.ready.Resolve(s)
	}
	return s
}

// Ready returns the future resolved when the store finished restoring.
func (s *Store) Ready() *readiness.Future[*Store] {
	return s.ready
}

// Restore replaces the in-memory registry with the persisted one.
func (s *Store) Restore(ctx context.Context) repository.Load[[]domain.User] {
	loaded := s.state.LoadUsers(ctx)
	if loaded.Degraded() {
		s.logger.Warnf("restore registry, starting empty: %v", loaded.Err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = loaded.Value
	s.degraded = loaded.Degraded()
	s.byEmail = make(map[string]int, len(loaded.Value))
	for i, u := range loaded.Value {
		email := normalizeEmail(u.Email)
		if _, dup := s.byEmail[email]; dup {
			s.logger.WithField("user_id", u.ID).Warn("duplicate email in persisted registry, keeping first")
			continue
		}
		s.byEmail[email] = i
	}
	return loaded
}

// Register appends a new account and persists the whole registry.
// A failed persist is logged; the account stays registered in memory.
func (s *Store) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if !in.Type.Valid() {
		return nil, ErrInvalidUserType
	}
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, ErrEmailMissing
	}
	// passwords are stored and compared exactly as typed
	if in.Password == "" {
		return nil, ErrPasswordMissing
	}

	sealed, err := s.passwords.Seal(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := domain.User{
		ID:               newUserID(now),
		Type:             in.Type,
		Name:             strings.TrimSpace(in.Name),
		Email:            email,
		Phone:            strings.TrimSpace(in.Phone),
		Password:         sealed,
		RegistrationDate: now,
	}
	if in.Type == domain.UserTypeProvider {
		user.Category = strings.TrimSpace(in.Category)
		user.Description = strings.TrimSpace(in.Description)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[email]; exists {
		return nil, ErrEmailTaken
	}
	s.users = append(s.users, user)
	s.byEmail[email] = len(s.users) - 1

	if s.degraded {
		s.logger.WithField("users", len(s.users)).Error("registry was not restored at start-up, persisting overwrites the stored registry")
	}
	// written under the lock so snapshots reach storage in append order
	if err := s.state.SaveUsers(ctx, s.users); err != nil {
		s.logger.WithField("user_id", user.ID).Warnf("persist registry: %v", err)
	} else {
		s.degraded = false
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "type": user.Type}).Info("user registered")
	return &user, nil
}

// Authenticate finds the account matching email and password.
func (s *Store) Authenticate(email, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.users {
		if s.users[i].Email == email && s.passwords.Matches(s.users[i].Password, password) {
			user := s.users[i]
			return &user, nil
		}
	}
	return nil, ErrInvalidCredentials
}

// FindByEmail looks an account up by its case-insensitive email.
func (s *Store) FindByEmail(email string) (*domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, false
	}
	user := s.users[i]
	return &user, true
}

// Users returns a snapshot of the registry in registration order.
func (s *Store) Users() []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, len(s.users))
	copy(out, s.users)
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Providers lists provider accounts, optionally restricted to a category and
// to those whose name, category or description contains query.
func (s *Store) Providers(category, query string) []domain.User {
	category = strings.ToLower(strings.TrimSpace(category))
	query = strings.ToLower(strings.TrimSpace(query))

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.User
	for _, u := range s.users {
		if u.Type != domain.UserTypeProvider {
			continue
		}
		if category != "" && strings.ToLower(u.Category) != category {
			continue
		}
		if query != "" && !containsFold(query, u.Name, u.Category, u.Description) {
			continue
		}
		out = append(out, u)
	}
	return out
}

func containsFold(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
