package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"marketplace/internal/domain"
)

const (
	UsersKey   = "marketplaceUsers"
	SessionKey = "currentUser"
)

// Load is the outcome of reading persisted state. Value always holds a usable
// default; Err is set when the read failed or the record could not be parsed
// and the caller is running on that default.
type Load[T any] struct {
	Value T
	Found bool
	Err   error
}

// Degraded reports whether the load fell back to the default value.
func (l Load[T]) Degraded() bool {
	return l.Err != nil
}

// StateRepository maps marketplace state onto well-known keys of a KeyValue store.
type StateRepository struct {
	kv KeyValue
}

// NewStateRepository wraps kv.
func NewStateRepository(kv KeyValue) *StateRepository {
	return &StateRepository{kv: kv}
}

// SessionKeyFor returns the storage key of the session record of a scope.
// The empty scope uses the bare key.
func SessionKeyFor(scope string) string {
	if scope == "" {
		return SessionKey
	}
	return SessionKey + ":" + scope
}

// LoadUsers reads the registry; the value is never nil.
func (r *StateRepository) LoadUsers(ctx context.Context) Load[[]domain.User] {
	var users []domain.User
	found, err := r.load(ctx, UsersKey, &users)
	if err != nil || users == nil {
		users = []domain.User{}
	}
	return Load[[]domain.User]{Value: users, Found: found, Err: err}
}

// SaveUsers replaces the stored registry with users.
func (r *StateRepository) SaveUsers(ctx context.Context, users []domain.User) error {
	return r.save(ctx, UsersKey, users)
}

func (r *StateRepository) LoadSession(ctx context.Context, scope string) Load[*domain.User] {
	var user *domain.User
	found, err := r.load(ctx, SessionKeyFor(scope), &user)
	if err != nil {
		user = nil
	}
	return Load[*domain.User]{Value: user, Found: found && user != nil, Err: err}
}

func (r *StateRepository) SaveSession(ctx context.Context, scope string, user domain.User) error {
	return r.save(ctx, SessionKeyFor(scope), user)
}

func (r *StateRepository) ClearSession(ctx context.Context, scope string) error {
	key := SessionKeyFor(scope)
	if err := r.kv.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: delete %s: %v", ErrStoragePersist, key, err)
	}
	return nil
}

func (r *StateRepository) load(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := r.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: get %s: %v", ErrStorageRead, key, err)
	}
	if raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return true, fmt.Errorf("%w: parse %s: %v", ErrStorageRead, key, err)
	}
	return true, nil
}

func (r *StateRepository) save(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStoragePersist, key, err)
	}
	if err := r.kv.Set(ctx, key, string(payload)); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrStoragePersist, key, err)
	}
	return nil
}
