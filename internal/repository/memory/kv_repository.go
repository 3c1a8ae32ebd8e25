package memory

import (
	"context"
	"sync"

	"marketplace/internal/repository"
)

// KVRepository keeps values in process memory. State does not survive a restart.
type KVRepository struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewKVRepository() *KVRepository {
	return &KVRepository{values: make(map[string]string)}
}

func (r *KVRepository) Init(ctx context.Context) error {
	return nil
}

func (r *KVRepository) Get(ctx context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

func (r *KVRepository) Set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	r.values[key] = value
	r.mu.Unlock()
	return nil
}

func (r *KVRepository) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	delete(r.values, key)
	r.mu.Unlock()
	return nil
}

var _ repository.KeyValue = (*KVRepository)(nil)
