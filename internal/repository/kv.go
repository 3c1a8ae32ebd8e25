package repository

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by KeyValue.Get when the key holds no value.
	ErrNotFound = errors.New("key not found")
	// ErrStorageRead marks a failed or unparsable load that fell back to defaults.
	ErrStorageRead = errors.New("storage read failed")
	// ErrStoragePersist marks a write that did not reach the backing store.
	ErrStoragePersist = errors.New("storage persist failed")
)

// KeyValue is the string key-value store the marketplace state lives in.
type KeyValue interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
