// Package kv provides the key-value store that records site submissions.
//
// Values are JSON documents addressed by string keys. Stores support
// put, get and listing every value whose key starts with a literal prefix.
package kv

import (
	"context"
	"encoding/json"
)

// Store defines the interface for key-value store implementations.
// All implementations must be thread-safe.
type Store interface {
	// Set stores value, encoded as JSON, under key, replacing any previous value.
	Set(ctx context.Context, key string, value any) error

	// Get decodes the value stored under key into dst.
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string, dst any) error

	// GetByPrefix returns every value whose key starts with prefix, ordered by key.
	// The prefix is matched literally.
	GetByPrefix(ctx context.Context, prefix string) ([]json.RawMessage, error)

	// Delete removes the keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Error represents an error type for store operations.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrNotFound indicates the key does not exist.
	ErrNotFound Error = "key not found"

	// ErrClosed indicates the store has been closed.
	ErrClosed Error = "store closed"

	// ErrEmptyKey indicates an empty key was given.
	ErrEmptyKey Error = "empty key"
)

// GetAll decodes every value under prefix into a slice of T.
func GetAll[T any](ctx context.Context, s Store, prefix string) ([]T, error) {
	raw, err := s.GetByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
