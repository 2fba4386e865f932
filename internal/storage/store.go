// Package storage is the shared key-value storage the client runs on. A Store
// is one "tab" onto a storage context that other tabs (goroutines, processes)
// share; writes made by one tab are announced to the others as Change signals.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = errors.New("storage: key not found")
	// ErrQuotaExceeded is returned by Set when the storage context is full.
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
	// ErrUnavailable is returned by every operation of a context that denies access.
	ErrUnavailable = errors.New("storage: unavailable")
)

// Change announces that a key was written or removed. It deliberately carries
// no value: observers re-read whatever they derive from the key.
type Change struct {
	Key    string `json:"key"`
	Source string `json:"source"`
	// Synthetic marks a change raised through Dispatch rather than a write.
	Synthetic bool `json:"synthetic,omitempty"`
}

// Store is a single tab onto a shared storage context.
type Store interface {
	// ID identifies the tab; it is the Source of the changes it produces.
	ID() string
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists the keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Dispatch raises a synthetic change for key that every watcher receives,
	// including the watchers of this tab.
	Dispatch(ctx context.Context, key string) error
	// Watch streams changes written by other tabs plus all dispatched ones
	// until ctx is done, then closes the channel.
	Watch(ctx context.Context) (<-chan Change, error)
}

// GetJSON reads key and decodes it into v.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(b))
}

// DeletePrefix removes every key starting with prefix and returns how many
// keys were removed.
func DeletePrefix(ctx context.Context, s Store, prefix string) (int, error) {
	keys, err := s.Keys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

// DeleteTransient removes every session-scoped key, as classified by
// IsTransient, and reports how many it removed.
func DeleteTransient(ctx context.Context, s Store) (int, error) {
	keys, err := s.Keys(ctx, Prefix)
	if err != nil {
		return 0, err
	}
	var n int
	for _, k := range keys {
		if !IsTransient(k) {
			continue
		}
		if err := s.Delete(ctx, k); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
