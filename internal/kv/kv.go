// Package kv provides the textual key-value persistence layer that plays the
// part of browser local storage: one namespace shared by every process
// pointing at the same backend, last write wins, no transactions.
package kv

import (
	"context"
	"fmt"

	"github.com/klabast/wb-services/plaza/internal/errors"
)

// DefaultQuota mirrors the usual 5 MiB browser storage limit
const DefaultQuota = 5 * 1024 * 1024

// ErrQuotaExceeded is returned when a write would exceed the store quota
var ErrQuotaExceeded = errors.ErrQuotaExceeded

// Store is a string key-value store.
type Store interface {
	// Get returns the value under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes value under key.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Watch calls fn whenever key is changed by another writer.
	// Writes made through this Store never trigger fn.
	// Watching stops when ctx is cancelled.
	Watch(ctx context.Context, key string, fn func()) error

	// Close releases backend resources.
	Close() error
}

func quotaError(key string, size, limit int) error {
	return fmt.Errorf("writing %s (%d bytes, limit %d): %w", key, size, limit, ErrQuotaExceeded)
}
