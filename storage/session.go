/*
 * Copyright (C) 2024 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
)

// ErrNotFound is returned when an entry does not exist (or has expired).
var ErrNotFound = errors.New("not found")

// SessionDatabase is a key-value database for short-lived data: fetched references, DID documents and
// request objects served by reference. All entries are stored with a TTL, so they will be removed automatically.
type SessionDatabase interface {
	// GetStore returns a SessionStore with the given keys as key prefixes.
	// The keys are used to logically partition the store, eg: tenants and/or flows that are not allowed to overlap like credential issuance and verification.
	// The TTL is the time-to-live for the entries in the store.
	GetStore(ttl time.Duration, keys ...string) SessionStore
	// Close stops any background processes and closes the database.
	Close()
}

// SessionStore is a key-value store that holds JSON-serializable values for a limited time.
type SessionStore interface {
	// Delete deletes the entry for the given key.
	// It does not return an error if the entry does not exist.
	Delete(key string) error
	// Exists returns true if the key exists.
	Exists(key string) bool
	// Get returns the value for the given key.
	// Returns ErrNotFound if the key does not exist.
	Get(key string, target interface{}) error
	// Put stores the given value for the given key.
	Put(key string, value interface{}) error
}

// storedValue is the set of value types the gocache stores return.
type storedValue interface {
	~[]byte | ~string
}

var _ SessionStore = (*SessionStoreImpl[[]byte])(nil)

// SessionStoreImpl is a SessionStore on top of a gocache cache. Values are stored as JSON.
type SessionStoreImpl[T storedValue] struct {
	underlying *cache.Cache[T]
	ttl        time.Duration
	prefixes   []string
}

func (s SessionStoreImpl[T]) Delete(key string) error {
	err := s.underlying.Delete(context.Background(), s.getFullKey(key))
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func (s SessionStoreImpl[T]) Exists(key string) bool {
	val, err := s.underlying.Get(context.Background(), s.getFullKey(key))
	if err != nil {
		return false
	}
	return len(val) > 0
}

func (s SessionStoreImpl[T]) Get(key string, target interface{}) error {
	val, err := s.underlying.Get(context.Background(), s.getFullKey(key))
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	if len(val) == 0 {
		return ErrNotFound
	}
	return json.Unmarshal([]byte(val), target)
}

func (s SessionStoreImpl[T]) Put(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.underlying.Set(context.Background(), s.getFullKey(key), T(data), store.WithExpiration(s.ttl))
}

func (s SessionStoreImpl[T]) getFullKey(key string) string {
	return strings.Join(append(append([]string{}, s.prefixes...), key), "/")
}

func isNotFound(err error) bool {
	return errors.Is(err, &store.NotFound{})
}
