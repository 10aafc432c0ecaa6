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

package session

import (
	"context"
	"sync"
)

// Kind tells whether a record tracks an authorization request or response.
type Kind string

const (
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
)

// Index is a lookup of correlation IDs by a request property.
type Index string

const (
	IndexNonce Index = "nonce"
	IndexState Index = "state"
)

// Store persists correlation records and the nonce/state index.
type Store interface {
	// GetRecord returns the record for the given correlation ID, or nil if there is none.
	GetRecord(ctx context.Context, kind Kind, correlationID string) (*Record, error)
	PutRecord(ctx context.Context, kind Kind, record Record) error
	// Records returns all records of the given kind.
	Records(ctx context.Context, kind Kind) ([]Record, error)
	// GetIndex returns the correlation ID for the given hash, or an empty string if there is none.
	GetIndex(ctx context.Context, index Index, hash int32) (string, error)
	// SetIndex maps the hash to the correlation ID. It returns ErrCorrelationConflict when the hash is mapped to another correlation ID.
	SetIndex(ctx context.Context, index Index, hash int32, correlationID string) error
	// Delete removes the request and response records of the correlation ID and its index entries.
	Delete(ctx context.Context, correlationID string) error
}

var _ Store = (*memoryStore)(nil)

type memoryStore struct {
	mux     sync.Mutex
	records map[Kind]map[string]Record
	indices map[Index]map[int32]string
}

// NewMemoryStore creates a Store that keeps everything in memory.
func NewMemoryStore() Store {
	return &memoryStore{
		records: map[Kind]map[string]Record{
			KindRequest:  {},
			KindResponse: {},
		},
		indices: map[Index]map[int32]string{
			IndexNonce: {},
			IndexState: {},
		},
	}
}

func (m *memoryStore) GetRecord(_ context.Context, kind Kind, correlationID string) (*Record, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	record, ok := m.records[kind][correlationID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (m *memoryStore) PutRecord(_ context.Context, kind Kind, record Record) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.records[kind][record.CorrelationID] = record
	return nil
}

func (m *memoryStore) Records(_ context.Context, kind Kind) ([]Record, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	result := make([]Record, 0, len(m.records[kind]))
	for _, record := range m.records[kind] {
		result = append(result, record)
	}
	return result, nil
}

func (m *memoryStore) GetIndex(_ context.Context, index Index, hash int32) (string, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.indices[index][hash], nil
}

func (m *memoryStore) SetIndex(_ context.Context, index Index, hash int32, correlationID string) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	if existing, ok := m.indices[index][hash]; ok && existing != correlationID {
		return conflict(index, existing, correlationID)
	}
	m.indices[index][hash] = correlationID
	return nil
}

func (m *memoryStore) Delete(_ context.Context, correlationID string) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	for _, records := range m.records {
		delete(records, correlationID)
	}
	for _, index := range m.indices {
		for hash, curr := range index {
			if curr == correlationID {
				delete(index, hash)
			}
		}
	}
	return nil
}
