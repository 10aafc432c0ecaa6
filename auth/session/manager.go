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

// Package session correlates authorization requests and responses on the relying party side, by consuming
// their lifecycle events.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf16"

	"github.com/nuts-foundation/nuts-siop/auth/log"
	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	"github.com/nuts-foundation/nuts-siop/auth/request"
	"github.com/nuts-foundation/nuts-siop/auth/response"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/events"
)

// ErrCorrelationConflict is returned when a nonce or state is already mapped to another correlation ID.
var ErrCorrelationConflict = errors.New("nonce or state already mapped to another correlation id")

// ErrNotFound is returned by lookups with errorOnNotFound when there's no matching record.
var ErrNotFound = errors.New("session state not found")

// DefaultMaxAge is the age after which records are removed when not updated.
const DefaultMaxAge = 300 * time.Second

// Status is the status of a request or response record.
type Status string

const (
	StatusCreated  Status = "CREATED"
	StatusSent     Status = "SENT"
	StatusReceived Status = "RECEIVED"
	StatusVerified Status = "VERIFIED"
	StatusError    Status = "ERROR"
)

// Record is the state of an authorization request or response, keyed by correlation ID.
type Record struct {
	CorrelationID string `json:"correlation_id"`
	Status        Status `json:"status"`
	// Request is the merged (envelope and request object) payload of the authorization request, for request records.
	Request oauth.Payload `json:"request,omitempty"`
	// Response is the payload of the authorization response, for response records.
	Response    oauth.Payload `json:"response,omitempty"`
	Error       string        `json:"error,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	LastUpdated time.Time     `json:"last_updated"`
}

// transition is the record update triggered by an event type.
type transition struct {
	kind   Kind
	status Status
}

var transitions = map[events.Type]transition{
	events.AuthRequestCreatedSuccess:   {KindRequest, StatusCreated},
	events.AuthRequestCreatedFailed:    {KindRequest, StatusError},
	events.AuthRequestSentSuccess:      {KindRequest, StatusSent},
	events.AuthRequestSentFailed:       {KindRequest, StatusError},
	events.AuthResponseReceivedSuccess: {KindResponse, StatusReceived},
	events.AuthResponseReceivedFailed:  {KindResponse, StatusError},
	events.AuthResponseVerifiedSuccess: {KindResponse, StatusVerified},
	events.AuthResponseVerifiedFailed:  {KindResponse, StatusError},
}

var _ events.Sink = (*Manager)(nil)

// Manager keeps track of the authorization requests and responses of the relying party.
// Records that weren't updated for longer than maxAge are removed whenever a new request or response event arrives.
type Manager struct {
	store  Store
	maxAge time.Duration
	now    func() time.Time
}

// NewManager creates a Manager on the given store. A maxAge of 0 disables the removal of old records.
func NewManager(store Store, maxAge time.Duration) *Manager {
	return &Manager{store: store, maxAge: maxAge, now: time.Now}
}

// Handle updates the record of the event's correlation ID. Events the relying party doesn't emit are ignored.
func (m *Manager) Handle(ctx context.Context, event events.Event) error {
	t, ok := transitions[event.Type]
	if !ok {
		return nil
	}
	if event.CorrelationID == "" {
		return fmt.Errorf("%w: %s event without correlation id", oauth.ErrMalformedInput, event.Type)
	}
	if event.Type != events.AuthResponseVerifiedSuccess && event.Type != events.AuthResponseVerifiedFailed {
		if err := m.cleanup(ctx); err != nil {
			log.Logger().WithError(err).Warn("Unable to remove expired session state")
		}
	}
	err := m.update(ctx, t, event)
	if err != nil {
		log.Logger().
			WithError(err).
			WithField(core.LogFieldCorrelationID, event.CorrelationID).
			WithField(core.LogFieldEventType, event.Type).
			Warn("Unable to update session state")
	}
	return err
}

func (m *Manager) update(ctx context.Context, t transition, event events.Event) error {
	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = m.now()
	}
	record := Record{
		CorrelationID: event.CorrelationID,
		Status:        t.status,
		Timestamp:     timestamp,
		LastUpdated:   timestamp,
	}
	existing, err := m.store.GetRecord(ctx, t.kind, event.CorrelationID)
	if err != nil {
		return err
	}
	if existing != nil {
		record.Timestamp = existing.Timestamp
		record.Request = existing.Request
		record.Response = existing.Response
	}
	if event.Error != nil {
		record.Error = event.Error.Error()
	}

	var merged oauth.Payload
	switch subject := event.Subject.(type) {
	case *request.AuthorizationRequest:
		merged = subject.MergedPayloads()
		record.Request = merged
	case *response.AuthorizationResponse:
		record.Response = subject.Payload()
	case oauth.Payload:
		if t.kind == KindRequest {
			record.Request = subject
			merged = subject
		} else {
			record.Response = subject
		}
	}
	var entries []indexEntry
	if t.kind == KindRequest && merged != nil {
		entries = indexEntries(merged)
	}
	// Refuse the event before anything is stored when a nonce or state belongs to another correlation ID.
	for _, entry := range entries {
		existingID, err := m.store.GetIndex(ctx, entry.index, entry.hash)
		if err != nil {
			return err
		}
		if existingID != "" && existingID != event.CorrelationID {
			return conflict(entry.index, existingID, event.CorrelationID)
		}
	}
	if err = m.store.PutRecord(ctx, t.kind, record); err != nil {
		return err
	}
	for _, entry := range entries {
		if err = m.store.SetIndex(ctx, entry.index, entry.hash, event.CorrelationID); err != nil {
			return err
		}
	}
	return nil
}

type indexEntry struct {
	index Index
	hash  int32
}

// indexEntries returns the nonce and state index entries of a request payload, in that order.
func indexEntries(payload oauth.Payload) []indexEntry {
	var result []indexEntry
	for _, curr := range []struct {
		index Index
		key   string
	}{{IndexNonce, oauth.NonceParam}, {IndexState, oauth.StateParam}} {
		if value := payload.Get(curr.key); value != "" {
			result = append(result, indexEntry{index: curr.index, hash: hashCode(value)})
		}
	}
	return result
}

// cleanup removes the records that weren't updated within maxAge.
func (m *Manager) cleanup(ctx context.Context) error {
	if m.maxAge == 0 {
		return nil
	}
	now := m.now()
	for _, kind := range []Kind{KindRequest, KindResponse} {
		records, err := m.store.Records(ctx, kind)
		if err != nil {
			return err
		}
		for _, record := range records {
			lastUpdated := record.LastUpdated
			if lastUpdated.IsZero() {
				lastUpdated = record.Timestamp
			}
			if now.After(lastUpdated.Add(m.maxAge)) {
				if err = m.store.Delete(ctx, record.CorrelationID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// GetCorrelationIDByNonce returns the correlation ID of the request with the given nonce.
func (m *Manager) GetCorrelationIDByNonce(ctx context.Context, nonce string, errorOnNotFound bool) (string, error) {
	return m.correlationID(ctx, IndexNonce, nonce, errorOnNotFound)
}

// GetCorrelationIDByState returns the correlation ID of the request with the given state.
func (m *Manager) GetCorrelationIDByState(ctx context.Context, state string, errorOnNotFound bool) (string, error) {
	return m.correlationID(ctx, IndexState, state, errorOnNotFound)
}

func (m *Manager) correlationID(ctx context.Context, index Index, value string, errorOnNotFound bool) (string, error) {
	if value == "" {
		return "", fmt.Errorf("%w: no %s provided", oauth.ErrMalformedInput, index)
	}
	correlationID, err := m.store.GetIndex(ctx, index, hashCode(value))
	if err != nil {
		return "", err
	}
	if correlationID == "" && errorOnNotFound {
		return "", fmt.Errorf("%w: %s %s", ErrNotFound, index, value)
	}
	return correlationID, nil
}

func (m *Manager) record(ctx context.Context, kind Kind, correlationID string, errorOnNotFound bool) (*Record, error) {
	var record *Record
	if correlationID != "" {
		var err error
		if record, err = m.store.GetRecord(ctx, kind, correlationID); err != nil {
			return nil, err
		}
	}
	if record == nil && errorOnNotFound {
		return nil, fmt.Errorf("%w: %s for correlation id %s", ErrNotFound, kind, correlationID)
	}
	return record, nil
}

func (m *Manager) recordByIndex(ctx context.Context, kind Kind, index Index, value string, errorOnNotFound bool) (*Record, error) {
	correlationID, err := m.correlationID(ctx, index, value, errorOnNotFound)
	if err != nil {
		return nil, err
	}
	return m.record(ctx, kind, correlationID, errorOnNotFound)
}

// GetRequestStateByCorrelationID returns the request record, nil if not found and errorOnNotFound is false.
func (m *Manager) GetRequestStateByCorrelationID(ctx context.Context, correlationID string, errorOnNotFound bool) (*Record, error) {
	if correlationID == "" {
		return nil, fmt.Errorf("%w: no correlation id provided", oauth.ErrMalformedInput)
	}
	return m.record(ctx, KindRequest, correlationID, errorOnNotFound)
}

func (m *Manager) GetRequestStateByNonce(ctx context.Context, nonce string, errorOnNotFound bool) (*Record, error) {
	return m.recordByIndex(ctx, KindRequest, IndexNonce, nonce, errorOnNotFound)
}

func (m *Manager) GetRequestStateByState(ctx context.Context, state string, errorOnNotFound bool) (*Record, error) {
	return m.recordByIndex(ctx, KindRequest, IndexState, state, errorOnNotFound)
}

// GetResponseStateByCorrelationID returns the response record, nil if not found and errorOnNotFound is false.
func (m *Manager) GetResponseStateByCorrelationID(ctx context.Context, correlationID string, errorOnNotFound bool) (*Record, error) {
	if correlationID == "" {
		return nil, fmt.Errorf("%w: no correlation id provided", oauth.ErrMalformedInput)
	}
	return m.record(ctx, KindResponse, correlationID, errorOnNotFound)
}

func (m *Manager) GetResponseStateByNonce(ctx context.Context, nonce string, errorOnNotFound bool) (*Record, error) {
	return m.recordByIndex(ctx, KindResponse, IndexNonce, nonce, errorOnNotFound)
}

func (m *Manager) GetResponseStateByState(ctx context.Context, state string, errorOnNotFound bool) (*Record, error) {
	return m.recordByIndex(ctx, KindResponse, IndexState, state, errorOnNotFound)
}

// DeleteStateForCorrelationID removes the request and response records and the nonce/state index entries.
func (m *Manager) DeleteStateForCorrelationID(ctx context.Context, correlationID string) error {
	return m.store.Delete(ctx, correlationID)
}

// hashCode is a 32-bit rolling hash (h = 31*h + c) over the UTF-16 code units of s.
func hashCode(s string) int32 {
	var h int32 = 1
	for _, c := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(c)
	}
	return h
}

func conflict(index Index, existing string, correlationID string) error {
	return fmt.Errorf("%w: %s maps to %s, not %s", ErrCorrelationConflict, index, existing, correlationID)
}
