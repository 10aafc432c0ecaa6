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

package revocation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	ssi "github.com/nuts-foundation/go-did"
	"github.com/nuts-foundation/go-did/vc"
)

const (
	// StatusList2021CredentialType is the type of StatusList2021Credential
	StatusList2021CredentialType = "StatusList2021Credential"
	// StatusList2021CredentialSubjectType is the credentialSubject.type in a StatusList2021Credential
	StatusList2021CredentialSubjectType = "StatusList2021"
	// StatusList2021EntryType is the credentialStatus.type
	StatusList2021EntryType = "StatusList2021Entry"
	// StatusPurposeRevocation is the only statusPurpose that is checked, others are ignored.
	StatusPurposeRevocation = "revocation"
)

// StatusList2021ContextURI is the JSON-LD context of StatusList2021 credentials.
var StatusList2021ContextURI = ssi.MustParseURI("https://w3id.org/vc/status-list/2021/v1")

var statusList2021CredentialTypeURI = ssi.MustParseURI(StatusList2021CredentialType)

// ErrRevocationCheckFailed is returned when a credential is revoked, or its revocation status can't be determined.
var ErrRevocationCheckFailed = errors.New("revocation check failed")

// ErrRevoked is returned by a Checker when a credential is listed as revoked.
var ErrRevoked = errors.New("credential is revoked")

// ErrMissingChecker is returned when revocation must be checked, but no Checker is configured.
var ErrMissingChecker = errors.New("revocation checker not provided")

// Status is the outcome of a revocation check.
type Status string

const (
	// StatusValid indicates the credential is not revoked.
	StatusValid Status = "valid"
	// StatusInvalid indicates the credential is revoked, or its status couldn't be determined.
	StatusInvalid Status = "invalid"
)

// Mode specifies which credentials are checked for revocation.
type Mode string

const (
	// ModeNever disables revocation checks.
	ModeNever Mode = "never"
	// ModeIfPresent checks credentials that contain a credentialStatus.
	ModeIfPresent Mode = "if_present"
	// ModeAlways checks every credential.
	ModeAlways Mode = "always"
)

// ParseMode parses a Mode, case-insensitive. An empty string yields ModeIfPresent.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(value)) {
	case "", ModeIfPresent:
		return ModeIfPresent, nil
	case ModeNever:
		return ModeNever, nil
	case ModeAlways:
		return ModeAlways, nil
	}
	return "", fmt.Errorf("invalid revocation mode: %s", value)
}

// Checker checks the revocation status of credentials.
type Checker interface {
	// Check returns the revocation status of the credential. The format is either jwt_vc or ldp_vc.
	// An error describes why the status is StatusInvalid.
	Check(ctx context.Context, credential vc.VerifiableCredential, format string) (Status, error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, credential vc.VerifiableCredential, format string) (Status, error)

func (f CheckerFunc) Check(ctx context.Context, credential vc.VerifiableCredential, format string) (Status, error) {
	return f(ctx, credential, format)
}

// StatusList2021Entry is the "credentialStatus" property used by issuers to enable VerifiableCredential status information.
type StatusList2021Entry struct {
	// ID is expected to be a URL that identifies the status information associated with the verifiable credential.
	// It MUST NOT be the URL for the status list, which is in StatusListCredential.
	ID string `json:"id,omitempty"`
	// Type MUST be "StatusList2021Entry"
	Type string `json:"type,omitempty"`
	// StatusPurpose indicates what it means if the VerifiableCredential is on the list.
	// The value is arbitrary, with predefined values `revocation` and `suspension`.
	StatusPurpose string `json:"statusPurpose,omitempty"`
	// StatusListIndex is an arbitrary size integer greater than or equal to 0, expressed as a string.
	// The value identifies the position in the bitstring of the corresponding StatusListCredential.
	StatusListIndex string `json:"statusListIndex,omitempty"`
	// StatusListCredential property MUST be a URL to the StatusList2021Credential.
	StatusListCredential string `json:"statusListCredential,omitempty"`
}

// Validate returns an error if the contents of the StatusList2021Entry are invalid.
func (e StatusList2021Entry) Validate() error {
	// 'id' MUST NOT be the URL for the status list
	if e.ID == e.StatusListCredential {
		return errors.New("StatusList2021Entry.id is the same as the StatusList2021Entry.statusListCredential")
	}
	if e.Type != StatusList2021EntryType {
		return errors.New("StatusList2021Entry.type must be StatusList2021Entry")
	}
	if e.StatusPurpose == "" {
		return errors.New("StatusList2021Entry.statusPurpose is required")
	}
	if n, err := strconv.Atoi(e.StatusListIndex); err != nil || n < 0 {
		return errors.New("invalid StatusList2021Entry.statusListIndex")
	}
	if _, err := url.ParseRequestURI(e.StatusListCredential); err != nil {
		return fmt.Errorf("parse StatusList2021Entry.statusListCredential URL: %w", err)
	}
	return nil
}

// StatusList2021CredentialSubject of a StatusList2021Credential
type StatusList2021CredentialSubject struct {
	ID string `json:"id"`
	// Type MUST be "StatusList2021"
	Type string `json:"type"`
	// StatusPurpose defines the reason credentials are listed. ('revocation', 'suspension')
	StatusPurpose string `json:"statusPurpose"`
	// EncodedList is the GZIP-compressed [RFC1952], base-64 encoded [RFC4648] bitstring values for the associated range
	// of verifiable credential status values.
	EncodedList string `json:"encodedList"`
}
