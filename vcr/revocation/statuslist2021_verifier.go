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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nuts-foundation/go-did/vc"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/crypto"
	"github.com/nuts-foundation/nuts-siop/http/client"
	"github.com/nuts-foundation/nuts-siop/vcr/log"
	"github.com/patrickmn/go-cache"
)

// maxAgeExternal is the maximum age of cached StatusList2021Credentials. If older than this they are fetched again.
const maxAgeExternal = 15 * time.Minute

// maxStatusListSize limits the size of downloaded StatusList2021Credentials.
const maxStatusListSize = 10 * 1024 * 1024

// VerifySignFn verifies the signature of a StatusList2021Credential.
type VerifySignFn func(ctx context.Context, credential vc.VerifiableCredential) error

var _ Checker = (*StatusList2021Checker)(nil)

// StatusList2021Checker implements Checker for credentials with a StatusList2021Entry credentialStatus,
// as specified by the W3C Verifiable Credentials Status List v2021 draft (https://www.w3.org/TR/2023/WD-vc-status-list-20230427/).
// Other credentialStatus types and purposes are ignored.
type StatusList2021Checker struct {
	client          core.HTTPRequestDoer
	lists           *cache.Cache
	VerifySignature VerifySignFn
}

// NewStatusList2021Checker creates a StatusList2021Checker that downloads status lists with the given client.
// Status list credentials in JWT format are verified with the given JWTVerifier.
func NewStatusList2021Checker(httpClient core.HTTPRequestDoer, jwtVerifier crypto.JWTVerifier) *StatusList2021Checker {
	return &StatusList2021Checker{
		client:          httpClient,
		lists:           cache.New(maxAgeExternal, 2*maxAgeExternal),
		VerifySignature: jwtSignatureVerifier(jwtVerifier),
	}
}

// jwtSignatureVerifier returns a VerifySignFn that verifies JWT credentials, and the issuer as their signer.
func jwtSignatureVerifier(jwtVerifier crypto.JWTVerifier) VerifySignFn {
	return func(ctx context.Context, credential vc.VerifiableCredential) error {
		if credential.Format() != vc.JWTCredentialProofFormat {
			return errors.New("only StatusList2021Credentials in JWT format are supported")
		}
		verified, err := jwtVerifier.Verify(ctx, credential.Raw(), crypto.VerifyOptions{})
		if err != nil {
			return err
		}
		if verified.Signer != credential.Issuer.String() {
			return fmt.Errorf("StatusList2021Credential is not signed by its issuer (issuer=%s, signer=%s)", credential.Issuer.String(), verified.Signer)
		}
		return nil
	}
}

// statusList is a verified and expanded StatusList2021Credential.
type statusList struct {
	purpose   string
	bitstring bitstring
}

func (cs *StatusList2021Checker) Check(ctx context.Context, credentialToCheck vc.VerifiableCredential, format string) (Status, error) {
	if len(credentialToCheck.CredentialStatus) == 0 {
		return StatusValid, nil
	}
	statuses, err := credentialToCheck.CredentialStatuses()
	if err != nil {
		return StatusInvalid, err
	}

	// only credentialStatus of type StatusList2021Entry with statusPurpose == revocation are checked.
	for _, status := range statuses {
		if status.Type != StatusList2021EntryType {
			log.Logger().
				WithField("credentialStatus.type", status.Type).
				WithField(core.LogFieldCredentialID, credentialToCheck.ID).
				Info("Ignoring credentialStatus with unknown type")
			continue
		}
		var entry StatusList2021Entry
		if err = json.Unmarshal(status.Raw(), &entry); err != nil {
			return StatusInvalid, err
		}
		if entry.StatusPurpose != StatusPurposeRevocation {
			log.Logger().
				WithField("credentialStatus.statusPurpose", entry.StatusPurpose).
				WithField(core.LogFieldCredentialID, credentialToCheck.ID).
				Info("Ignoring credentialStatus with purpose other than 'revocation'")
			continue
		}
		if err = entry.Validate(); err != nil {
			return StatusInvalid, err
		}

		list, err := cs.statusList(ctx, entry.StatusListCredential)
		if err != nil {
			return StatusInvalid, fmt.Errorf("status list: %w", err)
		}
		if list.purpose != entry.StatusPurpose {
			return StatusInvalid, fmt.Errorf("StatusList2021Credential.credentialSubject.statusPurpose='%s' does not match vc.credentialStatus.statusPurpose='%s'", list.purpose, entry.StatusPurpose)
		}
		index, _ := strconv.Atoi(entry.StatusListIndex) // validated
		revoked, err := list.bitstring.bit(index)
		if err != nil {
			return StatusInvalid, err
		}
		if revoked {
			log.Logger().
				WithField(core.LogFieldCredentialID, credentialToCheck.ID).
				WithField("format", format).
				Debug("Credential is revoked")
			return StatusInvalid, ErrRevoked
		}
	}
	return StatusValid, nil
}

func (cs *StatusList2021Checker) statusList(ctx context.Context, statusListCredential string) (*statusList, error) {
	if cached, ok := cs.lists.Get(statusListCredential); ok {
		return cached.(*statusList), nil
	}
	credential, err := cs.download(ctx, statusListCredential)
	if err != nil {
		return nil, err
	}
	subject, err := cs.verify(ctx, *credential)
	if err != nil {
		return nil, err
	}
	if !references(*credential, *subject, statusListCredential) {
		return nil, fmt.Errorf("wrong credential: expected '%s', got '%s'", statusListCredential, subject.ID)
	}
	expanded, err := expand(subject.EncodedList)
	if err != nil {
		return nil, err
	}
	result := &statusList{purpose: subject.StatusPurpose, bitstring: expanded}

	// don't cache beyond the expiration of the credential
	expiration := maxAgeExternal
	if credential.ExpirationDate != nil && !credential.ExpirationDate.IsZero() {
		if untilExpiry := time.Until(*credential.ExpirationDate); untilExpiry < expiration {
			expiration = untilExpiry
		}
	}
	if expiration > 0 {
		cs.lists.Set(statusListCredential, result, expiration)
	}
	return result, nil
}

// references returns true if the StatusList2021Credential or its subject is identified by the given URL.
func references(credential vc.VerifiableCredential, subject StatusList2021CredentialSubject, statusListCredential string) bool {
	if credential.ID != nil && credential.ID.String() == statusListCredential {
		return true
	}
	return strings.TrimSuffix(subject.ID, "#list") == statusListCredential
}

// download the StatusList2021Credential found at statusList2021Entry.statusListCredential
func (cs *StatusList2021Checker) download(ctx context.Context, statusListCredential string) (*vc.VerifiableCredential, error) {
	response, err := client.DoWithRetry(ctx, cs.client, client.DefaultAttempts, func(ctx context.Context) (*http.Request, error) {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, statusListCredential, nil)
		if err != nil {
			return nil, err
		}
		request.Header.Set("Accept", "application/vc+ld+json, application/vc+jwt, application/json")
		return request, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching StatusList2021Credential from '%s' failed: %w", statusListCredential, err)
	}
	defer response.Body.Close()
	if err = core.TestResponseCodeWithLog(http.StatusOK, response, log.Logger()); err != nil {
		return nil, fmt.Errorf("fetching StatusList2021Credential from '%s' failed: %w", statusListCredential, err)
	}
	body, err := io.ReadAll(io.LimitReader(response.Body, maxStatusListSize))
	if err != nil {
		return nil, err
	}
	// JSON-LD credentials are objects, JWT credentials are served as compact JWT
	return vc.ParseVerifiableCredential(strings.TrimSpace(string(body)))
}

// verify returns the StatusList2021Credential's StatusList2021CredentialSubject,
// or an error if the signature is invalid or the StatusList2021Credential is malformed.
func (cs *StatusList2021Checker) verify(ctx context.Context, credential vc.VerifiableCredential) (*StatusList2021CredentialSubject, error) {
	subject, err := validate(credential)
	if err != nil {
		return nil, err
	}
	if _, err = expand(subject.EncodedList); err != nil {
		return nil, fmt.Errorf("credentialSubject.encodedList is invalid: %w", err)
	}
	if err = cs.VerifySignature(ctx, credential); err != nil {
		return nil, err
	}
	return subject, nil
}

// validate returns an error when the StatusList2021Credential is malformed.
func validate(credential vc.VerifiableCredential) (*StatusList2021CredentialSubject, error) {
	if !credential.ContainsContext(vc.VCContextV1URI()) {
		return nil, errors.New("default context is required")
	}
	if !credential.ContainsContext(StatusList2021ContextURI) {
		return nil, fmt.Errorf("context '%s' is required", StatusList2021ContextURI)
	}
	if !credential.IsType(vc.VerifiableCredentialTypeV1URI()) {
		return nil, errors.New("type 'VerifiableCredential' is required")
	}
	if !credential.IsType(statusList2021CredentialTypeURI) {
		return nil, fmt.Errorf("type '%s' is required", statusList2021CredentialTypeURI)
	}
	if len(credential.Type) > 2 {
		return nil, errors.New("StatusList2021Credential contains other types")
	}
	if credential.ID == nil {
		return nil, errors.New("'ID' is required")
	}
	if credential.IssuanceDate.IsZero() {
		return nil, errors.New("issuanceDate is required")
	}
	// prevent infinite loops in credentialStatus resolution
	if credential.CredentialStatus != nil {
		return nil, errors.New("StatusList2021Credential with a CredentialStatus is not supported")
	}

	var subjects []StatusList2021CredentialSubject
	if err := credential.UnmarshalCredentialSubject(&subjects); err != nil {
		return nil, err
	}
	if len(subjects) != 1 {
		return nil, errors.New("single credentialSubject expected")
	}
	subject := subjects[0]
	if subject.Type != StatusList2021CredentialSubjectType {
		return nil, fmt.Errorf("credentialSubject.type '%s' is required", StatusList2021CredentialSubjectType)
	}
	if subject.StatusPurpose == "" {
		return nil, errors.New("credentialSubject.statusPurpose is required")
	}
	if subject.EncodedList == "" {
		return nil, errors.New("credentialSubject.encodedList is required")
	}
	return &subject, nil
}
