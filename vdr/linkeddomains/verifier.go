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

package linkeddomains

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nuts-foundation/go-did/did"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/crypto"
	"github.com/nuts-foundation/nuts-siop/http/client"
	"github.com/nuts-foundation/nuts-siop/vdr/log"
	"github.com/nuts-foundation/nuts-siop/vdr/resolver"
)

// WellKnownPath is the path of the DID configuration resource relative to an origin.
const WellKnownPath = "/.well-known/did-configuration.json"

// DomainLinkageCredentialType is the credential type of domain linkage credentials.
const DomainLinkageCredentialType = "DomainLinkageCredential"

// ErrNoLinkedDomainsService is returned when the DID document does not contain a LinkedDomains service.
var ErrNoLinkedDomainsService = errors.New("DID document does not contain a LinkedDomains service")

// ErrNoLinkedDIDs is returned when a DID configuration resource does not contain the linked_dids property.
var ErrNoLinkedDIDs = errors.New("property linked_dids is not present")

// ErrNoDomainLinkageCredentials is returned when linked_dids does not contain any domain linkage credentials.
var ErrNoDomainLinkageCredentials = errors.New("property linked_dids does not contain any domain linkage credentials")

// Status is the outcome of a domain linkage verification.
type Status string

const (
	// StatusValid indicates all origins of the DID's LinkedDomains services link back to the DID.
	StatusValid Status = "VALID"
	// StatusInvalid indicates at least one origin could not be verified.
	StatusInvalid Status = "INVALID"
)

// Verifier verifies the domain linkage of a DID document.
type Verifier interface {
	// Verify checks that every origin listed in the LinkedDomains services of the document
	// serves a DID configuration resource with a valid domain linkage credential for the DID.
	// The returned error describes why the status is StatusInvalid.
	Verify(ctx context.Context, document did.Document) (Status, error)
}

var _ Verifier = (*DIFVerifier)(nil)

// DIFVerifier implements the DIF Well Known DID Configuration (https://identity.foundation/.well-known/resources/did-configuration/)
// for domain linkage credentials in JWT format.
type DIFVerifier struct {
	HttpClient  core.HTTPRequestDoer
	JWTVerifier crypto.JWTVerifier
}

// NewDIFVerifier creates a DIFVerifier.
func NewDIFVerifier(httpClient core.HTTPRequestDoer, jwtVerifier crypto.JWTVerifier) *DIFVerifier {
	return &DIFVerifier{HttpClient: httpClient, JWTVerifier: jwtVerifier}
}

type didConfiguration struct {
	Context    interface{}       `json:"@context"`
	LinkedDIDs []json.RawMessage `json:"linked_dids"`
}

func (v DIFVerifier) Verify(ctx context.Context, document did.Document) (Status, error) {
	services := resolver.FindServices(document, resolver.LinkedDomainsServiceType)
	if len(services) == 0 {
		return StatusInvalid, ErrNoLinkedDomainsService
	}
	for _, service := range services {
		origins, err := resolver.ServiceEndpointURLs(service)
		if err != nil {
			return StatusInvalid, err
		}
		for _, origin := range origins {
			if err = v.verifyOrigin(ctx, document.ID.String(), origin); err != nil {
				log.Logger().
					WithError(err).
					WithField(core.LogFieldDID, document.ID.String()).
					WithField(core.LogFieldServiceEndpoint, origin).
					Debug("Domain linkage verification failed")
				return StatusInvalid, fmt.Errorf("origin %s: %w", origin, err)
			}
		}
	}
	return StatusValid, nil
}

func (v DIFVerifier) verifyOrigin(ctx context.Context, subjectDID string, origin string) error {
	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		return fmt.Errorf("invalid origin: %s", origin)
	}
	configuration, err := v.fetchConfiguration(ctx, originURL)
	if err != nil {
		return err
	}
	if configuration.LinkedDIDs == nil {
		return ErrNoLinkedDIDs
	}
	var credentials []string
	for _, linkedDID := range configuration.LinkedDIDs {
		var token string
		// linked data proof credentials are objects; only JWT credentials are supported
		if json.Unmarshal(linkedDID, &token) == nil {
			credentials = append(credentials, token)
		}
	}
	if len(credentials) == 0 {
		return ErrNoDomainLinkageCredentials
	}
	var lastErr error
	for _, credential := range credentials {
		lastErr = v.verifyCredential(ctx, credential, subjectDID, originURL)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (v DIFVerifier) fetchConfiguration(ctx context.Context, origin *url.URL) (*didConfiguration, error) {
	target := origin.Scheme + "://" + origin.Host + WellKnownPath
	httpResponse, err := client.DoWithRetry(ctx, v.HttpClient, client.DefaultAttempts, func(ctx context.Context) (*http.Request, error) {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		request.Header.Set("Accept", "application/json")
		return request, nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to fetch DID configuration: %w", err)
	}
	defer httpResponse.Body.Close()
	if err = core.TestResponseCodeWithLog(http.StatusOK, httpResponse, log.Logger()); err != nil {
		return nil, fmt.Errorf("unable to fetch DID configuration: %w", err)
	}
	var result didConfiguration
	if err = json.NewDecoder(httpResponse.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("invalid DID configuration: %w", err)
	}
	return &result, nil
}

func (v DIFVerifier) verifyCredential(ctx context.Context, credential string, subjectDID string, origin *url.URL) error {
	verified, err := v.JWTVerifier.Verify(ctx, credential, crypto.VerifyOptions{})
	if err != nil {
		return err
	}
	iss, _ := verified.Payload["iss"].(string)
	sub, _ := verified.Payload["sub"].(string)
	if iss != subjectDID || sub != subjectDID {
		return errors.New("domain linkage credential 'iss' and 'sub' must equal the DID")
	}
	vc, _ := verified.Payload["vc"].(map[string]interface{})
	if vc == nil {
		return errors.New("domain linkage credential does not contain 'vc'")
	}
	if !containsType(vc["type"], DomainLinkageCredentialType) {
		return ErrNoDomainLinkageCredentials
	}
	subject, _ := vc["credentialSubject"].(map[string]interface{})
	subjectID, _ := subject["id"].(string)
	subjectOrigin, _ := subject["origin"].(string)
	if subjectID != subjectDID {
		return errors.New("domain linkage credential subject does not match the DID")
	}
	if !sameOrigin(subjectOrigin, origin) {
		return fmt.Errorf("domain linkage credential origin mismatch: %s", subjectOrigin)
	}
	return nil
}

func containsType(types interface{}, expected string) bool {
	switch t := types.(type) {
	case string:
		return t == expected
	case []interface{}:
		for _, curr := range t {
			if curr == expected {
				return true
			}
		}
	}
	return false
}

func sameOrigin(value string, origin *url.URL) bool {
	parsed, err := url.Parse(value)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Scheme, origin.Scheme) && strings.EqualFold(parsed.Host, origin.Host)
}
