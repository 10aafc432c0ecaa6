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

package rp

import (
	"fmt"
	"strings"

	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	"github.com/nuts-foundation/nuts-siop/auth/pex"
	"github.com/nuts-foundation/nuts-siop/auth/request"
	"github.com/nuts-foundation/nuts-siop/auth/requestobject"
	"github.com/nuts-foundation/nuts-siop/auth/response"
	"github.com/nuts-foundation/nuts-siop/auth/session"
	"github.com/nuts-foundation/nuts-siop/auth/version"
	"github.com/nuts-foundation/nuts-siop/crypto"
	"github.com/nuts-foundation/nuts-siop/events"
	"github.com/nuts-foundation/nuts-siop/vcr/pe"
	"github.com/nuts-foundation/nuts-siop/vcr/revocation"
	"github.com/nuts-foundation/nuts-siop/vdr/linkeddomains"
)

// Builder configures a relying party. Every With method returns a modified copy, the receiver is never changed.
type Builder struct {
	version       version.Version
	scheme        string
	envelope      oauth.Payload
	requestObject oauth.Payload
	requestBy     oauth.ObjectBy
	signer        *crypto.Signer
	registration  *requestobject.Registration
	verify        response.VerifyOptions
	sink          events.Sink
	sessions      *session.Manager
	// err is the first error of a With method, returned by Build.
	err error
}

// NewBuilder creates a Builder for requests of the given version.
func NewBuilder(v version.Version) Builder {
	return Builder{
		version:       v,
		envelope:      oauth.Payload{},
		requestObject: oauth.Payload{},
		requestBy:     oauth.ObjectBy{PassBy: oauth.PassByValue},
	}
}

// set places a parameter in the envelope and/or request object. No targets means both.
func (b Builder) set(key string, value interface{}, targets oauth.PropertyTarget) Builder {
	b.envelope = b.envelope.Clone()
	b.requestObject = b.requestObject.Clone()
	if targets.Includes(oauth.TargetAuthorizationRequest) {
		b.envelope[key] = value
	}
	if targets.Includes(oauth.TargetRequestObject) {
		b.requestObject[key] = value
	}
	return b
}

func (b Builder) WithVersion(v version.Version) Builder {
	b.version = v
	return b
}

// WithScheme overrides the URI scheme derived from the version.
func (b Builder) WithScheme(scheme string) Builder {
	b.scheme = scheme
	return b
}

func (b Builder) WithScope(scope string, targets oauth.PropertyTarget) Builder {
	return b.set(oauth.ScopeParam, scope, targets)
}

// WithResponseType sets the response_type, multiple types are space separated.
func (b Builder) WithResponseType(responseTypes []string, targets oauth.PropertyTarget) Builder {
	return b.set(oauth.ResponseTypeParam, strings.TrimSpace(strings.Join(responseTypes, " ")), targets)
}

func (b Builder) WithClientID(clientID string, targets oauth.PropertyTarget) Builder {
	b = b.set(oauth.ClientIDParam, clientID, targets)
	b.verify.Audience = clientID
	return b
}

func (b Builder) WithRedirectURI(redirectURI string, targets oauth.PropertyTarget) Builder {
	return b.set(oauth.RedirectURIParam, redirectURI, targets)
}

func (b Builder) WithResponseMode(responseMode string, targets oauth.PropertyTarget) Builder {
	return b.set(oauth.ResponseModeParam, responseMode, targets)
}

func (b Builder) WithIssuer(issuer string, targets oauth.PropertyTarget) Builder {
	return b.set(oauth.IssuerParam, issuer, targets)
}

// WithRequestByReference passes the request object as request_uri pointing to referenceURI.
func (b Builder) WithRequestByReference(referenceURI string) Builder {
	b.requestBy = oauth.ObjectBy{PassBy: oauth.PassByReference, ReferenceURI: referenceURI, Targets: oauth.TargetAuthorizationRequest}
	return b
}

// WithRequestByValue passes the signed request object in the request parameter.
func (b Builder) WithRequestByValue() Builder {
	b.requestBy = oauth.ObjectBy{PassBy: oauth.PassByValue, Targets: oauth.TargetAuthorizationRequest}
	return b
}

// WithoutRequestObject creates plain OAuth2 authorization requests.
func (b Builder) WithoutRequestObject() Builder {
	b.requestBy = oauth.ObjectBy{PassBy: oauth.PassByNone}
	return b
}

// WithSigner sets the signer of the request objects.
func (b Builder) WithSigner(signer *crypto.Signer) Builder {
	b.signer = signer
	return b
}

// WithClientMetadata sets the client metadata, as registration (before D11) or client_metadata.
func (b Builder) WithClientMetadata(metadata oauth.RPRegistrationMetadata, by oauth.ObjectBy) Builder {
	b.registration = &requestobject.Registration{ObjectBy: by, Metadata: metadata}
	return b
}

// WithPresentationDefinition requests verifiable presentations: through the claims parameter before D11,
// as presentation_definition(_uri) parameters from D11 on. Either definition or definitionURI must be set.
func (b Builder) WithPresentationDefinition(definition *pe.PresentationDefinition, definitionURI string, targets oauth.PropertyTarget) Builder {
	if b.version < version.D11 {
		claims, err := pex.CreateClaimsProperties(&pex.Claims{VPToken: &pex.VPTokenClaims{
			PresentationDefinition:    definition,
			PresentationDefinitionURI: definitionURI,
		}})
		if err != nil {
			return b.fail(err)
		}
		if claims == nil {
			return b.fail(fmt.Errorf("%w: no presentation definition", oauth.ErrMalformedInput))
		}
		return b.set(oauth.ClaimsParam, map[string]interface{}(claims), targets)
	}
	switch {
	case definition != nil && definitionURI != "":
		return b.fail(pex.ErrAmbiguousDefinitionSource)
	case definitionURI != "":
		return b.set(oauth.PresentationDefUriParam, definitionURI, targets)
	case definition == nil:
		return b.fail(fmt.Errorf("%w: no presentation definition", oauth.ErrMalformedInput))
	}
	validated, err := pe.ValidateDefinition(*definition)
	if err != nil {
		return b.fail(err)
	}
	var asMap map[string]interface{}
	if err = oauth.Convert(validated, &asMap); err != nil {
		return b.fail(err)
	}
	return b.set(oauth.PresentationDefParam, asMap, targets)
}

func (b Builder) fail(err error) Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// WithVerifier sets the verifier of the ID token signatures.
func (b Builder) WithVerifier(verifier crypto.JWTVerifier) Builder {
	b.verify.Verifier = verifier
	return b
}

func (b Builder) WithPresentationVerifier(verifier pex.PresentationVerifier) Builder {
	b.verify.PresentationVerifier = verifier
	return b
}

func (b Builder) WithEvaluator(evaluator pe.Evaluator) Builder {
	b.verify.Evaluator = evaluator
	return b
}

// WithRevocation sets how credentials in received presentations are checked for revocation.
func (b Builder) WithRevocation(mode revocation.Mode, checker revocation.Checker) Builder {
	b.verify.RevocationMode = mode
	b.verify.RevocationChecker = checker
	return b
}

// WithLinkedDomains sets how the domain linkage of the subject DID of ID tokens is validated.
func (b Builder) WithLinkedDomains(validator request.LinkedDomainValidator, mode linkeddomains.Mode) Builder {
	b.verify.LinkedDomains = validator
	b.verify.LinkedDomainMode = mode
	return b
}

// WithPresentationDefinitions sets the definitions received responses are verified against by default.
func (b Builder) WithPresentationDefinitions(definitions []pex.DefinitionWithLocation) Builder {
	b.verify.PresentationDefinitions = definitions
	return b
}

// WithEventSink sets the sink lifecycle events are emitted to.
func (b Builder) WithEventSink(sink events.Sink) Builder {
	b.sink = sink
	return b
}

// WithSessionManager sets the session manager. It receives all lifecycle events and is used to correlate responses to requests.
func (b Builder) WithSessionManager(manager *session.Manager) Builder {
	b.sessions = manager
	return b
}

// Build creates the relying party.
func (b Builder) Build() (*RP, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.version == 0 {
		return nil, fmt.Errorf("%w: no request version", oauth.ErrMalformedInput)
	}
	if err := b.requestBy.Validate(); err != nil {
		return nil, err
	}
	if b.registration != nil {
		if err := b.registration.Validate(); err != nil {
			return nil, err
		}
	}
	var sink events.Sink = events.Discard
	switch {
	case b.sink != nil && b.sessions != nil:
		sink = events.Multicast{b.sink, b.sessions}
	case b.sink != nil:
		sink = b.sink
	case b.sessions != nil:
		sink = b.sessions
	}
	var requestObjectPayload oauth.Payload
	if b.requestBy.PassBy != oauth.PassByNone {
		requestObjectPayload = b.requestObject.Clone()
	}
	return &RP{
		options: request.Options{
			Version: b.version,
			Scheme:  b.scheme,
			Payload: b.envelope.Clone(),
			RequestObject: &requestobject.Options{
				ObjectBy: b.requestBy,
				Payload:  requestObjectPayload,
				Signer:   b.signer,
			},
			Registration: b.registration,
		},
		verify:   b.verify,
		sink:     sink,
		sessions: b.sessions,
	}, nil
}
