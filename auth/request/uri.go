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

package request

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/nuts-foundation/nuts-siop/auth/codec"
	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	"github.com/nuts-foundation/nuts-siop/auth/pex"
	"github.com/nuts-foundation/nuts-siop/auth/requestobject"
	"github.com/nuts-foundation/nuts-siop/auth/version"
	"github.com/nuts-foundation/nuts-siop/crypto"
)

const (
	// SchemeOpenID is the URI scheme of SIOPv2 authorization requests.
	SchemeOpenID = "openid://"
	// SchemeOpenIDVC is the URI scheme of authorization requests following the JWT VC Presentation Profile.
	SchemeOpenIDVC = "openid-vc://"
)

var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-_]*://`)

// URI is the form-encoded URI representation of an authorization request.
type URI struct {
	Scheme     string
	EncodedURI string
	// AuthorizationRequestPayload is the envelope payload as encoded in the URI.
	AuthorizationRequestPayload oauth.Payload
	// RequestObjectJWT is the request object, passed by value or fetched from request_uri.
	RequestObjectJWT string
	// RegistrationMetadata is the resolved client metadata, only set for parsed URIs.
	RegistrationMetadata *oauth.RPRegistrationMetadata
}

func (u URI) String() string {
	return u.EncodedURI
}

// RequestObjectBy returns how the request object is passed in the URI.
func (u URI) RequestObjectBy() oauth.ObjectBy {
	if u.RequestObjectJWT == "" {
		return oauth.ObjectBy{PassBy: oauth.PassByNone}
	}
	if uri := u.AuthorizationRequestPayload.Get(oauth.RequestURIParam); uri != "" {
		return oauth.ObjectBy{PassBy: oauth.PassByReference, ReferenceURI: uri}
	}
	return oauth.ObjectBy{PassBy: oauth.PassByValue}
}

// MetadataObjectBy returns how the client metadata is passed in the URI.
func (u URI) MetadataObjectBy() oauth.ObjectBy {
	payload := u.AuthorizationRequestPayload
	for _, keys := range [][2]string{
		{oauth.RegistrationParam, oauth.RegistrationURIParam},
		{oauth.ClientMetadataParam, oauth.ClientMetadataURIParam},
	} {
		if uri := payload.Get(keys[1]); uri != "" {
			return oauth.ObjectBy{PassBy: oauth.PassByReference, ReferenceURI: uri}
		}
		if payload.Has(keys[0]) {
			return oauth.ObjectBy{PassBy: oauth.PassByValue}
		}
	}
	return oauth.ObjectBy{PassBy: oauth.PassByNone}
}

// URIOptions configures how an authorization request is encoded as URI.
type URIOptions struct {
	// ObjectBy specifies how the request object is passed in the URI.
	oauth.ObjectBy
	Version version.Version
	// Scheme overrides the scheme derived from the version.
	Scheme string
}

// URIFromOptions creates an authorization request from the given options and encodes it as URI.
func URIFromOptions(ctx context.Context, opts Options) (*URI, error) {
	request, err := FromOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	return request.URI(ctx)
}

// URIFromRequest encodes the given authorization request as URI.
func URIFromRequest(ctx context.Context, request *AuthorizationRequest) (*URI, error) {
	if request == nil {
		return nil, fmt.Errorf("%w: no authorization request", oauth.ErrMalformedInput)
	}
	var opts URIOptions
	if request.options != nil {
		opts = URIOptions{
			ObjectBy: request.options.RequestObject.ObjectBy,
			Version:  request.options.Version,
			Scheme:   request.options.Scheme,
		}
	} else {
		opts.ObjectBy = requestObjectByOfPayload(request.payload, request.requestObject)
	}
	return URIFromRequestPayload(ctx, opts, request.payload, request.requestObject)
}

// URIFromRequestPayload encodes the envelope payload as URI, placing the request object according to the options.
// Presentation definitions passed by value and client metadata in the request object are validated.
func URIFromRequestPayload(ctx context.Context, opts URIOptions, payload oauth.Payload, requestObject *requestobject.RequestObject) (*URI, error) {
	if opts.PassBy == "" {
		return nil, fmt.Errorf("%w: request object pass by is not set", oauth.ErrMalformedInput)
	}
	if payload == nil {
		if requestObject == nil {
			return nil, fmt.Errorf("%w: no authorization request payload or request object", oauth.ErrMalformedInput)
		}
		// the URI will only contain request or request_uri
		payload = oauth.Payload{}
	}
	jwt := payload.Get(oauth.RequestParam)
	if requestObject != nil {
		var err error
		if jwt, err = requestObject.Sign(ctx); err != nil {
			return nil, err
		}
	}
	var requestObjectPayload oauth.Payload
	if jwt != "" {
		decoded, err := crypto.DecodeJWT(jwt)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid request object: %w", oauth.ErrMalformedInput, err)
		}
		requestObjectPayload = decoded.Payload
		if err = requestobject.AssertValidPayload(requestObjectPayload); err != nil {
			return nil, err
		}
		if registration := requestObjectPayload[oauth.RegistrationParam]; registration != nil {
			if _, err = oauth.ParseRPRegistrationMetadata(registration); err != nil {
				return nil, err
			}
		}
	}
	merged := payload.Merge(requestObjectPayload)
	if _, err := pex.FindValidPresentationDefinitions(ctx, definitionsByValue(merged), 0, nil); err != nil {
		return nil, err
	}

	result := payload.Clone()
	switch opts.PassBy {
	case oauth.PassByReference:
		if opts.ReferenceURI == "" {
			return nil, fmt.Errorf("%w: pass by reference requires a reference URI", oauth.ErrMalformedInput)
		}
		result[oauth.RequestURIParam] = opts.ReferenceURI
		delete(result, oauth.RequestParam)
	case oauth.PassByValue:
		if jwt == "" {
			return nil, ErrMissingSignedRequestObject
		}
		result[oauth.RequestParam] = jwt
		delete(result, oauth.RequestURIParam)
	}
	scheme := uriScheme(opts, merged)
	encoded, err := codec.AppendToURL(scheme, result)
	if err != nil {
		return nil, err
	}
	return &URI{
		Scheme:                      scheme,
		EncodedURI:                  encoded,
		AuthorizationRequestPayload: result,
		RequestObjectJWT:            jwt,
	}, nil
}

// uriScheme returns the scheme from the options, or derives it from the version.
func uriScheme(opts URIOptions, payload oauth.Payload) string {
	if opts.Scheme != "" {
		return strings.TrimSuffix(opts.Scheme, "://") + "://"
	}
	v := opts.Version
	if v == 0 {
		if versions, err := version.Discover(payload); err == nil {
			v = versions[0]
		}
	}
	if v == version.JWTVCPresentationProfileV1 {
		return SchemeOpenIDVC
	}
	return SchemeOpenID
}

// ParseURI splits an authorization request URI into its scheme (including '://') and envelope payload.
func ParseURI(uri string) (string, oauth.Payload, error) {
	if uri == "" {
		return "", nil, fmt.Errorf("%w: no authorization request URI", oauth.ErrMalformedInput)
	}
	scheme := schemePattern.FindString(uri)
	if scheme == "" {
		return "", nil, fmt.Errorf("%w: authorization request URI has no scheme", oauth.ErrMalformedInput)
	}
	payload, err := codec.DecodeURIAsJSON(uri)
	if err != nil {
		return "", nil, err
	}
	return scheme, payload, nil
}

// ParseAndResolveURI parses an authorization request URI, fetching the request object and client metadata when passed by reference.
func ParseAndResolveURI(ctx context.Context, uri string, fetcher codec.Fetcher) (*URI, error) {
	scheme, payload, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	jwt, err := codec.FetchByReferenceOrUseByValue[string](ctx, fetcher, payload.Get(oauth.RequestURIParam), payload[oauth.RequestParam])
	if err != nil {
		return nil, fmt.Errorf("request object: %w", err)
	}
	result := &URI{
		Scheme:                      scheme,
		EncodedURI:                  uri,
		AuthorizationRequestPayload: payload,
	}
	if jwt != nil {
		result.RequestObjectJWT = *jwt
	}

	metadataURI := payload.Get(oauth.ClientMetadataURIParam)
	if metadataURI == "" {
		metadataURI = payload.Get(oauth.RegistrationURIParam)
	}
	metadataValue := payload[oauth.ClientMetadataParam]
	if metadataValue == nil {
		metadataValue = payload[oauth.RegistrationParam]
	}
	metadata, err := codec.FetchByReferenceOrUseByValue[oauth.RPRegistrationMetadata](ctx, fetcher, metadataURI, metadataValue)
	if err != nil {
		return nil, fmt.Errorf("client metadata: %w", err)
	}
	if metadata != nil {
		if err = oauth.AssertValidRPRegistrationMetadata(*metadata); err != nil {
			return nil, err
		}
		result.RegistrationMetadata = metadata
	}
	return result, nil
}

func requestObjectByOfPayload(payload oauth.Payload, requestObject *requestobject.RequestObject) oauth.ObjectBy {
	if uri := payload.Get(oauth.RequestURIParam); uri != "" {
		return oauth.ObjectBy{PassBy: oauth.PassByReference, ReferenceURI: uri}
	}
	if requestObject != nil || payload.Has(oauth.RequestParam) {
		return oauth.ObjectBy{PassBy: oauth.PassByValue}
	}
	return oauth.ObjectBy{PassBy: oauth.PassByNone}
}

// definitionsByValue removes the presentation definition references from the payload.
func definitionsByValue(payload oauth.Payload) oauth.Payload {
	result := payload.Without(oauth.PresentationDefUriParam)
	claims := result.Object(oauth.ClaimsParam)
	if claims == nil {
		return result
	}
	vpToken, ok := claims[oauth.VpTokenParam].(map[string]interface{})
	if !ok {
		return result
	}
	claimsCopy := oauth.Payload(claims).Clone()
	claimsCopy[oauth.VpTokenParam] = map[string]interface{}(oauth.Payload(vpToken).Without(oauth.PresentationDefUriParam))
	result[oauth.ClaimsParam] = map[string]interface{}(claimsCopy)
	return result
}
