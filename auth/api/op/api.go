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

// Package op is the HTTP API of the OpenID provider (wallet) side.
package op

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nuts-foundation/go-did/vc"
	"github.com/nuts-foundation/nuts-siop/auth"
	"github.com/nuts-foundation/nuts-siop/auth/idtoken"
	"github.com/nuts-foundation/nuts-siop/auth/log"
	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	siop "github.com/nuts-foundation/nuts-siop/auth/op"
	"github.com/nuts-foundation/nuts-siop/auth/pex"
	"github.com/nuts-foundation/nuts-siop/auth/request"
	"github.com/nuts-foundation/nuts-siop/auth/requestobject"
	"github.com/nuts-foundation/nuts-siop/auth/version"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/crypto"
	httpModule "github.com/nuts-foundation/nuts-siop/http"
	"github.com/nuts-foundation/nuts-siop/vdr/linkeddomains"
)

const apiModuleName = auth.ModuleName + "/OP"

const requestPath = "/siop/op/request"

var _ core.ErrorStatusCodeResolver = (*Wrapper)(nil)

// Wrapper implements the OpenID provider HTTP API.
type Wrapper struct {
	Auth auth.SIOP
}

// VerifyRequest is the body of POST /siop/op/request.
type VerifyRequest struct {
	// Request is an authorization request URI or a request object JWT.
	Request string `json:"request"`
	State   string `json:"state,omitempty"`
	Nonce   string `json:"nonce,omitempty"`

	// Submit creates an ID token response and posts it to the relying party.
	Submit bool `json:"submit,omitempty"`
	// Credentials are presented when the request contains a presentation definition and Submit is set.
	Credentials []vc.VerifiableCredential `json:"credentials,omitempty"`
}

// VerifiedRequest is the response of POST /siop/op/request.
type VerifiedRequest struct {
	CorrelationID           string                        `json:"correlation_id"`
	ClientID                string                        `json:"client_id"`
	RedirectURI             string                        `json:"redirect_uri,omitempty"`
	ResponseType            string                        `json:"response_type"`
	Scope                   string                        `json:"scope,omitempty"`
	Versions                []string                      `json:"versions"`
	ClientMetadata          *oauth.RPRegistrationMetadata `json:"client_metadata,omitempty"`
	PresentationDefinitions []pex.DefinitionWithLocation  `json:"presentation_definitions,omitempty"`

	// Submitted is true when the response was accepted by the relying party.
	Submitted bool `json:"submitted"`
}

// Routes registers the OpenID provider endpoints.
func (w Wrapper) Routes(router core.EchoRouter) {
	router.POST(requestPath, w.handleVerifyRequest)
}

// ResolveStatusCode maps errors returned by this API to specific HTTP status codes.
func (w Wrapper) ResolveStatusCode(err error) int {
	return core.ResolveStatusCode(err, map[error]int{
		oauth.ErrMalformedInput:                http.StatusBadRequest,
		oauth.ErrCredentialFormatsNotSupported: http.StatusBadRequest,
		oauth.ErrCredentialFormatsNotProvided:  http.StatusBadRequest,
		oauth.ErrDIDMethodsNotSupported:        http.StatusBadRequest,
		oauth.ErrInvalidClientMetadata:         http.StatusBadRequest,
		version.ErrUnsupportedVersion:          http.StatusBadRequest,
		request.ErrStateMismatch:               http.StatusBadRequest,
		request.ErrNonceMismatch:               http.StatusBadRequest,
		request.ErrMissingSignedRequestObject:  http.StatusBadRequest,
		requestobject.ErrRegistrationConflict:  http.StatusBadRequest,
		crypto.ErrInvalidJWT:                   http.StatusBadRequest,
		crypto.ErrSignatureVerification:        http.StatusBadRequest,
		linkeddomains.ErrLinkedDomainInvalid:   http.StatusBadRequest,
		pex.ErrAmbiguousDefinitionSource:       http.StatusBadRequest,
		idtoken.ErrMissingSigner:               http.StatusBadRequest,
		idtoken.ErrUnsupportedResponseVersion:  http.StatusBadRequest,
		idtoken.ErrMissingSubject:              http.StatusBadRequest,
		siop.ErrCorrelationMismatch:            http.StatusBadRequest,
		siop.ErrNoMatchingCredentials:          http.StatusBadRequest,
		request.ErrRequestConflict:             http.StatusBadRequest,
	})
}

// handleVerifyRequest verifies an authorization request and, when asked to, answers it with an ID token.
func (w Wrapper) handleVerifyRequest(echoCtx echo.Context) error {
	httpModule.Preprocess(echoCtx, w, apiModuleName, "VerifyRequest")
	var body VerifyRequest
	if err := echoCtx.Bind(&body); err != nil {
		return core.InvalidInputError("invalid request body: %w", err)
	}
	if body.Request == "" {
		return core.InvalidInputError("request is required")
	}
	ctx := echoCtx.Request().Context()
	provider := w.Auth.Provider()
	verified, err := provider.VerifyAuthorizationRequest(ctx, body.Request, siop.VerifyRequestOptions{
		State: body.State,
		Nonce: body.Nonce,
	})
	if err != nil {
		return err
	}
	result := VerifiedRequest{
		CorrelationID:           verified.CorrelationID,
		ClientID:                verified.Payload.Get(oauth.ClientIDParam),
		RedirectURI:             verified.RedirectURI,
		ResponseType:            verified.Payload.Get(oauth.ResponseTypeParam),
		Scope:                   verified.Payload.Get(oauth.ScopeParam),
		ClientMetadata:          verified.RegistrationMetadata,
		PresentationDefinitions: verified.PresentationDefinitions,
	}
	for _, v := range verified.Versions {
		result.Versions = append(result.Versions, v.String())
	}
	if !body.Submit {
		return echoCtx.JSON(http.StatusOK, result)
	}
	created, err := provider.CreateAuthorizationResponse(ctx, verified, siop.CreateResponseOptions{Credentials: body.Credentials})
	if err != nil {
		return err
	}
	httpResponse, err := provider.SubmitAuthorizationResponse(ctx, *created)
	if err != nil {
		return core.Error(http.StatusBadGateway, "relying party rejected the authorization response: %w", err)
	}
	_, _ = io.Copy(io.Discard, httpResponse.Body)
	_ = httpResponse.Body.Close()
	log.Logger().
		WithContext(ctx).
		WithField(core.LogFieldCorrelationID, created.CorrelationID).
		WithField(core.LogFieldClientID, result.ClientID).
		Info("Authorization response submitted")
	result.Submitted = true
	return echoCtx.JSON(http.StatusOK, result)
}
