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

// Package rp is the HTTP API of the relying party: it creates authorization requests, serves request objects and
// presentation definitions passed by reference and receives the authorization responses of wallets.
package rp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/nuts-foundation/nuts-siop/auth"
	"github.com/nuts-foundation/nuts-siop/auth/codec"
	"github.com/nuts-foundation/nuts-siop/auth/idtoken"
	"github.com/nuts-foundation/nuts-siop/auth/log"
	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	"github.com/nuts-foundation/nuts-siop/auth/pex"
	"github.com/nuts-foundation/nuts-siop/auth/request"
	"github.com/nuts-foundation/nuts-siop/auth/response"
	siop "github.com/nuts-foundation/nuts-siop/auth/rp"
	"github.com/nuts-foundation/nuts-siop/auth/session"
	"github.com/nuts-foundation/nuts-siop/auth/version"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/crypto"
	httpModule "github.com/nuts-foundation/nuts-siop/http"
	"github.com/nuts-foundation/nuts-siop/http/cache"
	"github.com/nuts-foundation/nuts-siop/storage"
	"github.com/nuts-foundation/nuts-siop/vcr/pe"
	"github.com/nuts-foundation/nuts-siop/vcr/revocation"
	"github.com/nuts-foundation/nuts-siop/vdr/linkeddomains"
)

const apiModuleName = auth.ModuleName + "/RP"

const (
	requestPath       = "/siop/rp/request"
	requestObjectPath = "/siop/rp/request/:id"
	definitionPath    = "/siop/rp/definition/:id"
	sessionPath       = "/siop/rp/session/:id"
)

// RequestObjectContentType is the media type of request objects served by reference (RFC 9101).
const RequestObjectContentType = "application/oauth-authz-req+jwt"

// requestObjectTTL is how long a request object can be retrieved after it was created.
const requestObjectTTL = 5 * time.Minute

// definitionMaxAge is how long clients may cache presentation definitions.
const definitionMaxAge = time.Hour

var errRelyingPartyDisabled = core.NotFoundError("relying party is disabled, set auth.clientid to enable it")

var _ core.ErrorStatusCodeResolver = (*Wrapper)(nil)

// Wrapper implements the relying party HTTP API.
type Wrapper struct {
	Auth auth.SIOP

	// Storage holds the request objects served by reference.
	Storage *storage.Engine
}

// CreateRequest is the body of POST /siop/rp/request.
type CreateRequest struct {
	// DefinitionID requests a verifiable presentation for the presentation definition with this ID.
	DefinitionID string `json:"definition_id,omitempty"`
	State        string `json:"state,omitempty"`
	Nonce        string `json:"nonce,omitempty"`
}

// CreateRequestResponse is the response of POST /siop/rp/request.
type CreateRequestResponse struct {
	CorrelationID string `json:"correlation_id"`
	// RequestURI is the authorization request URI, to be presented to the wallet (e.g. as QR code).
	RequestURI string `json:"request_uri"`
	State      string `json:"state"`
	Nonce      string `json:"nonce"`
}

// ResponseResult is the response of POST /siop/rp/response.
type ResponseResult struct {
	CorrelationID string `json:"correlation_id"`
	Status        string `json:"status"`
	Issuer        string `json:"issuer,omitempty"`
	Subject       string `json:"subject,omitempty"`

	// Presentations is the number of verified presentations in the response.
	Presentations int `json:"presentations"`
}

// SessionState is the response of GET /siop/rp/session/:id.
type SessionState struct {
	Request  *session.Record `json:"request,omitempty"`
	Response *session.Record `json:"response,omitempty"`
}

// storedRequest is a request object that is served by reference.
type storedRequest struct {
	RequestObject string          `json:"request_object"`
	DefinitionID  string          `json:"definition_id,omitempty"`
	Version       version.Version `json:"version"`
}

// Routes registers the relying party endpoints.
func (w Wrapper) Routes(router core.EchoRouter) {
	router.Use(cache.NoStore(requestObjectPath, sessionPath).Handle)
	router.Use(cache.MaxAge(definitionMaxAge, definitionPath).Handle)
	router.POST(requestPath, w.handleCreateRequest)
	router.GET(requestObjectPath, w.handleGetRequestObject)
	router.GET(definitionPath, w.handleGetDefinition)
	router.POST(auth.ResponsePath, w.handleAuthorizationResponse)
	router.GET(sessionPath, w.handleGetSession)
}

// ResolveStatusCode maps errors returned by this API to specific HTTP status codes.
func (w Wrapper) ResolveStatusCode(err error) int {
	return core.ResolveStatusCode(err, map[error]int{
		oauth.ErrMalformedInput:              http.StatusBadRequest,
		session.ErrNotFound:                  http.StatusNotFound,
		session.ErrCorrelationConflict:       http.StatusConflict,
		storage.ErrNotFound:                  http.StatusNotFound,
		version.ErrUnsupportedVersion:        http.StatusBadRequest,
		request.ErrStateMismatch:             http.StatusBadRequest,
		request.ErrNonceMismatch:             http.StatusBadRequest,
		response.ErrPayloadMismatch:          http.StatusBadRequest,
		idtoken.ErrInvalidIDToken:            http.StatusBadRequest,
		crypto.ErrInvalidJWT:                 http.StatusBadRequest,
		crypto.ErrSignatureVerification:      http.StatusBadRequest,
		pex.ErrAuthRequestExpectsVP:          http.StatusBadRequest,
		pex.ErrAuthRequestDoesntExpectVP:     http.StatusBadRequest,
		pex.ErrPresentationSignatureInvalid:  http.StatusBadRequest,
		pex.ErrMissingSubmission:             http.StatusBadRequest,
		pe.ErrSubmissionMismatch:             http.StatusBadRequest,
		pe.ErrInvalidPresentationSubmission:  http.StatusBadRequest,
		revocation.ErrRevoked:                http.StatusBadRequest,
		linkeddomains.ErrLinkedDomainInvalid: http.StatusBadRequest,
	})
}

func (w Wrapper) requestStore() storage.SessionStore {
	return w.Storage.GetSessionDatabase().GetStore(requestObjectTTL, "auth", "rp", "requests")
}

func (w Wrapper) relyingParty() (*siop.RP, error) {
	if w.Auth.RelyingParty() == nil {
		return nil, errRelyingPartyDisabled
	}
	return w.Auth.RelyingParty(), nil
}

// handleCreateRequest creates an authorization request. The request object is passed by reference and served by
// handleGetRequestObject, presentation definitions by reference through handleGetDefinition.
func (w Wrapper) handleCreateRequest(echoCtx echo.Context) error {
	httpModule.Preprocess(echoCtx, w, apiModuleName, "CreateRequest")
	relyingParty, err := w.relyingParty()
	if err != nil {
		return err
	}
	var body CreateRequest
	if echoCtx.Request().ContentLength != 0 {
		if err = json.NewDecoder(echoCtx.Request().Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return core.InvalidInputError("invalid request body: %w", err)
		}
	}
	if body.DefinitionID != "" {
		if w.Auth.Definitions().ByID(body.DefinitionID) == nil {
			return core.InvalidInputError("unknown presentation definition: %s", body.DefinitionID)
		}
		builder := w.Auth.RelyingPartyBuilder().
			WithResponseType([]string{oauth.IDTokenResponseType, oauth.VPTokenResponseType}, 0).
			WithPresentationDefinition(nil, w.Auth.PublicURL().JoinPath("siop", "rp", "definition", body.DefinitionID).String(), 0)
		if relyingParty, err = builder.Build(); err != nil {
			return err
		}
	}
	state := body.State
	if state == "" {
		state = uuid.NewString()
	}
	correlationID := uuid.NewString()
	ctx := echoCtx.Request().Context()
	authRequest, err := relyingParty.CreateAuthorizationRequest(ctx, siop.CreateRequestOptions{
		CorrelationID:         correlationID,
		State:                 siop.PropertyWithTargets{Value: state},
		Nonce:                 siop.PropertyWithTargets{Value: body.Nonce},
		RequestByReferenceURI: w.Auth.PublicURL().JoinPath("siop", "rp", "request", correlationID).String(),
	})
	if err != nil {
		return err
	}
	uri, err := authRequest.URI(ctx)
	if err != nil {
		return err
	}
	requestObject, err := authRequest.RequestObjectJWT(ctx)
	if err != nil {
		return err
	}
	err = w.requestStore().Put(correlationID, storedRequest{
		RequestObject: requestObject,
		DefinitionID:  body.DefinitionID,
		Version:       w.Auth.SupportedVersion(),
	})
	if err != nil {
		return fmt.Errorf("unable to store request object: %w", err)
	}
	merged := authRequest.MergedPayloads()
	log.Logger().
		WithField(core.LogFieldCorrelationID, correlationID).
		Debug("Created authorization request")
	return echoCtx.JSON(http.StatusOK, CreateRequestResponse{
		CorrelationID: correlationID,
		RequestURI:    uri.EncodedURI,
		State:         merged.Get(oauth.StateParam),
		Nonce:         merged.Get(oauth.NonceParam),
	})
}

// handleGetRequestObject serves a request object passed by reference. Retrieval is signalled to the session manager.
func (w Wrapper) handleGetRequestObject(echoCtx echo.Context) error {
	httpModule.Preprocess(echoCtx, w, apiModuleName, "GetRequestObject")
	relyingParty, err := w.relyingParty()
	if err != nil {
		return err
	}
	correlationID := echoCtx.Param("id")
	var stored storedRequest
	if err = w.requestStore().Get(correlationID, &stored); err != nil {
		return err
	}
	if err = relyingParty.SignalAuthRequestRetrieved(echoCtx.Request().Context(), correlationID, nil); err != nil {
		log.Logger().
			WithContext(echoCtx.Request().Context()).
			WithError(err).
			WithField(core.LogFieldCorrelationID, correlationID).
			Warn("Unable to signal retrieval of request object")
	}
	return echoCtx.Blob(http.StatusOK, RequestObjectContentType, []byte(stored.RequestObject))
}

func (w Wrapper) handleGetDefinition(echoCtx echo.Context) error {
	httpModule.Preprocess(echoCtx, w, apiModuleName, "GetPresentationDefinition")
	definition := w.Auth.Definitions().ByID(echoCtx.Param("id"))
	if definition == nil {
		return core.NotFoundError("presentation definition not found")
	}
	return echoCtx.JSON(http.StatusOK, definition)
}

// handleAuthorizationResponse verifies an authorization response posted by a wallet (response mode post).
func (w Wrapper) handleAuthorizationResponse(echoCtx echo.Context) error {
	httpModule.Preprocess(echoCtx, w, apiModuleName, "AuthorizationResponse")
	relyingParty, err := w.relyingParty()
	if err != nil {
		return err
	}
	payload, err := readPayload(echoCtx.Request())
	if err != nil {
		return err
	}
	ctx := echoCtx.Request().Context()
	opts := siop.VerifyResponseOptions{}
	if state := payload.Get(oauth.StateParam); state != "" {
		opts.State = state
		if opts.CorrelationID, err = w.Auth.Sessions().GetCorrelationIDByState(ctx, state, false); err != nil {
			return err
		}
		if opts.CorrelationID != "" {
			if opts.PresentationDefinitions, err = w.presentationDefinitions(opts.CorrelationID); err != nil {
				return err
			}
		}
	}
	verified, err := relyingParty.VerifyAuthorizationResponse(ctx, payload, opts)
	if err != nil {
		log.Logger().
			WithContext(ctx).
			WithError(err).
			WithField(core.LogFieldCorrelationID, opts.CorrelationID).
			Info("Authorization response rejected")
		return err
	}
	result := ResponseResult{
		CorrelationID: verified.CorrelationID,
		Status:        string(session.StatusVerified),
	}
	if verified.IDToken != nil {
		result.Issuer = verified.IDToken.Issuer
		result.Subject = verified.IDToken.Subject
	}
	if verified.Presentations != nil {
		result.Presentations = len(verified.Presentations.Presentations)
	}
	if err = w.requestStore().Delete(verified.CorrelationID); err != nil {
		log.Logger().
			WithContext(ctx).
			WithError(err).
			WithField(core.LogFieldCorrelationID, verified.CorrelationID).
			Warn("Unable to remove stored request object")
	}
	return echoCtx.JSON(http.StatusOK, result)
}

// presentationDefinitions returns the definition the request with the given correlation ID asked for.
// A request that is no longer stored is verified against the RP's default definitions.
func (w Wrapper) presentationDefinitions(correlationID string) ([]pex.DefinitionWithLocation, error) {
	var stored storedRequest
	if err := w.requestStore().Get(correlationID, &stored); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if stored.DefinitionID == "" {
		return nil, nil
	}
	definition := w.Auth.Definitions().ByID(stored.DefinitionID)
	if definition == nil {
		return nil, fmt.Errorf("presentation definition %s of request no longer exists", stored.DefinitionID)
	}
	location := pex.LocationTopLevel
	if stored.Version < version.D11 {
		location = pex.LocationClaimsVPToken
	}
	return []pex.DefinitionWithLocation{{Definition: *definition, Location: location, Version: stored.Version}}, nil
}

func (w Wrapper) handleGetSession(echoCtx echo.Context) error {
	httpModule.Preprocess(echoCtx, w, apiModuleName, "GetSession")
	ctx := echoCtx.Request().Context()
	correlationID := echoCtx.Param("id")
	requestState, err := w.Auth.Sessions().GetRequestStateByCorrelationID(ctx, correlationID, false)
	if err != nil {
		return err
	}
	responseState, err := w.Auth.Sessions().GetResponseStateByCorrelationID(ctx, correlationID, false)
	if err != nil {
		return err
	}
	if requestState == nil && responseState == nil {
		return session.ErrNotFound
	}
	return echoCtx.JSON(http.StatusOK, SessionState{Request: requestState, Response: responseState})
}

// readPayload reads a form-encoded or JSON authorization response.
func readPayload(httpRequest *http.Request) (oauth.Payload, error) {
	data, err := io.ReadAll(httpRequest.Body)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(httpRequest.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		var payload oauth.Payload
		if err = json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("%w: %w", oauth.ErrMalformedInput, err)
		}
		return payload, nil
	}
	return codec.DecodeURIAsJSON(string(data))
}
