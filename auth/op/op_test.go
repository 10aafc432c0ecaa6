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

package op

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/nuts-foundation/go-did/vc"
	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	"github.com/nuts-foundation/nuts-siop/auth/pex"
	"github.com/nuts-foundation/nuts-siop/auth/request"
	"github.com/nuts-foundation/nuts-siop/auth/requestobject"
	"github.com/nuts-foundation/nuts-siop/auth/response"
	"github.com/nuts-foundation/nuts-siop/auth/version"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/crypto"
	"github.com/nuts-foundation/nuts-siop/events"
	"github.com/nuts-foundation/nuts-siop/http/client"
	"github.com/nuts-foundation/nuts-siop/vcr/pe"
	vcrTest "github.com/nuts-foundation/nuts-siop/vcr/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rpDID = "did:web:verifier.example.com"
const holderDID = "did:example:holder"

type eventRecorder struct {
	events []events.Event
}

func (e *eventRecorder) Handle(_ context.Context, event events.Event) error {
	e.events = append(e.events, event)
	return nil
}

func (e *eventRecorder) types() []events.Type {
	var result []events.Type
	for _, event := range e.events {
		result = append(result, event.Type)
	}
	return result
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

type testContext struct {
	rpSigner *crypto.Signer
	holder   *crypto.Signer
	recorder *eventRecorder
	op       *OP
}

func newTestContext(t *testing.T) testContext {
	rpSigner := crypto.NewTestSigner(rpDID)
	holder := crypto.NewTestSigner(holderDID)
	recorder := &eventRecorder{}
	provider, err := New(Options{
		Signer:   holder,
		Verifier: crypto.NewDIDJWTVerifier(crypto.StaticKeyResolver{}.AddSigner(rpSigner)),
		Sink:     recorder,
	})
	require.NoError(t, err)
	return testContext{rpSigner: rpSigner, holder: holder, recorder: recorder, op: provider}
}

func (c testContext) requestURI(t *testing.T, redirectURI string, metadata oauth.RPRegistrationMetadata) string {
	authRequest, err := request.FromOptions(context.Background(), request.Options{
		Version: version.ID1,
		Payload: oauth.Payload{
			oauth.ClientIDParam:     rpDID,
			oauth.ScopeParam:        oauth.OpenIDScope,
			oauth.ResponseTypeParam: oauth.IDTokenResponseType,
			oauth.RedirectURIParam:  redirectURI,
		},
		RequestObject: &requestobject.Options{
			ObjectBy: oauth.ObjectBy{PassBy: oauth.PassByValue},
			Payload: oauth.Payload{
				oauth.RedirectURIParam: redirectURI,
				oauth.StateParam:       "s1",
				oauth.NonceParam:       "n1",
			},
			Signer: c.rpSigner,
		},
		Registration: &requestobject.Registration{
			ObjectBy: oauth.ObjectBy{PassBy: oauth.PassByValue},
			Metadata: metadata,
		},
	})
	require.NoError(t, err)
	uri, err := authRequest.URI(context.Background())
	require.NoError(t, err)
	return uri.EncodedURI
}

const organizationDefinition = `{
  "id": "organization",
  "input_descriptors": [
    {
      "id": "organization_credential",
      "constraints": {
        "fields": [{"path": ["$.type"], "filter": {"type": "string", "const": "OrganizationCredential"}}]
      }
    }
  ]
}`

// definitionRequestURI creates an ID1 request asking for an organization credential in the vp_token claim.
func (c testContext) definitionRequestURI(t *testing.T) string {
	var definition pe.PresentationDefinition
	require.NoError(t, json.Unmarshal([]byte(organizationDefinition), &definition))
	authRequest, err := request.FromOptions(context.Background(), request.Options{
		Version: version.ID1,
		Payload: oauth.Payload{
			oauth.ClientIDParam:     rpDID,
			oauth.ScopeParam:        oauth.OpenIDScope,
			oauth.ResponseTypeParam: oauth.IDTokenResponseType,
			oauth.RedirectURIParam:  "https://verifier.example.com/cb",
		},
		RequestObject: &requestobject.Options{
			ObjectBy: oauth.ObjectBy{PassBy: oauth.PassByValue},
			Payload: oauth.Payload{
				oauth.RedirectURIParam: "https://verifier.example.com/cb",
				oauth.StateParam:       "s1",
				oauth.NonceParam:       "n1",
			},
			Signer: c.rpSigner,
		},
		Registration: &requestobject.Registration{
			ObjectBy: oauth.ObjectBy{PassBy: oauth.PassByValue},
			Metadata: rpMetadata(),
		},
		Claims: &pex.Claims{VPToken: &pex.VPTokenClaims{PresentationDefinition: &definition}},
	})
	require.NoError(t, err)
	uri, err := authRequest.URI(context.Background())
	require.NoError(t, err)
	return uri.EncodedURI
}

func rpMetadata() oauth.RPRegistrationMetadata {
	return oauth.RPRegistrationMetadata{
		ClientName:                  "Verifier",
		SubjectSyntaxTypesSupported: []string{"did:web:", "did:example:"},
		VPFormats:                   oauth.DefaultVPFormats(),
	}
}

func TestNew(t *testing.T) {
	t.Run("default metadata", func(t *testing.T) {
		provider, err := New(Options{Verifier: crypto.NewDIDJWTVerifier(crypto.StaticKeyResolver{})})

		require.NoError(t, err)
		assert.Equal(t, oauth.SelfIssuedV2, provider.Metadata().Issuer)
	})
	t.Run("error - no verifier", func(t *testing.T) {
		_, err := New(Options{})

		assert.ErrorIs(t, err, oauth.ErrMalformedInput)
	})
}

func TestOP_VerifyAuthorizationRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		c := newTestContext(t)

		verified, err := c.op.VerifyAuthorizationRequest(ctx, c.requestURI(t, "https://verifier.example.com/cb", rpMetadata()), VerifyRequestOptions{CorrelationID: "c1", Nonce: "n1"})

		require.NoError(t, err)
		assert.Equal(t, "c1", verified.CorrelationID)
		assert.Equal(t, "https://verifier.example.com/cb", verified.RedirectURI)
		assert.Equal(t, []events.Type{events.AuthRequestReceivedSuccess, events.AuthRequestVerifiedSuccess}, c.recorder.types())
	})
	t.Run("ok - correlation id generated", func(t *testing.T) {
		c := newTestContext(t)

		verified, err := c.op.VerifyAuthorizationRequest(ctx, c.requestURI(t, "https://verifier.example.com/cb", rpMetadata()), VerifyRequestOptions{})

		require.NoError(t, err)
		assert.NotEmpty(t, verified.CorrelationID)
		assert.Equal(t, verified.CorrelationID, c.recorder.events[0].CorrelationID)
	})
	t.Run("error - malformed request", func(t *testing.T) {
		c := newTestContext(t)

		_, err := c.op.VerifyAuthorizationRequest(ctx, "", VerifyRequestOptions{CorrelationID: "c1"})

		assert.ErrorIs(t, err, oauth.ErrMalformedInput)
		assert.Equal(t, []events.Type{events.AuthRequestReceivedFailed}, c.recorder.types())
	})
	t.Run("error - incompatible client metadata", func(t *testing.T) {
		c := newTestContext(t)
		metadata := rpMetadata()
		metadata.VPFormats = map[string]map[string][]string{"mso_mdoc": {"alg": {"ES256"}}}

		_, err := c.op.VerifyAuthorizationRequest(ctx, c.requestURI(t, "https://verifier.example.com/cb", metadata), VerifyRequestOptions{CorrelationID: "c1"})

		assert.ErrorIs(t, err, oauth.ErrCredentialFormatsNotSupported)
		assert.Equal(t, []events.Type{events.AuthRequestReceivedSuccess, events.AuthRequestVerifiedFailed}, c.recorder.types())
	})
	t.Run("error - state mismatch", func(t *testing.T) {
		c := newTestContext(t)

		_, err := c.op.VerifyAuthorizationRequest(ctx, c.requestURI(t, "https://verifier.example.com/cb", rpMetadata()), VerifyRequestOptions{CorrelationID: "c1", State: "other"})

		assert.ErrorIs(t, err, request.ErrStateMismatch)
	})
}

func TestOP_CreateAuthorizationResponse(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		c := newTestContext(t)
		verified, err := c.op.VerifyAuthorizationRequest(ctx, c.requestURI(t, "https://verifier.example.com/cb", rpMetadata()), VerifyRequestOptions{CorrelationID: "c1"})
		require.NoError(t, err)

		created, err := c.op.CreateAuthorizationResponse(ctx, verified, CreateResponseOptions{})

		require.NoError(t, err)
		assert.Equal(t, "c1", created.CorrelationID)
		assert.Equal(t, "https://verifier.example.com/cb", created.RedirectURI)
		require.NotNil(t, created.Response.IDToken())
		idToken := created.Response.IDToken().Payload()
		assert.Equal(t, holderDID, idToken.Get(oauth.SubjectParam))
		assert.Equal(t, "n1", idToken.Get(oauth.NonceParam))
		assert.Equal(t, "s1", created.Response.Payload().Get(oauth.StateParam))
		assert.Equal(t, events.AuthResponseCreateSuccess, c.recorder.events[len(c.recorder.events)-1].Type)
	})
	t.Run("ok - issuer override", func(t *testing.T) {
		c := newTestContext(t)
		verified, err := c.op.VerifyAuthorizationRequest(ctx, c.requestURI(t, "https://verifier.example.com/cb", rpMetadata()), VerifyRequestOptions{CorrelationID: "c1"})
		require.NoError(t, err)

		created, err := c.op.CreateAuthorizationResponse(ctx, verified, CreateResponseOptions{Issuer: holderDID})

		require.NoError(t, err)
		assert.Equal(t, holderDID, created.Response.IDToken().Payload().Get(oauth.IssuerParam))
	})
	t.Run("ok - credentials matching the presentation definition are presented", func(t *testing.T) {
		c := newTestContext(t)
		issuer := crypto.NewTestSigner("did:example:issuer")
		organization := vcrTest.CreateJWTCredential(t, issuer, "OrganizationCredential", map[string]interface{}{"id": holderDID})
		other := vcrTest.CreateJWTCredential(t, issuer, "OtherCredential", map[string]interface{}{"id": holderDID})
		verified, err := c.op.VerifyAuthorizationRequest(ctx, c.definitionRequestURI(t), VerifyRequestOptions{CorrelationID: "c1"})
		require.NoError(t, err)
		require.Len(t, verified.PresentationDefinitions, 1)

		created, err := c.op.CreateAuthorizationResponse(ctx, verified, CreateResponseOptions{
			Credentials: []vc.VerifiableCredential{other, organization},
		})

		require.NoError(t, err)
		vpToken, ok := created.Response.Payload()[oauth.VpTokenParam].(string)
		require.True(t, ok, "single JWT presentation expected")
		presentation, err := vc.ParseVerifiablePresentation(vpToken)
		require.NoError(t, err)
		require.Len(t, presentation.VerifiableCredential, 1)
		assert.Equal(t, organization.Raw(), presentation.VerifiableCredential[0].Raw())
		vpClaims, err := crypto.DecodeJWT(vpToken)
		require.NoError(t, err)
		assert.Equal(t, "n1", vpClaims.Payload[oauth.NonceParam])
		assert.Equal(t, "organization", created.Response.IDToken().Payload().Path(oauth.IDTokenVPTokenParam, oauth.PresentationSubmissionParam, "definition_id"))
	})
	t.Run("error - no credential matches the presentation definition", func(t *testing.T) {
		c := newTestContext(t)
		issuer := crypto.NewTestSigner("did:example:issuer")
		other := vcrTest.CreateJWTCredential(t, issuer, "OtherCredential", map[string]interface{}{"id": holderDID})
		verified, err := c.op.VerifyAuthorizationRequest(ctx, c.definitionRequestURI(t), VerifyRequestOptions{CorrelationID: "c1"})
		require.NoError(t, err)

		_, err = c.op.CreateAuthorizationResponse(ctx, verified, CreateResponseOptions{Credentials: []vc.VerifiableCredential{other}})

		assert.ErrorIs(t, err, ErrNoMatchingCredentials)
		assert.Equal(t, events.AuthResponseCreateFailed, c.recorder.events[len(c.recorder.events)-1].Type)
	})
	t.Run("error - correlation id mismatch", func(t *testing.T) {
		c := newTestContext(t)

		_, err := c.op.CreateAuthorizationResponse(ctx, &request.VerifiedAuthorizationRequest{CorrelationID: "c1"}, CreateResponseOptions{CorrelationID: "c2"})

		assert.ErrorIs(t, err, ErrCorrelationMismatch)
	})
	t.Run("error - unsupported response mode", func(t *testing.T) {
		c := newTestContext(t)
		verified, err := c.op.VerifyAuthorizationRequest(ctx, c.requestURI(t, "https://verifier.example.com/cb", rpMetadata()), VerifyRequestOptions{CorrelationID: "c1"})
		require.NoError(t, err)

		_, err = c.op.CreateAuthorizationResponse(ctx, verified, CreateResponseOptions{ResponseMode: oauth.ResponseModeFragment})

		assert.ErrorIs(t, err, oauth.ErrMalformedInput)
		assert.Equal(t, events.AuthResponseCreateFailed, c.recorder.events[len(c.recorder.events)-1].Type)
	})
}

func TestOP_SubmitAuthorizationResponse(t *testing.T) {
	ctx := context.Background()
	var received url.Values
	var contentType string
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, httpRequest *http.Request) {
		contentType = httpRequest.Header.Get("Content-Type")
		userAgent = httpRequest.Header.Get("User-Agent")
		data, _ := io.ReadAll(httpRequest.Body)
		received, _ = url.ParseQuery(string(data))
		if received.Get(oauth.StateParam) == "fail" {
			writer.WriteHeader(http.StatusBadRequest)
			return
		}
		writer.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	create := func(t *testing.T, c testContext, redirectURI string) *ResponseWithCorrelation {
		verified, err := c.op.VerifyAuthorizationRequest(ctx, c.requestURI(t, redirectURI, rpMetadata()), VerifyRequestOptions{CorrelationID: "c1"})
		require.NoError(t, err)
		created, err := c.op.CreateAuthorizationResponse(ctx, verified, CreateResponseOptions{})
		require.NoError(t, err)
		return created
	}

	t.Run("ok", func(t *testing.T) {
		c := newTestContext(t)
		created := create(t, c, server.URL)

		httpResponse, err := c.op.SubmitAuthorizationResponse(ctx, *created)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, httpResponse.StatusCode)
		assert.Equal(t, "application/x-www-form-urlencoded", contentType)
		assert.Equal(t, core.UserAgent(), userAgent)
		assert.IsType(t, &client.StrictHTTPClient{}, c.op.options.HTTPClient)
		assert.Equal(t, "s1", received.Get(oauth.StateParam))
		assert.Equal(t, created.Response.Payload().Get(oauth.IDTokenParam), received.Get(oauth.IDTokenParam))
		assert.Equal(t, events.AuthResponseSentSuccess, c.recorder.events[len(c.recorder.events)-1].Type)
	})
	t.Run("ok - configured HTTP client sends User-Agent", func(t *testing.T) {
		c := newTestContext(t)
		created := create(t, c, server.URL)
		c.op.options.HTTPClient = server.Client()
		userAgent = ""

		_, err := c.op.SubmitAuthorizationResponse(ctx, *created)

		require.NoError(t, err)
		assert.Equal(t, core.UserAgent(), userAgent)
	})
	t.Run("ok - redirect URI falls back to ID token audience", func(t *testing.T) {
		c := newTestContext(t)
		verified, err := c.op.VerifyAuthorizationRequest(ctx, c.requestURI(t, server.URL, rpMetadata()), VerifyRequestOptions{CorrelationID: "c1"})
		require.NoError(t, err)
		created, err := c.op.CreateAuthorizationResponse(ctx, verified, CreateResponseOptions{Audience: server.URL})
		require.NoError(t, err)
		created.RedirectURI = ""

		_, err = c.op.SubmitAuthorizationResponse(ctx, *created)

		assert.NoError(t, err)
	})
	t.Run("error - no redirect URI", func(t *testing.T) {
		c := newTestContext(t)
		created := create(t, c, server.URL)
		created.RedirectURI = ""

		_, err := c.op.SubmitAuthorizationResponse(ctx, *created)

		// the ID token audience is the client_id, which is a DID
		assert.ErrorIs(t, err, ErrMissingRedirectURI)
		assert.Equal(t, events.AuthResponseSentFailed, c.recorder.events[len(c.recorder.events)-1].Type)
	})
	t.Run("error - RP returns error", func(t *testing.T) {
		c := newTestContext(t)
		created := create(t, c, server.URL)
		payload := created.Response.Payload()
		payload[oauth.StateParam] = "fail"
		failing, err := response.FromPayload(payload, created.Response.Options())
		require.NoError(t, err)
		created.Response = failing

		_, err = c.op.SubmitAuthorizationResponse(ctx, *created)

		var httpErr core.HttpError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	})
	t.Run("error - HTTP client fails", func(t *testing.T) {
		c := newTestContext(t)
		created := create(t, c, server.URL)
		c.op.options.HTTPClient = doerFunc(func(_ *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})

		_, err := c.op.SubmitAuthorizationResponse(ctx, *created)

		assert.ErrorContains(t, err, "connection refused")
	})
	t.Run("error - no correlation id", func(t *testing.T) {
		c := newTestContext(t)

		_, err := c.op.SubmitAuthorizationResponse(ctx, ResponseWithCorrelation{})

		assert.ErrorIs(t, err, oauth.ErrMalformedInput)
	})
}
