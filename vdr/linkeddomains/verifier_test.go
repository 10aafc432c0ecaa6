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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ssi "github.com/nuts-foundation/go-did"
	"github.com/nuts-foundation/go-did/did"
	"github.com/nuts-foundation/nuts-siop/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDID = "did:web:example.com"

type testContext struct {
	signer    *crypto.Signer
	verifier  *DIFVerifier
	document  did.Document
	server    *httptest.Server
	configure func(writer http.ResponseWriter)
}

func newTestContext(t *testing.T) *testContext {
	ctx := &testContext{signer: crypto.NewTestSigner(testDID)}
	ctx.server = httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != WellKnownPath {
			writer.WriteHeader(http.StatusNotFound)
			return
		}
		ctx.configure(writer)
	}))
	t.Cleanup(ctx.server.Close)
	ctx.verifier = NewDIFVerifier(ctx.server.Client(), crypto.NewDIDJWTVerifier(crypto.StaticKeyResolver{}.AddSigner(ctx.signer)))
	ctx.document = did.Document{
		ID: did.MustParseDID(testDID),
		Service: []did.Service{{
			ID:              ssi.MustParseURI(testDID + "#linked-domain"),
			Type:            "LinkedDomains",
			ServiceEndpoint: ctx.server.URL,
		}},
	}
	return ctx
}

func (c *testContext) domainLinkageCredential(t *testing.T, origin string) string {
	token, err := c.signer.Sign(context.Background(), map[string]interface{}{
		"iss": testDID,
		"sub": testDID,
		"nbf": time.Now().Add(-time.Minute).Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
		"vc": map[string]interface{}{
			"@context": []string{"https://www.w3.org/2018/credentials/v1", "https://identity.foundation/.well-known/did-configuration/v1"},
			"type":     []string{"VerifiableCredential", DomainLinkageCredentialType},
			"credentialSubject": map[string]interface{}{
				"id":     testDID,
				"origin": origin,
			},
		},
	}, nil)
	require.NoError(t, err)
	return token
}

func serveJSON(value interface{}) func(writer http.ResponseWriter) {
	return func(writer http.ResponseWriter) {
		writer.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(writer).Encode(value)
	}
}

func TestDIFVerifier_Verify(t *testing.T) {
	ctx := context.Background()
	t.Run("ok", func(t *testing.T) {
		c := newTestContext(t)
		c.configure = serveJSON(map[string]interface{}{
			"@context":    "https://identity.foundation/.well-known/did-configuration/v1",
			"linked_dids": []interface{}{c.domainLinkageCredential(t, c.server.URL)},
		})

		status, err := c.verifier.Verify(ctx, c.document)

		require.NoError(t, err)
		assert.Equal(t, StatusValid, status)
	})
	t.Run("no LinkedDomains service", func(t *testing.T) {
		c := newTestContext(t)

		status, err := c.verifier.Verify(ctx, did.Document{ID: did.MustParseDID(testDID)})

		assert.ErrorIs(t, err, ErrNoLinkedDomainsService)
		assert.Equal(t, StatusInvalid, status)
	})
	t.Run("linked_dids not present", func(t *testing.T) {
		c := newTestContext(t)
		c.configure = serveJSON(map[string]interface{}{})

		status, err := c.verifier.Verify(ctx, c.document)

		assert.ErrorIs(t, err, ErrNoLinkedDIDs)
		assert.Equal(t, StatusInvalid, status)
	})
	t.Run("no JWT domain linkage credentials", func(t *testing.T) {
		c := newTestContext(t)
		c.configure = serveJSON(map[string]interface{}{"linked_dids": []interface{}{map[string]interface{}{"type": "VerifiableCredential"}}})

		_, err := c.verifier.Verify(ctx, c.document)

		assert.ErrorIs(t, err, ErrNoDomainLinkageCredentials)
	})
	t.Run("origin mismatch", func(t *testing.T) {
		c := newTestContext(t)
		c.configure = serveJSON(map[string]interface{}{
			"linked_dids": []interface{}{c.domainLinkageCredential(t, "https://other.example.com")},
		})

		status, err := c.verifier.Verify(ctx, c.document)

		assert.ErrorContains(t, err, "domain linkage credential origin mismatch")
		assert.Equal(t, StatusInvalid, status)
	})
	t.Run("signed by another key", func(t *testing.T) {
		c := newTestContext(t)
		other := crypto.NewTestSigner(testDID)
		token, _ := other.Sign(ctx, map[string]interface{}{"iss": testDID, "sub": testDID}, nil)
		c.configure = serveJSON(map[string]interface{}{"linked_dids": []interface{}{token}})

		_, err := c.verifier.Verify(ctx, c.document)

		assert.ErrorIs(t, err, crypto.ErrSignatureVerification)
	})
	t.Run("DID configuration not found", func(t *testing.T) {
		c := newTestContext(t)
		c.configure = func(writer http.ResponseWriter) {
			writer.WriteHeader(http.StatusNotFound)
		}

		_, err := c.verifier.Verify(ctx, c.document)

		assert.ErrorContains(t, err, "unable to fetch DID configuration")
	})
}
