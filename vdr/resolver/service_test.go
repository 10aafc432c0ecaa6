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

package resolver

import (
	"testing"

	ssi "github.com/nuts-foundation/go-did"
	"github.com/nuts-foundation/go-did/did"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindServices(t *testing.T) {
	document := did.Document{
		Service: []did.Service{
			{Type: LinkedDomainsServiceType, ServiceEndpoint: "https://example.com"},
			{Type: "other", ServiceEndpoint: "https://example.org"},
		},
	}

	assert.Len(t, FindServices(document, LinkedDomainsServiceType), 1)
	assert.Empty(t, FindServices(document, "unknown"))
}

func TestServiceEndpointURLs(t *testing.T) {
	id := ssi.MustParseURI("did:web:example.com#linked")
	t.Run("string", func(t *testing.T) {
		urls, err := ServiceEndpointURLs(did.Service{ID: id, ServiceEndpoint: "https://example.com"})
		require.NoError(t, err)
		assert.Equal(t, []string{"https://example.com"}, urls)
	})
	t.Run("list", func(t *testing.T) {
		urls, err := ServiceEndpointURLs(did.Service{ID: id, ServiceEndpoint: []string{"https://a.example.com", "https://b.example.com"}})
		require.NoError(t, err)
		assert.Len(t, urls, 2)
	})
	t.Run("origins", func(t *testing.T) {
		urls, err := ServiceEndpointURLs(did.Service{ID: id, ServiceEndpoint: map[string]interface{}{"origins": []string{"https://example.com"}}})
		require.NoError(t, err)
		assert.Equal(t, []string{"https://example.com"}, urls)
	})
	t.Run("error - unsupported", func(t *testing.T) {
		_, err := ServiceEndpointURLs(did.Service{ID: id, ServiceEndpoint: 42})
		assert.ErrorContains(t, err, "unsupported service endpoint format")
	})
}
