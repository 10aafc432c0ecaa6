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

package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/crypto"
	"github.com/nuts-foundation/nuts-siop/events"
	"github.com/nuts-foundation/nuts-siop/storage"
	"github.com/nuts-foundation/nuts-siop/vdr"
)

// TestPublicURL is the public URL of Auth instances created by NewTestAuthInstance.
const TestPublicURL = "https://verifier.example.com"

// NewTestAuthInstance creates a configured Auth engine with in-memory storage. The relying party signs with the given
// signer and uses its DID as client_id. The modifier, if not nil, can change the config before it's applied.
func NewTestAuthInstance(t testing.TB, signer *crypto.Signer, modifier func(config *Config)) *Auth {
	serverConfig := core.TestServerConfig(core.ServerConfig{URL: TestPublicURL})
	storageEngine := storage.New()
	require.NoError(t, storageEngine.Configure(serverConfig))
	t.Cleanup(func() {
		_ = storageEngine.Shutdown()
	})
	vdrInstance := vdr.NewVDR(storageEngine)
	require.NoError(t, vdrInstance.Configure(serverConfig))
	eventManager := events.NewManager()
	eventManager.Registerer = prometheus.NewRegistry()
	require.NoError(t, eventManager.Configure(serverConfig))

	instance := NewAuthInstance(storageEngine, vdrInstance, eventManager)
	if signer != nil {
		instance.config.ClientID = signer.DID()
		instance.config.Signer.KeyFile = writeTestKey(t, signer)
		instance.config.Signer.KID = signer.KID()
	}
	if modifier != nil {
		modifier(&instance.config)
	}
	require.NoError(t, instance.Configure(serverConfig))
	return instance
}

func writeTestKey(t testing.TB, signer *crypto.Signer) string {
	data, err := json.Marshal(signer.Key())
	require.NoError(t, err)
	keyFile := filepath.Join(t.TempDir(), "signing-key.json")
	require.NoError(t, os.WriteFile(keyFile, data, 0600))
	return keyFile
}
