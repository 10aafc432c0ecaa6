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

package cmd

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/nuts-foundation/nuts-siop/auth"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/events"
	httpEngine "github.com/nuts-foundation/nuts-siop/http"
	"github.com/nuts-foundation/nuts-siop/storage"
	"github.com/nuts-foundation/nuts-siop/tracing"
	"github.com/nuts-foundation/nuts-siop/vdr"
	"github.com/nuts-foundation/nuts-siop/vdr/didjwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_rootCmd(t *testing.T) {
	t.Run("no args prints help", func(t *testing.T) {
		buf := setStdOut(t)
		command := CreateCommand(CreateSystem(func() {}))
		command.SetArgs([]string{})

		err := command.Execute()

		require.NoError(t, err)
		assert.Contains(t, buf.String(), "Available Commands")
		assert.Contains(t, buf.String(), "server")
		assert.Contains(t, buf.String(), "request")
		assert.Contains(t, buf.String(), "did")
	})
	t.Run("config prints the loaded config", func(t *testing.T) {
		buf := setStdOut(t)
		t.Setenv("SIOP_AUTH_CLIENTNAME", "Test RP")
		command := CreateCommand(CreateSystem(func() {}))
		command.SetArgs([]string{"config"})

		err := command.Execute()

		require.NoError(t, err)
		assert.Contains(t, buf.String(), "Current system config")
		assert.Contains(t, buf.String(), "auth.clientname")
		assert.Contains(t, buf.String(), "Test RP")
	})
	t.Run("error - invalid config", func(t *testing.T) {
		setStdOut(t)
		command := CreateCommand(CreateSystem(func() {}))
		command.SetArgs([]string{"config", "--verbosity", "loud"})

		err := command.Execute()

		assert.Error(t, err)
	})
}

func Test_serverCmd(t *testing.T) {
	t.Run("start and stop", func(t *testing.T) {
		setStdOut(t)
		t.Setenv("SIOP_STRICTMODE", "false")
		t.Setenv("SIOP_HTTP_ADDRESS", "localhost:0")
		t.Setenv("SIOP_DATADIR", t.TempDir())
		ctx, cancel := context.WithCancel(context.Background())
		system := CreateSystem(cancel)
		errs := make(chan error, 1)

		go func() {
			errs <- Execute(ctx, system)
		}()
		time.Sleep(500 * time.Millisecond)
		cancel()

		select {
		case err := <-errs:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
	})
	t.Run("error - configure fails", func(t *testing.T) {
		setStdOut(t)
		t.Setenv("SIOP_STRICTMODE", "false")
		t.Setenv("SIOP_AUTH_VERSION", "not-a-version")
		system := CreateSystem(func() {})
		command := CreateCommand(system)
		command.SetArgs([]string{"server"})

		err := command.ExecuteContext(context.Background())

		assert.ErrorContains(t, err, "invalid auth.version")
	})
}

func TestCreateSystem(t *testing.T) {
	system := CreateSystem(func() {})

	var names []string
	system.VisitEngines(func(engine core.Engine) {
		if named, ok := engine.(core.Named); ok {
			names = append(names, named.Name())
		}
	})
	require.Len(t, names, 7)
	assert.Equal(t, tracing.New().Name(), names[0])
	// the HTTP engine must come last, it starts the server with all routes
	assert.Equal(t, (&httpEngine.Engine{}).Name(), names[6])

	var counts = map[string]int{}
	system.VisitEngines(func(engine core.Engine) {
		switch engine.(type) {
		case *storage.Engine:
			counts["storage"]++
		case *vdr.Module:
			counts["vdr"]++
		case *events.Manager:
			counts["events"]++
		case *auth.Auth:
			counts["auth"]++
		}
	})
	assert.Equal(t, map[string]int{"storage": 1, "vdr": 1, "events": 1, "auth": 1}, counts)
	assert.NotNil(t, findVDR(system))
}

func Test_didCmd(t *testing.T) {
	t.Run("resolve did:jwk", func(t *testing.T) {
		buf := setStdOut(t)
		t.Setenv("SIOP_STRICTMODE", "false")
		signer := didjwk.NewTestSigner()
		command := CreateCommand(CreateSystem(func() {}))
		command.SetArgs([]string{"did", "resolve", signer.DID()})

		err := command.ExecuteContext(context.Background())

		require.NoError(t, err)
		assert.Contains(t, buf.String(), `"id": "`+signer.DID()+`"`)
	})
}

func setStdOut(t *testing.T) *bytes.Buffer {
	oldStdout := stdOutWriter
	buf := new(bytes.Buffer)
	stdOutWriter = buf
	t.Cleanup(func() {
		stdOutWriter = oldStdout
	})
	return buf
}
