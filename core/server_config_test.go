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

package core

import (
	"os"
	"path"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEngineConfig struct {
	ClientID string            `koanf:"clientid"`
	Session  testSessionConfig `koanf:"session"`
}

type testSessionConfig struct {
	MaxAge int `koanf:"maxage"`
}

type testEngine struct {
	config   testEngineConfig
	started  bool
	shutdown bool
}

func (t *testEngine) Name() string {
	return "Test"
}

func (t *testEngine) Config() interface{} {
	return &t.config
}

func (t *testEngine) Start() error {
	t.started = true
	return nil
}

func (t *testEngine) Shutdown() error {
	t.shutdown = true
	return nil
}

func testCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().AddFlagSet(FlagSet())
	cmd.Flags().String("test.clientid", "", "")
	cmd.Flags().Int("test.session.maxage", 300, "")
	return cmd
}

func TestServerConfig_Load(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := NewServerConfig()

		require.NoError(t, cfg.Load(testCommand().Flags()))

		assert.Equal(t, "info", cfg.Verbosity)
		assert.True(t, cfg.Strictmode)
		assert.Equal(t, ":8080", cfg.HTTP.Address)
	})
	t.Run("from config file and env", func(t *testing.T) {
		dir := t.TempDir()
		configFile := path.Join(dir, "siop.yaml")
		require.NoError(t, os.WriteFile(configFile, []byte("url: https://example.com\nhttp:\n  address: :9090\n"), 0644))
		t.Setenv("SIOP_CONFIGFILE", configFile)
		t.Setenv("SIOP_VERBOSITY", "debug")
		cfg := NewServerConfig()

		require.NoError(t, cfg.Load(testCommand().Flags()))

		assert.Equal(t, "https://example.com", cfg.URL)
		assert.Equal(t, ":9090", cfg.HTTP.Address)
		assert.Equal(t, "debug", cfg.Verbosity)
	})
	t.Run("error - invalid logger format", func(t *testing.T) {
		t.Setenv("SIOP_LOGGERFORMAT", "xml")
		cfg := NewServerConfig()

		err := cfg.Load(testCommand().Flags())

		assert.EqualError(t, err, "invalid formatter: 'xml'")
	})
}

func TestServerConfig_ServerURL(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		u, err := ServerConfig{URL: "https://example.com", Strictmode: true}.ServerURL()

		require.NoError(t, err)
		assert.Equal(t, "example.com", u.Host)
	})
	t.Run("error - not configured", func(t *testing.T) {
		_, err := ServerConfig{}.ServerURL()

		assert.EqualError(t, err, "'url' must be configured")
	})
	t.Run("error - http in strictmode", func(t *testing.T) {
		_, err := ServerConfig{URL: "http://example.com", Strictmode: true}.ServerURL()

		assert.EqualError(t, err, "invalid 'url': scheme must be https in strictmode")
	})
}

func TestSystem(t *testing.T) {
	t.Setenv("SIOP_TEST_CLIENTID", "did:web:example.com")
	t.Setenv("SIOP_TEST_SESSION_MAXAGE", "60")
	engine := &testEngine{}
	system := NewSystem()
	system.RegisterEngine(engine)

	require.NoError(t, system.Load(testCommand()))
	require.NoError(t, system.Configure())
	require.NoError(t, system.Start())
	require.NoError(t, system.Shutdown())

	assert.Equal(t, "did:web:example.com", engine.config.ClientID)
	assert.Equal(t, 60, engine.config.Session.MaxAge)
	assert.True(t, engine.started)
	assert.True(t, engine.shutdown)
}
