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

package events

// Config holds all the configuration params
type Config struct {
	Nats NatsConfig `koanf:"nats"`
}

// NatsConfig holds the configuration of the embedded NATS server lifecycle events are published to.
type NatsConfig struct {
	// Enabled starts the embedded NATS server and publishes lifecycle events to it.
	Enabled  bool   `koanf:"enabled"`
	Port     int    `koanf:"port"`
	Hostname string `koanf:"hostname"`
	// StorageDir is the JetStream storage directory, defaults to <datadir>/events.
	StorageDir string `koanf:"storagedir"`
	// Timeout in seconds for connecting and publishing.
	Timeout int `koanf:"timeout"`
}

// DefaultConfig returns an instance of Config with the default values.
func DefaultConfig() Config {
	return Config{
		Nats: NatsConfig{
			Port:     4222,
			Hostname: "0.0.0.0",
			Timeout:  30,
		},
	}
}

// clientHostname returns the hostname a client uses to connect to the embedded server.
func (c NatsConfig) clientHostname() string {
	if c.Hostname == "" || c.Hostname == "0.0.0.0" || c.Hostname == "::" {
		return "localhost"
	}
	return c.Hostname
}
