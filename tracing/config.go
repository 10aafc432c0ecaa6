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

package tracing

const (
	// ExporterOTLP exports spans to an OTLP/HTTP collector.
	ExporterOTLP = "otlp"
	// ExporterStdout writes spans to stdout, for local debugging.
	ExporterStdout = "stdout"
)

// DefaultConfig returns the default configuration for the tracing engine.
func DefaultConfig() Config {
	return Config{
		Exporter: ExporterOTLP,
	}
}

// Config contains settings for OpenTelemetry tracing.
type Config struct {
	// Exporter is either otlp or stdout.
	Exporter string `koanf:"exporter"`
	// Endpoint is the OTLP collector endpoint (e.g., "localhost:4318").
	// When empty, the otlp exporter is disabled.
	Endpoint string `koanf:"endpoint"`
	// Insecure disables TLS for the OTLP connection.
	Insecure bool `koanf:"insecure"`
	// ServiceName is the service name reported to the tracing backend.
	// Defaults to "siop".
	ServiceName string `koanf:"servicename"`
}

func (c Config) enabled() bool {
	return c.Exporter == ExporterStdout || c.Endpoint != ""
}
