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
	"github.com/nuts-foundation/nuts-siop/tracing"
	"github.com/spf13/pflag"
)

const (
	// ConfExporter defines where spans are exported to
	ConfExporter = "tracing.exporter"
	// ConfEndpoint defines the OTLP collector endpoint
	ConfEndpoint = "tracing.endpoint"
	// ConfInsecure disables TLS for the OTLP connection
	ConfInsecure = "tracing.insecure"
	// ConfServiceName defines the service name reported to the tracing backend
	ConfServiceName = "tracing.servicename"
)

// FlagSet defines the set of flags that sets the tracing engine configuration
func FlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("tracing", pflag.ContinueOnError)

	defs := tracing.DefaultConfig()
	flags.String(ConfExporter, defs.Exporter, "Span exporter, 'otlp' or 'stdout'. The otlp exporter is only enabled when tracing.endpoint is set.")
	flags.String(ConfEndpoint, defs.Endpoint, "OTLP/HTTP collector endpoint for traces, e.g. 'localhost:4318'.")
	flags.Bool(ConfInsecure, defs.Insecure, "Disable TLS for the OTLP connection.")
	flags.String(ConfServiceName, defs.ServiceName, "Service name reported to the tracing backend, defaults to 'siop'.")
	return flags
}
