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
	"github.com/nuts-foundation/nuts-siop/events"
	"github.com/spf13/pflag"
)

// ConfEventsNatsEnabled defines whether the embedded NATS server is started
const ConfEventsNatsEnabled = "events.nats.enabled"

// ConfEventsPort defines the port for the NATS server
const ConfEventsPort = "events.nats.port"

// ConfEventsHostname defines the hostname for the NATS server
const ConfEventsHostname = "events.nats.hostname"

// ConfEventsStorageDir defines the storage directory for JetStream in the NATS server
const ConfEventsStorageDir = "events.nats.storagedir"

// ConfEventsTimeout defines the timeouts (in seconds) for the NATS server
const ConfEventsTimeout = "events.nats.timeout"

// FlagSet defines the set of flags that sets the events-engine configuration
func FlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("events", pflag.ContinueOnError)

	defs := events.DefaultConfig()
	flags.Bool(ConfEventsNatsEnabled, defs.Nats.Enabled, "Run an embedded NATS server and publish authorization lifecycle events to it")
	flags.Int(ConfEventsPort, defs.Nats.Port, "Port where the NATS server listens on")
	flags.String(ConfEventsHostname, defs.Nats.Hostname, "Hostname for the NATS server")
	flags.String(ConfEventsStorageDir, defs.Nats.StorageDir, "Directory where JetStream data is stored, defaults to <datadir>/events")
	flags.Int(ConfEventsTimeout, defs.Nats.Timeout, "Timeout in seconds for NATS server operations")
	return flags
}
