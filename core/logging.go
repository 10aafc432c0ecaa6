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

const (
	// LogFieldModule is the log field for the module name.
	LogFieldModule = "module"

	// LogFieldEventType is the log field key for lifecycle event types from the events module.
	LogFieldEventType = "eventType"
	// LogFieldEventSubject is the log field key for the NATS subject lifecycle events are published on.
	LogFieldEventSubject = "eventSubject"

	// LogFieldCorrelationID is the log field key for the correlation ID linking an authorization request to its response.
	LogFieldCorrelationID = "correlationID"
	// LogFieldClientID is the log field key for the client_id of a Relying Party.
	LogFieldClientID = "clientID"
	// LogFieldVersion is the log field key for the negotiated SIOP/OpenID4VP protocol version.
	LogFieldVersion = "protocolVersion"
	// LogFieldDefinitionID is the log field key for the ID of a Presentation Definition.
	LogFieldDefinitionID = "definitionID"
	// LogFieldCredentialID is the log field key for the ID of a Verifiable Credential.
	LogFieldCredentialID = "credentialID"

	// LogFieldStore is the log field key for the name of a store managed by the storage module.
	LogFieldStore = "store"

	// LogFieldKeyID is the log field key for the unique ID of a key.
	LogFieldKeyID = "keyID"
	// LogFieldDID is the log field key for a DID.
	LogFieldDID = "did"
	// LogFieldServiceEndpoint is the log field key of a DID document service endpoint.
	LogFieldServiceEndpoint = "serviceEndpoint"
	// LogFieldURL is the log field key of a remote URL being fetched.
	LogFieldURL = "url"
)
