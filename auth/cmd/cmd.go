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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/nuts-foundation/nuts-siop/auth"
	"github.com/nuts-foundation/nuts-siop/auth/api/rp"
	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	"github.com/nuts-foundation/nuts-siop/auth/request"
	"github.com/nuts-foundation/nuts-siop/crypto"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// ConfClientID is the config key for the client_id (DID) of the relying party
const ConfClientID = "auth.clientid"

// ConfClientName is the config key for the client_name in the client metadata of the relying party
const ConfClientName = "auth.clientname"

// ConfRedirectURI is the config key for the redirect_uri wallets post their responses to
const ConfRedirectURI = "auth.redirecturi"

// ConfVersion is the config key for the SIOP version of created authorization requests
const ConfVersion = "auth.version"

// ConfLinkedDomains is the config key for the linked domains policy
const ConfLinkedDomains = "auth.linkeddomains"

// ConfRevocation is the config key for the revocation policy of received credentials
const ConfRevocation = "auth.revocation"

// ConfDefinitions is the config key for the file containing presentation definitions
const ConfDefinitions = "auth.definitions"

// ConfSignerDID is the config key for the DID of the signer, defaults to the client_id
const ConfSignerDID = "auth.signer.did"

// ConfSignerKID is the config key for the key ID of the signer
const ConfSignerKID = "auth.signer.kid"

// ConfSignerKeyFile is the config key for the JWK file containing the private signing key
const ConfSignerKeyFile = "auth.signer.keyfile"

// ConfSignerEndpoint is the config key for the endpoint of a remote signing service
const ConfSignerEndpoint = "auth.signer.endpoint"

// ConfSignerToken is the config key for the bearer token of the remote signing service
const ConfSignerToken = "auth.signer.token"

// ConfSignerAlgorithm is the config key for the JWS algorithm of the remote signing service
const ConfSignerAlgorithm = "auth.signer.alg"

// ConfSessionMaxAge is the config key for the max age (in seconds) of correlation records
const ConfSessionMaxAge = "auth.session.maxage"

// ConfSessionStore is the config key for the store of correlation records
const ConfSessionStore = "auth.session.store"

// ConfHTTPTimeout is the config key for the timeout of outbound HTTP requests
const ConfHTTPTimeout = "auth.http.timeout"

// FlagSet returns the configuration flags supported by this module.
func FlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("auth", pflag.ContinueOnError)

	defs := auth.DefaultConfig()
	flags.String(ConfClientID, defs.ClientID, "DID of the relying party, used as client_id. The relying party endpoints are disabled when not set.")
	flags.String(ConfClientName, defs.ClientName, "Name of the relying party, shown by wallets.")
	flags.String(ConfRedirectURI, defs.RedirectURI, "URI wallets post authorization responses to. Defaults to <url>/siop/rp/response.")
	flags.String(ConfVersion, defs.Version, "SIOP version of created authorization requests, e.g. 'D11' or 'ID1'.")
	flags.String(ConfLinkedDomains, defs.LinkedDomains, "How the domain linkage of DIDs is validated: 'never', 'if_present' or 'always'.")
	flags.String(ConfRevocation, defs.Revocation, "How received credentials are checked for revocation: 'never', 'if_present' or 'always'.")
	flags.String(ConfDefinitions, defs.Definitions, "JSON file with an array of presentation definitions the relying party can request.")
	flags.String(ConfSignerDID, defs.Signer.DID, "DID of the signer, defaults to auth.clientid.")
	flags.String(ConfSignerKID, defs.Signer.KID, "Key ID of the signer. Defaults to the kid of the key file, or <did>#0 for remote signers.")
	flags.String(ConfSignerKeyFile, defs.Signer.KeyFile, "JWK file containing the private key request objects and ID tokens are signed with.")
	flags.String(ConfSignerEndpoint, defs.Signer.Endpoint, "Endpoint of a remote signing service, as alternative to auth.signer.keyfile.")
	flags.String(ConfSignerToken, defs.Signer.Token, "Bearer token for the remote signing service.")
	flags.String(ConfSignerAlgorithm, defs.Signer.Algorithm, "JWS algorithm of the remote signing service.")
	flags.Int(ConfSessionMaxAge, defs.Session.MaxAge, "Max age in seconds of request and response state. 0 keeps state until the server stops.")
	flags.String(ConfSessionStore, defs.Session.Store, "Where request and response state is stored: 'memory' or 'redis' (requires storage.redis.address).")
	flags.Duration(ConfHTTPTimeout, defs.HTTP.Timeout, "Timeout of outbound HTTP requests, e.g. fetching request objects and status lists.")
	return flags
}

// Cmd contains the authorization request commands.
func Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Authorization request commands",
	}
	cmd.AddCommand(createRequestCmd())
	cmd.AddCommand(parseRequestCmd())
	return cmd
}

func createRequestCmd() *cobra.Command {
	var body rp.CreateRequest
	var address string
	var timeout time.Duration
	var qr bool
	result := &cobra.Command{
		Use:   "create",
		Short: "Creates an authorization request at the relying party of a running server and prints the request URI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			created, err := rp.NewHTTPClient(address, timeout).CreateRequest(body)
			if err != nil {
				return fmt.Errorf("unable to create authorization request: %w", err)
			}
			cmd.Printf("Correlation ID: %s\n", created.CorrelationID)
			cmd.Printf("State:          %s\n", created.State)
			cmd.Printf("Nonce:          %s\n", created.Nonce)
			cmd.Println(created.RequestURI)
			if qr {
				printQRCode(cmd.OutOrStdout(), created.RequestURI)
			}
			return nil
		},
	}
	result.Flags().StringVar(&address, "address", "http://localhost:8080", "Address of the server")
	result.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Client timeout")
	result.Flags().StringVar(&body.DefinitionID, "definition", "", "ID of the presentation definition to request a verifiable presentation for")
	result.Flags().StringVar(&body.State, "state", "", "State of the request, generated when not set")
	result.Flags().StringVar(&body.Nonce, "nonce", "", "Nonce of the request, derived from the state when not set")
	result.Flags().BoolVar(&qr, "qr", false, "Print the request URI as QR code")
	return result
}

func printQRCode(writer io.Writer, content string) {
	qrterminal.GenerateWithConfig(content, qrterminal.Config{
		HalfBlocks:     true,
		BlackChar:      qrterminal.BLACK_BLACK,
		WhiteChar:      qrterminal.WHITE_WHITE,
		BlackWhiteChar: qrterminal.BLACK_WHITE,
		WhiteBlackChar: qrterminal.WHITE_BLACK,
		Level:          qrterminal.L,
		Writer:         writer,
		QuietZone:      1,
	})
}

// parsedRequest is the output of the parse command.
type parsedRequest struct {
	Scheme        string        `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	Payload       oauth.Payload `json:"payload" yaml:"payload"`
	RequestObject *parsedJWT    `json:"request_object,omitempty" yaml:"request_object,omitempty"`
}

type parsedJWT struct {
	Header  map[string]interface{} `json:"header" yaml:"header"`
	Payload map[string]interface{} `json:"payload" yaml:"payload"`
}

func parseRequestCmd() *cobra.Command {
	var format string
	result := &cobra.Command{
		Use:   "parse [uri or request object]",
		Short: "Decodes an authorization request URI or request object JWT, without verifying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseRequest(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			var output []byte
			switch format {
			case "json":
				output, err = json.MarshalIndent(parsed, "", "  ")
			case "yaml":
				output, err = yaml.Marshal(parsed)
			default:
				return fmt.Errorf("invalid format: %s", format)
			}
			if err != nil {
				return err
			}
			cmd.Println(string(output))
			return nil
		},
	}
	result.Flags().StringVar(&format, "format", "yaml", "Output format, 'yaml' or 'json'")
	return result
}

func parseRequest(input string) (*parsedRequest, error) {
	result := &parsedRequest{}
	requestObject := input
	if !strings.HasPrefix(input, "ey") {
		scheme, payload, err := request.ParseURI(input)
		if err != nil {
			return nil, err
		}
		result.Scheme = scheme
		result.Payload = payload
		requestObject = payload.Get(oauth.RequestParam)
	}
	if requestObject == "" {
		return result, nil
	}
	decoded, err := crypto.DecodeJWT(requestObject)
	if err != nil {
		return nil, err
	}
	result.RequestObject = &parsedJWT{Header: decoded.Header, Payload: decoded.Payload}
	if result.Payload == nil {
		result.Payload = oauth.Payload(decoded.Payload)
	}
	return result, nil
}
