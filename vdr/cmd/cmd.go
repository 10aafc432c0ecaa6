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

	"github.com/nuts-foundation/go-did/did"
	"github.com/nuts-foundation/nuts-siop/vdr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ConfUniversalResolver is the config key for the base URL of a DIF Universal Resolver
const ConfUniversalResolver = "vdr.universalresolver"

// ConfCacheTTL is the config key for how long resolved DID documents are cached
const ConfCacheTTL = "vdr.cachettl"

// ConfTimeout is the config key for the timeout of outbound requests of DID resolution
const ConfTimeout = "vdr.timeout"

// FlagSet contains flags relevant for the VDR instance
func FlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("vdr", pflag.ContinueOnError)

	defs := vdr.DefaultConfig()
	flagSet.String(ConfUniversalResolver, defs.UniversalResolver, "Base URL of a DIF Universal Resolver, used for DID methods that aren't resolved natively (did:jwk, did:key, did:web).")
	flagSet.Duration(ConfCacheTTL, defs.CacheTTL, "How long resolved DID documents are cached. 0 disables caching.")
	flagSet.Duration(ConfTimeout, defs.Timeout, "Timeout of outbound requests when resolving DIDs and DID configuration resources.")
	return flagSet
}

// Cmd contains the DID commands. The commands resolve locally, configure is called first to configure the VDR
// (and the engines it depends on) with the loaded config.
func Cmd(instance *vdr.Module, configure func() error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "did",
		Short: "DID commands",
	}
	cmd.AddCommand(resolveCmd(instance, configure))
	return cmd
}

func resolveCmd(instance *vdr.Module, configure func() error) *cobra.Command {
	var metadata bool
	result := &cobra.Command{
		Use:   "resolve [DID]",
		Short: "Resolves a DID document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := did.ParseDID(args[0])
			if err != nil {
				return err
			}
			if err = configure(); err != nil {
				return err
			}
			document, documentMetadata, err := instance.Resolve(cmd.Context(), *id, nil)
			if err != nil {
				return fmt.Errorf("failed to resolve DID document: %w", err)
			}
			var output interface{} = document
			if metadata {
				output = map[string]interface{}{
					"document": document,
					"metadata": documentMetadata,
				}
			}
			bytes, _ := json.MarshalIndent(output, "", "  ")
			cmd.Println(string(bytes))
			return nil
		},
	}
	result.Flags().BoolVar(&metadata, "metadata", false, "Print the document metadata as well")
	return result
}
