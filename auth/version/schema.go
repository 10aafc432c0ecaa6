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

package version

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"

	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	"github.com/santhosh-tekuri/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/loader"
)

const schemaBaseURL = "https://nuts.nl/siop/schemas/"

//go:embed schema/common.json
var commonSchemaData []byte

//go:embed schema/id1.json
var id1SchemaData []byte

//go:embed schema/jwtvc.json
var jwtVCSchemaData []byte

//go:embed schema/d11.json
var d11SchemaData []byte

var id1Schema, jwtVCSchema, d11Schema *jsonschema.Schema

func init() {
	loader.Load = func(url string) (io.ReadCloser, error) {
		return nil, fmt.Errorf("refusing to load unknown schema: %s", url)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	resources := map[string][]byte{
		schemaBaseURL + "common.json": commonSchemaData,
		schemaBaseURL + "authorization-request-id1.json": id1SchemaData,
		schemaBaseURL + "authorization-request-jwt-vc-presentation-profile-v1.json": jwtVCSchemaData,
		schemaBaseURL + "authorization-request-d11.json": d11SchemaData,
	}
	for u, data := range resources {
		if err := compiler.AddResource(u, bytes.NewReader(data)); err != nil {
			panic(fmt.Errorf("error compiling schema %s: %w", u, err))
		}
	}
	id1Schema = compiler.MustCompile(schemaBaseURL + "authorization-request-id1.json")
	jwtVCSchema = compiler.MustCompile(schemaBaseURL + "authorization-request-jwt-vc-presentation-profile-v1.json")
	d11Schema = compiler.MustCompile(schemaBaseURL + "authorization-request-d11.json")
}

func validate(payload oauth.Payload, schema *jsonschema.Schema) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return schema.Validate(bytes.NewReader(data))
}
