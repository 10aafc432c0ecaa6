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

package resolver

import (
	"fmt"

	"github.com/nuts-foundation/go-did/did"
)

// LinkedDomainsServiceType is the DID service type of the DIF well-known DID configuration.
const LinkedDomainsServiceType = "LinkedDomains"

// FindServices returns the services of the given type from the DID document.
func FindServices(document did.Document, serviceType string) []did.Service {
	var result []did.Service
	for _, service := range document.Service {
		if service.Type == serviceType {
			result = append(result, service)
		}
	}
	return result
}

// ServiceEndpointURLs returns the URLs of a service endpoint, which can be a single URL, a list of URLs, or
// an object listing them in an 'origins' property (the form used by LinkedDomains services).
func ServiceEndpointURLs(service did.Service) ([]string, error) {
	var single string
	if err := service.UnmarshalServiceEndpoint(&single); err == nil {
		return []string{single}, nil
	}
	var list []string
	if err := service.UnmarshalServiceEndpoint(&list); err == nil {
		return list, nil
	}
	var object struct {
		Origins []string `json:"origins"`
	}
	if err := service.UnmarshalServiceEndpoint(&object); err == nil && len(object.Origins) > 0 {
		return object.Origins, nil
	}
	return nil, fmt.Errorf("unsupported service endpoint format (service=%s)", service.ID)
}
