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

// Package codec encodes authorization requests and responses as URI query strings, and resolves objects passed by reference.
package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nuts-foundation/nuts-siop/auth/oauth"
)

var schemePrefix = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-_]*://\??`)

// EncodeJSONAsURI encodes a JSON object as URI query string. Empty values (nil, false, 0 and "") are skipped,
// booleans and numbers are written verbatim, strings are percent-encoded and objects and arrays are percent-encoded JSON.
// Keys are sorted, so the result is deterministic.
func EncodeJSONAsURI(payload map[string]interface{}) (string, error) {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var parts []string
	for _, key := range keys {
		value, skip, err := encodeValue(payload[key])
		if err != nil {
			return "", fmt.Errorf("%w: unable to encode %s: %w", oauth.ErrMalformedInput, key, err)
		}
		if skip {
			continue
		}
		parts = append(parts, EscapeURIComponent(strings.ReplaceAll(key, " ", ""))+"="+value)
	}
	return strings.Join(parts, "&"), nil
}

// AppendToURL encodes the payload with EncodeJSONAsURI and appends it as query to the given base URL (e.g. openid://).
func AppendToURL(base string, payload map[string]interface{}) (string, error) {
	query, err := EncodeJSONAsURI(payload)
	if err != nil {
		return "", err
	}
	return base + "?" + query, nil
}

func encodeValue(value interface{}) (string, bool, error) {
	switch typed := value.(type) {
	case nil:
		return "", true, nil
	case bool:
		if !typed {
			return "", true, nil
		}
		return "true", false, nil
	case string:
		if typed == "" {
			return "", true, nil
		}
		return EscapeURIComponent(typed), false, nil
	case float64:
		if typed == 0 || math.IsNaN(typed) {
			return "", true, nil
		}
		return strconv.FormatFloat(typed, 'f', -1, 64), false, nil
	case float32:
		return encodeValue(float64(typed))
	case int:
		return encodeValue(float64(typed))
	case int64:
		return encodeValue(float64(typed))
	case json.Number:
		return encodeValue(string(typed))
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", false, err
	}
	return EscapeURIComponent(string(data)), false, nil
}

// EscapeURIComponent percent-encodes everything except the unreserved characters A-Z a-z 0-9 - _ . ! ~ * ' ( ).
func EscapeURIComponent(value string) string {
	escaped := url.QueryEscape(value)
	return uriComponentReplacer.Replace(escaped)
}

var uriComponentReplacer = strings.NewReplacer("+", "%20", "%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*")

// DecodeURIAsJSON decodes a URI query string (optionally prefixed with a scheme like openid://) into a JSON object.
// Values that are JSON objects or arrays are parsed, all other values (numbers and booleans included) are kept as string.
// Values that only look like a JSON object or array are kept as string as well.
func DecodeURIAsJSON(uri string) (oauth.Payload, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: empty URI", oauth.ErrMalformedInput)
	}
	query := schemePrefix.ReplaceAllString(uri, "")
	if idx := strings.Index(query, "?"); idx >= 0 && !strings.Contains(query[:idx], "=") {
		query = query[idx+1:]
	}
	if query == "" {
		return nil, fmt.Errorf("%w: URI has no query", oauth.ErrMalformedInput)
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", oauth.ErrMalformedInput, err)
	}
	result := oauth.Payload{}
	for key, entries := range values {
		var decoded []interface{}
		for _, entry := range entries {
			if entry == "" {
				continue
			}
			decoded = append(decoded, decodeValue(entry))
		}
		switch len(decoded) {
		case 0:
		case 1:
			result[key] = decoded[0]
		default:
			result[key] = decoded
		}
	}
	return result, nil
}

func decodeValue(value string) interface{} {
	if (strings.HasPrefix(value, "{") && strings.HasSuffix(value, "}")) ||
		(strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]")) {
		var result interface{}
		if err := json.Unmarshal([]byte(value), &result); err == nil {
			return result
		}
	}
	return value
}
