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

package pe

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
)

// DefinitionStore holds presentation definitions by their ID.
// Relying parties use it to serve presentation definitions by reference.
type DefinitionStore struct {
	mux         sync.RWMutex
	definitions map[string]PresentationDefinition
}

// NewDefinitionStore creates an empty DefinitionStore.
func NewDefinitionStore() *DefinitionStore {
	return &DefinitionStore{definitions: map[string]PresentationDefinition{}}
}

// LoadFromFile loads the presentation definitions from the given file, which contains a JSON array of definitions.
// Each definition is validated against the JSON schema.
func (s *DefinitionStore) LoadFromFile(filename string) error {
	// read the bytes from the file
	reader, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer reader.Close()
	bytes, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	var raw []json.RawMessage
	if err = json.Unmarshal(bytes, &raw); err != nil {
		return fmt.Errorf("unable to parse presentation definitions file (file=%s): %w", filename, err)
	}
	for _, entry := range raw {
		definition, err := ParsePresentationDefinition(entry)
		if err != nil {
			return fmt.Errorf("unable to load presentation definitions file (file=%s): %w", filename, err)
		}
		s.Add(*definition)
	}
	return nil
}

// Add stores the given definition, replacing an existing definition with the same ID.
func (s *DefinitionStore) Add(definition PresentationDefinition) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.definitions[definition.Id] = definition
}

// ByID returns the presentation definition with the given ID.
// Returns nil if it doesn't exist.
func (s *DefinitionStore) ByID(id string) *PresentationDefinition {
	s.mux.RLock()
	defer s.mux.RUnlock()
	definition, ok := s.definitions[id]
	if !ok {
		return nil
	}
	return &definition
}

// IDs returns the IDs of all stored definitions, sorted.
func (s *DefinitionStore) IDs() []string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	result := make([]string, 0, len(s.definitions))
	for id := range s.definitions {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}
