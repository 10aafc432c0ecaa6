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
	"os"
	"path/filepath"
	"testing"

	"github.com/nuts-foundation/nuts-siop/vcr/pe/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionStore_LoadFromFile(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		filename := filepath.Join(t.TempDir(), "definitions.json")
		require.NoError(t, os.WriteFile(filename, []byte("["+test.Pick_1+","+test.All+"]"), 0644))
		store := NewDefinitionStore()

		err := store.LoadFromFile(filename)

		require.NoError(t, err)
		assert.Equal(t, []string{"all", "pick_1"}, store.IDs())
		definition := store.ByID("pick_1")
		require.NotNil(t, definition)
		assert.Len(t, definition.InputDescriptors, 2)
	})
	t.Run("error - file does not exist", func(t *testing.T) {
		err := NewDefinitionStore().LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))

		assert.ErrorIs(t, err, os.ErrNotExist)
	})
	t.Run("error - not an array", func(t *testing.T) {
		filename := filepath.Join(t.TempDir(), "definitions.json")
		require.NoError(t, os.WriteFile(filename, []byte(test.Pick_1), 0644))

		err := NewDefinitionStore().LoadFromFile(filename)

		assert.ErrorContains(t, err, "unable to parse presentation definitions file")
	})
	t.Run("error - invalid definition", func(t *testing.T) {
		filename := filepath.Join(t.TempDir(), "definitions.json")
		require.NoError(t, os.WriteFile(filename, []byte(`[{"id": "1"}]`), 0644))

		err := NewDefinitionStore().LoadFromFile(filename)

		assert.ErrorIs(t, err, ErrInvalidPresentationDefinition)
	})
}

func TestDefinitionStore_ByID(t *testing.T) {
	store := NewDefinitionStore()
	store.Add(PresentationDefinition{Id: "1"})

	t.Run("found", func(t *testing.T) {
		assert.NotNil(t, store.ByID("1"))
	})
	t.Run("not found", func(t *testing.T) {
		assert.Nil(t, store.ByID("2"))
	})
	t.Run("replaced", func(t *testing.T) {
		store.Add(PresentationDefinition{Id: "1", Name: "replacement"})

		assert.Equal(t, "replacement", store.ByID("1").Name)
	})
}
