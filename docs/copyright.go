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

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var yearRegex = regexp.MustCompilePOSIX("Copyright \\(C\\) ([0-9]{4})(\\.?) Nuts community")

var yearRegexReplacement = fmt.Sprintf("Copyright (C) %d Nuts community", time.Now().Year())

var copyrightText = fmt.Sprintf(`/*
 * %s
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

`, yearRegexReplacement)

// fixCopyright adds the copyright notice to Go files that miss it. Files that have one keep their year.
// Generated code and the example pack (directories starting with an underscore) are skipped.
func fixCopyright(dir string) {
	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err != nil {
		panic("incorrect directory")
	}
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != dir && strings.HasPrefix(info.Name(), "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(info.Name(), ".go") || strings.Contains(info.Name(), "mock") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		dataStr := string(data)
		if strings.Contains(dataStr, "DO NOT EDIT") || yearRegex.MatchString(dataStr) {
			return nil
		}
		println("Fixing copyright notice on", path)
		return os.WriteFile(path, []byte(copyrightText+dataStr), info.Mode())
	})
	if err != nil {
		panic(err)
	}
}
