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

// Command docs generates the configuration and CLI reference, and fixes copyright notices of source files.
// It's run from the repository root: go run ./docs [docs|copyright]
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) != 2 {
		panic(fmt.Sprintf("Missing/too many args: %v", os.Args))
	}

	param := os.Args[1]
	switch param {
	case "docs":
		generateDocs("docs/pages")
	case "copyright":
		fixCopyright("./")
	default:
		panic("Unknown command " + param)
	}
}
