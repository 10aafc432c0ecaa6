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
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/nuts-foundation/nuts-siop/cmd"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func generateDocs(targetDirectory string) {
	if err := os.MkdirAll(targetDirectory, 0755); err != nil {
		panic(err)
	}
	system := cmd.CreateSystem(func() {})
	writeFile(path.Join(targetDirectory, "server_options.rst"), func(writer io.StringWriter) {
		printRstTable(vals("Key", "Default", "Description"), serverOptions(system), writer)
	})
	writeFile(path.Join(targetDirectory, "cli.rst"), func(writer io.StringWriter) {
		_, _ = writer.WriteString(".. _siop-cli-command-reference:\n\nSIOP CLI Command Reference\n**************************\n")
		generateCommandDocs(cmd.CreateCommand(system), writer)
	})
}

// serverOptions returns the flags of the server command as table rows, partitioned by engine.
func serverOptions(system *core.System) [][]rstValue {
	serverCommand, _, err := cmd.CreateCommand(system).Find([]string{"server"})
	if err != nil {
		panic(err)
	}
	globalFlags := serverCommand.PersistentFlags()
	flags := map[string]*pflag.FlagSet{}
	system.VisitEngines(func(engine core.Engine) {
		if m, ok := engine.(core.Injectable); ok {
			flagsForEngine := extractFlagsForEngine(strings.ToLower(m.Name()), globalFlags)
			if flagsForEngine.HasAvailableFlags() {
				flags[m.Name()] = flagsForEngine
			}
		}
	})
	// whatever wasn't claimed by an engine is a global option, listed first
	flags[""] = globalFlags

	sortedKeys := make([]string, 0, len(flags))
	for key := range flags {
		sortedKeys = append(sortedKeys, key)
	}
	sort.Strings(sortedKeys)

	var values [][]rstValue
	for _, key := range sortedKeys {
		if key != "" {
			values = append(values, []rstValue{{value: key, bold: true}})
		}
		values = append(values, flagsToSortedValues(flags[key])...)
	}
	return values
}

// extractFlagsForEngine copies the flags with the given prefix into a new set, and hides them in the input set.
func extractFlagsForEngine(configKey string, flagSet *pflag.FlagSet) *pflag.FlagSet {
	result := pflag.FlagSet{}
	flagSet.VisitAll(func(current *pflag.Flag) {
		if strings.HasPrefix(current.Name, configKey+".") {
			flagCopy := *current
			current.Hidden = true
			result.AddFlag(&flagCopy)
		}
	})
	return &result
}

func flagsToSortedValues(flags *pflag.FlagSet) [][]rstValue {
	values := make([][]rstValue, 0)
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		values = append(values, vals(f.Name, f.DefValue, f.Usage))
	})
	// global properties (the ones without dots) go on top
	sort.Slice(values, func(i, j int) bool {
		s1, s2 := values[i][0].value, values[j][0].value
		nested1, nested2 := strings.Contains(s1, "."), strings.Contains(s2, ".")
		if nested1 != nested2 {
			return nested2
		}
		return s1 < s2
	})
	return values
}

// generateCommandDocs writes the usage of the command and all of its runnable subcommands.
func generateCommandDocs(command *cobra.Command, writer io.StringWriter) {
	command.InitDefaultHelpCmd()
	command.InitDefaultHelpFlag()

	if command.Runnable() {
		name := command.CommandPath()
		_, _ = writer.WriteString("\n" + name + "\n" + strings.Repeat("^", len(name)) + "\n\n")
		description := command.Long
		if description == "" {
			description = command.Short
		}
		_, _ = writer.WriteString(description + "\n\n::\n\n  " + command.UseLine() + "\n\n")
		for _, flags := range []*pflag.FlagSet{command.NonInheritedFlags(), command.InheritedFlags()} {
			if flags.HasAvailableFlags() {
				_, _ = writer.WriteString(indent(flags.FlagUsages()))
			}
		}
	}

	for _, c := range command.Commands() {
		if !c.IsAvailableCommand() || c.IsAdditionalHelpTopicCommand() {
			continue
		}
		generateCommandDocs(c, writer)
	}
}

func indent(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	return "  " + strings.Join(lines, "\n  ") + "\n"
}

func writeFile(fileName string, fn func(writer io.StringWriter)) {
	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		panic(err)
	}
	defer file.Close()
	fn(file)
	if err := file.Sync(); err != nil {
		panic(err)
	}
}
