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
	"context"
	"io"
	"os"

	"github.com/nuts-foundation/nuts-siop/auth"
	opAPI "github.com/nuts-foundation/nuts-siop/auth/api/op"
	rpAPI "github.com/nuts-foundation/nuts-siop/auth/api/rp"
	authCmd "github.com/nuts-foundation/nuts-siop/auth/cmd"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/events"
	eventsCmd "github.com/nuts-foundation/nuts-siop/events/cmd"
	httpEngine "github.com/nuts-foundation/nuts-siop/http"
	httpCmd "github.com/nuts-foundation/nuts-siop/http/cmd"
	"github.com/nuts-foundation/nuts-siop/storage"
	storageCmd "github.com/nuts-foundation/nuts-siop/storage/cmd"
	"github.com/nuts-foundation/nuts-siop/tracing"
	tracingCmd "github.com/nuts-foundation/nuts-siop/tracing/cmd"
	"github.com/nuts-foundation/nuts-siop/vdr"
	vdrCmd "github.com/nuts-foundation/nuts-siop/vdr/cmd"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var stdOutWriter io.Writer = os.Stdout

func createRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "siop",
		Short: "SIOPv2/OpenID4VP relying party and OpenID provider. Runs the server or creates and inspects authorization requests.",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
		SilenceUsage: true,
	}
}

func createPrintConfigCommand(system *core.System) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Prints the current config",
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return system.Load(cmd)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("Current system config")
			cmd.Println(system.Config.PrintConfig())
		},
	}
}

func createServerCommand(system *core.System) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Starts the server",
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return system.Load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return startServer(cmd.Context(), system)
		},
	}
}

func startServer(ctx context.Context, system *core.System) error {
	logrus.Info("Starting server with config:")
	logrus.Info(system.Config.PrintConfig())

	// check config on all engines
	if err := system.Configure(); err != nil {
		return err
	}

	// start engines
	if err := system.Start(); err != nil {
		return err
	}

	// wait for shutdown signal or the HTTP server to stop
	<-ctx.Done()
	logrus.Info("Shutting down...")
	if err := system.Shutdown(); err != nil {
		logrus.Errorf("Error shutting down system: %v", err)
		return err
	}
	logrus.Info("Shutdown complete. Goodbye!")
	return nil
}

// CreateCommand creates the command with all subcommands to run the system.
func CreateCommand(system *core.System) *cobra.Command {
	command := createRootCommand()
	command.SetOut(stdOutWriter)
	addSubCommands(system, command)
	return command
}

// CreateSystem creates the system and registers all default engines.
// The shutdown callback is called when the HTTP server stops unexpectedly.
func CreateSystem(shutdownCallback context.CancelFunc) *core.System {
	system := core.NewSystem()
	// Create instances
	tracingInstance := tracing.New()
	storageInstance := storage.New()
	vdrInstance := vdr.NewVDR(storageInstance)
	eventManager := events.NewManager()
	authInstance := auth.NewAuthInstance(storageInstance, vdrInstance, eventManager)
	metricsEngine := core.NewMetricsEngine()
	httpServerInstance := httpEngine.New(shutdownCallback, system.EchoCreator)

	// Register HTTP routes
	system.RegisterRoutes(tracingInstance)
	system.RegisterRoutes(rpAPI.Wrapper{Auth: authInstance, Storage: storageInstance})
	system.RegisterRoutes(opAPI.Wrapper{Auth: authInstance})
	system.RegisterRoutes(metricsEngine)

	// Register engines
	// the order of registering engines is important: engines are configured and started in this order.
	// Tracing goes first so HTTP clients created by other engines propagate traces,
	// the HTTP engine goes last since it creates the server with all routes.
	system.RegisterEngine(tracingInstance)
	system.RegisterEngine(storageInstance)
	system.RegisterEngine(vdrInstance)
	system.RegisterEngine(eventManager)
	system.RegisterEngine(authInstance)
	system.RegisterEngine(metricsEngine)
	system.RegisterEngine(httpServerInstance)
	return system
}

// Execute executes the root command, which blocks until the command completes.
// For the server command it returns when the given context is cancelled.
func Execute(ctx context.Context, system *core.System) error {
	command := CreateCommand(system)
	return command.ExecuteContext(ctx)
}

func addSubCommands(system *core.System, root *cobra.Command) {
	serverCommands := []*cobra.Command{
		createServerCommand(system),
		createPrintConfigCommand(system),
	}
	didCommand := vdrCmd.Cmd(findVDR(system), configureResolution(system))
	didCommand.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return system.Load(cmd)
	}
	serverCommands = append(serverCommands, didCommand)
	flags := serverFlagSet()
	for _, curr := range serverCommands {
		curr.PersistentFlags().AddFlagSet(flags)
		root.AddCommand(curr)
	}
	root.AddCommand(authCmd.Cmd())
}

// serverFlagSet returns the flags of the server config and all engines.
func serverFlagSet() *pflag.FlagSet {
	result := core.FlagSet()
	result.AddFlagSet(storageCmd.FlagSet())
	result.AddFlagSet(vdrCmd.FlagSet())
	result.AddFlagSet(eventsCmd.FlagSet())
	result.AddFlagSet(authCmd.FlagSet())
	result.AddFlagSet(httpCmd.FlagSet())
	result.AddFlagSet(tracingCmd.FlagSet())
	return result
}

func findVDR(system *core.System) *vdr.Module {
	var result *vdr.Module
	system.VisitEngines(func(engine core.Engine) {
		if instance, ok := engine.(*vdr.Module); ok {
			result = instance
		}
	})
	return result
}

// configureResolution configures only the engines DID resolution needs.
func configureResolution(system *core.System) func() error {
	return func() error {
		return system.VisitEnginesE(func(engine core.Engine) error {
			switch instance := engine.(type) {
			case *storage.Engine:
				return instance.Configure(*system.Config)
			case *vdr.Module:
				return instance.Configure(*system.Config)
			}
			return nil
		})
	}
}
