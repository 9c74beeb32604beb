package commands

import (
	"fmt"
	"os"

	devicecmd "github.com/fujinet-nio/fujinet-nio/cmd/fujinetd/commands/device"
	diskcmd "github.com/fujinet-nio/fujinet-nio/cmd/fujinetd/commands/diskslot"
	eventscmd "github.com/fujinet-nio/fujinet-nio/cmd/fujinetd/commands/events"
	netcmd "github.com/fujinet-nio/fujinet-nio/cmd/fujinetd/commands/network"
	"github.com/fujinet-nio/fujinet-nio/cmd/fujinetd/fujiapp"
	"github.com/fujinet-nio/fujinet-nio/internal/cli/output"
	"github.com/fujinet-nio/fujinet-nio/internal/telemetry"
	"github.com/grafana/pyroscope-go"
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	configPath     string
	outputFormat   string
	profileEnabled bool
	profileAddr    string

	app *fujiapp.App
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "fujinetd",
	Short: "FujiNet-NIO operational CLI",
	Long: `fujinetd is a thin operational client for the FujiNet-NIO device bus.

It is a demonstration and manual-testing tool, not the peripheral's
transport loop: it boots the same disk and network devices the firmware
core registers and lets you list, mount, and open sessions against them
from a terminal.

Use "fujinetd [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		app, err = fujiapp.Bootstrap(configPath)
		if err != nil {
			return err
		}
		if profileEnabled {
			if _, err := pyroscope.Start(pyroscope.Config{
				ApplicationName: "fujinetd",
				ServerAddress:   profileAddr,
			}); err != nil {
				return fmt.Errorf("start profiler: %w", err)
			}
		}
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command, for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: platform config dir)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table|json)")
	rootCmd.PersistentFlags().BoolVar(&profileEnabled, "profile", false, "Enable continuous profiling via Pyroscope")
	rootCmd.PersistentFlags().StringVar(&profileAddr, "profile-addr", "http://localhost:4040", "Pyroscope server address")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(devicecmd.New(getApp, getOutputFormat))
	rootCmd.AddCommand(diskcmd.New(getApp, getOutputFormat))
	rootCmd.AddCommand(netcmd.New(getApp, getOutputFormat))
	rootCmd.AddCommand(eventscmd.New(getApp))
}

// getApp exposes the bootstrapped App to subcommand packages without
// requiring them to import the commands package (which would cycle).
func getApp() *fujiapp.App {
	return app
}

func getOutputFormat() output.Format {
	f, err := output.ParseFormat(outputFormat)
	if err != nil {
		return output.FormatTable
	}
	return f
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(os.Stdout, "fujinetd %s (commit: %s, built: %s)\n", Version, Commit, Date)
		if telemetry.IsEnabled() {
			fmt.Fprintln(os.Stdout, "telemetry: enabled")
		}
		return nil
	},
}
