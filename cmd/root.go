package cmd

import (
	"github.com/spf13/cobra"

	"github.com/boxrec/boxrec/cmd/devices"
	"github.com/boxrec/boxrec/cmd/play"
	"github.com/boxrec/boxrec/cmd/record"
	"github.com/boxrec/boxrec/cmd/recordings"
	settingscmd "github.com/boxrec/boxrec/cmd/settings"
	"github.com/boxrec/boxrec/internal/buildinfo"
	"github.com/boxrec/boxrec/internal/conf"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "boxrec",
		Short:         "Portable voice recorder",
		Version:       build.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")

	rootCmd.AddCommand(
		record.Command(settings, build),
		recordings.Command(settings),
		settingscmd.Command(settings),
		play.Command(),
		devices.Command(),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initialize(settings, build)
	}
	return rootCmd
}

// initialize runs after flags are parsed and before any subcommand. It sets
// up the global logger and, when enabled, error telemetry.
func initialize(settings *conf.Settings, build *buildinfo.Context) error {
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}
	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return err
	}
	logger.SetGlobal(central)

	if settings.Telemetry.Sentry.Enabled {
		if err := errors.InitSentry(settings.Telemetry.Sentry.DSN, build.Release()); err != nil {
			central.Module("main").Warn("error telemetry disabled", logger.Error(err))
		}
	}
	return nil
}
