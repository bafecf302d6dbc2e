// Package settings implements the settings show and set commands.
package settings

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/boxrec/boxrec/internal/conf"
)

const redacted = "********"

// Command creates the settings command and its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change persistent settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Show(cmd.OutOrStdout(), conf.NewStore(settings, nil))
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting and save it",
		Example: "  boxrec settings set recording.raw_mode left\n" +
			"  boxrec settings set recording.use_afe true\n" +
			"  boxrec settings set ui.language cn",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := conf.NewStore(settings, nil)
			if err := store.Set(args[0], args[1]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s saved to %s\n", args[0], store.Settings().ConfigFile)
			return err
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}

// Show writes the settings held by store as YAML with secrets masked.
func Show(out io.Writer, store *conf.Store) error {
	s := store.Settings()
	if s.MQTT.Password != "" {
		s.MQTT.Password = redacted
	}
	if s.Telemetry.Sentry.DSN != "" {
		s.Telemetry.Sentry.DSN = redacted
	}
	if s.ConfigFile != "" {
		if _, err := fmt.Fprintf(out, "# %s\n", s.ConfigFile); err != nil {
			return err
		}
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(&s); err != nil {
		return err
	}
	return enc.Close()
}
