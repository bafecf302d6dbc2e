// Package devices implements the devices command.
package devices

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/boxrec/boxrec/internal/audiocore/sources"
	"github.com/boxrec/boxrec/internal/audiocore/sources/malgo"
)

// Command creates the devices command.
func Command() *cobra.Command {
	var playback bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list := sources.ListDevices
			if playback {
				list = malgo.ListPlaybackDevices
			}
			devices, err := list()
			if err != nil {
				return err
			}
			return Print(cmd.OutOrStdout(), devices)
		},
	}
	cmd.Flags().BoolVar(&playback, "playback", false, "List playback devices instead of capture devices")
	return cmd
}

// Print writes devices as a table. The ID column is what --device accepts.
func Print(out io.Writer, devices []malgo.AudioDeviceInfo) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(out, "no audio devices found")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tID\tDEFAULT\tHARDWARE")
	for _, d := range devices {
		def := ""
		if d.IsDefault {
			def = "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\n", d.Index, d.Name, d.ID, def, d.Hardware)
	}
	return tw.Flush()
}
