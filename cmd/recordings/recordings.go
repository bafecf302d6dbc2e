// Package recordings implements commands for managing recorded files.
package recordings

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/boxrec/boxrec/internal/audiocore/export"
	"github.com/boxrec/boxrec/internal/conf"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
	recstore "github.com/boxrec/boxrec/internal/recordings"
)

// Command creates the recordings command and its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recordings",
		Aliases: []string{"rec"},
		Short:   "Manage recorded files",
	}
	cmd.PersistentFlags().StringVar(&settings.Recording.Dir, "dir", settings.Recording.Dir, "Recordings directory")

	store := func() *recstore.Store {
		return recstore.New(settings.Recording.Dir, logger.Global().Module("recordings"))
	}

	cmd.AddCommand(
		listCommand(store),
		deleteAllCommand(store),
		probeCommand(store),
		inspectCommand(),
		repairCommand(store),
	)
	return cmd
}

func listCommand(store func() *recstore.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recordings with their duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return list(cmd.OutOrStdout(), store())
		},
	}
}

func list(out io.Writer, s *recstore.Store) error {
	recs, err := s.List()
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		_, err := fmt.Fprintf(out, "no recordings in %s\n", s.Dir())
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tDURATION\tMODIFIED\tSTATE")
	for _, r := range recs {
		state, duration := "ok", "-"
		info, err := export.Inspect(r.Path)
		switch {
		case err != nil:
			state = "unreadable"
		case info.NeedsRepair():
			state = "needs repair"
			duration = formatSeconds(info.Duration())
		default:
			duration = formatSeconds(info.Duration())
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			r.Name, r.Size, duration, r.ModTime.Format(time.DateTime), state)
	}
	return tw.Flush()
}

func deleteAllCommand(store func() *recstore.Store) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every recording",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.Newf("refusing to delete recordings without --yes").
					Component("cli").
					Category(errors.CategoryValidation).
					Build()
			}
			n, err := store().DeleteAll()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d recordings\n", n)
			return err
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	return cmd
}

func probeCommand(store func() *recstore.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that the recordings directory is writable and report free space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := store()
			if err := s.Probe(); err != nil {
				return err
			}
			u, err := s.Usage()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s is writable, %d MB free of %d MB (%.1f%% used)\n",
				s.Dir(), u.FreeBytes>>20, u.TotalBytes>>20, u.UsedPercent)
			return err
		},
	}
}

func inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the WAV header of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := export.Inspect(args[0])
			if err != nil {
				return err
			}
			return printInfo(cmd.OutOrStdout(), info)
		},
	}
}

func printInfo(out io.Writer, info export.Info) error {
	h := info.Header
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "file\t%s\n", info.Path)
	fmt.Fprintf(tw, "size\t%d bytes\n", info.FileSize)
	fmt.Fprintf(tw, "format\t%d Hz, %d channels, %d bit\n", h.SampleRate, h.Channels, h.BitsPerSample)
	fmt.Fprintf(tw, "declared data\t%d bytes\n", info.DeclaredData)
	fmt.Fprintf(tw, "actual data\t%d bytes\n", info.ActualData)
	fmt.Fprintf(tw, "duration\t%s\n", formatSeconds(info.Duration()))
	fmt.Fprintf(tw, "valid\t%t\n", info.Valid)
	fmt.Fprintf(tw, "needs repair\t%t\n", info.NeedsRepair())
	return tw.Flush()
}

func repairCommand(store func() *recstore.Store) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "repair [file]",
		Short: "Fix the header of recordings that were not finalized",
		Long: "Rewrite the data size in the WAV header from the file length. " +
			"Use it on recordings cut off by power loss or a removed card.",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !all {
				return repairOne(out, args[0])
			}
			recs, err := store().List()
			if err != nil {
				return err
			}
			var errs []error
			for _, r := range recs {
				if err := repairOne(out, r.Path); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Repair every recording in the directory")
	return cmd
}

func repairOne(out io.Writer, path string) error {
	before, err := export.Inspect(path)
	if err != nil {
		return err
	}
	if !before.NeedsRepair() {
		return nil
	}
	size, err := export.Repair(path)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "repaired %s: %d bytes of audio\n", filepath.Base(path), size)
	return err
}

func formatSeconds(s float64) string {
	return (time.Duration(s * float64(time.Second))).Round(time.Second).String()
}
