// Package play implements the play command.
package play

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
	"github.com/boxrec/boxrec/internal/playback"
)

// Command creates the play command.
func Command() *cobra.Command {
	var device string
	cmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Play a recording through the sound card",
		Long: "Play a recording through the sound card. Refused while a boxrec " +
			"process on this machine is recording.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return play(cmd.Context(), audiocore.DefaultDeviceLockPath(), args[0],
				playback.WithDevice(device))
		},
	}
	cmd.Flags().StringVar(&device, "device", "", "Playback device name or ID, empty for the system default")
	return cmd
}

// play checks the device lock a running recorder holds at lockPath before
// playing path.
func play(ctx context.Context, lockPath, path string, opts ...playback.Option) error {
	guard := audiocore.NewSharedDeviceGuard(lockPath)
	p := playback.NewPlayer(guard, logger.Global().Module("playback"), opts...)
	err := p.Play(ctx, path)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
