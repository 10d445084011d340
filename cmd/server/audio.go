package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/vakit/internal/audio"
	"github.com/Nixie-Tech-LLC/vakit/internal/events"
	"github.com/Nixie-Tech-LLC/vakit/internal/model"
	"github.com/Nixie-Tech-LLC/vakit/internal/playback"
)

// fileAsset resolves every request to one file.
type fileAsset struct {
	fs   afero.Fs
	path string
}

func (f fileAsset) Resolve(model.AdhanType, *model.PrayerName) (string, bool) {
	ok, err := afero.Exists(f.fs, f.path)
	return f.path, err == nil && ok
}

func newTestAudioCmd(c *cli) *cobra.Command {
	var (
		file     string
		volume   int
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "test-audio",
		Short: "Play the configured adhan, or a given file, for a short time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := audio.Detect(c.log)
			a, err := c.openApp(ctx, out)
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())

			player := a.Playback
			if file != "" {
				player = playback.NewCoordinator(out, fileAsset{fs: afero.NewOsFs(), path: file}, a.Settings, events.Discard, c.log)
			}

			var vol *int
			if cmd.Flags().Changed("volume") {
				vol = &volume
			}
			fmt.Fprintf(c.out, "playing through %s for up to %s\n", player.PlayerName(), duration)
			err = player.TestAudio(ctx, vol, duration)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&file, "file", "", "recording to play instead of the configured adhan")
	f.IntVar(&volume, "volume", 0, "volume 0-100, defaults to the stored default volume")
	f.DurationVar(&duration, "duration", playback.DefaultTestDuration, "maximum playback time")
	return cmd
}

func newAssetsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Manage adhan recordings",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the recordings in the audio directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.openApp(cmd.Context(), audio.Unavailable{})
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())

			names, err := a.Assets.List()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintf(c.out, "no recordings in %s\n", a.Assets.Dir())
			}
			for _, name := range names {
				fmt.Fprintln(c.out, name)
			}
			return nil
		},
	}

	var push bool
	sync := &cobra.Command{
		Use:   "sync",
		Short: "Download recordings from the Spaces bucket, or upload them with --push",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.openApp(cmd.Context(), audio.Unavailable{})
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())

			if a.Spaces == nil {
				return errors.New("no Spaces bucket configured, set VAKIT_SPACES_BUCKET")
			}
			if push {
				n, err := a.Spaces.Push(cmd.Context(), a.Assets)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "uploaded %d recordings\n", n)
				return nil
			}
			n, err := a.Spaces.Pull(cmd.Context(), a.Assets)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "downloaded %d recordings to %s\n", n, a.Assets.Dir())
			return nil
		},
	}
	sync.Flags().BoolVar(&push, "push", false, "upload local recordings instead of downloading")

	cmd.AddCommand(list, sync)
	return cmd
}
