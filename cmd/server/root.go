package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/vakit/internal/app"
	"github.com/Nixie-Tech-LLC/vakit/internal/audio"
	"github.com/Nixie-Tech-LLC/vakit/internal/config"
)

// cli carries what every command needs once the flags are parsed.
type cli struct {
	cfg config.Config
	log zerolog.Logger
	out io.Writer
}

type globalFlags struct {
	addr     string
	settings string
	audioDir string
	logLevel string
}

// newRootCmd creates the top-level "vakit" command. Without a subcommand it
// runs the server.
func newRootCmd() *cobra.Command {
	c := &cli{out: os.Stdout}
	var flags globalFlags

	root := &cobra.Command{
		Use:           "vakit",
		Short:         "Prayer time scheduler and adhan player",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, &cfg); err != nil {
				return err
			}
			c.cfg = cfg
			c.log = newLogger(cfg, os.Stderr)
			c.out = cmd.OutOrStdout()
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.addr, "addr", "", "HTTP listen address (overrides VAKIT_SERVER_ADDRESS)")
	pf.StringVar(&flags.settings, "settings", "", "settings file for the file backend (overrides VAKIT_SETTINGS_PATH)")
	pf.StringVar(&flags.audioDir, "audio-dir", "", "directory of adhan recordings (overrides VAKIT_AUDIO_DIR)")
	pf.StringVar(&flags.logLevel, "log-level", "", "trace, debug, info, warn or error (overrides VAKIT_LOG_LEVEL)")

	root.AddCommand(
		newServeCmd(c),
		newTimesCmd(c),
		newTestAudioCmd(c),
		newAssetsCmd(c),
		newHashPasswordCmd(c),
	)
	return root
}

// apply copies the flags given on the command line over cfg.
func (f globalFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("addr") {
		cfg.ServerAddress = f.addr
	}
	if changed("settings") {
		cfg.SettingsPath = f.settings
	}
	if changed("audio-dir") {
		cfg.AudioDir = f.audioDir
	}
	if changed("log-level") {
		lvl, err := zerolog.ParseLevel(f.logLevel)
		if err != nil || lvl == zerolog.NoLevel {
			return fmt.Errorf("invalid --log-level %q", f.logLevel)
		}
		cfg.LogLevel = lvl
	}
	return nil
}

// newLogger builds the process logger and installs it as the global one.
func newLogger(cfg config.Config, w io.Writer) zerolog.Logger {
	if useConsole(cfg.LogFormat, w) {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	logger := zerolog.New(w).Level(cfg.LogLevel).With().Timestamp().Logger()
	zlog.Logger = logger
	return logger
}

func useConsole(format string, w io.Writer) bool {
	switch format {
	case "console":
		return true
	case "json":
		return false
	}
	f, ok := w.(interface{ Fd() uintptr })
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// openApp builds the application for a one-shot command. Event publishing
// to MQTT and Redis is left off.
func (c *cli) openApp(ctx context.Context, out audio.Output) (*app.App, error) {
	cfg := c.cfg
	cfg.MQTTBroker = ""
	cfg.RedisHistory = false
	return app.New(ctx, cfg, app.Options{Version: version, Logger: c.log, Output: out})
}
