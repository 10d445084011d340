package audio

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog"
)

// Spec describes one supported player program.
type Spec struct {
	Name    string
	Command func(path string, volume int) []string
	// Prepare runs before each playback, e.g. to set a mixer level for
	// players without a volume flag.
	Prepare func(ctx context.Context, volume int, lookPath LookPathFunc) error
}

type LookPathFunc func(file string) (string, error)

var (
	Mpg123 = Spec{
		Name: "mpg123",
		Command: func(path string, volume int) []string {
			return []string{"mpg123", "--quiet", "--scale", strconv.Itoa(volume * 32768 / 100), path}
		},
	}
	Ffplay = Spec{
		Name: "ffplay",
		Command: func(path string, volume int) []string {
			return []string{"ffplay", "-nodisp", "-autoexit", "-volume", strconv.Itoa(volume), "-loglevel", "quiet", path}
		},
	}
	Paplay = Spec{
		Name: "paplay",
		Command: func(path string, volume int) []string {
			return []string{"paplay", "--volume=" + strconv.Itoa(volume*65536/100), path}
		},
	}
	Aplay = Spec{
		Name: "aplay",
		Command: func(path string, _ int) []string {
			return []string{"aplay", "-q", path}
		},
		Prepare: setMasterVolume,
	}
)

// Ranked is the probe order: MP3-native players first, ALSA (WAV only) last.
var Ranked = []Spec{Mpg123, Ffplay, Paplay, Aplay}

func setMasterVolume(ctx context.Context, volume int, lookPath LookPathFunc) error {
	amixer, err := lookPath("amixer")
	if err != nil {
		return nil
	}
	out, err := exec.CommandContext(ctx, amixer, "set", "Master", strconv.Itoa(volume)+"%").CombinedOutput()
	if err != nil {
		return fmt.Errorf("amixer: %w: %s", err, out)
	}
	return nil
}

// BestPlayer returns a player for the first installed program in Ranked.
func BestPlayer(opts ...Option) (*ProcessPlayer, error) {
	probe := newOptions(opts)
	for _, spec := range Ranked {
		if _, err := probe.lookPath(spec.Name); err == nil {
			probe.log.Info().Str("player", spec.Name).Msg("audio player selected")
			return NewProcessPlayer(spec, opts...), nil
		}
	}
	return nil, ErrNoPlayer
}

// Detect is BestPlayer with the Unavailable fallback.
func Detect(log zerolog.Logger, opts ...Option) Output {
	p, err := BestPlayer(append(opts, WithLogger(log))...)
	if err != nil {
		log.Warn().Err(err).Msg("audio playback disabled, install mpg123, ffplay, paplay or aplay")
		return Unavailable{}
	}
	return p
}
