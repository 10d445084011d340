package audio

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFile = "/audio/adhan_istanbul.mp3"

func shellSpec(script string) Spec {
	return Spec{
		Name:    "sh",
		Command: func(string, int) []string { return []string{"sh", "-c", script} },
	}
}

func newShellPlayer(t *testing.T, script string, opts ...Option) *ProcessPlayer {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, testFile, []byte("ID3"), 0o644))
	p := NewProcessPlayer(shellSpec(script), append([]Option{WithFs(fs)}, opts...)...)
	t.Cleanup(func() { _ = p.Stop() })
	return p
}

func waitResult(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("playback did not finish")
		return nil
	}
}

func TestCommands_ScaleVolume(t *testing.T) {
	assert.Equal(t, []string{"mpg123", "--quiet", "--scale", "16384", "a.mp3"}, Mpg123.Command("a.mp3", 50))
	assert.Equal(t, []string{"ffplay", "-nodisp", "-autoexit", "-volume", "80", "-loglevel", "quiet", "a.mp3"}, Ffplay.Command("a.mp3", 80))
	assert.Equal(t, []string{"paplay", "--volume=65536", "a.mp3"}, Paplay.Command("a.mp3", 100))
	assert.Equal(t, []string{"aplay", "-q", "a.wav"}, Aplay.Command("a.wav", 10))
}

func TestBestPlayer_RankedProbe(t *testing.T) {
	installed := map[string]bool{"paplay": true, "aplay": true}
	lookPath := func(name string) (string, error) {
		if installed[name] {
			return "/usr/bin/" + name, nil
		}
		return "", exec.ErrNotFound
	}

	p, err := BestPlayer(WithLookPath(lookPath))
	require.NoError(t, err)
	assert.Equal(t, "paplay", p.Name())

	installed["mpg123"] = true
	p, err = BestPlayer(WithLookPath(lookPath))
	require.NoError(t, err)
	assert.Equal(t, "mpg123", p.Name())
}

func TestBestPlayer_NoneInstalled(t *testing.T) {
	none := func(string) (string, error) { return "", exec.ErrNotFound }

	_, err := BestPlayer(WithLookPath(none))
	assert.ErrorIs(t, err, ErrNoPlayer)

	out := Detect(zerolog.Nop(), WithLookPath(none))
	assert.Equal(t, "none", out.Name())
	_, err = out.Start(context.Background(), testFile, 50)
	assert.ErrorIs(t, err, ErrNoPlayer)
	assert.NoError(t, out.Stop())
	assert.False(t, out.IsPlaying())
}

func TestProcessPlayer_MissingFile(t *testing.T) {
	p := newShellPlayer(t, "exit 0")

	_, err := p.Start(context.Background(), "/audio/missing.mp3", 50)
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.False(t, p.IsPlaying())
}

func TestProcessPlayer_MissingBinary(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, testFile, []byte("ID3"), 0o644))
	p := NewProcessPlayer(Mpg123, WithFs(fs), WithLookPath(func(string) (string, error) { return "", exec.ErrNotFound }))

	_, err := p.Start(context.Background(), testFile, 50)
	assert.ErrorIs(t, err, ErrNoPlayer)
}

func TestProcessPlayer_NaturalCompletion(t *testing.T) {
	p := newShellPlayer(t, "sleep 0.1")

	done, err := p.Start(context.Background(), testFile, 80)
	require.NoError(t, err)
	assert.True(t, p.IsPlaying())

	assert.NoError(t, waitResult(t, done))
	assert.Eventually(t, func() bool { return !p.IsPlaying() }, time.Second, 10*time.Millisecond)
}

func TestProcessPlayer_NonZeroExit(t *testing.T) {
	p := newShellPlayer(t, "echo 'cannot open device' >&2; exit 3")

	done, err := p.Start(context.Background(), testFile, 80)
	require.NoError(t, err)

	err = waitResult(t, done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot open device")
	var exitErr *exec.ExitError
	assert.True(t, errors.As(err, &exitErr))
}

func TestProcessPlayer_StopTerminates(t *testing.T) {
	p := newShellPlayer(t, "exec sleep 10")

	done, err := p.Start(context.Background(), testFile, 80)
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, p.Stop())
	assert.Less(t, time.Since(start), DefaultStopTimeout)
	assert.False(t, p.IsPlaying())
	assert.NoError(t, waitResult(t, done))
}

func TestProcessPlayer_StopEscalatesToKill(t *testing.T) {
	p := newShellPlayer(t, "trap '' TERM; while :; do sleep 0.05; done", WithStopTimeout(100*time.Millisecond))

	done, err := p.Start(context.Background(), testFile, 80)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, p.Stop())
	assert.False(t, p.IsPlaying())
	assert.NoError(t, waitResult(t, done))
}

func TestProcessPlayer_StopWhenIdle(t *testing.T) {
	p := newShellPlayer(t, "exit 0")

	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestProcessPlayer_StartReplacesRunning(t *testing.T) {
	p := newShellPlayer(t, "exec sleep 10")

	first, err := p.Start(context.Background(), testFile, 80)
	require.NoError(t, err)
	second, err := p.Start(context.Background(), testFile, 80)
	require.NoError(t, err)

	assert.NoError(t, waitResult(t, first))
	assert.True(t, p.IsPlaying())
	require.NoError(t, p.Stop())
	assert.NoError(t, waitResult(t, second))
}
