package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// DefaultStopTimeout is how long a player gets to exit after SIGTERM
// before it is killed.
const DefaultStopTimeout = 2 * time.Second

type options struct {
	fs          afero.Fs
	lookPath    LookPathFunc
	stopTimeout time.Duration
	log         zerolog.Logger
}

type Option func(*options)

func WithFs(fs afero.Fs) Option { return func(o *options) { o.fs = fs } }

func WithLookPath(f LookPathFunc) Option { return func(o *options) { o.lookPath = f } }

func WithStopTimeout(d time.Duration) Option { return func(o *options) { o.stopTimeout = d } }

func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.log = l } }

func newOptions(opts []Option) options {
	o := options{
		fs:          afero.NewOsFs(),
		lookPath:    exec.LookPath,
		stopTimeout: DefaultStopTimeout,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ProcessPlayer runs one player process at a time.
type ProcessPlayer struct {
	spec Spec
	opts options

	mu      sync.Mutex
	current *process
}

type process struct {
	cmd     *exec.Cmd
	exited  chan struct{}
	stopped bool
}

func NewProcessPlayer(spec Spec, opts ...Option) *ProcessPlayer {
	return &ProcessPlayer{spec: spec, opts: newOptions(opts)}
}

func (p *ProcessPlayer) Name() string { return p.spec.Name }

func (p *ProcessPlayer) Start(ctx context.Context, path string, volume int) (<-chan error, error) {
	exists, err := afero.Exists(p.opts.fs, path)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", path, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	args := p.spec.Command(path, volume)
	bin, err := p.opts.lookPath(args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoPlayer, args[0], err)
	}

	if err := p.Stop(); err != nil {
		return nil, err
	}
	if p.spec.Prepare != nil {
		if err := p.spec.Prepare(ctx, volume, p.opts.lookPath); err != nil {
			p.opts.log.Warn().Err(err).Int("volume", volume).Msg("failed to set volume")
		}
	}

	var stderr bytes.Buffer
	cmd := exec.Command(bin, args[1:]...)
	cmd.Stderr = &stderr
	// orphaned children must not hold Wait open through the stderr pipe
	cmd.WaitDelay = time.Second
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", p.spec.Name, err)
	}
	p.opts.log.Info().Str("player", p.spec.Name).Int("pid", cmd.Process.Pid).Str("file", path).Int("volume", volume).Msg("playback started")

	proc := &process{cmd: cmd, exited: make(chan struct{})}
	p.mu.Lock()
	p.current = proc
	p.mu.Unlock()

	result := make(chan error, 1)
	go func() {
		defer close(result)
		waitErr := cmd.Wait()
		close(proc.exited)

		p.mu.Lock()
		stopped := proc.stopped
		if p.current == proc {
			p.current = nil
		}
		p.mu.Unlock()

		if waitErr != nil && !stopped {
			msg := strings.TrimSpace(stderr.String())
			p.opts.log.Warn().Err(waitErr).Str("player", p.spec.Name).Str("stderr", msg).Msg("player exited with error")
			result <- fmt.Errorf("%s: %w: %s", p.spec.Name, waitErr, msg)
			return
		}
		result <- nil
	}()
	return result, nil
}

// Stop terminates the running process, escalating to kill after the stop
// timeout. It is a no-op when nothing plays.
func (p *ProcessPlayer) Stop() error {
	p.mu.Lock()
	proc := p.current
	if proc != nil {
		proc.stopped = true
	}
	p.mu.Unlock()
	if proc == nil {
		return nil
	}

	if err := proc.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.opts.log.Debug().Err(err).Msg("terminate failed, killing")
	}
	select {
	case <-proc.exited:
	case <-time.After(p.opts.stopTimeout):
		if err := proc.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("killing %s: %w", p.spec.Name, err)
		}
		<-proc.exited
	}

	p.mu.Lock()
	if p.current == proc {
		p.current = nil
	}
	p.mu.Unlock()
	p.opts.log.Info().Str("player", p.spec.Name).Msg("playback stopped")
	return nil
}

func (p *ProcessPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}
