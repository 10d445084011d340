// Package playback owns the single audio slot shared by scheduled adhans and
// manual tests. A request made while the slot is taken is rejected, never
// queued.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/vakit/internal/audio"
	"github.com/Nixie-Tech-LLC/vakit/internal/events"
	"github.com/Nixie-Tech-LLC/vakit/internal/model"
)

var (
	ErrBusy         = errors.New("playback already active")
	ErrAssetMissing = errors.New("adhan recording not found")
)

const DefaultTestDuration = 10 * time.Second

type SettingsSource interface {
	Settings() model.PrayerSettings
}

type AssetResolver interface {
	Resolve(t model.AdhanType, prayer *model.PrayerName) (string, bool)
}

// Session describes what occupies the slot.
type Session struct {
	Prayer    *model.PrayerName `json:"prayer,omitempty"`
	Test      bool              `json:"test"`
	Volume    int               `json:"volume"`
	StartedAt time.Time         `json:"started_at"`
}

type session struct {
	Session
	stopped bool
}

type Coordinator struct {
	out      audio.Output
	assets   AssetResolver
	settings SettingsSource
	sink     events.Sink
	log      zerolog.Logger

	mu     sync.Mutex
	active *session
}

func NewCoordinator(out audio.Output, assets AssetResolver, settings SettingsSource, sink events.Sink, log zerolog.Logger) *Coordinator {
	if sink == nil {
		sink = events.Discard
	}
	return &Coordinator{
		out:      out,
		assets:   assets,
		settings: settings,
		sink:     sink,
		log:      log,
	}
}

func (c *Coordinator) acquire(s *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return false
	}
	s.StartedAt = time.Now()
	c.active = s
	return true
}

// release frees the slot only if s still owns it.
func (c *Coordinator) release(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == s {
		c.active = nil
	}
}

func (c *Coordinator) stopped(s *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.stopped
}

// PlayAdhan plays the adhan for prayer and blocks until it ends. It reports
// whether playback started. Disabled prayers, a busy slot and audio failures
// all return false; failures are published as AudioError events.
func (c *Coordinator) PlayAdhan(ctx context.Context, prayer model.PrayerName) bool {
	settings := c.settings.Settings()
	log := c.log.With().Str("prayer", prayer.String()).Logger()

	if !settings.IsEnabled(prayer) {
		log.Info().Msg("adhan disabled for prayer, skipping")
		return false
	}

	volume := settings.Volume.Get(prayer)
	s := &session{Session: Session{Prayer: &prayer, Volume: volume}}
	if !c.acquire(s) {
		log.Warn().Msg("playback already active, adhan not started")
		return false
	}
	defer c.release(s)

	path, ok := c.assets.Resolve(settings.AdhanType, &prayer)
	if !ok {
		c.audioError(log, &prayer, fmt.Errorf("%w: %s", ErrAssetMissing, path))
		return false
	}

	log.Info().Int("volume", volume).Str("file", path).Msg("playing adhan")
	c.sink.Publish(model.NewAdhanStarted(prayer, volume))

	done, err := c.out.Start(ctx, path, volume)
	if err != nil {
		c.audioError(log, &prayer, err)
		return false
	}

	select {
	case err = <-done:
	case <-ctx.Done():
		if stopErr := c.out.Stop(); stopErr != nil {
			log.Error().Err(stopErr).Msg("failed to stop player")
		}
		err = <-done
	}
	if err != nil {
		c.audioError(log, &prayer, err)
		return true
	}

	if c.stopped(s) {
		log.Info().Msg("adhan stopped")
	} else {
		log.Info().Msg("adhan finished")
	}
	c.sink.Publish(model.NewAdhanFinished(prayer))
	return true
}

// TestAudio plays the default recording of the configured adhan type for at
// most duration. A nil volume uses the default volume. Cancelling ctx stops
// playback and returns the context error.
func (c *Coordinator) TestAudio(ctx context.Context, volume *int, duration time.Duration) error {
	settings := c.settings.Settings()
	vol := settings.Volume.Default
	if volume != nil {
		if err := model.ValidateVolume(*volume); err != nil {
			return err
		}
		vol = *volume
	}
	if duration <= 0 {
		duration = DefaultTestDuration
	}

	path, ok := c.assets.Resolve(settings.AdhanType, nil)
	if !ok {
		c.log.Error().Str("file", path).Msg("test recording not found")
		return fmt.Errorf("%w: %s", ErrAssetMissing, path)
	}

	s := &session{Session: Session{Test: true, Volume: vol}}
	if !c.acquire(s) {
		c.log.Warn().Msg("playback already active, audio test not started")
		return ErrBusy
	}
	defer c.release(s)

	c.log.Info().Int("volume", vol).Dur("duration", duration).Msg("audio test started")
	done, err := c.out.Start(ctx, path, vol)
	if err != nil {
		c.audioError(c.log, nil, err)
		return err
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			c.audioError(c.log, nil, err)
			return err
		}
	case <-timer.C:
		c.log.Info().Msg("audio test duration reached, stopping")
		if err := c.out.Stop(); err != nil {
			return err
		}
		<-done
	case <-ctx.Done():
		c.log.Info().Msg("audio test cancelled")
		if err := c.out.Stop(); err != nil {
			c.log.Error().Err(err).Msg("failed to stop player")
		}
		<-done
		return ctx.Err()
	}
	c.log.Info().Msg("audio test finished")
	return nil
}

// Stop ends the current adhan or test. It is a no-op when idle. The slot
// stays taken until the owning call has published its final event and
// returned, so a new session never starts ahead of that event.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	s := c.active
	if s != nil {
		s.stopped = true
	}
	c.mu.Unlock()

	if s == nil && !c.out.IsPlaying() {
		return nil
	}
	if err := c.out.Stop(); err != nil {
		return fmt.Errorf("stopping playback: %w", err)
	}
	c.log.Info().Msg("playback stopped")
	return nil
}

func (c *Coordinator) IsPlaying() bool {
	c.mu.Lock()
	active := c.active != nil
	c.mu.Unlock()
	return active || c.out.IsPlaying()
}

// Current returns the session occupying the slot, if any.
func (c *Coordinator) Current() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Session{}, false
	}
	return c.active.Session, true
}

// PlayerName is the name of the underlying audio output.
func (c *Coordinator) PlayerName() string {
	return c.out.Name()
}

func (c *Coordinator) audioError(log zerolog.Logger, prayer *model.PrayerName, err error) {
	log.Error().Err(err).Msg("audio error")
	c.sink.Publish(model.NewAudioError(err.Error(), prayer))
}
