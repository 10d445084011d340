// Package app assembles the long-running service from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/Nixie-Tech-LLC/vakit/internal/audio"
	"github.com/Nixie-Tech-LLC/vakit/internal/calculator"
	"github.com/Nixie-Tech-LLC/vakit/internal/config"
	"github.com/Nixie-Tech-LLC/vakit/internal/db"
	"github.com/Nixie-Tech-LLC/vakit/internal/events"
	"github.com/Nixie-Tech-LLC/vakit/internal/model"
	"github.com/Nixie-Tech-LLC/vakit/internal/planner"
	"github.com/Nixie-Tech-LLC/vakit/internal/playback"
	redisstore "github.com/Nixie-Tech-LLC/vakit/internal/redis"
	"github.com/Nixie-Tech-LLC/vakit/internal/scheduler"
	"github.com/Nixie-Tech-LLC/vakit/internal/settings"
	"github.com/Nixie-Tech-LLC/vakit/internal/storage"
	"github.com/Nixie-Tech-LLC/vakit/internal/timezone"
)

// Options replace the process-wide defaults, mostly for tests.
type Options struct {
	Fs      afero.Fs         // defaults to the OS filesystem
	Clock   func() time.Time // defaults to time.Now
	Output  audio.Output     // defaults to the best installed player
	Version string
	Logger  zerolog.Logger
}

// EventHistory serves the most recent events, newest first.
type EventHistory interface {
	Recent(ctx context.Context, n int) ([]model.Envelope, error)
}

type busHistory struct{ bus *events.Bus }

func (h busHistory) Recent(_ context.Context, n int) ([]model.Envelope, error) {
	return h.bus.Recent(n), nil
}

// App owns every component of a running instance.
type App struct {
	Config    config.Config
	Version   string
	StartedAt time.Time

	Bus       *events.Bus
	Settings  *settings.Service
	Assets    *storage.Assets
	Playback  *playback.Coordinator
	Scheduler *scheduler.Scheduler
	Planner   *planner.Planner
	History   EventHistory

	// SettingsHistory is set when the settings live in a SQL database.
	SettingsHistory *db.SettingsStore
	// Spaces is set when a bucket is configured.
	Spaces *storage.SpacesSync

	log     zerolog.Logger
	now     func() time.Time
	stop    context.CancelFunc
	closers []func() error
}

// New builds the application. Components that need a network connection
// are created only when configured; a failed MQTT connection is logged and
// the service runs without it.
func New(ctx context.Context, cfg config.Config, opts Options) (_ *App, err error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	log := opts.Logger

	a := &App{
		Config:    cfg,
		Version:   opts.Version,
		StartedAt: opts.Clock(),
		log:       log,
		now:       opts.Clock,
	}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.Bus = events.NewBus(log.With().Str("component", "events").Logger(), events.DefaultHistory)
	a.History = busHistory{bus: a.Bus}
	sinks := events.Fanout{a.Bus}

	if cfg.MQTTBroker != "" {
		client, err := events.NewMQTTClient(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic, log)
		if err != nil {
			log.Warn().Err(err).Msg("continuing without MQTT")
		} else {
			sink := events.NewMQTTSink(client, cfg.MQTTTopic, log)
			sinks = append(sinks, sink)
			a.onClose(func() error { sink.Close(); return nil })
		}
	}

	repo, err := a.openRepository(ctx, opts.Fs, &sinks)
	if err != nil {
		return nil, err
	}

	a.Settings, err = settings.NewService(ctx, repo, a.CalculatorOptions(), sinks, log)
	if err != nil {
		return nil, err
	}

	a.Assets = storage.NewAssets(opts.Fs, cfg.AudioDir)
	if cfg.Spaces.Enabled() {
		s := cfg.Spaces
		a.Spaces, err = storage.NewSpacesSync(s.Endpoint, s.Region, s.Bucket, s.Prefix, s.AccessKey, s.SecretKey)
		if err != nil {
			return nil, err
		}
	}

	out := opts.Output
	if out == nil {
		out = audio.Detect(log, audio.WithFs(opts.Fs))
	}
	a.Playback = playback.NewCoordinator(out, a.Assets, a.Settings, sinks, log.With().Str("component", "playback").Logger())

	runCtx, stop := context.WithCancel(context.Background())
	a.stop = stop
	a.Scheduler = scheduler.New(runCtx,
		scheduler.WithClock(opts.Clock),
		scheduler.WithMisfireGrace(cfg.MisfireGrace),
		scheduler.WithLogger(log.With().Str("component", "scheduler").Logger()),
	)
	a.Planner = planner.New(a.Settings, a.Playback, a.Scheduler, sinks,
		planner.WithClock(opts.Clock),
		planner.WithRolloverMargin(cfg.RolloverMargin),
		planner.WithLogger(log.With().Str("component", "planner").Logger()),
	)

	a.Settings.OnChange(func(_ model.PrayerSettings, fields []string) {
		n, err := a.Planner.Replan()
		if err != nil {
			a.log.Error().Err(err).Strs("fields", fields).Msg("replanning after settings change failed")
			return
		}
		a.log.Info().Int("scheduled", n).Strs("fields", fields).Msg("replanned after settings change")
	})

	return a, nil
}

// Now is the clock every component was built with.
func (a *App) Now() time.Time { return a.now() }

// CalculatorOptions are the base options applied to every calculator built
// from the stored settings.
func (a *App) CalculatorOptions() calculator.Options {
	opts := calculator.DefaultOptions()
	opts.RoundingBias = a.Config.RoundingBias
	if a.Config.Timezone != "" {
		opts.Resolver = timezone.Static(a.Config.Timezone)
	} else {
		opts.Resolver = timezone.NewCached(timezone.NewPolygonResolver())
	}
	return opts
}

// openRepository connects the configured settings backend. A Redis client is
// also opened for the event history when that is enabled.
func (a *App) openRepository(ctx context.Context, fsys afero.Fs, sinks *events.Fanout) (settings.Repository, error) {
	cfg := a.Config

	var rdbRepo settings.Repository
	if cfg.RedisAddress != "" && (cfg.SettingsBackend == config.BackendRedis || cfg.RedisHistory) {
		rdb := redisstore.NewClient(cfg.RedisAddress, cfg.RedisUsername, cfg.RedisPassword)
		a.onClose(rdb.Close)
		if err := redisstore.Ping(ctx, rdb); err != nil {
			return nil, err
		}
		if cfg.RedisHistory {
			history := redisstore.NewHistory(rdb, redisstore.DefaultHistoryKey, events.DefaultHistory, a.log)
			*sinks = append(*sinks, history)
			a.History = history
		}
		rdbRepo = redisstore.NewSettingsStore(rdb, redisstore.DefaultSettingsKey)
	}

	switch cfg.SettingsBackend {
	case config.BackendFile:
		return settings.NewFileRepository(fsys, cfg.SettingsPath), nil
	case config.BackendRedis:
		if rdbRepo == nil {
			return nil, errors.New("redis settings backend needs a redis address")
		}
		return rdbRepo, nil
	case config.BackendSQLite, config.BackendPostgres:
		driver := db.DriverPostgres
		if cfg.SettingsBackend == config.BackendSQLite {
			driver = db.DriverSQLite
			if dir := sqliteDir(cfg.DatabaseURL); dir != "" {
				if err := fsys.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("creating database dir: %w", err)
				}
			}
		}
		conn, err := db.Open(ctx, driver, cfg.DatabaseURL, a.log)
		if err != nil {
			return nil, err
		}
		a.onClose(conn.Close)
		if err := db.RunMigrations(ctx, conn); err != nil {
			return nil, err
		}
		a.SettingsHistory = db.NewSettingsStore(conn)
		return a.SettingsHistory, nil
	}
	return nil, fmt.Errorf("unknown settings backend %q", cfg.SettingsBackend)
}

// sqliteDir returns the directory of a file DSN, or "" for in-memory and
// URI forms.
func sqliteDir(dsn string) string {
	if dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return ""
	}
	return filepath.Dir(dsn)
}

func (a *App) onClose(fn func() error) { a.closers = append(a.closers, fn) }

// SyncAssets pulls recordings from the bucket when one is configured.
func (a *App) SyncAssets(ctx context.Context) (int, error) {
	if a.Spaces == nil {
		return 0, nil
	}
	return a.Spaces.Pull(ctx, a.Assets)
}

// Run plans today and keeps planning until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.Config.Spaces.SyncOnStart {
		if n, err := a.SyncAssets(ctx); err != nil {
			a.log.Warn().Err(err).Msg("asset sync failed, using local recordings")
		} else {
			a.log.Info().Int("count", n).Msg("asset sync finished")
		}
	}
	a.log.Info().
		Str("backend", a.Config.SettingsBackend).
		Str("player", a.Playback.PlayerName()).
		Msg("prayer scheduler started")
	return a.Planner.Run(ctx)
}

// Shutdown cancels pending triggers, stops playback and releases
// connections. It waits for running actions until ctx expires.
func (a *App) Shutdown(ctx context.Context) error {
	n := a.Scheduler.CancelAll()
	a.log.Info().Int("cancelled", n).Msg("shutting down")

	var errs []error
	if err := a.Playback.Stop(); err != nil {
		errs = append(errs, err)
	}
	a.stop()

	done := make(chan struct{})
	go func() {
		a.Scheduler.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for scheduled actions: %w", ctx.Err()))
	}

	if err := a.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.stop != nil {
		a.stop()
	}
	return errors.Join(errs...)
}
