// Package planner turns a day's prayer times into scheduler triggers and
// keeps them current across settings changes and midnight.
package planner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/vakit/internal/calculator"
	"github.com/Nixie-Tech-LLC/vakit/internal/events"
	"github.com/Nixie-Tech-LLC/vakit/internal/model"
	"github.com/Nixie-Tech-LLC/vakit/internal/scheduler"
)

const (
	// DefaultRolloverMargin keeps the new day's plan clear of midnight jitter.
	DefaultRolloverMargin = 60 * time.Second

	midnight    = "0 0 * * *"
	maxSleepCap = 60 * time.Second
)

type State interface {
	Settings() model.PrayerSettings
	Calculator() *calculator.Calculator
}

type Player interface {
	PlayAdhan(ctx context.Context, prayer model.PrayerName) bool
}

type Scheduler interface {
	ScheduleAt(at time.Time, key string, action scheduler.Action) error
	CancelAll() int
	ListPending() []scheduler.Trigger
}

type Option func(*Planner)

func WithClock(now func() time.Time) Option { return func(p *Planner) { p.now = now } }

func WithRolloverMargin(d time.Duration) Option { return func(p *Planner) { p.margin = d } }

func WithLogger(l zerolog.Logger) Option { return func(p *Planner) { p.log = l } }

// withMaxSleep shortens the rollover poll interval in tests.
func withMaxSleep(d time.Duration) Option { return func(p *Planner) { p.maxSleep = d } }

type Planner struct {
	state  State
	player Player
	sched  Scheduler
	sink   events.Sink
	log    zerolog.Logger

	now      func() time.Time
	margin   time.Duration
	maxSleep time.Duration

	// mu serializes planning so a replan never interleaves with another.
	mu sync.Mutex

	// runMu guards the playback context handed to fired triggers.
	runMu   sync.Mutex
	runCtx  context.Context
	stopped bool
	plays   sync.WaitGroup
}

func New(state State, player Player, sched Scheduler, sink events.Sink, opts ...Option) *Planner {
	if sink == nil {
		sink = events.Discard
	}
	p := &Planner{
		state:    state,
		player:   player,
		sched:    sched,
		sink:     sink,
		log:      zerolog.Nop(),
		now:      time.Now,
		margin:   DefaultRolloverMargin,
		maxSleep: maxSleepCap,
		runCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TriggerKey identifies the adhan trigger of a prayer on a date.
func TriggerKey(prayer model.PrayerName, date time.Time) string {
	return fmt.Sprintf("prayer_%s_%s", prayer, model.DateKey(date))
}

// PreAlertKey identifies the pre-alert trigger of a prayer on a date.
func PreAlertKey(prayer model.PrayerName, date time.Time) string {
	return TriggerKey(prayer, date) + "_pre"
}

// PlanDay registers triggers for the enabled prayers of ref's local date that
// are still ahead, plus their pre-alerts. It returns the number registered.
func (p *Planner) PlanDay(ref time.Time) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.planDay(ref)
}

// Replan cancels every pending trigger and plans the current day again.
func (p *Planner) Replan() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cancelled := p.sched.CancelAll()
	p.log.Debug().Int("count", cancelled).Msg("pending triggers cancelled")
	return p.planDay(p.now())
}

func (p *Planner) ListScheduled() []scheduler.Trigger {
	return p.sched.ListPending()
}

func (p *Planner) planDay(ref time.Time) (int, error) {
	calc := p.state.Calculator()
	settings := p.state.Settings()
	now := p.now()

	day, err := calc.Calculate(ref.In(calc.Timezone()))
	if err != nil {
		return 0, fmt.Errorf("planning %s: %w", model.DateKey(ref), err)
	}

	count := 0
	preAlert := settings.PreAlertMinutes
	for _, prayer := range model.AllPrayers {
		pt := day.PrayerTime(prayer)
		if !pt.At.After(now) || !settings.IsEnabled(prayer) {
			continue
		}

		if err := p.sched.ScheduleAt(pt.At, TriggerKey(prayer, day.Date), p.prayerAction(pt)); err != nil {
			return count, err
		}
		count++
		p.log.Debug().Str("prayer", prayer.String()).Time("at", pt.At).Msg("adhan scheduled")

		if preAlert > 0 {
			at := pt.At.Add(-time.Duration(preAlert) * time.Minute)
			if at.After(now) {
				if err := p.sched.ScheduleAt(at, PreAlertKey(prayer, day.Date), p.preAlertAction(pt, preAlert)); err != nil {
					return count, err
				}
				count++
			}
		}
	}

	p.log.Info().Str("date", day.Date.Format(time.DateOnly)).Int("count", count).Msg("day planned")
	return count, nil
}

// prayerAction must return quickly, so playback runs on its own goroutine.
// The player sees the request the moment the trigger fires and rejects it if
// another adhan still holds the slot.
func (p *Planner) prayerAction(pt model.PrayerTime) scheduler.Action {
	return func() {
		shouldPlay := p.state.Settings().IsEnabled(pt.Name)
		p.log.Info().Str("prayer", pt.Name.String()).Bool("play", shouldPlay).Msg("prayer time reached")
		p.sink.Publish(model.NewPrayerTimeReached(pt, shouldPlay))
		p.dispatch(pt.Name)
	}
}

func (p *Planner) dispatch(prayer model.PrayerName) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.stopped {
		p.log.Warn().Str("prayer", prayer.String()).Msg("planner stopped, adhan not started")
		return
	}
	ctx := p.runCtx
	p.plays.Add(1)
	go func() {
		defer p.plays.Done()
		p.player.PlayAdhan(ctx, prayer)
	}()
}

func (p *Planner) preAlertAction(pt model.PrayerTime, minutes int) scheduler.Action {
	return func() {
		p.log.Info().Str("prayer", pt.Name.String()).Int("minutes", minutes).Msg("pre-alert")
		p.sink.Publish(model.NewPreAlert(pt, minutes))
	}
}

// Run plans the current day, then re-plans after every local midnight until
// ctx is cancelled. Adhans started while it runs are cancelled with ctx, and
// Run returns once they have ended.
func (p *Planner) Run(ctx context.Context) error {
	p.runMu.Lock()
	p.runCtx = ctx
	p.runMu.Unlock()
	defer func() {
		p.runMu.Lock()
		p.stopped = true
		p.runMu.Unlock()
		p.plays.Wait()
	}()

	if _, err := p.PlanDay(p.now()); err != nil {
		p.log.Error().Err(err).Msg("initial planning failed")
	}
	p.rollover(ctx)
	return nil
}

func (p *Planner) rollover(ctx context.Context) {
	tz := p.state.Calculator().Timezone()
	target, err := p.nextRollover(p.now().In(tz))
	if err != nil {
		p.log.Error().Err(err).Msg("cannot compute next midnight")
		return
	}
	p.log.Debug().Time("at", target).Msg("next rollover")

	for {
		// a location change moves midnight
		if current := p.state.Calculator().Timezone(); current.String() != tz.String() {
			tz = current
			if next, err := p.nextRollover(p.now().In(tz)); err == nil {
				target = next
			}
		}

		now := p.now()
		if wait := target.Sub(now); wait > 0 {
			timer := time.NewTimer(min(wait, p.maxSleep))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}

		if _, err := p.PlanDay(now); err != nil {
			p.log.Error().Err(err).Msg("rollover planning failed")
		}
		if next, err := p.nextRollover(now.In(tz)); err == nil {
			target = next
		}
		p.log.Debug().Time("at", target).Msg("next rollover")
	}
}

// nextRollover is the first local midnight plus margin that is after now.
func (p *Planner) nextRollover(now time.Time) (time.Time, error) {
	next, err := gronx.NextTickAfter(midnight, now.Add(-p.margin), false)
	if err != nil {
		return time.Time{}, err
	}
	return next.Add(p.margin), nil
}
