package planner

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/vakit/internal/calculator"
	"github.com/Nixie-Tech-LLC/vakit/internal/model"
	"github.com/Nixie-Tech-LLC/vakit/internal/playback"
	"github.com/Nixie-Tech-LLC/vakit/internal/praytime"
	"github.com/Nixie-Tech-LLC/vakit/internal/scheduler"
	"github.com/Nixie-Tech-LLC/vakit/internal/storage"
	"github.com/Nixie-Tech-LLC/vakit/internal/testutil"
)

const zone = "Europe/Berlin"

type fakeState struct {
	mu       sync.Mutex
	settings model.PrayerSettings
	calc     *calculator.Calculator
}

func (s *fakeState) Settings() model.PrayerSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *fakeState) Calculator() *calculator.Calculator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calc
}

func (s *fakeState) update(t *testing.T, mutate func(*model.PrayerSettings)) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.settings)
	s.calc = testutil.NewCalculator(t, s.settings, zone)
}

type pending struct {
	at     time.Time
	action scheduler.Action
}

// fakeScheduler keeps triggers in a map keyed like the real scheduler.
type fakeScheduler struct {
	mu       sync.Mutex
	triggers map[string]pending
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{triggers: make(map[string]pending)}
}

func (f *fakeScheduler) ScheduleAt(at time.Time, key string, action scheduler.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers[key] = pending{at: at, action: action}
	return nil
}

func (f *fakeScheduler) CancelAll() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.triggers)
	f.triggers = make(map[string]pending)
	return n
}

func (f *fakeScheduler) ListPending() []scheduler.Trigger {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]scheduler.Trigger, 0, len(f.triggers))
	for k, p := range f.triggers {
		out = append(out, scheduler.Trigger{Key: k, At: p.at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

func (f *fakeScheduler) keys() []string {
	var out []string
	for _, tr := range f.ListPending() {
		out = append(out, tr.Key)
	}
	return out
}

func (f *fakeScheduler) fire(t *testing.T, key string) {
	f.mu.Lock()
	p, ok := f.triggers[key]
	delete(f.triggers, key)
	f.mu.Unlock()
	if !assert.True(t, ok, "no trigger %s", key) {
		return
	}
	p.action()
}

type fakePlayer struct {
	mu     sync.Mutex
	played []model.PrayerName
}

func (f *fakePlayer) PlayAdhan(_ context.Context, p model.PrayerName) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, p)
	return true
}

func (f *fakePlayer) plays() []model.PrayerName {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.PrayerName(nil), f.played...)
}

type eventLog struct {
	mu     sync.Mutex
	events []model.Event
}

func (l *eventLog) Publish(e model.Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) all() []model.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.Event(nil), l.events...)
}

type fixture struct {
	clock  *testutil.Clock
	state  *fakeState
	sched  *fakeScheduler
	player *fakePlayer
	sink   *eventLog
	p      *Planner
}

func berlin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(zone)
	require.NoError(t, err)
	return loc
}

func newFixture(t *testing.T, now time.Time, mutate func(*model.PrayerSettings), opts ...Option) *fixture {
	t.Helper()
	s := model.DefaultSettings()
	if mutate != nil {
		mutate(&s)
	}
	f := &fixture{
		clock:  testutil.NewClock(now),
		state:  &fakeState{settings: s, calc: testutil.NewCalculator(t, s, zone)},
		sched:  newFakeScheduler(),
		player: &fakePlayer{},
		sink:   &eventLog{},
	}
	f.p = New(f.state, f.player, f.sched, f.sink, append([]Option{WithClock(f.clock.Now)}, opts...)...)
	return f
}

func assertSameInstant(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}

func at(t *testing.T, day, h, m int) time.Time {
	return time.Date(2026, 10, day, h, m, 0, 0, berlin(t))
}

func TestKeys(t *testing.T) {
	date := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "prayer_isha_20261016", TriggerKey(model.Isha, date))
	assert.Equal(t, "prayer_fajr_20261016_pre", PreAlertKey(model.Fajr, date))
}

func TestPlanDay_EarlyMorningSchedulesEnabledPrayers(t *testing.T) {
	f := newFixture(t, at(t, 16, 3, 0), nil)

	n, err := f.p.PlanDay(f.clock.Now())
	require.NoError(t, err)

	assert.Equal(t, 5, n)
	assert.Equal(t, []string{
		"prayer_fajr_20261016",
		"prayer_dhuhr_20261016",
		"prayer_asr_20261016",
		"prayer_maghrib_20261016",
		"prayer_isha_20261016",
	}, f.sched.keys())
	assertSameInstant(t, at(t, 16, 5, 0), f.p.ListScheduled()[0].At)
}

func TestPlanDay_SkipsPassedPrayers(t *testing.T) {
	f := newFixture(t, at(t, 16, 13, 0), nil)

	n, err := f.p.PlanDay(f.clock.Now())
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"prayer_asr_20261016", "prayer_maghrib_20261016", "prayer_isha_20261016"}, f.sched.keys())
}

func TestPlanDay_PrayerAtExactlyNowIsPassed(t *testing.T) {
	f := newFixture(t, at(t, 16, 20, 15), nil)

	n, err := f.p.PlanDay(f.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPlanDay_LateEveningOnlyIshaWithPreAlert(t *testing.T) {
	f := newFixture(t, at(t, 16, 23, 50), func(s *model.PrayerSettings) {
		s.EnabledPrayers = model.NewPrayerSet(model.Isha)
		s.PreAlertMinutes = 10
	})

	n, err := f.p.PlanDay(f.clock.Now())
	require.NoError(t, err)

	assert.Zero(t, n)
	assert.Empty(t, f.sched.keys())
}

func TestPlanDay_PreAlerts(t *testing.T) {
	f := newFixture(t, at(t, 16, 11, 55), func(s *model.PrayerSettings) { s.PreAlertMinutes = 10 })

	n, err := f.p.PlanDay(f.clock.Now())
	require.NoError(t, err)

	// dhuhr's pre-alert at 11:50 has already passed
	assert.Equal(t, 7, n)
	assert.Equal(t, []string{
		"prayer_dhuhr_20261016",
		"prayer_asr_20261016_pre",
		"prayer_asr_20261016",
		"prayer_maghrib_20261016_pre",
		"prayer_maghrib_20261016",
		"prayer_isha_20261016_pre",
		"prayer_isha_20261016",
	}, f.sched.keys())
	assertSameInstant(t, at(t, 16, 14, 50), f.sched.ListPending()[1].At)
}

func TestPlanDay_ReferenceDateInCalculatorZone(t *testing.T) {
	f := newFixture(t, time.Date(2026, 10, 15, 22, 30, 0, 0, time.UTC), nil)

	// 22:30 UTC is already the 16th in Berlin
	_, err := f.p.PlanDay(f.clock.Now())
	require.NoError(t, err)
	assert.Contains(t, f.sched.keys(), "prayer_fajr_20261016")
}

func TestPlanDay_ComputeError(t *testing.T) {
	f := newFixture(t, at(t, 16, 3, 0), nil)
	opts := testutil.CalculatorOptions(zone)
	opts.Compute = func(time.Time, *time.Location, praytime.Params) (praytime.Times, error) {
		return praytime.Times{}, praytime.ErrUndefined
	}
	calc, err := calculator.New(model.DefaultLocation, opts)
	require.NoError(t, err)
	f.state.calc = calc

	_, err = f.p.PlanDay(f.clock.Now())
	assert.ErrorIs(t, err, praytime.ErrUndefined)
}

func TestReplan_Idempotent(t *testing.T) {
	f := newFixture(t, at(t, 16, 3, 0), func(s *model.PrayerSettings) { s.PreAlertMinutes = 5 })

	n1, err := f.p.Replan()
	require.NoError(t, err)
	first := f.sched.keys()

	n2, err := f.p.Replan()
	require.NoError(t, err)

	assert.Equal(t, n1, n2)
	assert.Equal(t, first, f.sched.keys())
	assert.Len(t, first, 10)
}

func TestReplan_DropsStaleTriggers(t *testing.T) {
	f := newFixture(t, at(t, 16, 3, 0), nil)
	_, err := f.p.PlanDay(f.clock.Now())
	require.NoError(t, err)
	require.Contains(t, f.sched.keys(), "prayer_asr_20261016")

	f.state.update(t, func(s *model.PrayerSettings) {
		s.EnabledPrayers = s.EnabledPrayers.Without(model.Asr)
	})
	_, err = f.p.Replan()
	require.NoError(t, err)

	assert.NotContains(t, f.sched.keys(), "prayer_asr_20261016")
	assert.Len(t, f.sched.keys(), 4)
}

func TestPrayerAction_PublishesAndStartsPlayback(t *testing.T) {
	f := newFixture(t, at(t, 16, 3, 0), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = f.p.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool { return len(f.sched.keys()) == 5 }, time.Second, 5*time.Millisecond)
	f.sched.fire(t, "prayer_dhuhr_20261016")

	require.Eventually(t, func() bool { return len(f.player.plays()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []model.PrayerName{model.Dhuhr}, f.player.plays())

	evs := f.sink.all()
	require.Len(t, evs, 1)
	reached := evs[0].(model.PrayerTimeReached)
	assert.Equal(t, model.Dhuhr, reached.Prayer)
	assert.True(t, reached.ShouldPlay)
	assertSameInstant(t, at(t, 16, 12, 0), reached.At)
}

func TestPrayerAction_ReflectsSettingsAtFireTime(t *testing.T) {
	f := newFixture(t, at(t, 16, 3, 0), nil)
	_, err := f.p.PlanDay(f.clock.Now())
	require.NoError(t, err)

	f.state.update(t, func(s *model.PrayerSettings) {
		s.EnabledPrayers = s.EnabledPrayers.Without(model.Maghrib)
	})
	f.sched.fire(t, "prayer_maghrib_20261016")

	reached := f.sink.all()[0].(model.PrayerTimeReached)
	assert.False(t, reached.ShouldPlay)
}

// blockingPlayer holds every adhan until its context ends or release is
// closed.
type blockingPlayer struct {
	started chan model.PrayerName
	release chan struct{}
}

func (b *blockingPlayer) PlayAdhan(ctx context.Context, p model.PrayerName) bool {
	b.started <- p
	select {
	case <-ctx.Done():
	case <-b.release:
	}
	return true
}

func TestPrayerAction_NeverBlocksOnPlayback(t *testing.T) {
	f := newFixture(t, at(t, 16, 3, 0), nil)
	player := &blockingPlayer{started: make(chan model.PrayerName, 3), release: make(chan struct{})}
	t.Cleanup(func() { close(player.release) })
	f.p = New(f.state, player, f.sched, f.sink, WithClock(f.clock.Now))
	_, err := f.p.PlanDay(f.clock.Now())
	require.NoError(t, err)

	finished := make(chan struct{})
	go func() {
		f.sched.fire(t, "prayer_fajr_20261016")
		f.sched.fire(t, "prayer_dhuhr_20261016")
		f.sched.fire(t, "prayer_asr_20261016")
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("trigger action blocked on playback")
	}
	assert.Len(t, f.sink.all(), 3)
}

func TestRun_WaitsForActiveAdhan(t *testing.T) {
	f := newFixture(t, at(t, 16, 3, 0), nil)
	player := &blockingPlayer{started: make(chan model.PrayerName, 1)}
	f.p = New(f.state, player, f.sched, f.sink, WithClock(f.clock.Now))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.p.Run(ctx) }()

	require.Eventually(t, func() bool { return len(f.sched.keys()) == 5 }, time.Second, 5*time.Millisecond)
	f.sched.fire(t, "prayer_isha_20261016")
	assert.Equal(t, model.Isha, <-player.started)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// triggers firing after Run returned start nothing
	f.sched.fire(t, "prayer_maghrib_20261016")
	assert.Empty(t, player.started)
}

// heldOutput plays until finish is called.
type heldOutput struct {
	mu     sync.Mutex
	starts int
	done   chan error
}

func (o *heldOutput) Name() string { return "held" }

func (o *heldOutput) Start(context.Context, string, int) (<-chan error, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.starts++
	o.done = make(chan error, 1)
	return o.done, nil
}

func (o *heldOutput) finish() {
	o.mu.Lock()
	d := o.done
	o.done = nil
	o.mu.Unlock()
	if d != nil {
		d <- nil
		close(d)
	}
}

func (o *heldOutput) Stop() error {
	o.finish()
	return nil
}

func (o *heldOutput) IsPlaying() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done != nil
}

func (o *heldOutput) startCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.starts
}

// resultPlayer reports what each PlayAdhan call returned.
type resultPlayer struct {
	Player
	results chan bool
}

func (r resultPlayer) PlayAdhan(ctx context.Context, p model.PrayerName) bool {
	ok := r.Player.PlayAdhan(ctx, p)
	r.results <- ok
	return ok
}

func TestPrayerAction_AdhanDuringAnotherIsRejected(t *testing.T) {
	f := newFixture(t, at(t, 16, 3, 0), nil)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/audio/adhan_istanbul.mp3", []byte("ID3"), 0o644))
	out := &heldOutput{}
	coord := playback.NewCoordinator(out, storage.NewAssets(fs, "/audio"), f.state, f.sink, zerolog.Nop())
	player := resultPlayer{Player: coord, results: make(chan bool, 2)}
	f.p = New(f.state, player, f.sched, f.sink, WithClock(f.clock.Now))
	_, err := f.p.PlanDay(f.clock.Now())
	require.NoError(t, err)

	f.sched.fire(t, "prayer_dhuhr_20261016")
	require.Eventually(t, func() bool { return out.startCount() == 1 }, time.Second, 5*time.Millisecond)

	f.sched.fire(t, "prayer_asr_20261016")
	select {
	case ok := <-player.results:
		assert.False(t, ok, "asr played over dhuhr")
	case <-time.After(time.Second):
		t.Fatal("asr adhan waited for dhuhr instead of being rejected")
	}

	out.finish()
	assert.True(t, <-player.results)
	assert.Equal(t, 1, out.startCount())

	var types []model.EventType
	for _, e := range f.sink.all() {
		types = append(types, e.Type())
	}
	assert.Equal(t, []model.EventType{
		model.EventPrayerTimeReached,
		model.EventAdhanStarted,
		model.EventPrayerTimeReached,
		model.EventAdhanFinished,
	}, types)
}

func TestPreAlertAction_PublishesOnly(t *testing.T) {
	f := newFixture(t, at(t, 16, 3, 0), func(s *model.PrayerSettings) { s.PreAlertMinutes = 15 })
	_, err := f.p.PlanDay(f.clock.Now())
	require.NoError(t, err)

	f.sched.fire(t, "prayer_isha_20261016_pre")

	evs := f.sink.all()
	require.Len(t, evs, 1)
	alert := evs[0].(model.PreAlert)
	assert.Equal(t, model.Isha, alert.Prayer)
	assert.Equal(t, 15, alert.MinutesBefore)
	assert.Empty(t, f.player.plays())
}

func TestNextRollover(t *testing.T) {
	f := newFixture(t, at(t, 16, 3, 0), nil)

	cases := []struct {
		now, want time.Time
	}{
		{at(t, 16, 23, 59), at(t, 17, 0, 1)},
		{at(t, 16, 0, 0).Add(30 * time.Second), at(t, 16, 0, 1)},
		{at(t, 16, 0, 1), at(t, 17, 0, 1)},
		{at(t, 16, 12, 0), at(t, 17, 0, 1)},
	}
	for _, tc := range cases {
		got, err := f.p.nextRollover(tc.now)
		require.NoError(t, err)
		assertSameInstant(t, tc.want, got)
	}
}

func TestNextRollover_AcrossDSTChange(t *testing.T) {
	f := newFixture(t, at(t, 24, 12, 0), nil)

	// clocks go back on the night of 25 October 2026 in Berlin
	got, err := f.p.nextRollover(time.Date(2026, 10, 25, 12, 0, 0, 0, berlin(t)))
	require.NoError(t, err)
	assertSameInstant(t, time.Date(2026, 10, 26, 0, 1, 0, 0, berlin(t)), got)
}

func TestRun_RollsOverAtMidnight(t *testing.T) {
	f := newFixture(t, at(t, 16, 23, 58), nil, withMaxSleep(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.p.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, f.sched.keys())

	f.clock.Set(at(t, 17, 0, 0).Add(30 * time.Second))
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, f.sched.keys(), "planned inside the safety margin")

	f.clock.Set(at(t, 17, 0, 1))
	require.Eventually(t, func() bool { return len(f.sched.keys()) == 5 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "prayer_fajr_20261017", f.sched.keys()[0])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
