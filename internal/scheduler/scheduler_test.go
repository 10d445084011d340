package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	fired []string
}

func (r *recorder) action(key string) Action {
	return func() {
		r.mu.Lock()
		r.fired = append(r.fired, key)
		r.mu.Unlock()
	}
}

func (r *recorder) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fired...)
}

func newScheduler(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	s := New(ctx, opts...)
	t.Cleanup(func() {
		cancel()
		s.Wait()
	})
	return s
}

func TestScheduler_FiresAtInstant(t *testing.T) {
	s := newScheduler(t)
	rec := &recorder{}

	require.NoError(t, s.ScheduleAt(time.Now().Add(50*time.Millisecond), "a", rec.action("a")))

	assert.Eventually(t, func() bool { return len(rec.keys()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Zero(t, s.Len())
	assert.Empty(t, s.ListPending())
}

func TestScheduler_FiresInOrder(t *testing.T) {
	s := newScheduler(t)
	rec := &recorder{}
	now := time.Now()

	require.NoError(t, s.ScheduleAt(now.Add(150*time.Millisecond), "late", rec.action("late")))
	require.NoError(t, s.ScheduleAt(now.Add(30*time.Millisecond), "early", rec.action("early")))

	assert.Eventually(t, func() bool { return len(rec.keys()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"early", "late"}, rec.keys())
}

func TestScheduler_SameKeyReplaces(t *testing.T) {
	s := newScheduler(t)
	rec := &recorder{}
	at := time.Now().Add(time.Hour)

	require.NoError(t, s.ScheduleAt(at, "prayer_dhuhr_20261016", rec.action("first")))
	require.NoError(t, s.ScheduleAt(at.Add(time.Minute), "prayer_dhuhr_20261016", rec.action("second")))

	pending := s.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, at.Add(time.Minute), pending[0].At)

	require.NoError(t, s.ScheduleAt(time.Now().Add(20*time.Millisecond), "prayer_dhuhr_20261016", rec.action("third")))
	assert.Eventually(t, func() bool { return len(rec.keys()) == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"third"}, rec.keys())
}

func TestScheduler_Cancel(t *testing.T) {
	s := newScheduler(t)
	rec := &recorder{}

	require.NoError(t, s.ScheduleAt(time.Now().Add(80*time.Millisecond), "a", rec.action("a")))
	assert.True(t, s.Cancel("a"))
	assert.False(t, s.Cancel("a"))
	assert.False(t, s.Cancel("missing"))

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, rec.keys())
}

func TestScheduler_CancelAll(t *testing.T) {
	s := newScheduler(t)
	rec := &recorder{}
	now := time.Now()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, s.ScheduleAt(now.Add(60*time.Millisecond), k, rec.action(k)))
	}
	assert.Equal(t, 3, s.CancelAll())
	assert.Zero(t, s.Len())

	time.Sleep(120 * time.Millisecond)
	assert.Empty(t, rec.keys())
	assert.Zero(t, s.CancelAll())
}

func TestScheduler_ListPendingSorted(t *testing.T) {
	s := newScheduler(t)
	base := time.Now().Add(time.Hour)
	noop := func() {}

	require.NoError(t, s.ScheduleAt(base.Add(3*time.Minute), "c", noop))
	require.NoError(t, s.ScheduleAt(base.Add(1*time.Minute), "a", noop))
	require.NoError(t, s.ScheduleAt(base.Add(2*time.Minute), "b", noop))
	require.NoError(t, s.ScheduleAt(base.Add(1*time.Minute), "a2", noop))

	var keys []string
	for _, tr := range s.ListPending() {
		keys = append(keys, tr.Key)
	}
	assert.Equal(t, []string{"a", "a2", "b", "c"}, keys)
}

func TestScheduler_PastWithinGraceFiresImmediately(t *testing.T) {
	s := newScheduler(t)
	rec := &recorder{}

	require.NoError(t, s.ScheduleAt(time.Now().Add(-10*time.Second), "late", rec.action("late")))

	assert.Eventually(t, func() bool { return len(rec.keys()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestScheduler_PastBeyondGraceIsDropped(t *testing.T) {
	s := newScheduler(t, WithMisfireGrace(time.Second))
	rec := &recorder{}

	require.NoError(t, s.ScheduleAt(time.Now().Add(-5*time.Second), "stale", rec.action("stale")))

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, rec.keys())
}

func TestScheduler_ClockDecidesWhatIsDue(t *testing.T) {
	var offset atomic.Int64
	clock := func() time.Time { return time.Now().Add(time.Duration(offset.Load())) }
	s := newScheduler(t, WithClock(clock))
	rec := &recorder{}

	require.NoError(t, s.ScheduleAt(time.Now().Add(30*time.Minute), "a", rec.action("a")))
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, rec.keys())

	// jump the clock forward and poke the loop through a new registration
	offset.Store(int64(30 * time.Minute))
	require.NoError(t, s.ScheduleAt(time.Now().Add(time.Hour), "b", func() {}))

	assert.Eventually(t, func() bool { return len(rec.keys()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestScheduler_PanickingActionDoesNotStopLoop(t *testing.T) {
	s := newScheduler(t)
	rec := &recorder{}
	now := time.Now()

	require.NoError(t, s.ScheduleAt(now.Add(20*time.Millisecond), "boom", func() { panic("boom") }))
	require.NoError(t, s.ScheduleAt(now.Add(60*time.Millisecond), "ok", rec.action("ok")))

	assert.Eventually(t, func() bool { return len(rec.keys()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestScheduler_SlowActionDoesNotDelayOthers(t *testing.T) {
	s := newScheduler(t)
	rec := &recorder{}
	release := make(chan struct{})
	defer close(release)
	now := time.Now()

	require.NoError(t, s.ScheduleAt(now.Add(10*time.Millisecond), "slow", func() { <-release }))
	require.NoError(t, s.ScheduleAt(now.Add(40*time.Millisecond), "fast", rec.action("fast")))

	assert.Eventually(t, func() bool { return len(rec.keys()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestScheduler_RejectsInvalidTrigger(t *testing.T) {
	s := newScheduler(t)

	assert.ErrorIs(t, s.ScheduleAt(time.Now(), "", func() {}), ErrInvalidTrigger)
	assert.ErrorIs(t, s.ScheduleAt(time.Now(), "k", nil), ErrInvalidTrigger)
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(ctx)
	rec := &recorder{}

	require.NoError(t, s.ScheduleAt(time.Now().Add(50*time.Millisecond), "a", rec.action("a")))
	cancel()
	s.Wait()

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, rec.keys())
}
