package events

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/vakit/internal/model"
)

func TestBus_SubscribeByType(t *testing.T) {
	bus := NewBus(zerolog.Nop(), 10)
	var got []model.EventType
	bus.Subscribe(model.EventAdhanStarted, func(e model.Event) { got = append(got, e.Type()) })

	bus.Publish(model.NewAdhanStarted(model.Dhuhr, 80))
	bus.Publish(model.NewAdhanFinished(model.Dhuhr))

	assert.Equal(t, []model.EventType{model.EventAdhanStarted}, got)
}

func TestBus_SubscribeAllAndUnsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop(), 10)
	count := 0
	unsubscribe := bus.SubscribeAll(func(model.Event) { count++ })

	bus.Publish(model.NewAdhanStarted(model.Asr, 50))
	bus.Publish(model.NewSettingsChanged([]string{"volume"}))
	unsubscribe()
	bus.Publish(model.NewAdhanFinished(model.Asr))

	assert.Equal(t, 2, count)
}

func TestBus_PanickingHandlerIsIsolated(t *testing.T) {
	bus := NewBus(zerolog.Nop(), 10)
	called := false
	bus.Subscribe(model.EventPreAlert, func(model.Event) { panic("boom") })
	bus.Subscribe(model.EventPreAlert, func(model.Event) { called = true })

	assert.NotPanics(t, func() {
		bus.Publish(model.NewPreAlert(model.PrayerTime{Name: model.Maghrib}, 10))
	})
	assert.True(t, called)
}

func TestBus_RecentIsBoundedNewestFirst(t *testing.T) {
	bus := NewBus(zerolog.Nop(), 3)
	for _, p := range []model.PrayerName{model.Fajr, model.Dhuhr, model.Asr, model.Maghrib} {
		bus.Publish(model.NewAdhanFinished(p))
	}

	recent := bus.Recent(0)
	require.Len(t, recent, 3)
	var prayers []model.PrayerName
	for _, env := range recent {
		prayers = append(prayers, env.Data.(model.AdhanFinished).Prayer)
	}
	assert.Equal(t, []model.PrayerName{model.Maghrib, model.Asr, model.Dhuhr}, prayers)

	assert.Len(t, bus.Recent(2), 2)
	assert.Empty(t, NewBus(zerolog.Nop(), 3).Recent(5))
}

func TestBus_Stream(t *testing.T) {
	bus := NewBus(zerolog.Nop(), 10)
	ch, stop := bus.Stream(1)

	bus.Publish(model.NewAdhanStarted(model.Isha, 70))
	bus.Publish(model.NewAdhanFinished(model.Isha)) // dropped, buffer full

	env := <-ch
	assert.Equal(t, model.EventAdhanStarted, env.Type)
	assert.NotEmpty(t, env.ID)

	stop()
	stop()
	_, open := <-ch
	assert.False(t, open)
	assert.NotPanics(t, func() { bus.Publish(model.NewAdhanFinished(model.Isha)) })
}

func TestBus_StreamMatchesHistory(t *testing.T) {
	bus := NewBus(zerolog.Nop(), 10)
	ch, stop := bus.Stream(1)
	defer stop()

	bus.Publish(model.NewPrayerTimeReached(model.PrayerTime{Name: model.Asr, At: time.Now()}, true))

	streamed := <-ch
	recent := bus.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, recent[0].ID, streamed.ID)
	assert.True(t, recent[0].OccurredAt.Equal(streamed.OccurredAt))
	assert.Equal(t, recent[0].Data, streamed.Data)
}

func TestFanout(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	sink := func(name string) Sink {
		return SinkFunc(func(model.Event) {
			mu.Lock()
			seen = append(seen, name)
			mu.Unlock()
		})
	}

	Fanout{sink("a"), nil, sink("b")}.Publish(model.NewAdhanFinished(model.Fajr))
	assert.Equal(t, []string{"a", "b"}, seen)
	assert.NotPanics(t, func() { Discard.Publish(model.NewAdhanFinished(model.Fajr)) })
}
