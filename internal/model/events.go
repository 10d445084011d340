package model

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventPrayerTimeReached EventType = "prayer_time_reached"
	EventPreAlert          EventType = "pre_alert"
	EventAdhanStarted      EventType = "adhan_started"
	EventAdhanFinished     EventType = "adhan_finished"
	EventAudioError        EventType = "audio_error"
	EventSettingsChanged   EventType = "settings_changed"
)

// Event is a domain event published through an EventSink.
type Event interface {
	Type() EventType
	Meta() EventMeta
}

type EventMeta struct {
	ID         uuid.UUID `json:"-"`
	OccurredAt time.Time `json:"-"`
}

func newMeta() EventMeta {
	return EventMeta{ID: uuid.New(), OccurredAt: time.Now()}
}

func (m EventMeta) Meta() EventMeta { return m }

type PrayerTimeReached struct {
	EventMeta
	Prayer     PrayerName `json:"prayer"`
	At         time.Time  `json:"at"`
	ShouldPlay bool       `json:"should_play"`
}

func NewPrayerTimeReached(pt PrayerTime, shouldPlay bool) PrayerTimeReached {
	return PrayerTimeReached{EventMeta: newMeta(), Prayer: pt.Name, At: pt.At, ShouldPlay: shouldPlay}
}

func (PrayerTimeReached) Type() EventType { return EventPrayerTimeReached }

type PreAlert struct {
	EventMeta
	Prayer        PrayerName `json:"prayer"`
	At            time.Time  `json:"at"`
	MinutesBefore int        `json:"minutes_before"`
}

func NewPreAlert(pt PrayerTime, minutesBefore int) PreAlert {
	return PreAlert{EventMeta: newMeta(), Prayer: pt.Name, At: pt.At, MinutesBefore: minutesBefore}
}

func (PreAlert) Type() EventType { return EventPreAlert }

type AdhanStarted struct {
	EventMeta
	Prayer PrayerName `json:"prayer"`
	Volume int        `json:"volume"`
}

func NewAdhanStarted(p PrayerName, volume int) AdhanStarted {
	return AdhanStarted{EventMeta: newMeta(), Prayer: p, Volume: volume}
}

func (AdhanStarted) Type() EventType { return EventAdhanStarted }

type AdhanFinished struct {
	EventMeta
	Prayer PrayerName `json:"prayer"`
}

func NewAdhanFinished(p PrayerName) AdhanFinished {
	return AdhanFinished{EventMeta: newMeta(), Prayer: p}
}

func (AdhanFinished) Type() EventType { return EventAdhanFinished }

type AudioError struct {
	EventMeta
	Message string      `json:"message"`
	Prayer  *PrayerName `json:"prayer,omitempty"`
}

// NewAudioError builds an audio error event; prayer is nil for test playback.
func NewAudioError(message string, prayer *PrayerName) AudioError {
	return AudioError{EventMeta: newMeta(), Message: message, Prayer: prayer}
}

func (AudioError) Type() EventType { return EventAudioError }

type SettingsChanged struct {
	EventMeta
	Fields []string `json:"fields"`
}

func NewSettingsChanged(fields []string) SettingsChanged {
	return SettingsChanged{EventMeta: newMeta(), Fields: fields}
}

func (SettingsChanged) Type() EventType { return EventSettingsChanged }

// Envelope is the wire form shared by MQTT, Redis history and the websocket stream.
type Envelope struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

func NewEnvelope(e Event) Envelope {
	m := e.Meta()
	return Envelope{ID: m.ID.String(), Type: e.Type(), OccurredAt: m.OccurredAt, Data: e}
}
