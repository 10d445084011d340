package packets

import (
	"time"

	"github.com/Nixie-Tech-LLC/vakit/internal/model"
	"github.com/Nixie-Tech-LLC/vakit/internal/scheduler"
)

// RESPONSES FOR /api/*

type MessageResponse struct {
	Message string `json:"message"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type StatusResponse struct {
	Version         string `json:"version"`
	Uptime          string `json:"uptime"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	PendingTriggers int    `json:"pending_triggers"`
	Player          string `json:"player"`
	Playing         bool   `json:"playing"`
	SettingsBackend string `json:"settings_backend"`
	Timezone        string `json:"timezone"`
}

type PrayerRef struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

func NewPrayerRef(p model.PrayerName) PrayerRef {
	return PrayerRef{Key: p.String(), Name: p.DisplayName(), Icon: p.Icon()}
}

type CurrentResponse struct {
	Time             string         `json:"time"`
	Date             string         `json:"date"`
	HijriDate        string         `json:"hijri_date"`
	Location         model.Location `json:"location"`
	Timezone         string         `json:"timezone"`
	CurrentPrayer    PrayerRef      `json:"current_prayer"`
	NextPrayer       PrayerRef      `json:"next_prayer"`
	NextTime         string         `json:"next_time"`
	Countdown        string         `json:"countdown"`
	CountdownSeconds int64          `json:"countdown_seconds"`
	IsPlaying        bool           `json:"is_playing"`
}

// PrayerEntry flattens a prayer time for display.
type PrayerEntry struct {
	Key     string    `json:"key"`
	Name    string    `json:"name"`
	Icon    string    `json:"icon"`
	Time    string    `json:"time"`
	At      time.Time `json:"at"`
	Enabled bool      `json:"enabled"`
}

type DayResponse struct {
	Date      string        `json:"date"`
	HijriDate string        `json:"hijri_date"`
	Prayers   []PrayerEntry `json:"prayers"`
}

func NewDayResponse(day model.DayTimes, enabled model.PrayerSet) DayResponse {
	out := DayResponse{
		Date:      day.Date.Format(time.DateOnly),
		HijriDate: model.HijriDate(day.Date),
		Prayers:   make([]PrayerEntry, 0, len(model.AllPrayers)),
	}
	for _, pt := range day.All() {
		out.Prayers = append(out.Prayers, PrayerEntry{
			Key:     pt.Name.String(),
			Name:    pt.Name.DisplayName(),
			Icon:    pt.Name.Icon(),
			Time:    pt.Clock(),
			At:      pt.At,
			Enabled: enabled.Has(pt.Name),
		})
	}
	return out
}

type TimesResponse struct {
	Location model.Location `json:"location"`
	Timezone string         `json:"timezone"`
	InRegion bool           `json:"in_region"`
	Days     []DayResponse  `json:"days"`
}

type SettingsResponse struct {
	model.PrayerSettings
	Timezone         string        `json:"timezone"`
	InRegion         bool          `json:"in_region"`
	EffectiveOffsets model.Offsets `json:"effective_offsets"`
}

type ScheduledResponse struct {
	Count    int                 `json:"count"`
	Triggers []scheduler.Trigger `json:"triggers"`
}

type RescheduleResponse struct {
	Scheduled int `json:"scheduled"`
}

type AssetsResponse struct {
	Assets []string `json:"assets"`
}

type UploadResponse struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type EventsResponse struct {
	Events []model.Envelope `json:"events"`
}
