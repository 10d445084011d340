package endpoints

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/vakit/internal/http/api"
	"github.com/Nixie-Tech-LLC/vakit/internal/http/api/packets"
	"github.com/Nixie-Tech-LLC/vakit/internal/model"
)

// BuildInfo describes the running instance.
type BuildInfo struct {
	Version         string
	SettingsBackend string
	StartedAt       time.Time
}

type StatusController struct {
	info     BuildInfo
	settings SettingsService
	planner  Planner
	player   Player
	now      func() time.Time
}

// StatusModule mounts GET /status and GET /current.
func StatusModule(info BuildInfo, svc SettingsService, planner Planner, player Player, now func() time.Time) api.Module {
	ctl := &StatusController{info: info, settings: svc, planner: planner, player: player, now: now}
	return api.ModuleFunc(func(c *api.Controller) {
		c.PUBLIC_GET("/status", ctl.status)
		c.PUBLIC_GET("/current", ctl.current)
	})
}

// GET /api/status
func (s *StatusController) status(ctx *gin.Context) (any, *api.Error) {
	uptime := s.now().Sub(s.info.StartedAt)
	return packets.StatusResponse{
		Version:         s.info.Version,
		Uptime:          formatUptime(uptime),
		UptimeSeconds:   int64(uptime / time.Second),
		PendingTriggers: len(s.planner.ListScheduled()),
		Player:          s.player.PlayerName(),
		Playing:         s.player.IsPlaying(),
		SettingsBackend: s.info.SettingsBackend,
		Timezone:        s.settings.Calculator().TimezoneName(),
	}, nil
}

// GET /api/current
func (s *StatusController) current(ctx *gin.Context) (any, *api.Error) {
	calc := s.settings.Calculator()
	now := s.now().In(calc.Timezone())

	current, err := calc.CurrentPrayer(now)
	if err != nil {
		return nil, toAPIError(err)
	}
	next, err := calc.NextPrayer(now)
	if err != nil {
		return nil, toAPIError(err)
	}
	until := max(next.At.Sub(now), 0)

	return packets.CurrentResponse{
		Time:             now.Format(time.TimeOnly),
		Date:             now.Format(time.DateOnly),
		HijriDate:        model.HijriDate(now),
		Location:         calc.Location(),
		Timezone:         calc.TimezoneName(),
		CurrentPrayer:    packets.NewPrayerRef(current),
		NextPrayer:       packets.NewPrayerRef(next.Name),
		NextTime:         next.Clock(),
		Countdown:        FormatCountdown(until),
		CountdownSeconds: int64(until / time.Second),
		IsPlaying:        s.player.IsPlaying(),
	}, nil
}
