package endpoints

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vakit/internal/db"
	"github.com/Nixie-Tech-LLC/vakit/internal/http/api"
	"github.com/Nixie-Tech-LLC/vakit/internal/http/api/packets"
	"github.com/Nixie-Tech-LLC/vakit/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/vakit/internal/model"
	"github.com/Nixie-Tech-LLC/vakit/internal/settings"
)

// SettingsHistory is implemented by repositories that keep past revisions.
type SettingsHistory interface {
	History(ctx context.Context, limit int) ([]db.Revision, error)
}

type SettingsController struct {
	settings SettingsService
	history  SettingsHistory
}

// SettingsModule mounts GET/PUT /settings, and GET /settings/history when
// history is non-nil.
func SettingsModule(svc SettingsService, history SettingsHistory) api.Module {
	ctl := &SettingsController{settings: svc, history: history}
	return api.ModuleFunc(func(c *api.Controller) {
		c.PUBLIC_GET("/settings", ctl.get)
		c.PUT("/settings", ctl.update)
		if history != nil {
			c.GET("/settings/history", ctl.revisions)
		}
	})
}

func (s *SettingsController) response(ps model.PrayerSettings) packets.SettingsResponse {
	calc := s.settings.Calculator()
	return packets.SettingsResponse{
		PrayerSettings:   ps,
		Timezone:         calc.TimezoneName(),
		InRegion:         calc.InRegion(),
		EffectiveOffsets: calc.Offsets(),
	}
}

// GET /api/settings
func (s *SettingsController) get(ctx *gin.Context) (any, *api.Error) {
	return s.response(s.settings.Settings()), nil
}

// PUT /api/settings
func (s *SettingsController) update(ctx *gin.Context) (any, *api.Error) {
	var patch settings.Patch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	who := subject(ctx)
	updated, err := s.settings.Update(ctx.Request.Context(), patch)
	if err != nil {
		log.Warn().Err(err).Str("subject", who).Msg("settings update rejected")
		return nil, toAPIError(err)
	}
	log.Info().Str("subject", who).Msg("settings updated")
	return s.response(updated), nil
}

// subject names the caller for the audit log. Without auth there is no token.
func subject(ctx *gin.Context) string {
	if sub, ok := middleware.GetSubject(ctx); ok {
		return sub
	}
	return "anonymous"
}

// GET /api/settings/history?limit=N
func (s *SettingsController) revisions(ctx *gin.Context) (any, *api.Error) {
	limit := 20
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, api.BadRequest("invalid limit")
		}
		limit = n
	}
	revs, err := s.history.History(ctx.Request.Context(), limit)
	if err != nil {
		return nil, api.Internal(err.Error())
	}
	return revs, nil
}
