package endpoints

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/vakit/internal/http/api"
	"github.com/Nixie-Tech-LLC/vakit/internal/http/api/packets"
)

const weekDays = 7

type TimesController struct {
	settings SettingsService
	now      func() time.Time
}

// TimesModule mounts GET /times/today and GET /times/week.
func TimesModule(svc SettingsService, now func() time.Time) api.Module {
	ctl := &TimesController{settings: svc, now: now}
	return api.ModuleFunc(func(c *api.Controller) {
		c.PUBLIC_GET("/times/today", ctl.today)
		c.PUBLIC_GET("/times/week", ctl.week)
	})
}

// GET /api/times/today
func (t *TimesController) today(ctx *gin.Context) (any, *api.Error) {
	return t.days(1)
}

// GET /api/times/week
func (t *TimesController) week(ctx *gin.Context) (any, *api.Error) {
	return t.days(weekDays)
}

func (t *TimesController) days(n int) (any, *api.Error) {
	calc := t.settings.Calculator()
	enabled := t.settings.Settings().EnabledPrayers

	days, err := calc.CalculateRange(t.now().In(calc.Timezone()), n)
	if err != nil {
		return nil, toAPIError(err)
	}
	out := packets.TimesResponse{
		Location: calc.Location(),
		Timezone: calc.TimezoneName(),
		InRegion: calc.InRegion(),
		Days:     make([]packets.DayResponse, 0, len(days)),
	}
	for _, d := range days {
		out.Days = append(out.Days, packets.NewDayResponse(d, enabled))
	}
	return out, nil
}
