package main

import (
	"html/template"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/vakit/internal/app"
	"github.com/Nixie-Tech-LLC/vakit/internal/http/api"
	"github.com/Nixie-Tech-LLC/vakit/internal/http/api/endpoints"
	"github.com/Nixie-Tech-LLC/vakit/internal/model"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes(r *gin.Engine, a *app.App, tmpl *template.Template) error {
	cfg := a.Config

	// CORS
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"PUT",
			"DELETE",
			"OPTIONS",
			"HEAD",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
		},
		ExposeHeaders: []string{
			"Content-Length",
		},
		AllowCredentials: false,
	}))

	// a nil *db.SettingsStore must not become a non-nil interface
	var history endpoints.SettingsHistory
	if a.SettingsHistory != nil {
		history = a.SettingsHistory
	}

	modules := []api.Module{
		endpoints.StatusModule(endpoints.BuildInfo{
			Version:         a.Version,
			SettingsBackend: cfg.SettingsBackend,
			StartedAt:       a.StartedAt,
		}, a.Settings, a.Planner, a.Playback, a.Now),
		endpoints.TimesModule(a.Settings, a.Now),
		endpoints.SettingsModule(a.Settings, history),
		endpoints.ScheduleModule(a.Planner),
		endpoints.AudioModule(a.Playback, a.Assets),
		endpoints.EventsModule(a.History, a.Bus),
	}
	if cfg.AuthEnabled() {
		modules = append(modules, endpoints.AuthModule(cfg.JWTSecret, cfg.AdminPasswordHash))
	}

	if err := api.MountGroup(r, api.GroupConfig{
		Prefix:    "/api",
		Auth:      cfg.AuthEnabled(),
		SecretKey: cfg.JWTSecret,
	}, modules...); err != nil {
		return err
	}

	if tmpl != nil {
		r.SetHTMLTemplate(tmpl)
		r.GET("/", athanPage(a))
	}
	return nil
}

// athanPage renders today's times for the configured location.
func athanPage(a *app.App) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		calc := a.Settings.Calculator()
		now := a.Now().In(calc.Timezone())

		day, err := calc.Today(now)
		if err != nil {
			ctx.String(http.StatusInternalServerError, err.Error())
			return
		}
		next, err := calc.NextPrayer(now)
		if err != nil {
			ctx.String(http.StatusInternalServerError, err.Error())
			return
		}

		s := a.Settings.Settings()
		data := model.NewAthanPageData(calc.Location(), calc.TimezoneName(), day, s.EnabledPrayers, next.Name)
		ctx.HTML(http.StatusOK, "athan.html", data)
	}
}

// requestLogger logs one line per request through zerolog.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Debug()
		switch {
		case status >= http.StatusInternalServerError:
			ev = log.Error()
		case status >= http.StatusBadRequest:
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client", c.ClientIP()).
			Msg("request")
	}
}
