package endpoints

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/Nixie-Tech-LLC/vakit/internal/calculator"
	"github.com/Nixie-Tech-LLC/vakit/internal/events"
	"github.com/Nixie-Tech-LLC/vakit/internal/http/api"
	"github.com/Nixie-Tech-LLC/vakit/internal/model"
	"github.com/Nixie-Tech-LLC/vakit/internal/playback"
	"github.com/Nixie-Tech-LLC/vakit/internal/scheduler"
	"github.com/Nixie-Tech-LLC/vakit/internal/settings"
	"github.com/Nixie-Tech-LLC/vakit/internal/storage"
)

type SettingsService interface {
	Settings() model.PrayerSettings
	Calculator() *calculator.Calculator
	Update(ctx context.Context, p settings.Patch) (model.PrayerSettings, error)
}

type Planner interface {
	Replan() (int, error)
	ListScheduled() []scheduler.Trigger
}

type Player interface {
	TestAudio(ctx context.Context, volume *int, duration time.Duration) error
	Stop() error
	IsPlaying() bool
	PlayerName() string
}

type AssetStore interface {
	List() ([]string, error)
	SaveFile(fileHeader *multipart.FileHeader, filename string) (string, error)
}

type EventHistory interface {
	Recent(ctx context.Context, n int) ([]model.Envelope, error)
}

type EventStream interface {
	Stream(buffer int) (<-chan model.Envelope, func())
}

type busHistory struct{ bus *events.Bus }

func (h busHistory) Recent(_ context.Context, n int) ([]model.Envelope, error) {
	return h.bus.Recent(n), nil
}

// HistoryFromBus serves recent events from the in-memory bus.
func HistoryFromBus(bus *events.Bus) EventHistory { return busHistory{bus: bus} }

// toAPIError maps domain errors to HTTP status codes.
func toAPIError(err error) *api.Error {
	switch {
	case errors.Is(err, model.ErrInvalidCoordinates),
		errors.Is(err, model.ErrInvalidVolume),
		errors.Is(err, model.ErrInvalidPreAlert),
		errors.Is(err, model.ErrInvalidMethod),
		errors.Is(err, model.ErrInvalidAdhan),
		errors.Is(err, model.ErrInvalidPrayer),
		errors.Is(err, storage.ErrInvalidAssetName):
		return api.BadRequest(err.Error())
	case errors.Is(err, playback.ErrBusy):
		return api.Conflict(err.Error())
	case errors.Is(err, playback.ErrAssetMissing):
		return api.NotFound(err.Error())
	}
	return &api.Error{Code: http.StatusInternalServerError, Message: err.Error()}
}
