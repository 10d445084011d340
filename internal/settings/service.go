package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/vakit/internal/calculator"
	"github.com/Nixie-Tech-LLC/vakit/internal/events"
	"github.com/Nixie-Tech-LLC/vakit/internal/model"
)

// Patch is a partial update. Nil fields keep their current value.
type Patch struct {
	Location        *model.Location       `json:"location,omitempty"`
	AdhanType       *model.AdhanType      `json:"adhan_type,omitempty"`
	Offsets         *model.Offsets        `json:"offsets,omitempty"`
	AutoOffsets     bool                  `json:"auto_offsets,omitempty"` // drop explicit offsets
	Volume          *model.VolumeSettings `json:"volume,omitempty"`
	EnabledPrayers  *model.PrayerSet      `json:"enabled_prayers,omitempty"`
	PreAlertMinutes *int                  `json:"pre_alert_minutes,omitempty"`
	FajrIshaMethod  *int                  `json:"fajr_isha_method,omitempty"`
	AsrFiqh         *int                  `json:"asr_fiqh,omitempty"`
}

// apply returns the patched copy of s and the names of the fields touched.
func (p Patch) apply(s model.PrayerSettings) (model.PrayerSettings, []string) {
	out := s.Clone()
	var fields []string
	if p.Location != nil {
		out.Location = *p.Location
		fields = append(fields, "location")
	}
	if p.AdhanType != nil {
		out.AdhanType = *p.AdhanType
		fields = append(fields, "adhan_type")
	}
	switch {
	case p.Offsets != nil:
		o := *p.Offsets
		out.Offsets = &o
		fields = append(fields, "offsets")
	case p.AutoOffsets:
		out.Offsets = nil
		fields = append(fields, "offsets")
	}
	if p.Volume != nil {
		out.Volume = *p.Volume
		fields = append(fields, "volume")
	}
	if p.EnabledPrayers != nil {
		out.EnabledPrayers = *p.EnabledPrayers
		fields = append(fields, "enabled_prayers")
	}
	if p.PreAlertMinutes != nil {
		out.PreAlertMinutes = *p.PreAlertMinutes
		fields = append(fields, "pre_alert_minutes")
	}
	if p.FajrIshaMethod != nil {
		out.FajrIshaMethod = *p.FajrIshaMethod
		fields = append(fields, "fajr_isha_method")
	}
	if p.AsrFiqh != nil {
		out.AsrFiqh = *p.AsrFiqh
		fields = append(fields, "asr_fiqh")
	}
	return out, fields
}

// ChangeFunc runs after an update has been stored and published.
type ChangeFunc func(s model.PrayerSettings, fields []string)

// Service holds the current settings and calculator. Readers always see a
// consistent pair; updates are serialized and replace both at once.
type Service struct {
	repo Repository
	base calculator.Options
	sink events.Sink
	log  zerolog.Logger

	update sync.Mutex

	mu       sync.RWMutex
	settings model.PrayerSettings
	calc     *calculator.Calculator
	hooks    []ChangeFunc
}

// NewService loads the stored settings, falling back to the defaults when
// nothing is stored. base supplies rounding, resolver and compute.
func NewService(ctx context.Context, repo Repository, base calculator.Options, sink events.Sink, log zerolog.Logger) (*Service, error) {
	if sink == nil {
		sink = events.Discard
	}
	s, err := repo.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		s = model.DefaultSettings()
		log.Info().Msg("no stored settings, using defaults")
	case err != nil:
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	calc, err := calculator.FromSettings(s, base)
	if err != nil {
		return nil, fmt.Errorf("building calculator: %w", err)
	}
	log.Info().
		Str("location", s.Location.String()).
		Str("timezone", calc.TimezoneName()).
		Bool("regional", calc.InRegion()).
		Msg("settings loaded")

	return &Service{repo: repo, base: base, sink: sink, log: log, settings: s, calc: calc}, nil
}

// Settings returns a copy the caller may modify.
func (s *Service) Settings() model.PrayerSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

func (s *Service) Calculator() *calculator.Calculator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calc
}

func (s *Service) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Update validates and stores the patched settings. A rejected or unsaved
// patch leaves the current settings untouched.
func (s *Service) Update(ctx context.Context, p Patch) (model.PrayerSettings, error) {
	s.update.Lock()
	defer s.update.Unlock()

	next, fields := p.apply(s.Settings())
	if len(fields) == 0 {
		return next, nil
	}
	if err := next.Validate(); err != nil {
		return model.PrayerSettings{}, err
	}
	calc, err := calculator.FromSettings(next, s.base)
	if err != nil {
		return model.PrayerSettings{}, err
	}
	if err := s.repo.Save(ctx, next); err != nil {
		return model.PrayerSettings{}, fmt.Errorf("saving settings: %w", err)
	}

	s.mu.Lock()
	s.settings = next
	s.calc = calc
	hooks := append([]ChangeFunc(nil), s.hooks...)
	s.mu.Unlock()

	s.log.Info().Strs("fields", fields).Msg("settings updated")
	s.sink.Publish(model.NewSettingsChanged(fields))
	for _, fn := range hooks {
		fn(next.Clone(), fields)
	}
	return next.Clone(), nil
}
