package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Nixie-Tech-LLC/vakit/internal/praytime"
)

var (
	ErrInvalidVolume   = errors.New("invalid volume")
	ErrInvalidPreAlert = errors.New("invalid pre-alert minutes")
	ErrInvalidMethod   = errors.New("invalid calculation method")
	ErrInvalidAdhan    = errors.New("invalid adhan type")
)

const MaxPreAlertMinutes = 120

// Offsets are signed minute corrections applied to the raw computed times.
type Offsets struct {
	Fajr    int `json:"fajr"`
	Sunrise int `json:"sunrise"`
	Dhuhr   int `json:"dhuhr"`
	Asr     int `json:"asr"`
	Maghrib int `json:"maghrib"`
	Isha    int `json:"isha"`
}

func (o Offsets) Get(p PrayerName) int {
	switch p {
	case Fajr:
		return o.Fajr
	case Sunrise:
		return o.Sunrise
	case Dhuhr:
		return o.Dhuhr
	case Asr:
		return o.Asr
	case Maghrib:
		return o.Maghrib
	case Isha:
		return o.Isha
	}
	return 0
}

// RegionalOffsets are the Diyanet corrections used for locations in Turkey.
var RegionalOffsets = Offsets{Fajr: 0, Sunrise: -7, Dhuhr: 5, Asr: 4, Maghrib: 7, Isha: 0}

// VolumeSettings holds a default volume with optional per-prayer overrides.
type VolumeSettings struct {
	Default int  `json:"default"`
	Fajr    *int `json:"fajr"`
	Sunrise *int `json:"sunrise"`
	Dhuhr   *int `json:"dhuhr"`
	Asr     *int `json:"asr"`
	Maghrib *int `json:"maghrib"`
	Isha    *int `json:"isha"`
}

func (v *VolumeSettings) slot(p PrayerName) **int {
	switch p {
	case Fajr:
		return &v.Fajr
	case Sunrise:
		return &v.Sunrise
	case Dhuhr:
		return &v.Dhuhr
	case Asr:
		return &v.Asr
	case Maghrib:
		return &v.Maghrib
	case Isha:
		return &v.Isha
	}
	return nil
}

// Get returns the override for p, falling back to the default.
func (v VolumeSettings) Get(p PrayerName) int {
	if s := v.slot(p); s != nil && *s != nil {
		return **s
	}
	return v.Default
}

// Set stores an override for p.
func (v *VolumeSettings) Set(p PrayerName, volume int) {
	if s := v.slot(p); s != nil {
		*s = &volume
	}
}

func (v VolumeSettings) Validate() error {
	if err := ValidateVolume(v.Default); err != nil {
		return fmt.Errorf("default: %w", err)
	}
	for _, p := range AllPrayers {
		if s := v.slot(p); *s != nil {
			if err := ValidateVolume(**s); err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
		}
	}
	return nil
}

func (v VolumeSettings) clone() VolumeSettings {
	out := VolumeSettings{Default: v.Default}
	for _, p := range AllPrayers {
		if s := v.slot(p); *s != nil {
			out.Set(p, **s)
		}
	}
	return out
}

func ValidateVolume(volume int) error {
	if volume < 0 || volume > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidVolume, volume)
	}
	return nil
}

// PrayerSet is a set of prayers stored as a bit mask.
type PrayerSet uint8

func NewPrayerSet(prayers ...PrayerName) PrayerSet {
	var s PrayerSet
	for _, p := range prayers {
		s = s.With(p)
	}
	return s
}

func (s PrayerSet) Has(p PrayerName) bool {
	return p.Valid() && s&(1<<uint(p)) != 0
}

func (s PrayerSet) With(p PrayerName) PrayerSet {
	if !p.Valid() {
		return s
	}
	return s | 1<<uint(p)
}

func (s PrayerSet) Without(p PrayerName) PrayerSet {
	return s &^ (1 << uint(p))
}

// List returns the members in chronological order.
func (s PrayerSet) List() []PrayerName {
	out := make([]PrayerName, 0, len(AllPrayers))
	for _, p := range AllPrayers {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

func (s PrayerSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

func (s *PrayerSet) UnmarshalJSON(b []byte) error {
	var names []PrayerName
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	*s = NewPrayerSet(names...)
	return nil
}

// DefaultEnabledPrayers excludes Sunrise, which has no adhan.
var DefaultEnabledPrayers = NewPrayerSet(Fajr, Dhuhr, Asr, Maghrib, Isha)

// PrayerSettings is replaced wholesale on every update; use Clone before
// modifying a value obtained from a shared owner.
type PrayerSettings struct {
	Location        Location       `json:"location"`
	AdhanType       AdhanType      `json:"adhan_type"`
	Offsets         *Offsets       `json:"offsets"` // nil selects offsets automatically
	Volume          VolumeSettings `json:"volume"`
	EnabledPrayers  PrayerSet      `json:"enabled_prayers"`
	PreAlertMinutes int            `json:"pre_alert_minutes"`
	FajrIshaMethod  int            `json:"fajr_isha_method"`
	AsrFiqh         int            `json:"asr_fiqh"`
}

func DefaultSettings() PrayerSettings {
	return PrayerSettings{
		Location:        DefaultLocation,
		AdhanType:       AdhanIstanbul,
		Volume:          VolumeSettings{Default: 80},
		EnabledPrayers:  DefaultEnabledPrayers,
		PreAlertMinutes: 0,
		FajrIshaMethod:  praytime.MethodMWL,
		AsrFiqh:         praytime.FiqhShafi,
	}
}

func (s PrayerSettings) IsEnabled(p PrayerName) bool {
	return s.EnabledPrayers.Has(p)
}

func (s PrayerSettings) Clone() PrayerSettings {
	out := s
	if s.Offsets != nil {
		o := *s.Offsets
		out.Offsets = &o
	}
	out.Volume = s.Volume.clone()
	return out
}

func (s PrayerSettings) Validate() error {
	var errs []error
	if err := s.Location.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !s.AdhanType.Valid() {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidAdhan, string(s.AdhanType)))
	}
	if err := s.Volume.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("volume %w", err))
	}
	if s.PreAlertMinutes < 0 || s.PreAlertMinutes > MaxPreAlertMinutes {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidPreAlert, s.PreAlertMinutes))
	}
	if _, ok := praytime.LookupMethod(s.FajrIshaMethod); !ok {
		errs = append(errs, fmt.Errorf("%w: fajr_isha_method %d", ErrInvalidMethod, s.FajrIshaMethod))
	}
	if s.AsrFiqh != praytime.FiqhShafi && s.AsrFiqh != praytime.FiqhHanafi {
		errs = append(errs, fmt.Errorf("%w: asr_fiqh %d", ErrInvalidMethod, s.AsrFiqh))
	}
	return errors.Join(errs...)
}

// DecodeSettings parses a stored settings document. Fields missing from the
// document keep their default values.
func DecodeSettings(data []byte) (PrayerSettings, error) {
	s := DefaultSettings()
	if len(strings.TrimSpace(string(data))) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return PrayerSettings{}, fmt.Errorf("decoding settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return PrayerSettings{}, fmt.Errorf("decoding settings: %w", err)
	}
	return s, nil
}

func EncodeSettings(s PrayerSettings) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
