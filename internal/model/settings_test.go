package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeSettings(t *testing.T) {
	v := VolumeSettings{Default: 80}
	v.Set(Fajr, 50)

	assert.Equal(t, 50, v.Get(Fajr))
	assert.Equal(t, 80, v.Get(Isha))
	assert.NoError(t, v.Validate())

	v.Set(Isha, 101)
	assert.ErrorIs(t, v.Validate(), ErrInvalidVolume)
	assert.ErrorIs(t, ValidateVolume(-1), ErrInvalidVolume)
}

func TestPrayerSet(t *testing.T) {
	s := NewPrayerSet(Isha, Fajr)
	assert.True(t, s.Has(Fajr))
	assert.False(t, s.Has(Dhuhr))
	assert.Equal(t, []PrayerName{Fajr, Isha}, s.List())
	assert.False(t, s.Without(Fajr).Has(Fajr))
	assert.False(t, DefaultEnabledPrayers.Has(Sunrise))

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["fajr","isha"]`, string(b))

	var legacy PrayerSet
	require.NoError(t, json.Unmarshal([]byte(`["imsak","ogle","yatsi"]`), &legacy))
	assert.Equal(t, NewPrayerSet(Fajr, Dhuhr, Isha), legacy)
}

func TestOffsets(t *testing.T) {
	assert.Equal(t, -7, RegionalOffsets.Get(Sunrise))
	assert.Equal(t, 5, RegionalOffsets.Get(Dhuhr))
	assert.Equal(t, 4, RegionalOffsets.Get(Asr))
	assert.Equal(t, 7, RegionalOffsets.Get(Maghrib))
	assert.Zero(t, RegionalOffsets.Get(Fajr))
	assert.Zero(t, RegionalOffsets.Get(Isha))
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())
	assert.Equal(t, 80, s.Volume.Default)
	assert.Equal(t, AdhanIstanbul, s.AdhanType)
	assert.Nil(t, s.Offsets)
	assert.Zero(t, s.PreAlertMinutes)
}

func TestSettings_ValidateCollectsErrors(t *testing.T) {
	s := DefaultSettings()
	s.Location.Latitude = 120
	s.AdhanType = "cairo"
	s.PreAlertMinutes = MaxPreAlertMinutes + 1
	s.FajrIshaMethod = 0
	s.AsrFiqh = 3

	err := s.Validate()
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
	assert.ErrorIs(t, err, ErrInvalidAdhan)
	assert.ErrorIs(t, err, ErrInvalidPreAlert)
	assert.ErrorIs(t, err, ErrInvalidMethod)
}

func TestSettings_CloneIsDeep(t *testing.T) {
	s := DefaultSettings()
	s.Offsets = &Offsets{Dhuhr: 3}
	s.Volume.Set(Fajr, 40)

	c := s.Clone()
	c.Offsets.Dhuhr = 9
	c.Volume.Set(Fajr, 10)

	assert.Equal(t, 3, s.Offsets.Dhuhr)
	assert.Equal(t, 40, s.Volume.Get(Fajr))
}

func TestDecodeSettings(t *testing.T) {
	s, err := DecodeSettings(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)

	s, err = DecodeSettings([]byte(`{
		"location": {"latitude": 52.52, "longitude": 13.405, "city": "Berlin"},
		"volume": {"default": 60, "fajr": 30},
		"enabled_prayers": ["imsak", "aksam"],
		"pre_alert_minutes": 10
	}`))
	require.NoError(t, err)
	assert.Equal(t, "Berlin", s.Location.City)
	assert.Equal(t, 30, s.Volume.Get(Fajr))
	assert.Equal(t, 60, s.Volume.Get(Asr))
	assert.Equal(t, NewPrayerSet(Fajr, Maghrib), s.EnabledPrayers)
	assert.Equal(t, AdhanIstanbul, s.AdhanType)

	_, err = DecodeSettings([]byte(`{"volume": {"default": 300}}`))
	assert.ErrorIs(t, err, ErrInvalidVolume)

	_, err = DecodeSettings([]byte(`{`))
	assert.Error(t, err)
}

func TestEncodeSettings_RoundTrip(t *testing.T) {
	s := DefaultSettings()
	s.Offsets = &Offsets{Isha: -2}
	s.Volume.Set(Maghrib, 70)

	b, err := EncodeSettings(s)
	require.NoError(t, err)
	back, err := DecodeSettings(b)
	require.NoError(t, err)
	assert.Equal(t, s, back)
}
