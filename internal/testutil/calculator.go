package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/vakit/internal/calculator"
	"github.com/Nixie-Tech-LLC/vakit/internal/model"
	"github.com/Nixie-Tech-LLC/vakit/internal/praytime"
	"github.com/Nixie-Tech-LLC/vakit/internal/timezone"
)

// Clock times returned by FixedCompute for every date.
var FixedTimes = [...][2]int{
	model.Fajr:    {5, 0},
	model.Sunrise: {6, 30},
	model.Dhuhr:   {12, 0},
	model.Asr:     {15, 0},
	model.Maghrib: {18, 0},
	model.Isha:    {20, 15},
}

// FixedCompute returns FixedTimes on whatever date is asked.
func FixedCompute(date time.Time, tz *time.Location, _ praytime.Params) (praytime.Times, error) {
	y, m, d := date.Date()
	at := func(p model.PrayerName) time.Time {
		return time.Date(y, m, d, FixedTimes[p][0], FixedTimes[p][1], 0, 0, tz)
	}
	return praytime.Times{
		Fajr:    at(model.Fajr),
		Sunrise: at(model.Sunrise),
		Dhuhr:   at(model.Dhuhr),
		Asr:     at(model.Asr),
		Maghrib: at(model.Maghrib),
		Isha:    at(model.Isha),
	}, nil
}

// CalculatorOptions resolve every location to zone and compute FixedTimes.
// Zones outside the regional set get no offsets, so the times are exact.
func CalculatorOptions(zone string) calculator.Options {
	opts := calculator.DefaultOptions()
	opts.Resolver = timezone.Static(zone)
	opts.Compute = FixedCompute
	return opts
}

func NewCalculator(t testing.TB, s model.PrayerSettings, zone string) *calculator.Calculator {
	t.Helper()
	c, err := calculator.FromSettings(s, CalculatorOptions(zone))
	require.NoError(t, err)
	return c
}
