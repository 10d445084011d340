// Package calculator turns raw astronomical times into the minute-precision
// prayer schedule used by the rest of the system and answers the derived
// "current" and "next" queries.
package calculator

import (
	"fmt"
	"time"

	"github.com/Nixie-Tech-LLC/vakit/internal/model"
	"github.com/Nixie-Tech-LLC/vakit/internal/praytime"
	"github.com/Nixie-Tech-LLC/vakit/internal/timezone"
)

// DefaultRoundingBias is added before truncating to the minute so that a
// time of hh:mm:30 or later rounds up.
const DefaultRoundingBias = 30 * time.Second

// RegionalZones are the zones for which RegionalOffsets apply automatically.
var RegionalZones = map[string]bool{
	"Europe/Istanbul": true,
	"Asia/Istanbul":   true,
}

// ComputeFunc is the raw astronomical computation.
type ComputeFunc func(date time.Time, tz *time.Location, p praytime.Params) (praytime.Times, error)

type Options struct {
	Method  int
	AsrFiqh int
	// Offsets overrides the automatic choice when non-nil.
	Offsets             *model.Offsets
	RoundingBias        time.Duration
	AutoRegionalOffsets bool
	Resolver            timezone.Resolver
	Compute             ComputeFunc
}

func DefaultOptions() Options {
	return Options{
		Method:              praytime.MethodMWL,
		AsrFiqh:             praytime.FiqhShafi,
		RoundingBias:        DefaultRoundingBias,
		AutoRegionalOffsets: true,
	}
}

type Calculator struct {
	location model.Location
	tzName   string
	tz       *time.Location
	offsets  model.Offsets
	bias     time.Duration
	params   praytime.Params
	compute  ComputeFunc
}

func New(loc model.Location, opts Options) (*Calculator, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	if opts.Resolver == nil {
		opts.Resolver = timezone.NewPolygonResolver()
	}
	if opts.Compute == nil {
		opts.Compute = praytime.Compute
	}
	if _, ok := praytime.LookupMethod(opts.Method); !ok {
		return nil, fmt.Errorf("%w: %d", model.ErrInvalidMethod, opts.Method)
	}

	name, tz, err := timezone.Load(opts.Resolver, loc.Latitude, loc.Longitude)
	if err != nil {
		return nil, fmt.Errorf("resolving timezone for %s: %w", loc, err)
	}

	c := &Calculator{
		location: loc,
		tzName:   name,
		tz:       tz,
		bias:     opts.RoundingBias,
		compute:  opts.Compute,
		params: praytime.Params{
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
			Method:    opts.Method,
			AsrFiqh:   opts.AsrFiqh,
		},
	}
	switch {
	case opts.Offsets != nil:
		c.offsets = *opts.Offsets
	case opts.AutoRegionalOffsets && c.InRegion():
		c.offsets = model.RegionalOffsets
	}
	return c, nil
}

// FromSettings builds a calculator for the location, method and offsets held
// in s. Rounding, resolver and compute come from base.
func FromSettings(s model.PrayerSettings, base Options) (*Calculator, error) {
	base.Method = s.FajrIshaMethod
	base.AsrFiqh = s.AsrFiqh
	base.Offsets = s.Offsets
	return New(s.Location, base)
}

func (c *Calculator) Location() model.Location { return c.location }
func (c *Calculator) Offsets() model.Offsets   { return c.offsets }
func (c *Calculator) Timezone() *time.Location { return c.tz }
func (c *Calculator) TimezoneName() string     { return c.tzName }

// InRegion reports whether the location falls in a zone with regional offsets.
func (c *Calculator) InRegion() bool {
	return RegionalZones[c.tzName]
}

// UTCOffset is the zone offset in effect at t.
func (c *Calculator) UTCOffset(t time.Time) time.Duration {
	_, secs := t.In(c.tz).Zone()
	return time.Duration(secs) * time.Second
}

// Calculate returns the times for the calendar date of date as written in
// its own location.
func (c *Calculator) Calculate(date time.Time) (model.DayTimes, error) {
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, c.tz)

	raw, err := c.compute(day, c.tz, c.params)
	if err != nil {
		return model.DayTimes{}, fmt.Errorf("computing times for %s: %w", day.Format(time.DateOnly), err)
	}

	out := model.DayTimes{Date: day}
	for i, t := range [...]time.Time{raw.Fajr, raw.Sunrise, raw.Dhuhr, raw.Asr, raw.Maghrib, raw.Isha} {
		p := model.PrayerName(i)
		adjusted := t.Add(time.Duration(c.offsets.Get(p))*time.Minute + c.bias)
		out.Times[p] = truncateMinute(adjusted.In(c.tz))
	}
	return out, nil
}

// CalculateRange returns n consecutive days starting at start.
func (c *Calculator) CalculateRange(start time.Time, n int) ([]model.DayTimes, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative day count %d", n)
	}
	y, m, d := start.Date()
	out := make([]model.DayTimes, 0, n)
	for i := 0; i < n; i++ {
		day, err := c.Calculate(time.Date(y, m, d+i, 0, 0, 0, 0, c.tz))
		if err != nil {
			return nil, err
		}
		out = append(out, day)
	}
	return out, nil
}

// Today returns the times of the local date containing now.
func (c *Calculator) Today(now time.Time) (model.DayTimes, error) {
	return c.Calculate(now.In(c.tz))
}

// CurrentPrayer returns the latest prayer whose time is not after now. Before
// Fajr the previous night's Isha is still current.
func (c *Calculator) CurrentPrayer(now time.Time) (model.PrayerName, error) {
	day, err := c.Today(now)
	if err != nil {
		return 0, err
	}
	for i := len(model.AllPrayers) - 1; i >= 0; i-- {
		p := model.AllPrayers[i]
		if !day.Time(p).After(now) {
			return p, nil
		}
	}
	return model.Isha, nil
}

// NextPrayer returns the first prayer strictly after now, which is the next
// day's Fajr once Isha has passed.
func (c *Calculator) NextPrayer(now time.Time) (model.PrayerTime, error) {
	day, err := c.Today(now)
	if err != nil {
		return model.PrayerTime{}, err
	}
	for _, p := range model.AllPrayers {
		if day.Time(p).After(now) {
			return day.PrayerTime(p), nil
		}
	}
	tomorrow, err := c.Calculate(day.Date.AddDate(0, 0, 1))
	if err != nil {
		return model.PrayerTime{}, err
	}
	return tomorrow.PrayerTime(model.Fajr), nil
}

// TimeUntilNext is never negative.
func (c *Calculator) TimeUntilNext(now time.Time) (time.Duration, error) {
	next, err := c.NextPrayer(now)
	if err != nil {
		return 0, err
	}
	return max(next.At.Sub(now), 0), nil
}

func truncateMinute(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, t.Location())
}
