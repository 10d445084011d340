package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidPrayer = errors.New("invalid prayer name")

// PrayerName is one of the six daily time markers. The zero value is Fajr and
// the numeric order is the chronological order within a day.
type PrayerName int

const (
	Fajr PrayerName = iota
	Sunrise
	Dhuhr
	Asr
	Maghrib
	Isha
)

// AllPrayers lists every prayer in chronological order.
var AllPrayers = [...]PrayerName{Fajr, Sunrise, Dhuhr, Asr, Maghrib, Isha}

type prayerInfo struct {
	Key     string // stable key used in settings, trigger keys and asset names
	Legacy  string // key used by older settings documents
	Display string
	Icon    string
}

var prayerTable = [...]prayerInfo{
	Fajr:    {Key: "fajr", Legacy: "imsak", Display: "İmsak", Icon: "🌙"},
	Sunrise: {Key: "sunrise", Legacy: "gunes", Display: "Güneş", Icon: "🌅"},
	Dhuhr:   {Key: "dhuhr", Legacy: "ogle", Display: "Öğle", Icon: "☀️"},
	Asr:     {Key: "asr", Legacy: "ikindi", Display: "İkindi", Icon: "🌤️"},
	Maghrib: {Key: "maghrib", Legacy: "aksam", Display: "Akşam", Icon: "🌇"},
	Isha:    {Key: "isha", Legacy: "yatsi", Display: "Yatsı", Icon: "🌃"},
}

func (p PrayerName) Valid() bool {
	return p >= Fajr && p <= Isha
}

func (p PrayerName) String() string {
	if !p.Valid() {
		return fmt.Sprintf("PrayerName(%d)", int(p))
	}
	return prayerTable[p].Key
}

func (p PrayerName) DisplayName() string {
	if !p.Valid() {
		return ""
	}
	return prayerTable[p].Display
}

func (p PrayerName) Icon() string {
	if !p.Valid() {
		return ""
	}
	return prayerTable[p].Icon
}

// ParsePrayerName accepts the stable key, the legacy Turkish key or the
// display name, case-insensitively.
func ParsePrayerName(s string) (PrayerName, error) {
	s = strings.TrimSpace(s)
	for i, info := range prayerTable {
		if strings.EqualFold(s, info.Key) || strings.EqualFold(s, info.Legacy) || strings.EqualFold(s, info.Display) {
			return PrayerName(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPrayer, s)
}

func (p PrayerName) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPrayer, int(p))
	}
	return []byte(p.String()), nil
}

func (p *PrayerName) UnmarshalText(b []byte) error {
	parsed, err := ParsePrayerName(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// PrayerTime is a single prayer bound to its concrete instant.
type PrayerTime struct {
	Name PrayerName `json:"name"`
	At   time.Time  `json:"at"`
}

// Date returns the calendar date the prayer belongs to, at midnight in the
// instant's location.
func (pt PrayerTime) Date() time.Time {
	y, m, d := pt.At.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, pt.At.Location())
}

func (pt PrayerTime) Clock() string {
	return pt.At.Format("15:04")
}

// DayTimes holds the six offset-applied, minute-truncated times of one
// calendar date. Times are strictly increasing in prayer order.
type DayTimes struct {
	Date  time.Time
	Times [len(AllPrayers)]time.Time
}

func (d DayTimes) Time(p PrayerName) time.Time {
	return d.Times[p]
}

func (d DayTimes) PrayerTime(p PrayerName) PrayerTime {
	return PrayerTime{Name: p, At: d.Times[p]}
}

// All returns the six prayer times in chronological order.
func (d DayTimes) All() []PrayerTime {
	out := make([]PrayerTime, 0, len(AllPrayers))
	for _, p := range AllPrayers {
		out = append(out, d.PrayerTime(p))
	}
	return out
}

// Ordered reports whether the times are strictly increasing.
func (d DayTimes) Ordered() bool {
	for i := 1; i < len(d.Times); i++ {
		if !d.Times[i].After(d.Times[i-1]) {
			return false
		}
	}
	return true
}

// DateKey formats a date the way trigger keys carry it.
func DateKey(t time.Time) string {
	return t.Format("20060102")
}
