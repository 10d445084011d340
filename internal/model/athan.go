package model

import (
	"strconv"
	"time"
)

type Prayer struct {
	Key     string // "fajr", "dhuhr", …
	Name    string // "İmsak", "Öğle", …
	Icon    string
	Time    string // "05:12"
	Enabled bool
}

type AthanPageData struct {
	City      string
	Date      string // "16.10.2026"
	HijriDate string // "4 Cemaziyelevvel 1448"
	Timezone  string
	Next      string // display name of the next prayer
	Prayers   []Prayer
}

// NewAthanPageData builds the rows shown on the athan page and in the CLI table.
func NewAthanPageData(loc Location, tz string, day DayTimes, enabled PrayerSet, next PrayerName) AthanPageData {
	prayers := make([]Prayer, 0, len(AllPrayers))
	for _, pt := range day.All() {
		prayers = append(prayers, Prayer{
			Key:     pt.Name.String(),
			Name:    pt.Name.DisplayName(),
			Icon:    pt.Name.Icon(),
			Time:    pt.Clock(),
			Enabled: enabled.Has(pt.Name),
		})
	}
	return AthanPageData{
		City:      loc.City,
		Date:      day.Date.Format("02.01.2006"),
		HijriDate: HijriDate(day.Date),
		Timezone:  tz,
		Next:      next.DisplayName(),
		Prayers:   prayers,
	}
}

var hijriMonths = [...]string{
	"Muharrem", "Safer", "Rebiülevvel", "Rebiülahir", "Cemaziyelevvel", "Cemaziyelahir",
	"Recep", "Şaban", "Ramazan", "Şevval", "Zilkade", "Zilhicce",
}

// HijriDate converts a Gregorian date with the tabular (arithmetic) Islamic
// calendar. It can differ by a day from sighting-based calendars.
func HijriDate(t time.Time) string {
	y, m, d := HijriYMD(t)
	return formatHijri(y, m, d)
}

func HijriYMD(t time.Time) (year, month, day int) {
	jd := julianDayNumber(t.Year(), int(t.Month()), t.Day())
	l := jd - 1948440 + 10632
	n := (l - 1) / 10631
	l = l - 10631*n + 354
	j := ((10985-l)/5316)*((50*l)/17719) + (l/5670)*((43*l)/15238)
	l = l - ((30-j)/15)*((17719*j)/50) - (j/16)*((15238*j)/43) + 29
	month = (24 * l) / 709
	day = l - (709*month)/24
	year = 30*n + j - 30
	return year, month, day
}

func formatHijri(y, m, d int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return strconv.Itoa(d) + " " + hijriMonths[m-1] + " " + strconv.Itoa(y)
}

// julianDayNumber is the integer Julian day of a proleptic Gregorian date.
func julianDayNumber(y, m, d int) int {
	a := (14 - m) / 12
	yy := y + 4800 - a
	mm := m + 12*a - 3
	return d + (153*mm+2)/5 + 365*yy + yy/4 - yy/100 + yy/400 - 32045
}
