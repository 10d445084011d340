package model

import "fmt"

// AdhanType selects which recitation is played.
type AdhanType string

const (
	AdhanMakkah   AdhanType = "makkah"
	AdhanMadinah  AdhanType = "madinah"
	AdhanIstanbul AdhanType = "istanbul"
)

var AdhanTypes = []AdhanType{AdhanMakkah, AdhanMadinah, AdhanIstanbul}

var adhanDisplay = map[AdhanType]string{
	AdhanMakkah:   "Mekke Ezanı",
	AdhanMadinah:  "Medine Ezanı",
	AdhanIstanbul: "İstanbul Ezanı",
}

func (a AdhanType) Valid() bool {
	_, ok := adhanDisplay[a]
	return ok
}

func (a AdhanType) DisplayName() string {
	return adhanDisplay[a]
}

// FileName is the default asset for this adhan type.
func (a AdhanType) FileName() string {
	return fmt.Sprintf("adhan_%s.mp3", a)
}

// PrayerFileName is the prayer-specific asset, used when present.
func (a AdhanType) PrayerFileName(p PrayerName) string {
	return fmt.Sprintf("adhan_%s_%s.mp3", a, p)
}
