package endpoints

import (
	"fmt"
	"time"
)

// FormatCountdown renders d as HH:MM:SS, rounding down to the second.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}

func formatUptime(d time.Duration) string {
	return d.Truncate(time.Second).String()
}
