package time

import (
	"time"
)

func HumanDate(t time.Time) string {
	local := t.Local()
	return local.Format(time.RFC822)
}

// HumanDuration rounds d for log lines: milliseconds under a second, otherwise
// hundredths of a second.
func HumanDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(10 * time.Millisecond).String()
}
