package utils

import "time"

const DateLayout = "2006-01-02"

// TimeNow returns the current time in UTC. All persisted timestamps use it.
func TimeNow() time.Time {
	return time.Now().UTC()
}

// ElapsedDays returns the fractional number of days between from and to.
func ElapsedDays(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

// ParseDate parses a YYYY-MM-DD string, returning the zero time for "".
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, value)
}
