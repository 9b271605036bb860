package utils

import "time"

// StampLayout is the timestamp layout embedded in generated filenames.
const StampLayout = "20060102_150405"

// Stamp formats t for use in a filename.
func Stamp(t time.Time) string {
	return t.Format(StampLayout)
}

// Age returns how long ago t was relative to now, never negative.
func Age(now, t time.Time) time.Duration {
	if t.After(now) {
		return 0
	}
	return now.Sub(t)
}
