package clock

import (
	"time"
)

const layout = "2006-01-02T15:04:05Z"

// Clock returns the current time; services take one so tests can pin it.
type Clock func() time.Time

func System() time.Time {
	return time.Now().UTC()
}

// Fixed returns a clock that always reports t.
func Fixed(t time.Time) Clock {
	return func() time.Time {
		return t
	}
}

func Now() string {
	return time.Now().UTC().Format(layout)
}
