package proto

import (
	"fmt"
	"time"
)

// The clock takes no action code. Every request is answered with the
// current time in seconds since the Unix epoch in word a.

// RTCTime is a calendar breakdown of a clock reading, in UTC.
type RTCTime struct {
	Year    int
	Month   int
	Day     int
	Hour    int
	Minute  int
	Second  int
	Weekday time.Weekday
}

// FromTimestamp converts seconds since the epoch.
func FromTimestamp(ts uint64) RTCTime {
	t := time.Unix(int64(ts), 0).UTC()
	return RTCTime{
		Year:    t.Year(),
		Month:   int(t.Month()),
		Day:     t.Day(),
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Second:  t.Second(),
		Weekday: t.Weekday(),
	}
}

func (t RTCTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d %s",
		t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second, t.Weekday.String()[:3])
}
