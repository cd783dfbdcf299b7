package promotion

import (
	"time"

	"github.com/go-faster/errors"
)

// ParseBound parses an admin validity bound. A date-only value (2006-01-02)
// is widened to the whole day in loc: the start bound at 00:00 and the end
// bound at the last nanosecond of the day. RFC 3339 values are used as is.
func ParseBound(v string, loc *time.Location, end bool) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if day, err := time.ParseInLocation(time.DateOnly, v, loc); err == nil {
		if end {
			return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
		}
		return day, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse date %q", v)
	}
	return t, nil
}
