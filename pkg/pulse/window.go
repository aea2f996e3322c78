package pulse

import (
	"fmt"
	"time"

	"github.com/cognicore/handlepulse/pkg/pulse/internalerr"
)

// DateLayout is the calendar date format used for runs, storage keys and
// report file names.
const DateLayout = "2006-01-02"

// DayWindow returns the half-open interval [start, end) covering the
// calendar date in loc, expressed in UTC. On DST transitions the window is
// 23 or 25 hours long.
func DayWindow(date string, loc *time.Location) (start, end time.Time, err error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date %q: %v", internalerr.ErrInvalidInput, date, err)
	}
	return day.UTC(), day.AddDate(0, 0, 1).UTC(), nil
}

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DateLayout)
}
