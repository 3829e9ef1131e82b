// Package dates holds the calendar helpers behind the dashboard charts and
// report periods. All bucketing happens in a fixed timezone so results do
// not depend on where the server runs.
package dates

import (
	"fmt"
	"regexp"
	"time"
)

// DefaultLocation is the municipality's timezone. Lima has no DST, so a
// fixed offset keeps results identical with or without host tzdata.
var DefaultLocation = time.FixedZone("America/Lima", -5*60*60)

// WeekdayLabels are the chart labels for the weekly series, Monday first.
var WeekdayLabels = []string{"Lun", "Mar", "Mie", "Jue", "Vie", "Sab", "Dom"}

var monthInputRe = regexp.MustCompile(`^\d{4}-\d{2}$`)

// WeekdayBucket maps an RFC 3339 timestamp to a weekday index in loc,
// Monday=0 .. Sunday=6. Returns -1 for unparseable input.
func WeekdayBucket(value string, loc *time.Location) int {
	if loc == nil {
		loc = DefaultLocation
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return -1
	}
	// time.Weekday has Sunday=0; shift so Monday=0.
	return (int(t.In(loc).Weekday()) + 6) % 7
}

// MonthBounds resolves a strict "YYYY-MM" input (anything else falls back to
// the current month) into a half-open UTC interval [start, end) plus the
// canonical "YYYY-MM" string echoed back for form defaults.
func MonthBounds(input string) (start, end time.Time, canonical string) {
	now := time.Now().UTC()
	year, month := now.Year(), now.Month()

	if monthInputRe.MatchString(input) {
		var y, m int
		fmt.Sscanf(input, "%d-%d", &y, &m)
		if m >= 1 && m <= 12 {
			year, month = y, time.Month(m)
		}
	}

	start = time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	canonical = fmt.Sprintf("%04d-%02d", year, int(month))
	return start, end, canonical
}

// LastNDaysRange returns the trailing n-day window: end is the current
// instant, start is midnight (DefaultLocation day boundary) of the day n-1
// days before. Callers bound queries inclusively on BOTH ends here, unlike
// MonthBounds — existing call sites depend on that asymmetry.
func LastNDaysRange(n int) (start, end time.Time) {
	end = time.Now()
	local := end.In(DefaultLocation)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, DefaultLocation)
	start = day.AddDate(0, 0, -(n - 1))
	return start, end
}
