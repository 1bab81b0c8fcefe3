package metrics

import (
	"fmt"
	"strings"
	"time"
)

// Granularity controls the time bucket size of revenue series.
type Granularity int

const (
	GranularityDay   Granularity = 1
	GranularityWeek  Granularity = 2
	GranularityMonth Granularity = 3
)

// ParseGranularity accepts day, week or month. Empty means day.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "day", "daily":
		return GranularityDay, nil
	case "week", "weekly":
		return GranularityWeek, nil
	case "month", "monthly":
		return GranularityMonth, nil
	}
	return 0, fmt.Errorf("unknown granularity %q", s)
}

func (g Granularity) String() string {
	switch g {
	case GranularityWeek:
		return "week"
	case GranularityMonth:
		return "month"
	default:
		return "day"
	}
}

// BucketStart returns the first instant of the bucket containing t, in t's location.
func BucketStart(t time.Time, g Granularity) time.Time {
	loc := t.Location()
	switch g {
	case GranularityWeek:
		// Monday 00:00; Go weekdays start at Sunday
		daysBack := (int(t.Weekday()) + 6) % 7
		return time.Date(t.Year(), t.Month(), t.Day()-daysBack, 0, 0, 0, 0, loc)
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}
}

// BucketNext returns the start of the bucket following the one starting at t.
func BucketNext(t time.Time, g Granularity) time.Time {
	switch g {
	case GranularityWeek:
		return t.AddDate(0, 0, 7)
	case GranularityMonth:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// BucketKey is the date key of the bucket start for t in loc.
// For GranularityDay it equals DateBucketKey.
func BucketKey(t time.Time, loc *time.Location, g Granularity) string {
	if loc == nil {
		loc = time.UTC
	}
	return BucketStart(t.In(loc), g).Format(dateLayout)
}
