package gogoblin

import "time"

// TimeRangeKind names a preset reporting window.
type TimeRangeKind string

const (
	RangeToday  TimeRangeKind = "today"
	RangeWeek   TimeRangeKind = "week"
	RangeMonth  TimeRangeKind = "month"
	RangeYear   TimeRangeKind = "year"
	RangeCustom TimeRangeKind = "custom"
)

const day = 24 * time.Hour

// ResolveTimeRange turns a preset into concrete bounds relative to now, in
// UTC. Unknown kinds fall back to the last week. For RangeCustom, nil bounds
// default to the start of today and now.
func ResolveTimeRange(kind TimeRangeKind, now time.Time, customStart, customEnd *time.Time) (time.Time, time.Time) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch kind {
	case RangeToday:
		return today, today.Add(day - time.Millisecond)
	case RangeWeek:
		return today.Add(-7 * day), now
	case RangeMonth:
		return today.Add(-30 * day), now
	case RangeYear:
		return today.Add(-365 * day), now
	case RangeCustom:
		start, end := today, now
		if customStart != nil {
			start = customStart.UTC()
		}
		if customEnd != nil {
			end = customEnd.UTC()
		}
		return start, end
	default:
		return today.Add(-7 * day), now
	}
}
