package availability

import (
	"time"

	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/model"
)

// DefaultMaxSpanDays is the longest window the calendar provider accepts in one schedule query.
const DefaultMaxSpanDays = 62

// Partition splits [start, end] into contiguous sub-ranges of maxSpanDays days; the last one
// covers the remainder. At least one range is always returned, also when start equals end.
func Partition(start, end time.Time, maxSpanDays int) []model.TimeRange {
	if maxSpanDays <= 0 {
		maxSpanDays = DefaultMaxSpanDays
	}
	start, end = start.UTC(), end.UTC()

	var ranges []model.TimeRange
	cursor := start
	for end.Sub(cursor) > time.Duration(maxSpanDays)*24*time.Hour {
		next := cursor.AddDate(0, 0, maxSpanDays)
		ranges = append(ranges, model.TimeRange{Start: cursor, End: next})
		cursor = next
	}
	return append(ranges, model.TimeRange{Start: cursor, End: end})
}
