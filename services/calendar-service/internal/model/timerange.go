package model

import (
	"errors"
	"time"
)

var ErrInvalidRange = errors.New("range start must not be after its end")

// TimeRange is a UTC interval. It is comparable and used as a map key.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeRange normalizes both ends to UTC. It does not validate ordering; see Validate.
func NewTimeRange(start, end time.Time) TimeRange {
	return TimeRange{Start: start.UTC(), End: end.UTC()}
}

func (r TimeRange) Validate() error {
	if r.Start.After(r.End) {
		return ErrInvalidRange
	}
	return nil
}

func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Overlaps reports whether the half-open ranges [r.Start, r.End) and [start, end) intersect.
func (r TimeRange) Overlaps(start, end time.Time) bool {
	return r.Start.Before(end) && start.Before(r.End)
}
