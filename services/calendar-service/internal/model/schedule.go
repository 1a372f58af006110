package model

import "time"

// ScheduleItem is one busy entry reported by the provider. Start and End are wall-clock
// strings in the time zone requested from the provider.
type ScheduleItem struct {
	Start  string
	End    string
	Status string
}

// ScheduleInformation is one owner's section of a provider page.
type ScheduleInformation struct {
	ScheduleID string
	Items      []ScheduleItem
	// Error is set when the provider could not resolve this schedule.
	Error string
}

// SchedulePage is one page of a getSchedule response. NextToken is empty on the last page.
type SchedulePage struct {
	Schedules []ScheduleInformation
	NextToken string
}

type FetchStatus string

const (
	FetchComplete FetchStatus = "complete"
	FetchPartial  FetchStatus = "partial"
	FetchFailed   FetchStatus = "failed"
)

// RangeFailure records a sub-range whose fetch chain stopped on a provider error.
type RangeFailure struct {
	Range TimeRange
	Err   error
}

// ScheduleResult groups the pages fetched for every requested sub-range.
type ScheduleResult struct {
	Pages    map[TimeRange][]SchedulePage
	Ranges   []TimeRange
	Failures []RangeFailure
}

func (r *ScheduleResult) Status() FetchStatus {
	switch {
	case r == nil || len(r.Ranges) == 0:
		return FetchFailed
	case len(r.Failures) == 0:
		return FetchComplete
	case len(r.Failures) >= len(r.Ranges):
		return FetchFailed
	default:
		return FetchPartial
	}
}

// TimeSlotsResponse is the unit returned to callers.
type TimeSlotsResponse struct {
	Slots30      []time.Time   `json:"slots30"`
	Slots60      []time.Time   `json:"slots60"`
	Appointments []Appointment `json:"appointments"`
	Status       FetchStatus   `json:"status"`
}
