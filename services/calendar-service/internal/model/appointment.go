package model

import (
	"sort"
	"time"
)

// Appointment is a busy interval of one owner. ID is generated per extraction and is only
// meaningful within a single request.
type Appointment struct {
	ID         string    `json:"id"`
	TimeRange  TimeRange `json:"time_range"`
	OwnerEmail string    `json:"owner_email,omitempty"`
}

// SortAppointments orders by range start, then id, so output is deterministic.
func SortAppointments(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if !appts[i].TimeRange.Start.Equal(appts[j].TimeRange.Start) {
			return appts[i].TimeRange.Start.Before(appts[j].TimeRange.Start)
		}
		return appts[i].ID < appts[j].ID
	})
}

// DedupAppointments drops repeated ids, keeping the first occurrence.
func DedupAppointments(appts []Appointment) []Appointment {
	seen := make(map[string]struct{}, len(appts))
	out := make([]Appointment, 0, len(appts))
	for _, a := range appts {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}

// SortedTimes returns the distinct instants of in, ascending.
func SortedTimes(in []time.Time) []time.Time {
	seen := make(map[int64]struct{}, len(in))
	out := make([]time.Time, 0, len(in))
	for _, t := range in {
		key := t.UnixNano()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t.UTC())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
