package availability

import (
	"time"

	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/model"
)

const (
	SlotStep      = 15 * time.Minute
	ShortDuration = 30 * time.Minute
	LongDuration  = 60 * time.Minute
)

// Slots is the free-slot view of a single owner.
type Slots struct {
	Slots30      []time.Time
	Slots60      []time.Time
	Appointments []model.Appointment
}

// Calculate returns the 30 and 60 minute slot starts within [queryStart, queryEnd] that do not
// overlap any of the owner's appointments. Candidates start at queryStart and advance by
// SlotStep; a candidate is considered only while its 30 minute window fits in the range, and it
// is a 60 minute slot only when that window fits as well. Every 60 minute slot is also a
// 30 minute slot.
func Calculate(queryStart, queryEnd time.Time, appointments []model.Appointment) Slots {
	queryStart, queryEnd = queryStart.UTC(), queryEnd.UTC()
	out := Slots{
		Slots30:      []time.Time{},
		Slots60:      []time.Time{},
		Appointments: appointments,
	}

	for t := queryStart; !t.Add(ShortDuration).After(queryEnd); t = t.Add(SlotStep) {
		if !IsAvailable(appointments, t, t.Add(ShortDuration)) {
			continue
		}
		out.Slots30 = append(out.Slots30, t)

		end60 := t.Add(LongDuration)
		if !end60.After(queryEnd) && IsAvailable(appointments, t, end60) {
			out.Slots60 = append(out.Slots60, t)
		}
	}
	return out
}

// IsAvailable reports whether [start, end) is free of every appointment.
func IsAvailable(appointments []model.Appointment, start, end time.Time) bool {
	for _, a := range appointments {
		// Half-open intervals: [start,end) overlaps [a.Start,a.End) iff start < a.End && a.Start < end.
		if a.TimeRange.Overlaps(start, end) {
			return false
		}
	}
	return true
}
