package availability

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/model"
)

// Mode selects how per-owner slot sets are combined.
type Mode string

const (
	// ModeUnion keeps a slot when at least one owner is free.
	ModeUnion Mode = "union"
	// ModeIntersection keeps a slot only when every owner is free.
	ModeIntersection Mode = "intersection"
)

func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeUnion:
		return ModeUnion, nil
	case ModeIntersection:
		return ModeIntersection, nil
	default:
		return "", fmt.Errorf("unknown aggregation mode %q", raw)
	}
}

// Aggregate runs Calculate for every owner over the same range and merges the results.
// Appointments of all owners are concatenated in owner order.
func Aggregate(queryStart, queryEnd time.Time, byOwner map[string][]model.Appointment, mode Mode) model.TimeSlotsResponse {
	owners := make([]string, 0, len(byOwner))
	for owner := range byOwner {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	resp := model.TimeSlotsResponse{
		Slots30:      []time.Time{},
		Slots60:      []time.Time{},
		Appointments: []model.Appointment{},
	}
	if len(owners) == 0 {
		return resp
	}

	per := make([]Slots, 0, len(owners))
	for _, owner := range owners {
		slots := Calculate(queryStart, queryEnd, byOwner[owner])
		per = append(per, slots)
		resp.Appointments = append(resp.Appointments, slots.Appointments...)
	}

	short := make([][]time.Time, len(per))
	long := make([][]time.Time, len(per))
	for i, s := range per {
		short[i], long[i] = s.Slots30, s.Slots60
	}
	if mode == ModeIntersection {
		resp.Slots30 = intersect(short)
		resp.Slots60 = intersect(long)
	} else {
		resp.Slots30 = union(short)
		resp.Slots60 = union(long)
	}
	return resp
}

func union(sets [][]time.Time) []time.Time {
	var all []time.Time
	for _, s := range sets {
		all = append(all, s...)
	}
	return model.SortedTimes(all)
}

func intersect(sets [][]time.Time) []time.Time {
	counts := make(map[int64]int)
	for _, s := range sets {
		for _, t := range model.SortedTimes(s) {
			counts[t.UnixNano()]++
		}
	}
	var out []time.Time
	for key, n := range counts {
		if n == len(sets) {
			out = append(out, time.Unix(0, key).UTC())
		}
	}
	return model.SortedTimes(out)
}
