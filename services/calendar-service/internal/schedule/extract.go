package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/model"
)

var ErrMalformedTime = errors.New("malformed schedule time")

// Wall-clock layouts the provider uses; the zone is implied by the query's time zone hint.
var wallClockLayouts = []string{
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseWallClock reads a provider time string as UTC. Strings carrying an explicit offset are
// converted to UTC instead.
func ParseWallClock(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range wallClockLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTime, raw)
}

// ExtractPage converts every schedule item of the page into an appointment tagged with its owner.
// Schedules the provider reported an error for carry no items and are skipped.
func ExtractPage(page model.SchedulePage) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, info := range page.Schedules {
		appts, err := extractSchedule(info)
		if err != nil {
			return nil, err
		}
		out = append(out, appts...)
	}
	out = model.DedupAppointments(out)
	model.SortAppointments(out)
	return out, nil
}

// ExtractResult flattens the appointments of every page of every sub-range.
func ExtractResult(result *model.ScheduleResult) ([]model.Appointment, error) {
	if result == nil {
		return nil, nil
	}
	var out []model.Appointment
	for _, r := range result.Ranges {
		for _, page := range result.Pages[r] {
			appts, err := ExtractPage(page)
			if err != nil {
				return nil, err
			}
			out = append(out, appts...)
		}
	}
	out = model.DedupAppointments(out)
	model.SortAppointments(out)
	return out, nil
}

// GroupByOwner collects appointments per owner across all pages. An owner listed without items
// is present with an empty list; owners whose schedule failed are returned in failed.
func GroupByOwner(result *model.ScheduleResult) (byOwner map[string][]model.Appointment, failed map[string]string, err error) {
	byOwner = map[string][]model.Appointment{}
	failed = map[string]string{}
	if result == nil {
		return byOwner, failed, nil
	}
	for _, r := range result.Ranges {
		for _, page := range result.Pages[r] {
			for _, info := range page.Schedules {
				if info.Error != "" {
					failed[info.ScheduleID] = info.Error
					continue
				}
				appts, err := extractSchedule(info)
				if err != nil {
					return nil, nil, err
				}
				byOwner[info.ScheduleID] = append(byOwner[info.ScheduleID], appts...)
			}
		}
	}
	for owner, appts := range byOwner {
		appts = model.DedupAppointments(appts)
		model.SortAppointments(appts)
		byOwner[owner] = appts
	}
	return byOwner, failed, nil
}

func extractSchedule(info model.ScheduleInformation) ([]model.Appointment, error) {
	if info.Error != "" {
		return nil, nil
	}
	out := make([]model.Appointment, 0, len(info.Items))
	for _, item := range info.Items {
		start, err := ParseWallClock(item.Start)
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", info.ScheduleID, err)
		}
		end, err := ParseWallClock(item.End)
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", info.ScheduleID, err)
		}
		out = append(out, model.Appointment{
			ID:         uuid.NewString(),
			TimeRange:  model.TimeRange{Start: start, End: end},
			OwnerEmail: info.ScheduleID,
		})
	}
	return out, nil
}
