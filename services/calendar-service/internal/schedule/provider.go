package schedule

import (
	"context"

	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/model"
)

// TimeZoneUTC is the time zone hint sent with every schedule query; extraction relies on it.
const TimeZoneUTC = "UTC"

type Query struct {
	Owners   []string
	Range    model.TimeRange
	TimeZone string
}

// Provider is the calendar backend's paginated free/busy surface.
type Provider interface {
	GetSchedule(ctx context.Context, q Query) (model.SchedulePage, error)
	NextPage(ctx context.Context, token string) (model.SchedulePage, error)
}
