package graph

import (
	"time"

	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/model"
)

// Wire formats of the Microsoft Graph calendar endpoints used by this service.

const graphDateTimeLayout = "2006-01-02T15:04:05.0000000"

type DateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// UTCDateTime renders t in the provider's wall-clock format with a UTC zone.
func UTCDateTime(t time.Time) DateTimeTimeZone {
	return DateTimeTimeZone{DateTime: t.UTC().Format(graphDateTimeLayout), TimeZone: "UTC"}
}

type getScheduleRequest struct {
	Schedules                []string         `json:"schedules"`
	StartTime                DateTimeTimeZone `json:"startTime"`
	EndTime                  DateTimeTimeZone `json:"endTime"`
	AvailabilityViewInterval int              `json:"availabilityViewInterval,omitempty"`
}

type scheduleItem struct {
	Status    string           `json:"status"`
	Subject   string           `json:"subject,omitempty"`
	IsPrivate bool             `json:"isPrivate,omitempty"`
	Start     DateTimeTimeZone `json:"start"`
	End       DateTimeTimeZone `json:"end"`
}

type freeBusyError struct {
	Message      string `json:"message"`
	ResponseCode string `json:"responseCode"`
}

type scheduleInformation struct {
	ScheduleID    string         `json:"scheduleId"`
	ScheduleItems []scheduleItem `json:"scheduleItems"`
	Error         *freeBusyError `json:"error,omitempty"`
}

type getScheduleResponse struct {
	Value    []scheduleInformation `json:"value"`
	NextLink string                `json:"@odata.nextLink,omitempty"`
}

func (r getScheduleResponse) toPage() model.SchedulePage {
	page := model.SchedulePage{NextToken: r.NextLink}
	for _, info := range r.Value {
		out := model.ScheduleInformation{ScheduleID: info.ScheduleID}
		if info.Error != nil {
			out.Error = info.Error.Message
			if out.Error == "" {
				out.Error = info.Error.ResponseCode
			}
		}
		for _, item := range info.ScheduleItems {
			out.Items = append(out.Items, model.ScheduleItem{
				Start:  item.Start.DateTime,
				End:    item.End.DateTime,
				Status: item.Status,
			})
		}
		page.Schedules = append(page.Schedules, out)
	}
	return page
}

type EmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type Attendee struct {
	EmailAddress EmailAddress `json:"emailAddress"`
	Type         string       `json:"type,omitempty"`
}

type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Event is the subset of a calendar event this service writes.
type Event struct {
	ID        string           `json:"id,omitempty"`
	Subject   string           `json:"subject"`
	Body      *ItemBody        `json:"body,omitempty"`
	Start     DateTimeTimeZone `json:"start"`
	End       DateTimeTimeZone `json:"end"`
	Attendees []Attendee       `json:"attendees,omitempty"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
