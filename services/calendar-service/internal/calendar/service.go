package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/availability"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/events"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/graph"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/model"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/schedule"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrProviderUnavailable means no usable schedule data came back for the request.
	ErrProviderUnavailable = errors.New("schedule provider unavailable")
)

type Fetcher interface {
	FetchAll(ctx context.Context, owners []string, start, end time.Time) (*model.ScheduleResult, error)
}

type EventStore interface {
	CreateEvent(ctx context.Context, owner string, event graph.Event) (string, error)
	DeleteEvent(ctx context.Context, owner, eventID string) error
}

type Config struct {
	// Owners is used when a request names none.
	Owners []string
	Mode   availability.Mode
	// DevMode routes every read and write to DevOwnerEmail.
	DevMode       bool
	DevOwnerEmail string
}

type Service struct {
	cfg       Config
	fetcher   Fetcher
	store     EventStore
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(cfg Config, fetcher Fetcher, store EventStore, publisher events.Publisher, logger *slog.Logger) (*Service, error) {
	if cfg.DevMode && strings.TrimSpace(cfg.DevOwnerEmail) == "" {
		return nil, errors.New("dev mode requires a development owner email")
	}
	if !cfg.DevMode && len(cfg.Owners) == 0 {
		return nil, errors.New("at least one default owner is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = availability.ModeUnion
	}
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Service{cfg: cfg, fetcher: fetcher, store: store, publisher: publisher, logger: logger}, nil
}

// NewAppointment describes an event to create on an owner's calendar.
type NewAppointment struct {
	Subject   string
	Body      string
	Start     time.Time
	End       time.Time
	Attendees []string
}

// GetFreeSlots returns the 30 and 60 minute slot starts in [start, end] for owners.
// Owners whose schedule could not be read are left out and the response is marked partial.
func (s *Service) GetFreeSlots(ctx context.Context, owners []string, start, end time.Time) (model.TimeSlotsResponse, error) {
	start, end = start.UTC(), end.UTC()
	if err := model.NewTimeRange(start, end).Validate(); err != nil {
		return model.TimeSlotsResponse{}, err
	}
	owners = s.resolveOwners(owners)

	result, err := s.fetcher.FetchAll(ctx, owners, start, end)
	if err != nil {
		return model.TimeSlotsResponse{}, err
	}
	if err := unavailable(result); err != nil {
		return model.TimeSlotsResponse{}, err
	}

	byOwner, failed, err := schedule.GroupByOwner(result)
	if err != nil {
		return model.TimeSlotsResponse{}, err
	}
	for owner, msg := range failed {
		s.logger.WarnContext(ctx, "owner schedule unavailable", "owner", owner, "err", msg)
	}
	if len(byOwner) == 0 && len(failed) > 0 {
		return model.TimeSlotsResponse{}, fmt.Errorf("%w: no owner schedule could be read", ErrProviderUnavailable)
	}

	resp := availability.Aggregate(start, end, byOwner, s.cfg.Mode)
	resp.Status = result.Status()
	if len(failed) > 0 && resp.Status == model.FetchComplete {
		resp.Status = model.FetchPartial
	}
	return resp, nil
}

// CheckSlotFree reports whether no owner has an appointment overlapping [start, end).
// A slot is only reported free when every schedule was read.
func (s *Service) CheckSlotFree(ctx context.Context, owners []string, start, end time.Time) (bool, model.FetchStatus, error) {
	start, end = start.UTC(), end.UTC()
	if err := model.NewTimeRange(start, end).Validate(); err != nil {
		return false, model.FetchFailed, err
	}
	owners = s.resolveOwners(owners)

	result, err := s.fetcher.FetchAll(ctx, owners, start, end)
	if err != nil {
		return false, model.FetchFailed, err
	}
	if err := unavailable(result); err != nil {
		return false, model.FetchFailed, err
	}

	byOwner, failed, err := schedule.GroupByOwner(result)
	if err != nil {
		return false, model.FetchFailed, err
	}
	status := result.Status()
	if len(failed) > 0 && status == model.FetchComplete {
		status = model.FetchPartial
	}

	var appts []model.Appointment
	for _, list := range byOwner {
		appts = append(appts, list...)
	}
	free := availability.IsAvailable(appts, start, end)
	return free && status == model.FetchComplete, status, nil
}

// CreateAppointment adds an event to owner's calendar and returns its provider id.
func (s *Service) CreateAppointment(ctx context.Context, owner string, appt NewAppointment) (string, error) {
	owner = s.resolveOwner(owner)
	if owner == "" {
		return "", fmt.Errorf("%w: owner email is required", ErrInvalidArgument)
	}
	appt.Start, appt.End = appt.Start.UTC(), appt.End.UTC()
	if !appt.Start.Before(appt.End) {
		return "", fmt.Errorf("%w: appointment must end after it starts", ErrInvalidArgument)
	}

	attendees := make([]string, 0, len(appt.Attendees))
	for _, a := range appt.Attendees {
		if s.cfg.DevMode {
			a = s.cfg.DevOwnerEmail
		}
		if a = strings.TrimSpace(a); a != "" {
			attendees = append(attendees, a)
		}
	}

	id, err := s.store.CreateEvent(ctx, owner, toEvent(appt, attendees))
	if err != nil {
		return "", fmt.Errorf("create appointment: %w", err)
	}

	s.publish(ctx, events.AppointmentCreated, id, events.AppointmentCreatedData{
		AppointmentID: id,
		OwnerEmail:    owner,
		Subject:       appt.Subject,
		Start:         appt.Start,
		End:           appt.End,
		Attendees:     attendees,
	})
	return id, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, owner, appointmentID string) error {
	appointmentID = strings.TrimSpace(appointmentID)
	if appointmentID == "" {
		return fmt.Errorf("%w: appointment id is required", ErrInvalidArgument)
	}
	owner = s.resolveOwner(owner)
	if owner == "" {
		return fmt.Errorf("%w: owner email is required", ErrInvalidArgument)
	}

	if err := s.store.DeleteEvent(ctx, owner, appointmentID); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	s.publish(ctx, events.AppointmentDeleted, appointmentID, events.AppointmentDeletedData{
		AppointmentID: appointmentID,
		OwnerEmail:    owner,
	})
	return nil
}

func (s *Service) resolveOwners(owners []string) []string {
	if s.cfg.DevMode {
		return []string{s.cfg.DevOwnerEmail}
	}
	out := make([]string, 0, len(owners))
	seen := make(map[string]struct{}, len(owners))
	for _, o := range owners {
		o = strings.TrimSpace(o)
		key := strings.ToLower(o)
		if _, dup := seen[key]; o == "" || dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, o)
	}
	if len(out) == 0 {
		return s.cfg.Owners
	}
	return out
}

func (s *Service) resolveOwner(owner string) string {
	if s.cfg.DevMode {
		return s.cfg.DevOwnerEmail
	}
	return strings.TrimSpace(owner)
}

// publish is best effort; the calendar write already happened.
func (s *Service) publish(ctx context.Context, eventType, key string, data any) {
	if err := s.publisher.Publish(ctx, eventType, key, data); err != nil {
		s.logger.WarnContext(ctx, "event publish failed", "event_type", eventType, "key", key, "err", err)
	}
}

func unavailable(result *model.ScheduleResult) error {
	if result.Status() != model.FetchFailed {
		return nil
	}
	errs := make([]error, 0, len(result.Failures))
	for _, f := range result.Failures {
		errs = append(errs, f.Err)
	}
	return fmt.Errorf("%w: %w", ErrProviderUnavailable, errors.Join(errs...))
}

func toEvent(appt NewAppointment, attendees []string) graph.Event {
	ev := graph.Event{
		Subject: appt.Subject,
		Start:   graph.UTCDateTime(appt.Start),
		End:     graph.UTCDateTime(appt.End),
	}
	if appt.Body != "" {
		ev.Body = &graph.ItemBody{ContentType: "HTML", Content: appt.Body}
	}
	for _, a := range attendees {
		ev.Attendees = append(ev.Attendees, graph.Attendee{
			EmailAddress: graph.EmailAddress{Address: a},
			Type:         "required",
		})
	}
	return ev
}
