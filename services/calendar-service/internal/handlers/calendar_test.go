package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/calendar"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/graph"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/model"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/schedule"
)

type fakeCalendar struct {
	owners     []string
	start, end time.Time
	slots      model.TimeSlotsResponse
	free       bool
	created    calendar.NewAppointment
	owner      string
	deletedID  string
	err        error
}

func (f *fakeCalendar) GetFreeSlots(_ context.Context, owners []string, start, end time.Time) (model.TimeSlotsResponse, error) {
	f.owners, f.start, f.end = owners, start, end
	return f.slots, f.err
}

func (f *fakeCalendar) CheckSlotFree(_ context.Context, owners []string, start, end time.Time) (bool, model.FetchStatus, error) {
	f.owners, f.start, f.end = owners, start, end
	return f.free, model.FetchComplete, f.err
}

func (f *fakeCalendar) CreateAppointment(_ context.Context, owner string, appt calendar.NewAppointment) (string, error) {
	f.owner, f.created = owner, appt
	if f.err != nil {
		return "", f.err
	}
	return "evt-1", nil
}

func (f *fakeCalendar) DeleteAppointment(_ context.Context, owner, id string) error {
	f.owner, f.deletedID = owner, id
	return f.err
}

func newMux(svc Calendar, protect func(http.Handler) http.Handler) *http.ServeMux {
	if protect == nil {
		protect = func(h http.Handler) http.Handler { return h }
	}
	mux := http.NewServeMux()
	NewCalendarHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(mux, protect)
	return mux
}

func TestFreeSlotsReturnsResponse(t *testing.T) {
	nine := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	svc := &fakeCalendar{slots: model.TimeSlotsResponse{
		Slots30:      []time.Time{nine},
		Slots60:      []time.Time{},
		Appointments: []model.Appointment{},
		Status:       model.FetchComplete,
	}}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/getFreeSlots?start=2024-01-01T09:00:00&end=2024-01-01T10:00:00Z&owners=a@example.com,b@example.com", nil)
	newMux(svc, nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if !svc.start.Equal(nine) || !svc.end.Equal(nine.Add(time.Hour)) {
		t.Fatalf("unexpected range %s - %s", svc.start, svc.end)
	}
	if len(svc.owners) != 2 {
		t.Fatalf("owners = %v", svc.owners)
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"slots30", "slots60", "appointments", "status"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("missing %q in %s", key, rr.Body.String())
		}
	}
	if string(body["slots30"]) != `["2024-01-01T09:00:00Z"]` {
		t.Fatalf("slots30 = %s", body["slots30"])
	}
}

func TestFreeSlotsStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "reversed", err: model.ErrInvalidRange, want: http.StatusBadRequest},
		{name: "invalid argument", err: fmt.Errorf("%w: owner", calendar.ErrInvalidArgument), want: http.StatusBadRequest},
		{name: "provider down", err: fmt.Errorf("%w: 503", calendar.ErrProviderUnavailable), want: http.StatusBadGateway},
		{name: "malformed", err: fmt.Errorf("schedule a: %w", schedule.ErrMalformedTime), want: http.StatusBadGateway},
		{name: "timeout", err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/getFreeSlots?start=2024-01-01&end=2024-01-02", nil)
			newMux(&fakeCalendar{err: tc.err}, nil).ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestFreeSlotsBadInput(t *testing.T) {
	for _, target := range []string{
		"/getFreeSlots?end=2024-01-02",
		"/getFreeSlots?start=yesterday&end=2024-01-02",
		"/getFreeSlots?start=2024-01-01",
	} {
		rr := httptest.NewRecorder()
		newMux(&fakeCalendar{}, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", target, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	newMux(&fakeCalendar{}, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/getFreeSlots", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST status = %d", rr.Code)
	}
}

func TestCheckSlot(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/checkSlot?start=2024-01-01T10:00&end=2024-01-01T11:00", nil)
	newMux(&fakeCalendar{free: true}, nil).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp checkSlotResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Free || resp.Status != model.FetchComplete {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCreateAppointment(t *testing.T) {
	svc := &fakeCalendar{}
	body := `{"owner_email":"o@example.com","subject":"Consult","start":"2024-01-01T10:00:00Z","end":"2024-01-01T11:00:00Z","attendees":["g@example.com"]}`
	rr := httptest.NewRecorder()
	newMux(svc, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(body)))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if strings.TrimSpace(rr.Body.String()) != `{"id":"evt-1"}` {
		t.Fatalf("body = %s", rr.Body.String())
	}
	if svc.owner != "o@example.com" || svc.created.Subject != "Consult" || len(svc.created.Attendees) != 1 {
		t.Fatalf("unexpected call: owner=%s appt=%+v", svc.owner, svc.created)
	}

	rr = httptest.NewRecorder()
	newMux(svc, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader("{")))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid json: status = %d", rr.Code)
	}
}

func TestDeleteAppointment(t *testing.T) {
	svc := &fakeCalendar{}
	rr := httptest.NewRecorder()
	newMux(svc, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/appointments/evt-9?owner=o@example.com", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	if svc.deletedID != "evt-9" || svc.owner != "o@example.com" {
		t.Fatalf("unexpected call: id=%s owner=%s", svc.deletedID, svc.owner)
	}

	notFound := &fakeCalendar{err: fmt.Errorf("delete appointment: %w", &graph.Error{StatusCode: http.StatusNotFound})}
	rr = httptest.NewRecorder()
	newMux(notFound, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/appointments/evt-9?owner=o@example.com", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("not found: status = %d", rr.Code)
	}

	upstream := &fakeCalendar{err: &graph.Error{StatusCode: http.StatusForbidden}}
	rr = httptest.NewRecorder()
	newMux(upstream, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/appointments/evt-9", nil))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("provider error: status = %d", rr.Code)
	}
}

func TestWriteEndpointsAreProtected(t *testing.T) {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	mux := newMux(&fakeCalendar{}, deny)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader("{}")),
		httptest.NewRequest(http.MethodDelete, "/appointments/x", nil),
	} {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: status = %d", req.Method, req.URL.Path, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/getFreeSlots?start=2024-01-01&end=2024-01-02", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("read endpoint should stay open, status = %d", rr.Code)
	}
}
