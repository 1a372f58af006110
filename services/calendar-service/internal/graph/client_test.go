package graph

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/model"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/schedule"
)

func TestGetScheduleSendsUTCQueryAndFollowsNextLink(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("Prefer"); got != `outlook.timezone="UTC"` {
			t.Errorf("Prefer = %q", got)
		}
		switch r.URL.Path {
		case "/users/a@example.com/calendar/getSchedule":
			var req getScheduleRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode: %v", err)
			}
			if len(req.Schedules) != 2 || req.StartTime.DateTime != "2024-01-01T09:00:00.0000000" || req.StartTime.TimeZone != "UTC" {
				t.Errorf("unexpected request: %+v", req)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"value": []map[string]any{{
					"scheduleId": "a@example.com",
					"scheduleItems": []map[string]any{{
						"status": "busy",
						"start":  map[string]string{"dateTime": "2024-01-01T10:00:00.0000000", "timeZone": "UTC"},
						"end":    map[string]string{"dateTime": "2024-01-01T11:00:00.0000000", "timeZone": "UTC"},
					}},
				}, {
					"scheduleId": "b@example.com",
					"error":      map[string]string{"message": "mailbox not found", "responseCode": "ErrorMailboxNotFound"},
				}},
				"@odata.nextLink": srv.URL + "/next/1",
			})
		case "/next/1":
			_ = json.NewEncoder(w).Encode(map[string]any{"value": []map[string]any{{"scheduleId": "a@example.com"}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	page, err := c.GetSchedule(context.Background(), schedule.Query{
		Owners:   []string{"a@example.com", "b@example.com"},
		Range:    model.NewTimeRange(start, start.Add(8*time.Hour)),
		TimeZone: schedule.TimeZoneUTC,
	})
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if len(page.Schedules) != 2 {
		t.Fatalf("expected 2 schedules, got %d", len(page.Schedules))
	}
	if page.Schedules[0].Items[0].Start != "2024-01-01T10:00:00.0000000" {
		t.Fatalf("unexpected item: %+v", page.Schedules[0].Items[0])
	}
	if page.Schedules[1].Error != "mailbox not found" {
		t.Fatalf("expected schedule error, got %q", page.Schedules[1].Error)
	}
	if page.NextToken != srv.URL+"/next/1" {
		t.Fatalf("next token = %q", page.NextToken)
	}

	next, err := c.NextPage(context.Background(), page.NextToken)
	if err != nil {
		t.Fatalf("next page: %v", err)
	}
	if next.NextToken != "" || len(next.Schedules) != 1 {
		t.Fatalf("unexpected next page: %+v", next)
	}
}

func TestNextPageRejectsForeignHost(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	if _, err := c.NextPage(context.Background(), "http://evil.example.com/steal"); err == nil {
		t.Fatalf("expected error for foreign next link")
	}
}

func TestProviderErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":"ErrorItemNotFound","message":"gone"}}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	err := c.DeleteEvent(context.Background(), "a@example.com", "evt-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !strings.Contains(err.Error(), "ErrorItemNotFound") {
		t.Fatalf("error should carry provider code: %v", err)
	}
}

func TestCreateAndDeleteEvent(t *testing.T) {
	var deleted atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/users/owner@example.com/calendar/events":
			var ev Event
			if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
				t.Errorf("decode: %v", err)
			}
			if ev.Subject != "Consult" || len(ev.Attendees) != 1 || ev.Start.TimeZone != "UTC" {
				t.Errorf("unexpected event: %+v", ev)
			}
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "evt-42"})
		case r.Method == http.MethodDelete && r.URL.Path == "/users/owner@example.com/calendar/events/evt-42":
			deleted.Store(true)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	id, err := c.CreateEvent(context.Background(), "owner@example.com", Event{
		Subject:   "Consult",
		Start:     UTCDateTime(start),
		End:       UTCDateTime(start.Add(time.Hour)),
		Attendees: []Attendee{{EmailAddress: EmailAddress{Address: "guest@example.com"}, Type: "required"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "evt-42" {
		t.Fatalf("id = %q", id)
	}
	if err := c.DeleteEvent(context.Background(), "owner@example.com", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted.Load() {
		t.Fatalf("delete not received")
	}
}

func TestClientCredentialsTokenIsAttached(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			tokenCalls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:      srv.URL,
		ClientID:     "client",
		ClientSecret: "secret",
		TokenURL:     srv.URL + "/token",
	})
	for i := 0; i < 2; i++ {
		if err := c.DeleteEvent(context.Background(), "owner@example.com", "evt"); err != nil {
			t.Fatalf("delete: %v", err)
		}
	}
	if tokenCalls.Load() != 1 {
		t.Fatalf("expected cached token, got %d token calls", tokenCalls.Load())
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1", RatePerSecond: 0.001})
	// Drain the single burst token.
	c.limiter.Allow()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	// The next token is due long after the deadline, so the wait fails before it expires.
	err := c.DeleteEvent(ctx, "owner@example.com", "evt")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if ctx.Err() != nil {
		t.Fatalf("expected the limiter to fail before the deadline")
	}
}
