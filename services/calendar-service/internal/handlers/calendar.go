package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/webcalendar/libs/httpx"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/calendar"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/graph"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/model"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/schedule"
)

type Calendar interface {
	GetFreeSlots(ctx context.Context, owners []string, start, end time.Time) (model.TimeSlotsResponse, error)
	CheckSlotFree(ctx context.Context, owners []string, start, end time.Time) (bool, model.FetchStatus, error)
	CreateAppointment(ctx context.Context, owner string, appt calendar.NewAppointment) (string, error)
	DeleteAppointment(ctx context.Context, owner, appointmentID string) error
}

type CalendarHandler struct {
	svc    Calendar
	logger *slog.Logger
}

func NewCalendarHandler(svc Calendar, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{svc: svc, logger: logger}
}

// Register mounts the read endpoints directly and the write endpoints behind protect.
func (h *CalendarHandler) Register(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.HandleFunc("/getFreeSlots", h.FreeSlots)
	mux.HandleFunc("/checkSlot", h.CheckSlot)
	mux.Handle("POST /appointments", protect(http.HandlerFunc(h.CreateAppointment)))
	mux.Handle("DELETE /appointments/{id}", protect(http.HandlerFunc(h.DeleteAppointment)))
}

type checkSlotResponse struct {
	Free   bool              `json:"free"`
	Status model.FetchStatus `json:"status"`
}

type createAppointmentRequest struct {
	OwnerEmail string   `json:"owner_email"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Attendees  []string `json:"attendees"`
}

type createAppointmentResponse struct {
	ID string `json:"id"`
}

func (h *CalendarHandler) FreeSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start, end, ok := queryRange(w, r)
	if !ok {
		return
	}

	resp, err := h.svc.GetFreeSlots(r.Context(), queryOwners(r), start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CalendarHandler) CheckSlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start, end, ok := queryRange(w, r)
	if !ok {
		return
	}

	free, status, err := h.svc.CheckSlotFree(r.Context(), queryOwners(r), start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkSlotResponse{Free: free, Status: status})
}

func (h *CalendarHandler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	start, err := model.ParseInstant(req.Start)
	if err != nil {
		http.Error(w, "invalid start", http.StatusBadRequest)
		return
	}
	end, err := model.ParseInstant(req.End)
	if err != nil {
		http.Error(w, "invalid end", http.StatusBadRequest)
		return
	}

	id, err := h.svc.CreateAppointment(r.Context(), req.OwnerEmail, calendar.NewAppointment{
		Subject:   req.Subject,
		Body:      req.Body,
		Start:     start,
		End:       end,
		Attendees: req.Attendees,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createAppointmentResponse{ID: id})
}

func (h *CalendarHandler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	if err := h.svc.DeleteAppointment(r.Context(), owner, r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CalendarHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var gerr *graph.Error
	switch {
	case errors.Is(err, model.ErrInvalidRange), errors.Is(err, calendar.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.WarnContext(ctx, "request timed out", "request_id", httpx.RequestIDFromContext(ctx))
		http.Error(w, "request timed out", http.StatusGatewayTimeout)
	case errors.Is(err, context.Canceled):
		// The client went away; nobody reads the answer.
		h.logger.DebugContext(ctx, "request cancelled", "request_id", httpx.RequestIDFromContext(ctx))
	case errors.Is(err, schedule.ErrMalformedTime):
		h.logger.ErrorContext(ctx, "invalid provider data", "err", err, "request_id", httpx.RequestIDFromContext(ctx))
		http.Error(w, "invalid provider data", http.StatusBadGateway)
	case errors.Is(err, calendar.ErrProviderUnavailable):
		h.logger.ErrorContext(ctx, "schedule provider unavailable", "err", err, "request_id", httpx.RequestIDFromContext(ctx))
		http.Error(w, "schedule provider unavailable", http.StatusBadGateway)
	case graph.IsNotFound(err):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case errors.As(err, &gerr):
		h.logger.ErrorContext(ctx, "calendar provider error", "err", err, "request_id", httpx.RequestIDFromContext(ctx))
		http.Error(w, "calendar provider error", http.StatusBadGateway)
	default:
		h.logger.ErrorContext(ctx, "request failed", "err", err, "request_id", httpx.RequestIDFromContext(ctx))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func queryRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	start, err := model.ParseInstant(q.Get("start"))
	if err != nil {
		http.Error(w, "invalid start", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	end, err := model.ParseInstant(q.Get("end"))
	if err != nil {
		http.Error(w, "invalid end", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// queryOwners accepts owners=a,b as well as repeated owners parameters.
func queryOwners(r *http.Request) []string {
	var owners []string
	for _, v := range r.URL.Query()["owners"] {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				owners = append(owners, o)
			}
		}
	}
	return owners
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
