package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/model"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/schedule"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"
	DefaultScope   = "https://graph.microsoft.com/.default"
)

// Error is a non-2xx answer from the provider.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("graph: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("graph: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

func IsNotFound(err error) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.StatusCode == http.StatusNotFound
}

type Config struct {
	BaseURL      string
	TenantID     string
	ClientID     string
	ClientSecret string
	Scope        string
	// TokenURL overrides the tenant token endpoint; used against local simulators.
	TokenURL      string
	RatePerSecond float64
	Timeout       time.Duration
}

type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

var _ schedule.Provider = (*Client)(nil)

// NewClient builds a Graph client. With a client id configured, requests carry an app-only token
// from the client-credentials flow; without one they are sent unauthenticated.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	base := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   cfg.Timeout,
	}
	httpClient := base
	if cfg.ClientID != "" {
		scope := cfg.Scope
		if scope == "" {
			scope = DefaultScope
		}
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = "https://login.microsoftonline.com/" + url.PathEscape(cfg.TenantID) + "/oauth2/v2.0/token"
		}
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{scope},
		}
		httpClient = cc.Client(context.WithValue(context.Background(), oauth2.HTTPClient, base))
		httpClient.Timeout = cfg.Timeout
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (c *Client) GetSchedule(ctx context.Context, q schedule.Query) (model.SchedulePage, error) {
	if len(q.Owners) == 0 {
		return model.SchedulePage{}, errors.New("graph: get schedule needs at least one owner")
	}
	body := getScheduleRequest{
		Schedules: q.Owners,
		StartTime: UTCDateTime(q.Range.Start),
		EndTime:   UTCDateTime(q.Range.End),
	}
	endpoint := c.baseURL + "/users/" + url.PathEscape(q.Owners[0]) + "/calendar/getSchedule"

	var resp getScheduleResponse
	if err := c.do(ctx, http.MethodPost, endpoint, q.TimeZone, body, &resp); err != nil {
		return model.SchedulePage{}, err
	}
	return resp.toPage(), nil
}

// NextPage follows an @odata.nextLink. Only links on the configured host are followed.
func (c *Client) NextPage(ctx context.Context, token string) (model.SchedulePage, error) {
	if !strings.HasPrefix(token, c.baseURL+"/") {
		return model.SchedulePage{}, fmt.Errorf("graph: refusing next link outside %s", c.baseURL)
	}
	var resp getScheduleResponse
	if err := c.do(ctx, http.MethodPost, token, schedule.TimeZoneUTC, nil, &resp); err != nil {
		return model.SchedulePage{}, err
	}
	return resp.toPage(), nil
}

// CreateEvent adds event to owner's default calendar and returns the new event id.
func (c *Client) CreateEvent(ctx context.Context, owner string, event Event) (string, error) {
	endpoint := c.baseURL + "/users/" + url.PathEscape(owner) + "/calendar/events"
	var created Event
	if err := c.do(ctx, http.MethodPost, endpoint, "", event, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (c *Client) DeleteEvent(ctx context.Context, owner, eventID string) error {
	endpoint := c.baseURL + "/users/" + url.PathEscape(owner) + "/calendar/events/" + url.PathEscape(eventID)
	return c.do(ctx, http.MethodDelete, endpoint, "", nil, nil)
}

// Ping checks that the provider answers at all; any HTTP response counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint, timeZone string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// Wait gives up early when the next token is due after the deadline.
		return fmt.Errorf("graph: rate limit: %w", context.DeadlineExceeded)
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("graph: encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("graph: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if timeZone != "" {
		req.Header.Set("Prefer", `outlook.timezone="`+timeZone+`"`)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("graph: %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		gerr := &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var env errorEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Error.Code != "" {
			gerr.Code = env.Error.Code
			gerr.Message = env.Error.Message
		}
		return gerr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("graph: decode response: %w", err)
	}
	return nil
}
