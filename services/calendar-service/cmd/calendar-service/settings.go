package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/webcalendar/libs/config"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/availability"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/calendar"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/graph"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/schedule"
)

type settings struct {
	Service  string
	LogLevel string
	Port     string
	GRPCPort string

	Graph    graph.Config
	Fetch    schedule.FetcherConfig
	Calendar calendar.Config

	JWTSecret string
	JWKSURL   string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RateLimit      int
	RateLimitOpen  bool
	KafkaBrokers   []string
	RequestTimeout time.Duration
	BodyLimit      int64
}

func loadSettings() (settings, error) {
	var (
		s    settings
		err  error
		errs []error
	)
	collect := func(e error) {
		if e != nil {
			errs = append(errs, e)
		}
	}

	s.Service = config.String("SERVICE_NAME", "calendar-service")
	s.LogLevel = config.String("LOG_LEVEL", "info")
	s.Port, err = config.Port("PORT", "8085")
	collect(err)
	s.GRPCPort, err = config.Port("GRPC_PORT", "9095")
	collect(err)

	rate, err := config.Float("GRAPH_RATE_PER_SECOND", 10, 0, 10000)
	collect(err)
	timeout, err := config.Seconds("GRAPH_TIMEOUT_SECONDS", 30*time.Second)
	collect(err)
	s.Graph = graph.Config{
		BaseURL:       config.String("GRAPH_BASE_URL", graph.DefaultBaseURL),
		TenantID:      config.String("GRAPH_TENANT_ID", ""),
		ClientID:      config.String("GRAPH_CLIENT_ID", ""),
		ClientSecret:  config.String("GRAPH_CLIENT_SECRET", ""),
		Scope:         config.String("GRAPH_SCOPE", graph.DefaultScope),
		TokenURL:      config.String("GRAPH_TOKEN_URL", ""),
		RatePerSecond: rate,
		Timeout:       timeout,
	}
	if s.Graph.ClientID != "" && s.Graph.TenantID == "" && s.Graph.TokenURL == "" {
		collect(errors.New("GRAPH_TENANT_ID is required with GRAPH_CLIENT_ID"))
	}

	s.Fetch.MaxSpanDays, err = config.Int("SCHEDULE_MAX_SPAN_DAYS", availability.DefaultMaxSpanDays)
	collect(err)
	s.Fetch.Concurrency, err = config.Int("SCHEDULE_FETCH_CONCURRENCY", 0)
	collect(err)

	mode, err := availability.ParseMode(config.String("AGGREGATION_MODE", string(availability.ModeUnion)))
	if err != nil {
		collect(fmt.Errorf("AGGREGATION_MODE: %w", err))
	}
	s.Calendar = calendar.Config{
		Owners:        config.List("CALENDAR_OWNERS", nil),
		Mode:          mode,
		DevMode:       config.Bool("CALENDAR_DEV_MODE", false),
		DevOwnerEmail: config.String("CALENDAR_DEV_OWNER_EMAIL", ""),
	}
	if len(s.Calendar.Owners) == 0 && !s.Calendar.DevMode {
		collect(errors.New("CALENDAR_OWNERS is required"))
	}

	s.JWTSecret = config.String("JWT_SECRET", "")
	s.JWKSURL = config.String("JWKS_URL", "")

	s.RedisAddr = config.String("REDIS_ADDR", "")
	s.RedisPassword = config.String("REDIS_PASSWORD", "")
	s.RedisDB, err = config.Int("REDIS_DB", 0)
	collect(err)
	s.RateLimit, err = config.Int("RATE_LIMIT_PER_MINUTE", 120)
	collect(err)
	s.RateLimitOpen = config.Bool("RATE_LIMIT_FAIL_OPEN", true)
	s.KafkaBrokers = config.List("KAFKA_BROKERS", nil)

	s.RequestTimeout, err = config.Seconds("REQUEST_TIMEOUT_SECONDS", 30*time.Second)
	collect(err)
	bodyKB, err := config.Int("HTTP_BODY_LIMIT_KB", 64)
	collect(err)
	s.BodyLimit = int64(bodyKB) << 10

	return s, errors.Join(errs...)
}
