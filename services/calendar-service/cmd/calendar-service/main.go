package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/webcalendar/libs/auth"
	"github.com/md-rashed-zaman/webcalendar/libs/httpx"
	"github.com/md-rashed-zaman/webcalendar/libs/kafkax"
	otelx "github.com/md-rashed-zaman/webcalendar/libs/otel"
	"github.com/md-rashed-zaman/webcalendar/libs/runtime"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/calendar"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/events"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/graph"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/handlers"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/schedule"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const writeScope = "calendar.write"

func main() {
	cfg, err := loadSettings()
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.Service, cfg.LogLevel)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelCfg, err := otelx.ConfigFromEnv(cfg.Service)
	if err != nil {
		panic(err)
	}
	otelShutdown, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	graphClient := graph.NewClient(cfg.Graph)
	fetcher := schedule.NewFetcher(graphClient, logger, cfg.Fetch)
	checks := []runtime.ReadyCheck{{Name: "graph", Check: graphClient.Ping}}

	var publisher events.Publisher = events.Discard{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, logger)
		defer func() { _ = kp.Close() }()
		publisher = kp
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	} else {
		logger.Warn("appointment events disabled (no kafka brokers configured)")
	}

	svc, err := calendar.NewService(cfg.Calendar, fetcher, graphClient, publisher, logger)
	if err != nil {
		panic(err)
	}
	if cfg.Calendar.DevMode {
		logger.Warn("dev mode enabled; all calendar traffic goes to the development owner", "owner", cfg.Calendar.DevOwnerEmail)
	}

	var limiter httpx.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		limiter = httpx.NewRedisLimiter(rdb, cfg.RateLimit, time.Minute, cfg.Service)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		logger.Info("rate limiting enabled (redis)", "per_minute", cfg.RateLimit, "redis_addr", cfg.RedisAddr)
	} else {
		limiter = httpx.NewLocalLimiter(cfg.RateLimit)
		logger.Info("rate limiting enabled (in-memory)", "per_minute", cfg.RateLimit)
	}

	verifier := newVerifier(cfg, logger, &checks)

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.NewCalendarHandler(svc, logger).Register(mux, auth.Require(verifier, writeScope))

	if err := startGrpcServer(ctx, logger, cfg.GRPCPort, svc); err != nil {
		logger.Error("grpc server failed to start", "err", err)
		panic(err)
	}

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(cfg.BodyLimit),
		httpx.WithTimeout(cfg.RequestTimeout),
		httpx.RateLimit(limiter, logger, cfg.RateLimitOpen),
	)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(handler, "calendar"),
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.ServeHTTP(ctx, srv, logger, 10*time.Second)
}

// newVerifier prefers a JWKS endpoint over a shared secret. With neither, write endpoints are open.
func newVerifier(cfg settings, logger *slog.Logger, checks *[]runtime.ReadyCheck) auth.Verifier {
	switch {
	case cfg.JWKSURL != "":
		keys := auth.NewJWKSClient(cfg.JWKSURL, 5*time.Minute, nil)
		*checks = append(*checks, runtime.ReadyCheck{Name: "jwks", Check: keys.Ping})
		return auth.NewJWKSVerifier(keys)
	case cfg.JWTSecret != "":
		return auth.NewHS256Verifier(cfg.JWTSecret)
	default:
		logger.Warn("write endpoints are unauthenticated (set JWKS_URL or JWT_SECRET)")
		return nil
	}
}
