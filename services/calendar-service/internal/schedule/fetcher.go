package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/webcalendar/libs/httpx"
	"github.com/md-rashed-zaman/webcalendar/libs/runtime"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/availability"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// maxPagesPerRange stops a provider that keeps returning continuation tokens.
const maxPagesPerRange = 1000

var errTooManyPages = errors.New("too many schedule pages")

type FetcherConfig struct {
	MaxSpanDays int
	// Concurrency caps simultaneous sub-range fetches; 0 means one goroutine per sub-range.
	Concurrency int
}

type Fetcher struct {
	provider Provider
	logger   *slog.Logger
	tracer   trace.Tracer
	cfg      FetcherConfig
	worker   string
}

func NewFetcher(provider Provider, logger *slog.Logger, cfg FetcherConfig) *Fetcher {
	if cfg.MaxSpanDays <= 0 {
		cfg.MaxSpanDays = availability.DefaultMaxSpanDays
	}
	return &Fetcher{
		provider: provider,
		logger:   logger,
		tracer:   otel.Tracer("schedule"),
		cfg:      cfg,
		worker:   runtime.Hostname(),
	}
}

// rangePages is the private buffer of one sub-range goroutine.
type rangePages struct {
	pages []model.SchedulePage
	err   error
}

// FetchAll fetches the schedules of owners over [start, end], one goroutine per provider-sized
// sub-range. A provider error stops only its own sub-range; the pages it fetched before the error
// are kept and the range is listed in the result's Failures. Cancellation of ctx aborts every
// chain and is returned as ctx.Err(); an error wrapping context.DeadlineExceeded is returned as is.
func (f *Fetcher) FetchAll(ctx context.Context, owners []string, start, end time.Time) (*model.ScheduleResult, error) {
	if err := model.NewTimeRange(start, end).Validate(); err != nil {
		return nil, err
	}
	if len(owners) == 0 {
		return nil, errors.New("at least one owner is required")
	}

	begin := time.Now()
	ranges := availability.Partition(start, end, f.cfg.MaxSpanDays)

	ctx, span := f.tracer.Start(ctx, "schedule.fetch_all", trace.WithAttributes(
		attribute.Int("schedule.owners", len(owners)),
		attribute.Int("schedule.sub_ranges", len(ranges)),
	))
	defer span.End()

	buffers := make([]rangePages, len(ranges))
	var g errgroup.Group
	if f.cfg.Concurrency > 0 {
		g.SetLimit(f.cfg.Concurrency)
	}
	for i, r := range ranges {
		g.Go(func() error {
			pages, err := f.fetchRange(ctx, owners, r)
			buffers[i] = rangePages{pages: pages, err: err}
			if err == nil {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		})
	}
	// Goroutines only return an error on cancellation or an unreachable deadline.
	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		return nil, err
	}

	result := &model.ScheduleResult{
		Pages:  make(map[model.TimeRange][]model.SchedulePage, len(ranges)),
		Ranges: ranges,
	}
	for i, r := range ranges {
		result.Pages[r] = buffers[i].pages
		if buffers[i].err != nil {
			result.Failures = append(result.Failures, model.RangeFailure{Range: r, Err: buffers[i].err})
			f.logger.Error("schedule fetch failed",
				"err", buffers[i].err,
				"range_start", r.Start.Format(time.RFC3339),
				"range_end", r.End.Format(time.RFC3339),
				"pages_kept", len(buffers[i].pages),
			)
		}
	}

	status := result.Status()
	span.SetAttributes(attribute.String("schedule.status", string(status)))
	if status != model.FetchComplete {
		span.SetStatus(codes.Error, string(status))
	}
	f.logger.Debug("schedule fetch finished",
		"elapsed_ms", time.Since(begin).Milliseconds(),
		"range_start", start.UTC().Format(time.RFC3339),
		"range_end", end.UTC().Format(time.RFC3339),
		"sub_ranges", len(ranges),
		"status", status,
		"worker", f.worker,
		"request_id", httpx.RequestIDFromContext(ctx),
	)
	return result, nil
}

// fetchRange runs the pagination chain of one sub-range. It returns the pages collected so far
// together with the error that stopped the chain.
func (f *Fetcher) fetchRange(ctx context.Context, owners []string, r model.TimeRange) ([]model.SchedulePage, error) {
	ctx, span := f.tracer.Start(ctx, "schedule.fetch_range", trace.WithAttributes(
		attribute.String("schedule.range_start", r.Start.Format(time.RFC3339)),
		attribute.String("schedule.range_end", r.End.Format(time.RFC3339)),
	))
	defer span.End()

	page, err := f.provider.GetSchedule(ctx, Query{Owners: owners, Range: r, TimeZone: TimeZoneUTC})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	pages := []model.SchedulePage{page}

	for page.NextToken != "" {
		if len(pages) >= maxPagesPerRange {
			span.RecordError(errTooManyPages)
			return pages, errTooManyPages
		}
		page, err = f.provider.NextPage(ctx, page.NextToken)
		if err != nil {
			span.RecordError(err)
			return pages, fmt.Errorf("next schedule page %d: %w", len(pages)+1, err)
		}
		pages = append(pages, page)
	}
	span.SetAttributes(attribute.Int("schedule.pages", len(pages)))
	return pages, nil
}
