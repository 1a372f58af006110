package grpcserver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/webcalendar/libs/httpx"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/calendar"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/model"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/schedule"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "calendar.v1.FreeSlotsService"

// FreeSlotsServer answers availability queries. Requests and responses are
// google.protobuf.Struct values shaped like the HTTP API's query and JSON body:
// {"start": "...", "end": "...", "owners": ["..."]}.
type FreeSlotsServer interface {
	GetFreeSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CheckSlot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type Calendar interface {
	GetFreeSlots(ctx context.Context, owners []string, start, end time.Time) (model.TimeSlotsResponse, error)
	CheckSlotFree(ctx context.Context, owners []string, start, end time.Time) (bool, model.FetchStatus, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FreeSlotsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetFreeSlots", Handler: unary("GetFreeSlots", FreeSlotsServer.GetFreeSlots)},
		{MethodName: "CheckSlot", Handler: unary("CheckSlot", FreeSlotsServer.CheckSlot)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "calendar/v1/free_slots.proto",
}

func unary(method string, call func(FreeSlotsServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FreeSlotsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(FreeSlotsServer), ctx, req.(*structpb.Struct))
		})
	}
}

// Register adds the free slots and health services to srv.
func Register(srv *grpc.Server, svc Calendar, logger *slog.Logger) *health.Server {
	srv.RegisterService(&serviceDesc, &server{svc: svc, logger: logger})

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return hs
}

type server struct {
	svc    Calendar
	logger *slog.Logger
}

func (s *server) GetFreeSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owners, start, end, err := parseQuery(req)
	if err != nil {
		return nil, err
	}
	resp, err := s.svc.GetFreeSlots(ctx, owners, start, end)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	appts := make([]any, 0, len(resp.Appointments))
	for _, a := range resp.Appointments {
		appts = append(appts, map[string]any{
			"id":          a.ID,
			"owner_email": a.OwnerEmail,
			"start":       formatInstant(a.TimeRange.Start),
			"end":         formatInstant(a.TimeRange.End),
		})
	}
	out, err := structpb.NewStruct(map[string]any{
		"slots30":      instants(resp.Slots30),
		"slots60":      instants(resp.Slots60),
		"appointments": appts,
		"status":       string(resp.Status),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func (s *server) CheckSlot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owners, start, end, err := parseQuery(req)
	if err != nil {
		return nil, err
	}
	free, fetchStatus, err := s.svc.CheckSlotFree(ctx, owners, start, end)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	out, err := structpb.NewStruct(map[string]any{"free": free, "status": string(fetchStatus)})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func parseQuery(req *structpb.Struct) ([]string, time.Time, time.Time, error) {
	fields := req.GetFields()
	start, err := model.ParseInstant(fields["start"].GetStringValue())
	if err != nil {
		return nil, time.Time{}, time.Time{}, status.Error(codes.InvalidArgument, "invalid start")
	}
	end, err := model.ParseInstant(fields["end"].GetStringValue())
	if err != nil {
		return nil, time.Time{}, time.Time{}, status.Error(codes.InvalidArgument, "invalid end")
	}
	var owners []string
	for _, v := range fields["owners"].GetListValue().GetValues() {
		if o := v.GetStringValue(); o != "" {
			owners = append(owners, o)
		}
	}
	return owners, start, end, nil
}

func (s *server) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, model.ErrInvalidRange), errors.Is(err, calendar.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, calendar.ErrProviderUnavailable):
		s.logger.ErrorContext(ctx, "schedule provider unavailable", "err", err, "request_id", httpx.RequestIDFromContext(ctx))
		return status.Error(codes.Unavailable, "schedule provider unavailable")
	case errors.Is(err, schedule.ErrMalformedTime):
		s.logger.ErrorContext(ctx, "invalid provider data", "err", err, "request_id", httpx.RequestIDFromContext(ctx))
		return status.Error(codes.Internal, "invalid provider data")
	default:
		s.logger.ErrorContext(ctx, "request failed", "err", err, "request_id", httpx.RequestIDFromContext(ctx))
		return status.Error(codes.Internal, "internal error")
	}
}

func instants(ts []time.Time) []any {
	out := make([]any, len(ts))
	for i, t := range ts {
		out[i] = formatInstant(t)
	}
	return out
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
