package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/md-rashed-zaman/webcalendar/libs/grpcx"
	"github.com/md-rashed-zaman/webcalendar/services/calendar-service/internal/grpcserver"
)

// startGrpcServer serves the free slots API on port until ctx ends. An empty port disables it.
func startGrpcServer(ctx context.Context, logger *slog.Logger, port string, svc grpcserver.Calendar) error {
	if port == "" {
		logger.Info("grpc server disabled")
		return nil
	}
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	srv := grpcx.NewServer(logger)
	health := grpcserver.Register(srv, svc, logger)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		health.Shutdown()
		srv.GracefulStop()
		logger.Info("grpc server stopped")
	}()
	return nil
}
