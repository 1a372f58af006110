package grpcx

import (
	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// NewClient builds a traced client connection that forwards the request id.
// With nil creds the connection is plaintext.
func NewClient(addr string, creds credentials.TransportCredentials, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	if creds == nil {
		creds = insecure.NewCredentials()
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(UnaryClientRequestID()),
	}
	return grpc.NewClient(addr, append(opts, extra...)...)
}

// NewServer builds a traced server with request id, logging and panic recovery interceptors.
func NewServer(logger *slog.Logger, extra ...grpc.ServerOption) *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			UnaryServerRequestID(),
			UnaryServerRecover(logger),
			UnaryServerLog(logger),
		),
	}
	return grpc.NewServer(append(opts, extra...)...)
}
