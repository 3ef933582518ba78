package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthhandler "workbench-api/internal/health/handler"
)

// GRPCDeps holds dependencies for the gRPC services.
type GRPCDeps struct {
	// Health backs grpc.health.v1.Health. Required.
	Health *healthhandler.Server
}

// RegisterServices registers the gRPC services with s.
//
// Service → handler mapping:
//   - grpc.health.v1.Health → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps GRPCDeps) {
	healthpb.RegisterHealthServer(s, deps.Health)
}

// NewGRPCServer returns a gRPC server instrumented with OpenTelemetry and the services registered.
func NewGRPCServer(deps GRPCDeps, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	s := grpc.NewServer(opts...)
	RegisterServices(s, deps)
	return s
}
