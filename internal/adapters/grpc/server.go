package grpc

import (
	"context"

	"google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/application"
)

// SettlementInternalServer exposes the mesh-internal gRPC surface. Settlement
// reads and writes stay on the HTTP API; peers use this endpoint for liveness.
type SettlementInternalServer struct {
	grpc_health_v1.UnimplementedHealthServer
	service *application.Service
}

func NewSettlementInternalServer(service *application.Service) *SettlementInternalServer {
	return &SettlementInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc *SettlementInternalServer) {
	grpc_health_v1.RegisterHealthServer(server, svc)
}

func (s *SettlementInternalServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	_ = ctx
	_ = req
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if s.service == nil {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	return &grpc_health_v1.HealthCheckResponse{Status: status}, nil
}

func (s *SettlementInternalServer) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	_ = req
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if s.service == nil {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	return stream.Send(&grpc_health_v1.HealthCheckResponse{Status: status})
}
