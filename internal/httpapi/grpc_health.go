package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// IssuesServiceName is the health-check service name reported alongside the overall status.
const IssuesServiceName = "disputedesk.v1.Issues"

// HealthServer publishes store readiness over the standard gRPC health protocol.
type HealthServer struct {
	*health.Server
	ready ReadyChecker
}

// NewHealthServer creates a health server that starts out NOT_SERVING until the first Refresh.
func NewHealthServer(ready ReadyChecker) *HealthServer {
	h := &HealthServer{Server: health.NewServer(), ready: ready}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Register attaches the health service to s.
func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.Server)
}

// Refresh pings the store and updates the serving status.
func (h *HealthServer) Refresh(ctx context.Context) error {
	var err error
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err = h.ready.Ping(ctx)
	}
	if err != nil {
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return err
	}
	h.set(healthpb.HealthCheckResponse_SERVING)
	return nil
}

// Run refreshes every interval until ctx ends, then marks everything NOT_SERVING.
func (h *HealthServer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	_ = h.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			h.Shutdown()
			return
		case <-ticker.C:
			_ = h.Refresh(ctx)
		}
	}
}

func (h *HealthServer) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.SetServingStatus("", status)
	h.SetServingStatus(IssuesServiceName, status)
}
