// Package grpcserver runs the gRPC health sidecar next to the REST API.
package grpcserver

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported for the REST API.
const ServiceName = "quotereality.v1.API"

// Pinger reports storage reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health tracks serving status from periodic storage pings.
type Health struct {
	srv      *health.Server
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

// NewHealth constructs Health. The initial status is NOT_SERVING until the first check.
func NewHealth(pinger Pinger, interval time.Duration, log *zap.Logger) *Health {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	h := &Health{srv: health.NewServer(), pinger: pinger, interval: interval, timeout: 2 * time.Second, log: log}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

func (h *Health) set(st healthpb.HealthCheckResponse_ServingStatus) {
	h.srv.SetServingStatus("", st)
	h.srv.SetServingStatus(ServiceName, st)
}

// Check pings storage once and updates the status.
func (h *Health) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	st := healthpb.HealthCheckResponse_SERVING
	if err := h.pinger.Ping(ctx); err != nil {
		h.log.Warn("health: ping failed", zap.Error(err))
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.set(st)
	return st
}

// Run checks on every interval until ctx is done, then marks everything as not serving.
func (h *Health) Run(ctx context.Context) {
	h.Check(ctx)
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-t.C:
			h.Check(ctx)
		}
	}
}

// NewServer builds a gRPC server with logging/recovery interceptors and the health service.
// Reflection is registered in dev mode only.
func NewServer(log *zap.Logger, h *Health, dev bool) *grpc.Server {
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)),
		grpc.ChainStreamInterceptor(RecoverStream(log), LoggingStream(log)),
	)
	healthpb.RegisterHealthServer(gs, h.srv)
	if dev {
		reflection.Register(gs)
	}
	return gs
}
