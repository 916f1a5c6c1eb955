// Package grpcserver runs the grpc.health.v1 readiness endpoint for orchestrators.
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

// Service is the name probes use for the lifecycle engine; "" reports the whole server.
const Service = "warranty.Lifecycle"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health owns the gRPC server and its health status.
type Health struct {
	srv *grpc.Server
	hs  *health.Server
	log *zap.Logger
}

// New builds the gRPC server with health registered and, in dev mode, reflection.
// Both services start NOT_SERVING until Watch reports a successful ping.
func New(log *zap.Logger, dev bool, opts ...grpc.ServerOption) *Health {
	opts = append(opts, grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)))
	srv := grpc.NewServer(opts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	if dev {
		reflection.Register(srv)
	}
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(Service, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Health{srv: srv, hs: hs, log: log}
}

// Server exposes the underlying gRPC server for Serve and GracefulStop.
func (h *Health) Server() *grpc.Server { return h.srv }

// Watch pings p every interval and mirrors the result into the health status until ctx ends.
func (h *Health) Watch(ctx context.Context, p Pinger, every time.Duration) {
	h.check(ctx, p)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.Shutdown()
			return
		case <-t.C:
			h.check(ctx, p)
		}
	}
}

func (h *Health) check(ctx context.Context, p Pinger) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	st := healthpb.HealthCheckResponse_SERVING
	if err := p.Ping(ctx); err != nil {
		h.log.Warn("storage ping failed", zap.Error(err))
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.hs.SetServingStatus("", st)
	h.hs.SetServingStatus(Service, st)
}

// Shutdown marks every service NOT_SERVING so probes drain traffic before stop.
func (h *Health) Shutdown() { h.hs.Shutdown() }
