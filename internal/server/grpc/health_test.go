package grpcserver

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type flakyStore struct{ down atomic.Bool }

func (f *flakyStore) Ping(context.Context) error {
	if f.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func startHealth(t *testing.T, dev bool) (*Health, healthpb.HealthClient) {
	t.Helper()
	h := New(zaptest.NewLogger(t), dev)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = h.Server().Serve(lis) }()
	t.Cleanup(h.Server().Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })
	return h, healthpb.NewHealthClient(cc)
}

func servingStatus(t *testing.T, c healthpb.HealthClient, svc string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := c.Check(context.Background(), &healthpb.HealthCheckRequest{Service: svc})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealth_FollowsStorage(t *testing.T) {
	h, c := startHealth(t, false)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, c, Service))

	store := &flakyStore{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Watch(ctx, store, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return servingStatus(t, c, Service) == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(t, c, ""))

	store.down.Store(true)
	require.Eventually(t, func() bool {
		return servingStatus(t, c, "") == healthpb.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 5*time.Millisecond)

	store.down.Store(false)
	cancel()
	<-done
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, c, Service))
}
