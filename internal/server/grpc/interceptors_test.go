package grpcserver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "10.0.0.7:41000" }

var checkInfo = &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

func TestLoggingUnary_LevelFollowsCode(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ic := LoggingUnary(zap.New(core))
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: fakeAddr{}})

	resp, err := ic(ctx, nil, checkInfo, func(context.Context, any) (any, error) { return "serving", nil })
	require.NoError(t, err)
	require.Equal(t, "serving", resp)

	unknown := status.Error(codes.NotFound, "unknown service")
	_, err = ic(ctx, nil, checkInfo, func(context.Context, any) (any, error) { return nil, unknown })
	require.ErrorIs(t, err, unknown)

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, zapcore.DebugLevel, entries[0].Level)
	require.Equal(t, "OK", entries[0].ContextMap()["code"])
	require.Equal(t, "10.0.0.7:41000", entries[0].ContextMap()["peer"])
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
	require.Equal(t, "NotFound", entries[1].ContextMap()["code"])
}

func TestLoggingUnary_PlainErrorIsUnknown(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	ic := LoggingUnary(zap.New(core))
	boom := errors.New("boom")

	_, err := ic(context.Background(), nil, checkInfo, func(context.Context, any) (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, logs.FilterField(zap.String("code", "Unknown")).Len())
	require.Equal(t, 1, logs.FilterField(zap.String("peer", "")).Len())
}

func TestRecoverUnary(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.ErrorLevel)
	ic := RecoverUnary(zap.New(core))

	_, err := ic(context.Background(), nil, checkInfo, func(context.Context, any) (any, error) { panic("nil store") })
	require.Equal(t, codes.Internal, status.Code(err))
	require.Equal(t, 1, logs.FilterMessage("panic").Len())

	resp, err := ic(context.Background(), nil, checkInfo, func(context.Context, any) (any, error) { return 42, nil })
	require.NoError(t, err)
	require.Equal(t, 42, resp)
}
