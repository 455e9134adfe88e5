package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/fekuna/omnipos-ledger-service/internal/auth"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/logger"
)

func TestContextInterceptor(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs(auth.MerchantIDHeader, "m-1", auth.UserIDHeader, "u-9"))

	var gotMerchant, gotUser string
	_, err := ContextInterceptor()(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/x/Y"},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			gotMerchant = auth.GetMerchantID(ctx)
			gotUser = auth.GetUserID(ctx)
			return nil, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "m-1", gotMerchant)
	assert.Equal(t, "u-9", gotUser)
}

func TestLoggingInterceptor_LogsFailures(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	intercept := LoggingInterceptor(logger.Wrap(zap.New(core)))
	info := &grpc.UnaryServerInfo{FullMethod: "/omnipos.ledger.v1.StockService/ReadStock"}

	_, err := intercept(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "missing")
	})
	require.Error(t, err)

	entries := logs.FilterMessage("gRPC request failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "NotFound", entries[0].ContextMap()["code"])
	assert.Equal(t, info.FullMethod, entries[0].ContextMap()["method"])
}
