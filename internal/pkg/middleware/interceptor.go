package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/fekuna/omnipos-ledger-service/internal/auth"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/logger"
)

// ContextInterceptor copies the caller identity from metadata into the request context.
func ContextInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		return handler(auth.WithUser(ctx, auth.FromMetadata(ctx)), req)
	}
}

func LoggingInterceptor(log logger.ZapLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("merchant_id", auth.GetMerchantID(ctx)),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			log.Warn("gRPC request failed", append(fields, zap.Error(err))...)
		} else {
			log.Debug("gRPC request", fields...)
		}
		return resp, err
	}
}
