package auth

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	MerchantIDHeader = "x-merchant-id"
	UserIDHeader     = "x-user-id"
)

type contextKey string

const (
	merchantIDKey contextKey = "merchant_id"
	userIDKey     contextKey = "user_id"
)

type UserContext struct {
	MerchantID string
	UserID     string
}

// WithUser stores the caller identity on ctx. Empty fields are left unset.
func WithUser(ctx context.Context, u UserContext) context.Context {
	if u.MerchantID != "" {
		ctx = context.WithValue(ctx, merchantIDKey, u.MerchantID)
	}
	if u.UserID != "" {
		ctx = context.WithValue(ctx, userIDKey, u.UserID)
	}
	return ctx
}

// FromMetadata reads the caller identity from incoming gRPC metadata.
func FromMetadata(ctx context.Context) UserContext {
	var u UserContext
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return u
	}
	if val := md.Get(MerchantIDHeader); len(val) > 0 {
		u.MerchantID = val[0]
	}
	if val := md.Get(UserIDHeader); len(val) > 0 {
		u.UserID = val[0]
	}
	return u
}

func GetMerchantID(ctx context.Context) string {
	if val, ok := ctx.Value(merchantIDKey).(string); ok {
		return val
	}
	return FromMetadata(ctx).MerchantID
}

func GetUserID(ctx context.Context) string {
	if val, ok := ctx.Value(userIDKey).(string); ok {
		return val
	}
	return FromMetadata(ctx).UserID
}

// RequireMerchantID returns the caller's merchant, or an Unauthenticated status when the request carries none.
func RequireMerchantID(ctx context.Context) (string, error) {
	merchantID := GetMerchantID(ctx)
	if merchantID == "" {
		return "", status.Error(codes.Unauthenticated, "missing "+MerchantIDHeader)
	}
	return merchantID, nil
}
