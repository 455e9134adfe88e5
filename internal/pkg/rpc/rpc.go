// Package rpc holds the pieces shared by the hand-written gRPC services: method descriptors over
// google.protobuf.Struct messages, request field decoding and application error to status mapping.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/fekuna/omnipos-ledger-service/internal/apperror"
)

type UnaryFunc func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// Method builds a unary method descriptor. pick selects the implementation from the registered server.
func Method(service, name string, pick func(srv interface{}) UnaryFunc) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			fn := pick(srv)
			if interceptor == nil {
				return fn(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return fn(ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ToStatus maps an application error to a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codes.Internal
	switch {
	case apperror.IsValidation(err):
		code = codes.InvalidArgument
	case apperror.IsInsufficientStock(err):
		code = codes.FailedPrecondition
	case apperror.IsNotFound(err):
		code = codes.NotFound
	case apperror.IsInvalidState(err):
		code = codes.FailedPrecondition
	case apperror.IsConflict(err):
		code = codes.Aborted
	}
	return status.Error(code, err.Error())
}

// Response converts v to a Struct by way of its JSON form.
func Response(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func String(req *structpb.Struct, field string) string {
	v, ok := req.GetFields()[field]
	if !ok {
		return ""
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
	}
	return ""
}

// Int64 reads an integral number, or a string holding one. Missing fields read as zero.
func Int64(req *structpb.Struct, field string) (int64, error) {
	v, ok := req.GetFields()[field]
	if !ok {
		return 0, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		if k.NumberValue != math.Trunc(k.NumberValue) || math.Abs(k.NumberValue) > 1<<53 {
			return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", field)
		}
		return int64(k.NumberValue), nil
	case *structpb.Value_StringValue:
		n, err := strconv.ParseInt(k.StringValue, 10, 64)
		if err != nil {
			return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", field)
		}
		return n, nil
	case *structpb.Value_NullValue:
		return 0, nil
	}
	return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", field)
}

// Decimal reads a price. Strings keep their exact digits; numbers go through float64.
func Decimal(req *structpb.Struct, field string) (decimal.Decimal, error) {
	v, ok := req.GetFields()[field]
	if !ok {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "%s is required", field)
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(k.StringValue)
		if err != nil {
			return decimal.Zero, status.Errorf(codes.InvalidArgument, "%s must be a decimal", field)
		}
		return d, nil
	case *structpb.Value_NumberValue:
		return decimal.NewFromFloat(k.NumberValue), nil
	}
	return decimal.Zero, status.Errorf(codes.InvalidArgument, "%s must be a decimal", field)
}

// Time reads an RFC 3339 timestamp. Missing fields return nil.
func Time(req *structpb.Struct, field string) (*time.Time, error) {
	s := String(req, field)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("%s must be an RFC 3339 timestamp", field))
	}
	t = t.UTC()
	return &t, nil
}
