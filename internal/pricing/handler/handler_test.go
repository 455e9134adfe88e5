package handler

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/fekuna/omnipos-ledger-service/internal/auth"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/lock"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/middleware"
	"github.com/fekuna/omnipos-ledger-service/internal/pricing/repository"
	"github.com/fekuna/omnipos-ledger-service/internal/pricing/usecase"
	"github.com/fekuna/omnipos-ledger-service/internal/testutil"
)

func dial(t *testing.T) (*grpc.ClientConn, testutil.Catalog) {
	t.Helper()

	db := testutil.NewDB(t)
	cat := testutil.SeedCatalog(t, db, "m-1", decimal.NewFromInt(1000))
	uc := usecase.NewPricingUseCase(repository.NewPGRepository(db), lock.NewLocalLocker(), nil, logger.NewNop())

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(middleware.ContextInterceptor()))
	RegisterPricingServiceServer(srv, NewPricingHandler(uc, logger.NewNop()))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, cat
}

func call(t *testing.T, conn *grpc.ClientConn, method, merchantID string, fields map[string]interface{}) (*structpb.Struct, error) {
	t.Helper()
	req, err := structpb.NewStruct(fields)
	require.NoError(t, err)

	ctx := context.Background()
	if merchantID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, auth.MerchantIDHeader, merchantID)
	}
	ctx = metadata.AppendToOutgoingContext(ctx, auth.UserIDHeader, "u-1")

	resp := new(structpb.Struct)
	err = conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp)
	return resp, err
}

func TestPricingService_AdjustAndAudit(t *testing.T) {
	conn, cat := dial(t)

	resp, err := call(t, conn, "AdjustPriceNow", cat.MerchantID, map[string]interface{}{
		"sub_product_id": cat.SubProductID, "new_price": "1250.00", "reason": "new menu",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Fields["audit_record_id"].GetStringValue())

	resp, err = call(t, conn, "ListPriceAudit", cat.MerchantID, map[string]interface{}{
		"sub_product_id": cat.SubProductID,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(1), resp.Fields["total"].GetNumberValue())

	items := resp.Fields["items"].GetListValue().GetValues()
	require.Len(t, items, 1)
	change := items[0].GetStructValue().Fields["changes"].GetStructValue().Fields["price"].GetStructValue()
	assert.Equal(t, "1000", change.Fields["old"].GetStringValue())
	assert.Equal(t, "1250", change.Fields["new"].GetStringValue())

	_, err = call(t, conn, "AdjustPriceNow", cat.MerchantID, map[string]interface{}{
		"sub_product_id": cat.SubProductID, "new_price": "-1", "reason": "oops",
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestPricingService_ScheduleLifecycle(t *testing.T) {
	conn, cat := dial(t)
	effective := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)

	resp, err := call(t, conn, "SchedulePriceChange", cat.MerchantID, map[string]interface{}{
		"product_id": cat.SubProductID, "new_price": "1200", "effective_at": effective,
	})
	require.NoError(t, err)
	id := resp.Fields["schedule_id"].GetStringValue()
	require.NotEmpty(t, id)

	resp, err = call(t, conn, "GetScheduledChange", cat.MerchantID, map[string]interface{}{"schedule_id": id})
	require.NoError(t, err)
	assert.Equal(t, "pending", resp.Fields["status"].GetStringValue())

	resp, err = call(t, conn, "RunDueScheduledChanges", "", nil)
	require.NoError(t, err)
	assert.Equal(t, float64(0), resp.Fields["applied"].GetNumberValue())

	_, err = call(t, conn, "CancelScheduledChange", cat.MerchantID, map[string]interface{}{"schedule_id": id})
	require.NoError(t, err)

	_, err = call(t, conn, "CancelScheduledChange", cat.MerchantID, map[string]interface{}{"schedule_id": id})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	resp, err = call(t, conn, "ListScheduledChanges", cat.MerchantID, map[string]interface{}{"status": "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), resp.Fields["total"].GetNumberValue())
}

func TestPricingService_RequiresMerchant(t *testing.T) {
	conn, cat := dial(t)

	_, err := call(t, conn, "AdjustPriceNow", "", map[string]interface{}{
		"sub_product_id": cat.SubProductID, "new_price": "1", "reason": "x",
	})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = call(t, conn, "GetScheduledChange", cat.MerchantID, map[string]interface{}{"schedule_id": "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}
