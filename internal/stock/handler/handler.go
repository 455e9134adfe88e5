package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/fekuna/omnipos-ledger-service/internal/auth"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/rpc"
	"github.com/fekuna/omnipos-ledger-service/internal/stock"
	"github.com/fekuna/omnipos-ledger-service/internal/stock/dto"
)

const ServiceName = "omnipos.ledger.v1.StockService"

type StockServiceServer interface {
	RecordMovement(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ReadStock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ReconcileStock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListMovements(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StockServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Method(ServiceName, "RecordMovement", func(s interface{}) rpc.UnaryFunc { return s.(StockServiceServer).RecordMovement }),
		rpc.Method(ServiceName, "ReadStock", func(s interface{}) rpc.UnaryFunc { return s.(StockServiceServer).ReadStock }),
		rpc.Method(ServiceName, "ReconcileStock", func(s interface{}) rpc.UnaryFunc { return s.(StockServiceServer).ReconcileStock }),
		rpc.Method(ServiceName, "ListMovements", func(s interface{}) rpc.UnaryFunc { return s.(StockServiceServer).ListMovements }),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "omnipos/ledger/v1/stock.proto",
}

func RegisterStockServiceServer(s grpc.ServiceRegistrar, srv StockServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type StockHandler struct {
	uc     stock.UseCase
	logger logger.ZapLogger
}

func NewStockHandler(uc stock.UseCase, log logger.ZapLogger) *StockHandler {
	return &StockHandler{
		uc:     uc,
		logger: log,
	}
}

func stockKey(ctx context.Context, req *structpb.Struct) (model.StockKey, error) {
	merchantID, err := auth.RequireMerchantID(ctx)
	if err != nil {
		return model.StockKey{}, err
	}
	return model.StockKey{
		MerchantID:   merchantID,
		SizeID:       rpc.String(req, "size_id"),
		SubProductID: rpc.String(req, "sub_product_id"),
	}, nil
}

func (h *StockHandler) RecordMovement(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	key, err := stockKey(ctx, req)
	if err != nil {
		return nil, err
	}
	qty, err := rpc.Int64(req, "quantity")
	if err != nil {
		return nil, err
	}

	input := &dto.RecordMovementInput{
		MerchantID:   key.MerchantID,
		SizeID:       key.SizeID,
		SubProductID: key.SubProductID,
		MovementType: model.MovementType(rpc.String(req, "movement_type")),
		Direction:    model.Direction(rpc.String(req, "direction")),
		Quantity:     qty,
		Reason:       rpc.String(req, "reason"),
		ReferenceID:  rpc.String(req, "reference_id"),
		UserID:       auth.GetUserID(ctx),
	}

	newQty, err := h.uc.RecordMovement(ctx, input)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}

	return structpb.NewStruct(map[string]interface{}{"quantity": newQty})
}

func (h *StockHandler) ReadStock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	key, err := stockKey(ctx, req)
	if err != nil {
		return nil, err
	}
	qty, err := h.uc.ReadStock(ctx, key)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{"quantity": qty})
}

func (h *StockHandler) ReconcileStock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	key, err := stockKey(ctx, req)
	if err != nil {
		return nil, err
	}
	res, err := h.uc.Reconcile(ctx, key)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}

	out := map[string]interface{}{
		"quantity": res.Quantity,
		"last_seq": res.LastSeq,
		"healed":   res.Discrepancy != nil,
	}
	if d := res.Discrepancy; d != nil {
		out["counter_quantity"] = d.CounterQuantity
		out["detail"] = d.Detail
	}
	return structpb.NewStruct(out)
}

func (h *StockHandler) ListMovements(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	merchantID, err := auth.RequireMerchantID(ctx)
	if err != nil {
		return nil, err
	}
	page, err := rpc.Int64(req, "page")
	if err != nil {
		return nil, err
	}
	pageSize, err := rpc.Int64(req, "page_size")
	if err != nil {
		return nil, err
	}
	start, err := rpc.Time(req, "start_date")
	if err != nil {
		return nil, err
	}
	end, err := rpc.Time(req, "end_date")
	if err != nil {
		return nil, err
	}

	filters := &dto.MovementFilters{
		MerchantID:   merchantID,
		SizeID:       rpc.String(req, "size_id"),
		SubProductID: rpc.String(req, "sub_product_id"),
		MovementType: rpc.String(req, "movement_type"),
		ReferenceID:  rpc.String(req, "reference_id"),
		StartDate:    start,
		EndDate:      end,
		Page:         int(page),
		PageSize:     int(pageSize),
	}

	mvs, count, err := h.uc.ListMovements(ctx, filters)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}

	return rpc.Response(struct {
		Movements []model.StockLedgerEntry `json:"movements"`
		Total     int                      `json:"total"`
	}{Movements: mvs, Total: count})
}
