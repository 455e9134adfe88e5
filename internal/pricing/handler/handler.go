package handler

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/fekuna/omnipos-ledger-service/internal/auth"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/rpc"
	"github.com/fekuna/omnipos-ledger-service/internal/pricing"
	"github.com/fekuna/omnipos-ledger-service/internal/pricing/dto"
)

const ServiceName = "omnipos.ledger.v1.PricingService"

type PricingServiceServer interface {
	AdjustPriceNow(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SchedulePriceChange(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CancelScheduledChange(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetScheduledChange(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListScheduledChanges(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListPriceAudit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RunDueScheduledChanges(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func method(name string, pick func(PricingServiceServer) rpc.UnaryFunc) grpc.MethodDesc {
	return rpc.Method(ServiceName, name, func(s interface{}) rpc.UnaryFunc { return pick(s.(PricingServiceServer)) })
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PricingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		method("AdjustPriceNow", func(s PricingServiceServer) rpc.UnaryFunc { return s.AdjustPriceNow }),
		method("SchedulePriceChange", func(s PricingServiceServer) rpc.UnaryFunc { return s.SchedulePriceChange }),
		method("CancelScheduledChange", func(s PricingServiceServer) rpc.UnaryFunc { return s.CancelScheduledChange }),
		method("GetScheduledChange", func(s PricingServiceServer) rpc.UnaryFunc { return s.GetScheduledChange }),
		method("ListScheduledChanges", func(s PricingServiceServer) rpc.UnaryFunc { return s.ListScheduledChanges }),
		method("ListPriceAudit", func(s PricingServiceServer) rpc.UnaryFunc { return s.ListPriceAudit }),
		method("RunDueScheduledChanges", func(s PricingServiceServer) rpc.UnaryFunc { return s.RunDueScheduledChanges }),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "omnipos/ledger/v1/pricing.proto",
}

func RegisterPricingServiceServer(s grpc.ServiceRegistrar, srv PricingServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type PricingHandler struct {
	uc     pricing.UseCase
	logger logger.ZapLogger
}

func NewPricingHandler(uc pricing.UseCase, log logger.ZapLogger) *PricingHandler {
	return &PricingHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *PricingHandler) AdjustPriceNow(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	merchantID, err := auth.RequireMerchantID(ctx)
	if err != nil {
		return nil, err
	}
	price, err := rpc.Decimal(req, "new_price")
	if err != nil {
		return nil, err
	}

	id, err := h.uc.AdjustPriceNow(ctx, &dto.AdjustPriceInput{
		MerchantID:   merchantID,
		SubProductID: rpc.String(req, "sub_product_id"),
		NewPrice:     price,
		Reason:       rpc.String(req, "reason"),
		UserID:       auth.GetUserID(ctx),
	})
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{"audit_record_id": id})
}

func (h *PricingHandler) SchedulePriceChange(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	merchantID, err := auth.RequireMerchantID(ctx)
	if err != nil {
		return nil, err
	}
	price, err := rpc.Decimal(req, "new_price")
	if err != nil {
		return nil, err
	}
	effectiveAt, err := rpc.Time(req, "effective_at")
	if err != nil {
		return nil, err
	}
	if effectiveAt == nil {
		return nil, status.Error(codes.InvalidArgument, "effective_at is required")
	}

	id, err := h.uc.SchedulePriceChange(ctx, &dto.SchedulePriceChangeInput{
		MerchantID:  merchantID,
		ProductID:   rpc.String(req, "product_id"),
		NewPrice:    price,
		EffectiveAt: *effectiveAt,
		UserID:      auth.GetUserID(ctx),
	})
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{"schedule_id": id})
}

func (h *PricingHandler) CancelScheduledChange(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	merchantID, err := auth.RequireMerchantID(ctx)
	if err != nil {
		return nil, err
	}

	err = h.uc.CancelScheduledChange(ctx, &dto.CancelScheduleInput{
		MerchantID: merchantID,
		ScheduleID: rpc.String(req, "schedule_id"),
		UserID:     auth.GetUserID(ctx),
	})
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{"status": string(model.ScheduleCancelled)})
}

func (h *PricingHandler) GetScheduledChange(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	merchantID, err := auth.RequireMerchantID(ctx)
	if err != nil {
		return nil, err
	}

	s, err := h.uc.GetScheduledChange(ctx, merchantID, rpc.String(req, "schedule_id"))
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return rpc.Response(s)
}

func (h *PricingHandler) ListScheduledChanges(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
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

	items, count, err := h.uc.ListScheduledChanges(ctx, &dto.ScheduleFilters{
		MerchantID: merchantID,
		ProductID:  rpc.String(req, "product_id"),
		Status:     rpc.String(req, "status"),
		Page:       int(page),
		PageSize:   int(pageSize),
	})
	if err != nil {
		return nil, rpc.ToStatus(err)
	}

	return rpc.Response(struct {
		Items []model.ScheduledPriceChange `json:"items"`
		Total int                          `json:"total"`
	}{Items: items, Total: count})
}

func (h *PricingHandler) ListPriceAudit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
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

	items, count, err := h.uc.ListPriceAudit(ctx, &dto.AuditFilters{
		MerchantID:   merchantID,
		SubProductID: rpc.String(req, "sub_product_id"),
		Source:       rpc.String(req, "source"),
		StartDate:    start,
		EndDate:      end,
		Page:         int(page),
		PageSize:     int(pageSize),
	})
	if err != nil {
		return nil, rpc.ToStatus(err)
	}

	return rpc.Response(struct {
		Items []model.PriceAuditRecord `json:"items"`
		Total int                      `json:"total"`
	}{Items: items, Total: count})
}

// RunDueScheduledChanges runs one sweep over every merchant. It is an operator entry point,
// so it does not require a merchant header. Item errors are reported next to the counts.
func (h *PricingHandler) RunDueScheduledChanges(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := h.uc.RunDueScheduledChanges(ctx, time.Now().UTC())
	if res == nil {
		return nil, rpc.ToStatus(err)
	}

	out := struct {
		*dto.SweepResult
		Errors string `json:"errors,omitempty"`
	}{SweepResult: res}
	if err != nil {
		out.Errors = err.Error()
	}
	return rpc.Response(out)
}
