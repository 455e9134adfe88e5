package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-ledger-service/internal/stock"
	"github.com/fekuna/omnipos-ledger-service/internal/stock/dto"
)

const (
	EventOrderCreated  = "OrderCreated"
	EventOrderReturned = "OrderReturned"

	// SystemActor performs every movement derived from an order event.
	SystemActor = "system"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type OrderListener struct {
	reader     MessageReader
	uc         stock.UseCase
	logger     logger.ZapLogger
	retryDelay time.Duration
}

func NewOrderListener(reader MessageReader, uc stock.UseCase, log logger.ZapLogger) *OrderListener {
	return &OrderListener{
		reader:     reader,
		uc:         uc,
		logger:     log,
		retryDelay: time.Second,
	}
}

func (l *OrderListener) Start(ctx context.Context) {
	l.logger.Info("Starting order Kafka listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping order Kafka listener")
			return
		default:
			msg, err := l.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(l.retryDelay):
				}
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

type OrderEvent struct {
	EventID   string       `json:"event_id"`
	EventType string       `json:"event_type"`
	Payload   OrderPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
}

type OrderPayload struct {
	ID         string             `json:"id"`
	MerchantID string             `json:"merchant_id"`
	Items      []OrderItemPayload `json:"items"`
}

type OrderItemPayload struct {
	SizeID       string `json:"size_id"`
	SubProductID string `json:"sub_product_id"`
	Quantity     int64  `json:"quantity"`
}

func (l *OrderListener) processMessage(ctx context.Context, value []byte) {
	var evt OrderEvent
	if err := json.Unmarshal(value, &evt); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	var movementType model.MovementType
	var reason string
	switch evt.EventType {
	case EventOrderCreated:
		movementType, reason = model.MovementSale, "Order sale"
	case EventOrderReturned:
		movementType, reason = model.MovementReturn, "Order return"
	default:
		return
	}

	l.logger.Info("Processing order event",
		zap.String("event_type", evt.EventType),
		zap.String("order_id", evt.Payload.ID),
		zap.Int("items", len(evt.Payload.Items)),
	)

	for _, item := range evt.Payload.Items {
		input := &dto.RecordMovementInput{
			MerchantID:   evt.Payload.MerchantID,
			SizeID:       item.SizeID,
			SubProductID: item.SubProductID,
			MovementType: movementType,
			Quantity:     item.Quantity,
			Reason:       reason,
			ReferenceID:  evt.Payload.ID,
			UserID:       SystemActor,
		}

		if _, err := l.uc.RecordMovement(ctx, input); err != nil {
			l.logger.Error("Failed to record movement for order item",
				zap.String("order_id", evt.Payload.ID),
				zap.String("size_id", item.SizeID),
				zap.String("sub_product_id", item.SubProductID),
				zap.Error(err),
			)
		}
	}
}
