package event

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-ledger-service/internal/pkg/broker"
)

const (
	TypeStockMovementRecorded    = "StockMovementRecorded"
	TypePriceChanged             = "PriceChanged"
	TypeStockDiscrepancyDetected = "StockDiscrepancyDetected"
)

type Event struct {
	EventID    string      `json:"event_id"`
	EventType  string      `json:"event_type"`
	MerchantID string      `json:"merchant_id"`
	Key        string      `json:"-"`
	Payload    interface{} `json:"payload"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Publisher announces committed ledger writes. A publish failure never undoes the write.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type KafkaPublisher struct {
	producer *broker.KafkaProducer
	timeout  time.Duration
}

func NewKafkaPublisher(producer *broker.KafkaProducer, timeout time.Duration) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, timeout: timeout}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.producer.PublishJSON(ctx, e.Key, e)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
