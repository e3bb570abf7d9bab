package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/inventorypoint/dto"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/observability/tracing"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const EventTypeInventoryPointsSynced = "InventoryPointsSynced"

type Config struct {
	Brokers []string
	Topic   string
}

// SyncedEvent announces that the points of one data date were committed.
type SyncedEvent struct {
	EventID         string    `json:"event_id"`
	EventType       string    `json:"event_type"`
	DataDate        string    `json:"data_date"`
	Points          int       `json:"points"`
	EffectivePoints int       `json:"effective_points"`
	Warnings        int       `json:"warnings"`
	Timestamp       time.Time `json:"timestamp"`
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(cfg *Config) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// NewSyncedEvent builds the event for a committed summary.
func NewSyncedEvent(s *dto.SyncSummary, now time.Time) SyncedEvent {
	return SyncedEvent{
		EventID:         uuid.New().String(),
		EventType:       EventTypeInventoryPointsSynced,
		DataDate:        s.DataDate,
		Points:          s.PointsOut,
		EffectivePoints: s.EffectivePoints,
		Warnings:        s.Warnings,
		Timestamp:       now.UTC(),
	}
}

// PublishSynced writes the event keyed by data date so one date stays on one partition.
func (p *KafkaPublisher) PublishSynced(ctx context.Context, s *dto.SyncSummary) error {
	event := NewSyncedEvent(s, time.Now())
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(event.DataDate),
		Value:   value,
		Headers: tracing.InjectHeaders(ctx),
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
