package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/inventorypoint"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/inventorypoint/dto"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/logger"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/observability/tracing"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const EventTypeSyncRequested = "InventoryPointsSyncRequested"

type Consumer interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewKafkaConsumer builds a group reader that commits offsets after each read.
func NewKafkaConsumer(cfg *Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
}

// SyncListener runs syncs requested over Kafka, one message at a time.
type SyncListener struct {
	consumer Consumer
	uc       inventorypoint.UseCase
	logger   logger.ZapLogger
	now      func() time.Time

	retryDelay time.Duration
}

func NewSyncListener(consumer Consumer, uc inventorypoint.UseCase, logger logger.ZapLogger) *SyncListener {
	return &SyncListener{
		consumer: consumer,
		uc:       uc,
		logger:   logger,
		now:      time.Now,

		retryDelay: time.Second,
	}
}

func (l *SyncListener) Start(ctx context.Context) {
	l.logger.Info("Starting inventory point sync listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping inventory point sync listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				select {
				case <-ctx.Done():
					l.logger.Info("Stopping inventory point sync listener")
					return
				case <-time.After(l.retryDelay):
				}
				continue
			}
			l.processMessage(tracing.ExtractHeaders(ctx, msg.Headers), msg.Value)
		}
	}
}

type SyncRequestedEvent struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   dto.SyncRequest `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

func (l *SyncListener) processMessage(ctx context.Context, value []byte) {
	var event SyncRequestedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	if event.EventType != EventTypeSyncRequested {
		return
	}

	dates, err := event.Payload.Dates(l.now())
	if err != nil {
		l.logger.Warn("Ignoring sync request", zap.String("event_id", event.EventID), zap.Error(err))
		return
	}

	l.logger.Info("Processing sync request", zap.String("event_id", event.EventID), zap.Int("dates", len(dates)))

	summaries, err := l.uc.SyncRange(ctx, dates)
	if err != nil {
		// Failed dates are recorded in sync_task_log; the request is not redelivered.
		l.logger.Error("Sync request finished with failures",
			zap.String("event_id", event.EventID),
			zap.Int("synced", len(summaries)),
			zap.Error(err),
		)
	}
}
