package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/aromapulse/authgate/src/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes login events as JSON, keyed by user id.
type KafkaSink struct {
	w     messageWriter
	topic string
	log   *zap.Logger
}

func NewKafkaSink(brokers []string, topic string, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		topic: topic,
		log:   logger.With(zap.String("component", "audit.kafka"), zap.String("topic", topic)),
	}
}

func (k *KafkaSink) Write(ctx context.Context, event *models.LoginEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal login event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.UserID, 10)),
		Value: value,
		Time:  event.LoginAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("user.login")},
			{Key: "login_method", Value: []byte(event.LoginMethod)},
		},
	}

	if err := k.w.WriteMessages(ctx, msg); err != nil {
		k.log.Error("kafka write failed", zap.Error(err))
		return fmt.Errorf("kafka write: %w", err)
	}
	k.log.Debug("login event published", zap.Int64("user_id", event.UserID))
	return nil
}

func (k *KafkaSink) Close() error { return k.w.Close() }
