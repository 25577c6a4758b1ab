package stream

import (
	"context"
	"fmt"
	"time"

	"buybot/internal/app/port"
	"buybot/internal/domain/entity"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig holds Kafka producer settings.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes buy events to a topic keyed by token address,
// so events of one token stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(cfg KafkaConfig) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: writer, topic: cfg.Topic}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

// PublishEvent writes one event synchronously.
func (p *KafkaPublisher) PublishEvent(ctx context.Context, event entity.BuyEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode buy event %s: %w", event.ID, err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TokenAddress),
		Value: data,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.ID)},
		},
	})
	if err != nil {
		return fmt.Errorf("write to kafka topic %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the producer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var _ port.EventSink = (*KafkaPublisher)(nil)
