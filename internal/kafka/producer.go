package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-booking/internal/logger"
)

// Producer writes booking and trip events. One writer serves every topic;
// the topic is set per message.
type Producer struct {
	Writer *kafka.Writer
	Logger *logger.Logger
}

func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return &Producer{Writer: writer, Logger: log}
}

// Publish sends one message keyed by key so events for the same booking stay ordered.
func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	err := p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		p.Logger.Error("KAFKA", fmt.Sprintf("Publish to %s failed for key %s: %v", topic, key, err))
		return err
	}
	p.Logger.LogKafka("PUBLISH", topic, key)
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// NopPublisher drops every event. Used when Kafka is disabled.
type NopPublisher struct {
	Logger *logger.Logger
}

func (n NopPublisher) Publish(ctx context.Context, topic, key string, value []byte) error {
	if n.Logger != nil {
		n.Logger.Debug("KAFKA", fmt.Sprintf("Kafka disabled, dropping %s event for %s", topic, key))
	}
	return nil
}
