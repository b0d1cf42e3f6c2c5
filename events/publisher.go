package events

import (
	"context"
	"encoding/json"
	"fmt"

	aws_pkg "github.com/kingjethro999/the-ecommerce-api/pkg/aws"
	"github.com/kingjethro999/the-ecommerce-api/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher delivers order events to downstream services. key groups
// events for one order.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
	Close() error
}

// PublishOrderEvent encodes and publishes evt keyed by its order id.
func PublishOrderEvent(ctx context.Context, p Publisher, evt models.OrderEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.Publish(ctx, evt.OrderID, data)
}

// SNSPublisher fans order events out through an SNS topic.
type SNSPublisher struct {
	client   aws_pkg.SNSPublisher
	topicArn string
}

func NewSNSPublisher(client aws_pkg.SNSPublisher, topicArn string) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn}
}

func (p *SNSPublisher) Publish(ctx context.Context, _ string, payload []byte) error {
	return p.client.Publish(ctx, p.topicArn, payload)
}

func (p *SNSPublisher) Close() error { return nil }

// KafkaPublisher writes order events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	logger.Info("Kafka producer initialized", zap.String("topic", topic), zap.Strings("brokers", brokers))
	return &KafkaPublisher{writer: w, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, payload []byte) error {
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: payload}); err != nil {
		return fmt.Errorf("kafka write to %s failed: %w", p.writer.Topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	err := p.writer.Close()
	p.logger.Info("Kafka producer closed")
	return err
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (NopPublisher) Close() error                                  { return nil }
