package events

import (
	"context"
	"encoding/json"

	aws_pkg "github.com/kingjethro999/the-ecommerce-api/pkg/aws"
	"github.com/kingjethro999/the-ecommerce-api/models"
	"go.uber.org/zap"
)

// Alerter pages operators about payments that cannot become orders.
type Alerter interface {
	Alert(ctx context.Context, alert models.PipelineAlert) error
}

type SNSAlerter struct {
	client   aws_pkg.SNSPublisher
	topicArn string
}

func NewSNSAlerter(client aws_pkg.SNSPublisher, topicArn string) *SNSAlerter {
	return &SNSAlerter{client: client, topicArn: topicArn}
}

func (a *SNSAlerter) Alert(ctx context.Context, alert models.PipelineAlert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	return a.client.Publish(ctx, a.topicArn, data)
}

// LogAlerter writes alerts to the error log when no topic is configured.
type LogAlerter struct {
	logger *zap.Logger
}

func NewLogAlerter(logger *zap.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

func (a *LogAlerter) Alert(_ context.Context, alert models.PipelineAlert) error {
	a.logger.Error("ALERT: payment pipeline",
		zap.String("kind", alert.Kind),
		zap.String("payment_intent_id", alert.PaymentIntentID),
		zap.String("source", alert.Source),
		zap.String("message", alert.Message),
	)
	return nil
}
