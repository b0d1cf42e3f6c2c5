package services

import (
	"context"

	"github.com/kingjethro999/the-ecommerce-api/events"
	"github.com/kingjethro999/the-ecommerce-api/repository"
	"go.uber.org/zap"
)

// MetricsRecorder is satisfied by pkg/aws.MetricsClient.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
	RecordValue(ctx context.Context, metricName string, value float64, dimensions map[string]string) error
}

// Deps carries the collaborators shared by the payment services.
// Cache may be nil.
type Deps struct {
	Store       repository.CatalogStore
	Gateway     PaymentGateway
	Codec       *MetadataCodec
	Identifiers IdentifierSource
	Cache       ProductCache
	Publisher   events.Publisher
	Alerter     events.Alerter
	Metrics     MetricsRecorder
	Logger      *zap.Logger
}

func (d Deps) count(ctx context.Context, metric string, dims map[string]string) {
	if d.Metrics == nil {
		return
	}
	if err := d.Metrics.RecordCount(ctx, metric, dims); err != nil {
		d.Logger.Debug("metric not recorded", zap.String("metric", metric), zap.Error(err))
	}
}

func (d Deps) value(ctx context.Context, metric string, v float64, dims map[string]string) {
	if d.Metrics == nil {
		return
	}
	if err := d.Metrics.RecordValue(ctx, metric, v, dims); err != nil {
		d.Logger.Debug("metric not recorded", zap.String("metric", metric), zap.Error(err))
	}
}
