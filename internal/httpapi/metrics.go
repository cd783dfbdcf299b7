package httpapi

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics are the storefront business counters.
type metrics struct {
	ordersSubmitted      metric.Int64Counter
	orderRevenue         metric.Float64Counter
	promotionsValidated  metric.Int64Counter
	notificationFailures metric.Int64Counter
}

func newMetrics(m metric.Meter) (*metrics, error) {
	var (
		out metrics
		err error
	)
	if out.ordersSubmitted, err = m.Int64Counter("carne.orders.submitted",
		metric.WithDescription("Order submissions by outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "orders submitted counter")
	}
	if out.orderRevenue, err = m.Float64Counter("carne.orders.revenue",
		metric.WithDescription("Accepted order totals"),
		metric.WithUnit("USD"),
	); err != nil {
		return nil, errors.Wrap(err, "order revenue counter")
	}
	if out.promotionsValidated, err = m.Int64Counter("carne.promotions.validated",
		metric.WithDescription("Promotion code checks by outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "promotions validated counter")
	}
	if out.notificationFailures, err = m.Int64Counter("carne.notifications.failed",
		metric.WithDescription("Order and report notifications that could not be delivered"),
	); err != nil {
		return nil, errors.Wrap(err, "notification failures counter")
	}
	return &out, nil
}

func (m *metrics) orderSubmitted(ctx context.Context, outcome string) {
	m.ordersSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *metrics) promotionChecked(ctx context.Context, outcome string) {
	m.promotionsValidated.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *metrics) notificationFailed(ctx context.Context, kind string) {
	m.notificationFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
