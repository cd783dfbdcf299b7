package notify

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/nuestra-carne/internal/domain/order"
	"github.com/xenking/nuestra-carne/internal/domain/report"
)

// Log writes notifications to the request logger. It is used when no brokers
// are configured and never fails.
type Log struct{}

// OrderAccepted logs the accepted order.
func (Log) OrderAccepted(ctx context.Context, o *order.Order) error {
	zctx.From(ctx).Info("Order accepted",
		zap.String("order_id", o.ID),
		zap.String("customer", o.Customer.Name),
		zap.String("phone", o.Customer.Phone),
		zap.Int("lines", len(o.LineItems)),
		zap.String("total", o.Total.StringFixed(2)),
		zap.String("delivery", o.Customer.DeliveryDate+" "+o.Customer.DeliveryTime),
	)
	return nil
}

// WeeklyReport logs the rendered summary.
func (Log) WeeklyReport(ctx context.Context, r *report.Weekly, message string) error {
	zctx.From(ctx).Info("Weekly report",
		zap.String("report_id", r.ID),
		zap.Int("orders", r.Summary.TotalOrders),
		zap.String("message", message),
	)
	return nil
}

// Close is a no-op.
func (Log) Close() error { return nil }
