// Package notify announces accepted orders and weekly reports.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/nuestra-carne/internal/domain/order"
	"github.com/xenking/nuestra-carne/internal/domain/report"
)

// Event types published on the bus.
const (
	EventOrderAccepted = "order.accepted"
	EventWeeklyReport  = "report.weekly"
)

// OrderEvent is the payload of EventOrderAccepted.
type OrderEvent struct {
	Type       string       `json:"type"`
	OccurredAt time.Time    `json:"occurredAt"`
	Order      *order.Order `json:"order"`
}

// ReportEvent is the payload of EventWeeklyReport. Message is the rendered
// WhatsApp summary.
type ReportEvent struct {
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurredAt"`
	Report     *report.Weekly `json:"report"`
	Message    string         `json:"message"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// producer writes JSON events to one topic.
type producer struct {
	topic      string
	writer     messageWriter
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

func (p *producer) publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	msg := kafka.Message{Key: []byte(key), Value: data}

	ctx, span := p.tracer.Start(ctx, "send "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.operation.name", "send"),
			attribute.String("messaging.destination.name", p.topic),
			attribute.String("messaging.kafka.message.key", key),
		),
	)
	defer span.End()

	p.propagator.Inject(ctx, headerCarrier{msg: &msg})

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errors.Wrapf(err, "write to %s", p.topic)
	}
	return nil
}

// KafkaConfig names the brokers and topics.
type KafkaConfig struct {
	Brokers      []string
	OrdersTopic  string
	ReportsTopic string
}

// Kafka publishes order and report events with trace context in the message
// headers.
type Kafka struct {
	orders  *producer
	reports *producer
	now     func() time.Time
}

// NewKafka creates a publisher. Connections are established lazily on the
// first write.
func NewKafka(cfg KafkaConfig, tp trace.TracerProvider) *Kafka {
	tracer := tp.Tracer("github.com/xenking/nuestra-carne/internal/notify")
	newProducer := func(topic string) *producer {
		return &producer{
			topic: topic,
			writer: &kafka.Writer{
				Addr:                   kafka.TCP(cfg.Brokers...),
				Topic:                  topic,
				Balancer:               &kafka.LeastBytes{},
				AllowAutoTopicCreation: true,
				BatchTimeout:           100 * time.Millisecond,
				RequiredAcks:           kafka.RequireOne,
			},
			tracer:     tracer,
			propagator: otel.GetTextMapPropagator(),
		}
	}
	return &Kafka{
		orders:  newProducer(cfg.OrdersTopic),
		reports: newProducer(cfg.ReportsTopic),
		now:     time.Now,
	}
}

// OrderAccepted publishes EventOrderAccepted keyed by order id.
func (k *Kafka) OrderAccepted(ctx context.Context, o *order.Order) error {
	return k.orders.publish(ctx, o.ID, OrderEvent{
		Type:       EventOrderAccepted,
		OccurredAt: k.now(),
		Order:      o,
	})
}

// WeeklyReport publishes EventWeeklyReport keyed by report id.
func (k *Kafka) WeeklyReport(ctx context.Context, r *report.Weekly, message string) error {
	return k.reports.publish(ctx, r.ID, ReportEvent{
		Type:       EventWeeklyReport,
		OccurredAt: k.now(),
		Report:     r,
		Message:    message,
	})
}

// Close flushes pending messages and closes both writers.
func (k *Kafka) Close() error {
	ordersErr := k.orders.writer.Close()
	reportsErr := k.reports.writer.Close()
	if ordersErr != nil {
		return errors.Wrap(ordersErr, "close orders writer")
	}
	if reportsErr != nil {
		return errors.Wrap(reportsErr, "close reports writer")
	}
	return nil
}
