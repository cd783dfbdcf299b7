package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/nuestra-carne/internal/domain/order"
	"github.com/xenking/nuestra-carne/internal/domain/report"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var fixedNow = time.Date(2025, 6, 18, 15, 0, 0, 0, time.UTC)

func newTestKafka() (*Kafka, *fakeWriter, *fakeWriter) {
	k := NewKafka(KafkaConfig{Brokers: []string{"localhost:9092"}, OrdersTopic: "carne.orders", ReportsTopic: "carne.reports"},
		noop.NewTracerProvider())
	orders, reports := &fakeWriter{}, &fakeWriter{}
	k.orders.writer, k.reports.writer = orders, reports
	k.orders.propagator = propagation.TraceContext{}
	k.reports.propagator = propagation.TraceContext{}
	k.now = func() time.Time { return fixedNow }
	return k, orders, reports
}

func sampleOrder() *order.Order {
	return &order.Order{
		ID:       "8d3c",
		Customer: order.Customer{Name: "Ana", Phone: "6000-0001", DeliveryDate: "2025-06-20", DeliveryTime: "10:00"},
		LineItems: []order.LineItem{{
			ProductCode: "PIC", ProductName: "Picaña", Quantity: decimal.NewFromInt(2),
			LineSubtotal: decimal.RequireFromString("30.00"),
		}},
		Total:  decimal.RequireFromString("33.50"),
		Status: order.StatusPending,
	}
}

func remoteContext(t *testing.T) (context.Context, trace.SpanContext) {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return trace.ContextWithSpanContext(context.Background(), sc), sc
}

func TestKafka_OrderAccepted(t *testing.T) {
	k, orders, reports := newTestKafka()
	ctx, sc := remoteContext(t)

	require.NoError(t, k.OrderAccepted(ctx, sampleOrder()))
	require.Len(t, orders.msgs, 1)
	assert.Empty(t, reports.msgs)

	msg := orders.msgs[0]
	assert.Equal(t, "8d3c", string(msg.Key))

	var event struct {
		Type       string    `json:"type"`
		OccurredAt time.Time `json:"occurredAt"`
		Order      struct {
			ID     string `json:"id"`
			Estado string `json:"estado"`
		} `json:"order"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, EventOrderAccepted, event.Type)
	assert.True(t, fixedNow.Equal(event.OccurredAt))
	assert.Equal(t, "8d3c", event.Order.ID)
	assert.Equal(t, "pendiente", event.Order.Estado)

	extracted := propagation.TraceContext{}.Extract(context.Background(), headerCarrier{msg: &msg})
	got := trace.SpanContextFromContext(extracted)
	assert.Equal(t, sc.TraceID(), got.TraceID())
}

func TestKafka_WeeklyReport(t *testing.T) {
	k, orders, reports := newTestKafka()
	r := &report.Weekly{ID: "weekly-2025-06-14"}

	require.NoError(t, k.WeeklyReport(context.Background(), r, "📊 REPORTE SEMANAL"))
	assert.Empty(t, orders.msgs)
	require.Len(t, reports.msgs, 1)
	assert.Equal(t, "weekly-2025-06-14", string(reports.msgs[0].Key))

	var event ReportEvent
	require.NoError(t, json.Unmarshal(reports.msgs[0].Value, &event))
	assert.Equal(t, EventWeeklyReport, event.Type)
	assert.Equal(t, "📊 REPORTE SEMANAL", event.Message)
	require.NotNil(t, event.Report)
	assert.Equal(t, "weekly-2025-06-14", event.Report.ID)
}

func TestKafka_WriteFailure(t *testing.T) {
	k, orders, _ := newTestKafka()
	orders.err = errors.New("broker unreachable")

	err := k.OrderAccepted(context.Background(), sampleOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write to carne.orders")
	assert.ErrorIs(t, err, orders.err)
}

func TestKafka_Close(t *testing.T) {
	k, orders, reports := newTestKafka()
	require.NoError(t, k.Close())
	assert.True(t, orders.closed)
	assert.True(t, reports.closed)
}

func TestHeaderCarrier(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{{Key: "traceparent", Value: []byte("old")}}}
	c := headerCarrier{msg: &msg}

	c.Set("traceparent", "new")
	c.Set("tracestate", "k=v")
	assert.Equal(t, "new", c.Get("traceparent"))
	assert.Equal(t, "k=v", c.Get("tracestate"))
	assert.Empty(t, c.Get("baggage"))
	assert.Equal(t, []string{"traceparent", "tracestate"}, c.Keys())
	assert.Len(t, msg.Headers, 2)
}

func TestLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := zctx.Base(context.Background(), zap.New(core))

	var n Log
	require.NoError(t, n.OrderAccepted(ctx, sampleOrder()))
	require.NoError(t, n.WeeklyReport(ctx, &report.Weekly{ID: "weekly-2025-06-14"}, "hola"))
	require.NoError(t, n.Close())

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Order accepted", entries[0].Message)
	assert.Equal(t, "33.50", entries[0].ContextMap()["total"])
	assert.Equal(t, "Weekly report", entries[1].Message)
	assert.Equal(t, "weekly-2025-06-14", entries[1].ContextMap()["report_id"])
}
