// Package httpapi exposes the storefront and admin JSON API over net/http.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/nuestra-carne/internal/domain/order"
	"github.com/xenking/nuestra-carne/internal/domain/promotion"
	"github.com/xenking/nuestra-carne/internal/domain/report"
	"github.com/xenking/nuestra-carne/pkg/httpmiddleware"
)

// ReportPublisher delivers the weekly summary.
type ReportPublisher interface {
	WeeklyReport(ctx context.Context, r *report.Weekly, message string) error
}

// Options holds the Server dependencies.
type Options struct {
	Orders     *order.Service
	Promotions *promotion.Service
	Reports    *report.Aggregator
	Publisher  ReportPublisher
	Admin      Credentials
	Fallback   Fallback
	// OrderLimit guards order submission. Nil disables it.
	OrderLimit httpmiddleware.Middleware
	// Meter records business counters. Nil uses a no-op meter.
	Meter metric.Meter
}

// Server implements the API handlers.
type Server struct {
	orders     *order.Service
	promotions *promotion.Service
	reports    *report.Aggregator
	publisher  ReportPublisher
	admin      Credentials
	fallback   Fallback
	orderLimit httpmiddleware.Middleware
	metrics    *metrics
	now        func() time.Time
}

// New creates a Server.
func New(opts Options) (*Server, error) {
	meter := opts.Meter
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("httpapi")
	}
	m, err := newMetrics(meter)
	if err != nil {
		return nil, err
	}
	return &Server{
		orders:     opts.Orders,
		promotions: opts.Promotions,
		reports:    opts.Reports,
		publisher:  opts.Publisher,
		admin:      opts.Admin,
		fallback:   opts.Fallback,
		orderLimit: opts.OrderLimit,
		metrics:    m,
		now:        time.Now,
	}, nil
}

// Register adds every API route to mux.
func (s *Server) Register(mux *http.ServeMux) {
	handle := func(pattern string, h http.HandlerFunc, mw ...httpmiddleware.Middleware) {
		mux.Handle(pattern, httpmiddleware.Route(pattern, httpmiddleware.Wrap(h, mw...)))
	}
	admin := s.requireAdmin

	submit := []httpmiddleware.Middleware{}
	if s.orderLimit != nil {
		submit = append(submit, s.orderLimit)
	}
	handle("POST /api/orders/submit", s.submitOrder, submit...)

	handle("GET /api/promociones", s.activePromotions)
	handle("POST /api/promociones/validate", s.validatePromotion)
	handle("POST /api/promociones/apply", s.applyPromotion)
	handle("GET /api/promociones/admin/all", s.allPromotions, admin)
	handle("POST /api/promociones/admin/create", s.createPromotion, admin)
	handle("PUT /api/promociones/admin/{id}", s.updatePromotion, admin)
	handle("DELETE /api/promociones/admin/{id}", s.deletePromotion, admin)

	handle("POST /api/admin/login", s.login)
	handle("GET /api/admin/orders", s.listOrders, admin)
	handle("GET /api/admin/orders/stats", s.orderStats, admin)
	handle("GET /api/admin/orders/{id}", s.getOrder, admin)
	handle("PUT /api/admin/orders/{id}/status", s.updateOrderStatus, admin)

	handle("GET /api/reports/weekly", s.weeklyReport, admin)
	handle("GET /api/reports/weekly/{date}", s.weeklyReportFor, admin)
	handle("GET /api/reports/history", s.reportHistory, admin)
	handle("POST /api/reports/send-weekly", s.sendWeeklyReport, admin)
}
