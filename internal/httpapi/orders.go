package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/nuestra-carne/internal/domain/order"
	"github.com/xenking/nuestra-carne/internal/domain/pricing"
	"github.com/xenking/nuestra-carne/internal/domain/promotion"
	"github.com/xenking/nuestra-carne/internal/domain/report"
)

type submitRequest struct {
	Customer      *order.Customer  `json:"cliente"`
	LineItems     []order.LineItem `json:"productos"`
	Total         json.RawMessage  `json:"total"`
	PromotionCode string           `json:"codigoPromocion"`
}

// parseTotal reads the declared total. Only JSON numbers are totals; null,
// false, 0 and "" count as absent, and any other value is reported as
// notNumber.
func parseTotal(raw json.RawMessage) (total *decimal.Decimal, notNumber bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false
	}
	d := jx.DecodeBytes(raw)
	switch d.Next() {
	case jx.Null:
		return nil, false
	case jx.Number:
		v, err := decimal.NewFromString(string(raw))
		if err != nil {
			return nil, true
		}
		return &v, false
	case jx.String:
		if v, err := d.Str(); err == nil && v == "" {
			return nil, false
		}
	case jx.Bool:
		if v, err := d.Bool(); err == nil && !v {
			return nil, false
		}
	}
	return nil, true
}

type submitData struct {
	Customer      string            `json:"cliente"`
	Products      int               `json:"productos"`
	Pricing       pricing.Breakdown `json:"precio"`
	Total         decimal.Decimal   `json:"total"`
	TotalMismatch bool              `json:"totalDiscrepancia"`
	Delivery      string            `json:"fechaEntrega"`
}

type promotionNotice struct {
	Code    string `json:"codigo"`
	Applied bool   `json:"aplicada"`
	Message string `json:"mensaje,omitempty"`
}

type submitResponse struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message"`
	OrderID    string           `json:"orderId"`
	EmailsSent bool             `json:"emailsSent"`
	Data       submitData       `json:"data"`
	Promotion  *promotionNotice `json:"promocion,omitempty"`
	Fallback   *Fallback        `json:"fallback,omitempty"`
}

func (s *Server) submitOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req submitRequest
	if e := decodeJSON(w, r, &req); e != nil {
		s.metrics.orderSubmitted(ctx, "invalid")
		e.write(w)
		return
	}

	total, notNumber := parseTotal(req.Total)
	result, err := s.orders.Submit(ctx, order.Submission{
		Customer:       req.Customer,
		LineItems:      req.LineItems,
		DeclaredTotal:  total,
		TotalNotNumber: notNumber,
		PromotionCode:  req.PromotionCode,
	})
	if err != nil {
		if e := mapOrderError(err); e != nil {
			s.metrics.orderSubmitted(ctx, "invalid")
			e.write(w)
			return
		}
		s.metrics.orderSubmitted(ctx, "error")
		internalError(w, r, err,
			"Ocurrió un error procesando tu pedido. Intenta de nuevo o contáctanos por WhatsApp.", &s.fallback)
		return
	}

	o := result.Order
	s.metrics.orderSubmitted(ctx, "accepted")
	s.metrics.orderRevenue.Add(ctx, o.Total.InexactFloat64())

	resp := submitResponse{
		Success:    true,
		Message:    "Pedido procesado exitosamente",
		OrderID:    o.ID,
		EmailsSent: true,
		Data: submitData{
			Customer:      o.Customer.Name,
			Products:      len(o.LineItems),
			Pricing:       o.Pricing,
			Total:         o.Total,
			TotalMismatch: o.TotalMismatch,
			Delivery:      o.Customer.DeliveryDate + " " + o.Customer.DeliveryTime,
		},
	}

	switch {
	case result.PromotionErr != nil:
		notice := &promotionNotice{Code: promotion.NormalizeCode(req.PromotionCode)}
		var ne *promotion.NotEligibleError
		if errors.As(result.PromotionErr, &ne) {
			notice.Message = promotionRejection(ne)
		}
		resp.Promotion = notice
	case o.PromotionCode != "":
		resp.Promotion = &promotionNotice{Code: o.PromotionCode, Applied: true}
	}

	status := http.StatusOK
	if result.NotificationErr != nil {
		s.metrics.notificationFailed(ctx, "order")
		status = http.StatusAccepted
		resp.EmailsSent = false
		resp.Message = "Tu pedido fue recibido, pero no pudimos enviar la confirmación. Contáctanos por WhatsApp."
		resp.Fallback = &s.fallback
	}
	writeJSON(w, r, status, resp)
}

type ordersResponse struct {
	Success bool          `json:"success"`
	Orders  []order.Order `json:"orders"`
}

type orderResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Order   *order.Order `json:"order"`
}

type statsResponse struct {
	Success bool          `json:"success"`
	Stats   *report.Stats `json:"stats"`
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.List(r.Context())
	if err != nil {
		internalError(w, r, err, "", nil)
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	writeJSON(w, r, http.StatusOK, ordersResponse{Success: true, Orders: orders})
}

func (s *Server) orderStats(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.All(r.Context())
	if err != nil {
		internalError(w, r, err, "", nil)
		return
	}
	writeJSON(w, r, http.StatusOK, statsResponse{Success: true, Stats: s.reports.Stats(orders, s.now())})
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.orderFailure(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, orderResponse{Success: true, Order: o})
}

type statusRequest struct {
	Status string `json:"estado"`
	Notes  string `json:"notas"`
}

func (s *Server) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if e := decodeJSON(w, r, &req); e != nil {
		e.write(w)
		return
	}
	id := r.PathValue("id")
	o, err := s.orders.UpdateStatus(r.Context(), id, req.Status, req.Notes)
	if err != nil {
		s.orderFailure(w, r, err)
		return
	}
	zctx.From(r.Context()).Info("Order status updated",
		zap.String("order_id", id),
		zap.String("status", string(o.Status)),
	)
	writeJSON(w, r, http.StatusOK, orderResponse{
		Success: true,
		Message: "Estado actualizado exitosamente",
		Order:   o,
	})
}

func (s *Server) orderFailure(w http.ResponseWriter, r *http.Request, err error) {
	if e := mapOrderError(err); e != nil {
		e.write(w)
		return
	}
	internalError(w, r, err, "", nil)
}
