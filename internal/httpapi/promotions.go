package httpapi

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/nuestra-carne/internal/domain/promotion"
)

type promotionsResponse struct {
	Success    bool                  `json:"success"`
	Promotions []promotion.Promotion `json:"promociones"`
}

type promotionResponse struct {
	Success   bool                 `json:"success"`
	Message   string               `json:"message"`
	Promotion *promotion.Promotion `json:"promocion,omitempty"`
}

func (s *Server) activePromotions(w http.ResponseWriter, r *http.Request) {
	active, err := s.promotions.Active(r.Context())
	if err != nil {
		internalError(w, r, err, "Error al obtener promociones", nil)
		return
	}
	writeJSON(w, r, http.StatusOK, promotionsResponse{Success: true, Promotions: active})
}

func (s *Server) allPromotions(w http.ResponseWriter, r *http.Request) {
	all, err := s.promotions.All(r.Context())
	if err != nil {
		internalError(w, r, err, "Error al obtener promociones", nil)
		return
	}
	writeJSON(w, r, http.StatusOK, promotionsResponse{Success: true, Promotions: all})
}

type validateRequest struct {
	Code   string          `json:"codigo"`
	Amount decimal.Decimal `json:"montoTotal"`
}

type promotionSummary struct {
	ID          string          `json:"id"`
	Name        string          `json:"nombre"`
	Description string          `json:"descripcion"`
	Code        string          `json:"codigo"`
	Kind        promotion.Kind  `json:"tipo"`
	Value       decimal.Decimal `json:"valor"`
}

type validateResponse struct {
	Success   bool             `json:"success"`
	Promotion promotionSummary `json:"promocion"`
	Discount  decimal.Decimal  `json:"descuento"`
}

func (s *Server) validatePromotion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req validateRequest
	if e := decodeJSON(w, r, &req); e != nil {
		e.write(w)
		return
	}
	v, err := s.promotions.Validate(ctx, req.Code, req.Amount)
	if err != nil {
		if e := mapPromotionError(err); e != nil {
			s.metrics.promotionChecked(ctx, "rejected")
			e.write(w)
			return
		}
		s.metrics.promotionChecked(ctx, "error")
		internalError(w, r, err, "Error al validar promoción", nil)
		return
	}
	s.metrics.promotionChecked(ctx, "valid")

	p := v.Promotion
	writeJSON(w, r, http.StatusOK, validateResponse{
		Success: true,
		Promotion: promotionSummary{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Code:        p.Code,
			Kind:        p.Kind,
			Value:       p.Value,
		},
		Discount: v.Discount,
	})
}

type applyRequest struct {
	PromotionID string `json:"promocionId"`
}

func (s *Server) applyPromotion(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if e := decodeJSON(w, r, &req); e != nil {
		e.write(w)
		return
	}
	if _, err := s.promotions.Apply(r.Context(), req.PromotionID); err != nil {
		s.promotionFailure(w, r, err, "Error al aplicar promoción")
		return
	}
	writeJSON(w, r, http.StatusOK, promotionResponse{Success: true, Message: "Promoción aplicada exitosamente"})
}

type promotionInput struct {
	Code           *string          `json:"codigo"`
	Name           *string          `json:"nombre"`
	Description    *string          `json:"descripcion"`
	Kind           *promotion.Kind  `json:"tipo"`
	Value          *decimal.Decimal `json:"valor"`
	MinimumAmount  *decimal.Decimal `json:"montoMinimo"`
	ValidFrom      *string          `json:"fechaInicio"`
	ValidUntil     *string          `json:"fechaFin"`
	MaxRedemptions *int             `json:"usoMaximo"`
	Active         *bool            `json:"activa"`
	AppliesTo      *string          `json:"aplicableA"`
	Categories     []string         `json:"categorias"`
}

var errInvalidDate = &apiError{
	Status:  http.StatusBadRequest,
	Err:     "Fecha inválida",
	Message: "Usa el formato AAAA-MM-DD",
}

// bounds parses the validity window. Date-only values cover whole days in
// the business time zone.
func (s *Server) bounds(in promotionInput) (from, until *time.Time, _ *apiError) {
	loc := s.reports.Location()
	if in.ValidFrom != nil && *in.ValidFrom != "" {
		t, err := promotion.ParseBound(*in.ValidFrom, loc, false)
		if err != nil {
			return nil, nil, errInvalidDate
		}
		from = &t
	}
	if in.ValidUntil != nil && *in.ValidUntil != "" {
		t, err := promotion.ParseBound(*in.ValidUntil, loc, true)
		if err != nil {
			return nil, nil, errInvalidDate
		}
		until = &t
	}
	return from, until, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (s *Server) createPromotion(w http.ResponseWriter, r *http.Request) {
	var in promotionInput
	if e := decodeJSON(w, r, &in); e != nil {
		e.write(w)
		return
	}
	from, until, e := s.bounds(in)
	if e != nil {
		e.write(w)
		return
	}
	p, err := s.promotions.Create(r.Context(), promotion.Draft{
		Code:               deref(in.Code),
		Name:               deref(in.Name),
		Description:        deref(in.Description),
		Kind:               deref(in.Kind),
		Value:              deref(in.Value),
		MinimumOrderAmount: deref(in.MinimumAmount),
		ValidFrom:          from,
		ValidUntil:         until,
		MaxRedemptions:     deref(in.MaxRedemptions),
		AppliesTo:          deref(in.AppliesTo),
		Categories:         in.Categories,
	})
	if err != nil {
		s.promotionFailure(w, r, err, "Error al crear promoción")
		return
	}
	zctx.From(r.Context()).Info("Promotion created", zap.String("code", p.Code), zap.String("id", p.ID))
	writeJSON(w, r, http.StatusOK, promotionResponse{
		Success:   true,
		Message:   "Promoción creada exitosamente",
		Promotion: p,
	})
}

func (s *Server) updatePromotion(w http.ResponseWriter, r *http.Request) {
	var in promotionInput
	if e := decodeJSON(w, r, &in); e != nil {
		e.write(w)
		return
	}
	from, until, e := s.bounds(in)
	if e != nil {
		e.write(w)
		return
	}
	p, err := s.promotions.Update(r.Context(), r.PathValue("id"), promotion.Patch{
		Code:               in.Code,
		Name:               in.Name,
		Description:        in.Description,
		Kind:               in.Kind,
		Value:              in.Value,
		MinimumOrderAmount: in.MinimumAmount,
		ValidFrom:          from,
		ValidUntil:         until,
		MaxRedemptions:     in.MaxRedemptions,
		Active:             in.Active,
		AppliesTo:          in.AppliesTo,
		Categories:         in.Categories,
	})
	if err != nil {
		s.promotionFailure(w, r, err, "Error al actualizar promoción")
		return
	}
	writeJSON(w, r, http.StatusOK, promotionResponse{
		Success:   true,
		Message:   "Promoción actualizada exitosamente",
		Promotion: p,
	})
}

func (s *Server) deletePromotion(w http.ResponseWriter, r *http.Request) {
	if err := s.promotions.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.promotionFailure(w, r, err, "Error al eliminar promoción")
		return
	}
	writeJSON(w, r, http.StatusOK, promotionResponse{Success: true, Message: "Promoción eliminada exitosamente"})
}

func (s *Server) promotionFailure(w http.ResponseWriter, r *http.Request, err error, message string) {
	if e := mapPromotionError(err); e != nil {
		e.write(w)
		return
	}
	internalError(w, r, err, message, nil)
}
