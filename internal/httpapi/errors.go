package httpapi

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/nuestra-carne/internal/domain/order"
	"github.com/xenking/nuestra-carne/internal/domain/promotion"
)

// mapOrderError converts order domain errors to client failures. Unknown
// errors return nil and are answered with 500 by the caller.
func mapOrderError(err error) *apiError {
	var ve *order.ValidationError
	if errors.As(err, &ve) {
		return orderValidation(ve)
	}

	var se *order.InvalidStateError
	if errors.As(err, &se) {
		return &apiError{Status: http.StatusBadRequest, Err: "Estado inválido", Message: se.Error()}
	}

	if errors.Is(err, order.ErrNotFound) {
		return &apiError{Status: http.StatusNotFound, Err: "Pedido no encontrado"}
	}
	return nil
}

func orderValidation(ve *order.ValidationError) *apiError {
	e := &apiError{Status: http.StatusBadRequest}
	switch ve.Reason {
	case order.ReasonIncomplete:
		e.Err, e.Message = "Datos incompletos", "Cliente, productos y total son requeridos"
	case order.ReasonMissingField:
		e.Err, e.Message = "Campo requerido faltante: "+ve.Field, "El campo "+ve.Field+" es requerido"
	case order.ReasonInvalidEmail:
		e.Err, e.Message = "Email inválido", "Por favor proporciona un email válido"
	case order.ReasonNoProducts:
		e.Err, e.Message = "Sin productos", "Debe incluir al menos un producto"
	case order.ReasonInvalidProduct:
		e.Err, e.Message = "Producto inválido", "Cada producto debe tener nombre, código, cantidad y subtotal"
	case order.ReasonInvalidTotal:
		e.Err, e.Message = "Total inválido", "El total debe ser un número mayor a 0"
	default:
		e.Err, e.Message = "Pedido inválido", ve.Message
	}
	return e
}

// mapPromotionError converts promotion domain errors to client failures.
func mapPromotionError(err error) *apiError {
	var ne *promotion.NotEligibleError
	if errors.As(err, &ne) {
		return &apiError{Status: http.StatusBadRequest, Err: promotionRejection(ne)}
	}

	var ve *promotion.ValidationError
	if errors.As(err, &ve) {
		return &apiError{Status: http.StatusBadRequest, Err: promotionValidation(ve), Message: ve.Message}
	}

	switch {
	case errors.Is(err, promotion.ErrDuplicateCode):
		return &apiError{Status: http.StatusBadRequest, Err: "El código de promoción ya existe"}
	case errors.Is(err, promotion.ErrNotFound):
		return &apiError{Status: http.StatusNotFound, Err: "Promoción no encontrada"}
	}
	return nil
}

// promotionRejection is the customer-facing text of a rejected code.
func promotionRejection(ne *promotion.NotEligibleError) string {
	switch {
	case errors.Is(ne, promotion.ErrBelowMinimum):
		return "Monto mínimo requerido: $" + ne.Minimum.StringFixed(2)
	case errors.Is(ne, promotion.ErrUsageExhausted):
		return "La promoción alcanzó su límite de usos"
	default:
		return "Código de promoción inválido o expirado"
	}
}

func promotionValidation(ve *promotion.ValidationError) string {
	switch ve.Reason {
	case promotion.ReasonCodeRequired:
		return "Código de promoción requerido"
	case promotion.ReasonIDRequired:
		return "ID de promoción requerido"
	case promotion.ReasonMissingFields:
		return "Nombre, tipo, valor y código son requeridos"
	case promotion.ReasonUnknownKind:
		return "Tipo de promoción inválido"
	case promotion.ReasonInvertedWindow:
		return "La fecha de fin debe ser posterior a la fecha de inicio"
	default:
		return "Promoción inválida"
	}
}
