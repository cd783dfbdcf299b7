package order

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// Validation failure reasons, in check priority order.
const (
	ReasonIncomplete     = "incomplete data"
	ReasonMissingField   = "missing required field"
	ReasonInvalidEmail   = "invalid email"
	ReasonNoProducts     = "no products"
	ReasonInvalidProduct = "invalid product"
	ReasonInvalidTotal   = "invalid total"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidationError reports a malformed or incomplete submission. Reason is one
// of the Reason* constants; Field names the offending input when known.
type ValidationError struct {
	Reason  string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Field)
	}
	return e.Reason
}

// Submission is a raw order as sent by the storefront. Nil fields mark
// absent input.
type Submission struct {
	Customer      *Customer
	LineItems     []LineItem
	DeclaredTotal *decimal.Decimal
	// TotalNotNumber is set when a total was sent but was not a JSON number,
	// such as "25". DeclaredTotal is nil in that case.
	TotalNotNumber bool
	PromotionCode  string
}

// Draft is a submission that passed validation.
type Draft struct {
	Customer      Customer
	LineItems     []LineItem
	DeclaredTotal decimal.Decimal
	PromotionCode string
}

// Validate checks a submission's shape. The first failing check wins; no
// pricing is performed.
func Validate(s Submission) (*Draft, error) {
	hasTotal := s.TotalNotNumber || (s.DeclaredTotal != nil && !s.DeclaredTotal.IsZero())
	if s.Customer == nil || s.LineItems == nil || !hasTotal {
		return nil, &ValidationError{
			Reason:  ReasonIncomplete,
			Message: "customer, products and total are required",
		}
	}

	c := s.Customer
	required := []struct {
		name  string
		value string
	}{
		{"nombre", c.Name},
		{"telefono", c.Phone},
		{"email", c.Email},
		{"direccion", c.Address},
		{"fechaEntrega", c.DeliveryDate},
		{"horaEntrega", c.DeliveryTime},
	}
	for _, f := range required {
		if f.value == "" {
			return nil, &ValidationError{
				Reason:  ReasonMissingField,
				Field:   f.name,
				Message: fmt.Sprintf("field %s is required", f.name),
			}
		}
	}

	if !emailPattern.MatchString(c.Email) {
		return nil, &ValidationError{
			Reason:  ReasonInvalidEmail,
			Field:   "email",
			Message: "please provide a valid email",
		}
	}

	if len(s.LineItems) == 0 {
		return nil, &ValidationError{
			Reason:  ReasonNoProducts,
			Field:   "productos",
			Message: "at least one product is required",
		}
	}
	for i, item := range s.LineItems {
		if item.ProductName == "" || item.ProductCode == "" ||
			!item.Quantity.IsPositive() || !item.LineSubtotal.IsPositive() {
			return nil, &ValidationError{
				Reason:  ReasonInvalidProduct,
				Field:   fmt.Sprintf("productos[%d]", i),
				Message: "each product needs name, code, quantity and subtotal",
			}
		}
	}

	if s.TotalNotNumber || !s.DeclaredTotal.IsPositive() {
		return nil, &ValidationError{
			Reason:  ReasonInvalidTotal,
			Field:   "total",
			Message: "total must be a number greater than 0",
		}
	}

	return &Draft{
		Customer:      *c,
		LineItems:     s.LineItems,
		DeclaredTotal: *s.DeclaredTotal,
		PromotionCode: s.PromotionCode,
	}, nil
}
