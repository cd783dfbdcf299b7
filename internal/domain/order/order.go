package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/nuestra-carne/internal/domain/pricing"
)

// ErrNotFound is returned when an order id does not exist.
var ErrNotFound = errors.New("order not found")

// Customer holds the contact and delivery details of an order.
type Customer struct {
	Kind         string `json:"tipoCliente,omitempty"`
	Name         string `json:"nombre"`
	Phone        string `json:"telefono"`
	Email        string `json:"email"`
	Address      string `json:"direccion"`
	DeliveryDate string `json:"fechaEntrega"`
	DeliveryTime string `json:"horaEntrega"`
	Notes        string `json:"notas,omitempty"`
}

// LineItem is a single weight-based product line. LineSubtotal is trusted as
// submitted once validated; unit pricing is resolved client-side.
type LineItem struct {
	ProductCode  string          `json:"codigo"`
	ProductName  string          `json:"nombre"`
	Quantity     decimal.Decimal `json:"cantidad"`
	Unit         string          `json:"unidad,omitempty"`
	LineSubtotal decimal.Decimal `json:"subtotal"`
}

// Order is an accepted customer order.
type Order struct {
	ID            string            `json:"id"`
	Customer      Customer          `json:"cliente"`
	LineItems     []LineItem        `json:"productos"`
	DeclaredTotal decimal.Decimal   `json:"totalDeclarado"`
	Pricing       pricing.Breakdown `json:"precio"`
	// Total is the authoritative server-computed total.
	Total         decimal.Decimal `json:"total"`
	TotalMismatch bool            `json:"totalDiscrepancia,omitempty"`
	PromotionCode string          `json:"codigoPromocion,omitempty"`
	PromotionID   string          `json:"promocionId,omitempty"`
	Status        Status          `json:"estado"`
	Notes         string          `json:"notas,omitempty"`
	CreatedAt     time.Time       `json:"fechaCreacion"`
	UpdatedAt     time.Time       `json:"fechaActualizacion"`
}

// LineSubtotals returns the subtotal of every line in order.
func LineSubtotals(items []LineItem) []decimal.Decimal {
	out := make([]decimal.Decimal, len(items))
	for i, item := range items {
		out[i] = item.LineSubtotal
	}
	return out
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	// Update loads the order, applies fn and stores the result as a single
	// critical section. When fn fails nothing is written.
	Update(ctx context.Context, id string, fn func(o *Order) error) (*Order, error)
}

// Notifier delivers order notifications (email, WhatsApp, event bus). It is
// best-effort: failures never affect order acceptance.
type Notifier interface {
	OrderAccepted(ctx context.Context, o *Order) error
}

// NotificationError reports that an accepted order could not be announced.
type NotificationError struct {
	OrderID string
	Err     error
}

func (e *NotificationError) Error() string {
	return "notify order " + e.OrderID + ": " + e.Err.Error()
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}
