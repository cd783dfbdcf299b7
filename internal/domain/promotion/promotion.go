package promotion

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported promotion discount strategies.
type Kind string

const (
	// KindPercentage discounts a percentage of the order subtotal.
	KindPercentage Kind = "porcentaje"
	// KindFixedAmount discounts a fixed monetary amount. The amount is not
	// capped at the subtotal.
	KindFixedAmount Kind = "fijo"
)

// Valid reports whether k is a known discount strategy.
func (k Kind) Valid() bool {
	return k == KindPercentage || k == KindFixedAmount
}

var (
	// ErrNotFound is returned when a promotion id does not exist.
	ErrNotFound = errors.New("promotion not found")
	// ErrDuplicateCode is returned when creating or renaming a promotion to a
	// code that is already taken.
	ErrDuplicateCode = errors.New("promotion code already exists")
)

// Promotion is a discount code with temporal and usage constraints.
type Promotion struct {
	ID                 string          `json:"id"`
	Code               string          `json:"codigo"`
	Name               string          `json:"nombre"`
	Description        string          `json:"descripcion"`
	Kind               Kind            `json:"tipo"`
	Value              decimal.Decimal `json:"valor"`
	MinimumOrderAmount decimal.Decimal `json:"montoMinimo"`
	ValidFrom          time.Time       `json:"fechaInicio"`
	ValidUntil         time.Time       `json:"fechaFin"`
	MaxRedemptions     int             `json:"usoMaximo"`
	CurrentRedemptions int             `json:"usoActual"`
	Active             bool            `json:"activa"`
	AppliesTo          string          `json:"aplicableA,omitempty"`
	Categories         []string        `json:"categorias,omitempty"`
	CreatedAt          time.Time       `json:"fechaCreacion"`
}

// UnmarshalJSON accepts validity bounds written either as RFC 3339 instants or
// as date-only values. Date-only bounds cover the whole day in UTC.
func (p *Promotion) UnmarshalJSON(data []byte) error {
	type plain Promotion
	aux := struct {
		*plain
		ValidFrom  string `json:"fechaInicio"`
		ValidUntil string `json:"fechaFin"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if err := decodeBound(&p.ValidFrom, aux.ValidFrom, false); err != nil {
		return errors.Wrap(err, "fechaInicio")
	}
	if err := decodeBound(&p.ValidUntil, aux.ValidUntil, true); err != nil {
		return errors.Wrap(err, "fechaFin")
	}
	return nil
}

// decodeBound leaves dst untouched for absent or null values.
func decodeBound(dst *time.Time, v string, end bool) error {
	if v == "" {
		return nil
	}
	t, err := ParseBound(v, time.UTC, end)
	if err != nil {
		return err
	}
	*dst = t
	return nil
}

// NormalizeCode returns the canonical stored form of a promotion code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository provides persistence for promotions.
type Repository interface {
	// FindByCode looks up a promotion by its normalized code. Returns
	// ErrNotFound when no promotion carries the code.
	FindByCode(ctx context.Context, code string) (*Promotion, error)
	Get(ctx context.Context, id string) (*Promotion, error)
	List(ctx context.Context) ([]Promotion, error)
	Create(ctx context.Context, p *Promotion) error
	// Update loads the promotion, applies fn and stores the result as a single
	// critical section.
	Update(ctx context.Context, id string, fn func(p *Promotion) error) (*Promotion, error)
	Delete(ctx context.Context, id string) error
	// Redeem increments the redemption counter only if the usage cap has not
	// been reached. The check and the increment are atomic.
	Redeem(ctx context.Context, id string) (*Promotion, error)
}
