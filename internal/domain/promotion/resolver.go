package promotion

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Rejection reasons. A NotEligibleError always unwraps to exactly one of them.
var (
	ErrCodeNotFound      = errors.New("promotion code not found")
	ErrInactiveOrExpired = errors.New("promotion code inactive or expired")
	ErrUsageExhausted    = errors.New("promotion usage limit reached")
	ErrBelowMinimum      = errors.New("order below promotion minimum amount")
)

// NotEligibleError reports why a promotion code cannot be used.
type NotEligibleError struct {
	Code    string
	Reason  error
	Minimum decimal.Decimal
}

func (e *NotEligibleError) Error() string {
	if errors.Is(e.Reason, ErrBelowMinimum) {
		return fmt.Sprintf("minimum order amount required: $%s", e.Minimum.StringFixed(2))
	}
	return fmt.Sprintf("%s: %s", e.Reason.Error(), e.Code)
}

func (e *NotEligibleError) Unwrap() error {
	return e.Reason
}

// IsNotEligible reports whether err is a promotion rejection.
func IsNotEligible(err error) bool {
	var ne *NotEligibleError
	return errors.As(err, &ne)
}

// CheckEligibility evaluates the eligibility predicate for an order subtotal
// at the given instant. Conditions are checked in a fixed order: date and
// active window, usage cap, minimum amount.
func CheckEligibility(p *Promotion, subtotal decimal.Decimal, now time.Time) error {
	if !p.Active || now.Before(p.ValidFrom) || now.After(p.ValidUntil) {
		return &NotEligibleError{Code: p.Code, Reason: ErrInactiveOrExpired}
	}
	if p.CurrentRedemptions >= p.MaxRedemptions {
		return &NotEligibleError{Code: p.Code, Reason: ErrUsageExhausted}
	}
	if subtotal.LessThan(p.MinimumOrderAmount) {
		return &NotEligibleError{Code: p.Code, Reason: ErrBelowMinimum, Minimum: p.MinimumOrderAmount}
	}
	return nil
}

// Discount computes the discount of p against subtotal, rounded half-up to
// cents. Fixed amounts are returned as-is even when they exceed subtotal.
func Discount(p *Promotion, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch p.Kind {
	case KindPercentage:
		amount = subtotal.Mul(p.Value).Div(decimal.NewFromInt(100))
	case KindFixedAmount:
		amount = p.Value
	default:
		amount = decimal.Zero
	}
	return amount.Round(2)
}

// Resolver looks up promotion codes and validates them. Resolution is
// read-only: it never touches the redemption counter.
type Resolver struct {
	repo Repository
}

// NewResolver creates a Resolver backed by the given Repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve normalizes code, looks it up and checks eligibility for subtotal
// at now.
func (r *Resolver) Resolve(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (*Promotion, error) {
	normalized := NormalizeCode(code)
	p, err := r.repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotEligibleError{Code: normalized, Reason: ErrCodeNotFound}
		}
		return nil, errors.Wrap(err, "lookup promotion")
	}
	if err := CheckEligibility(p, subtotal, now); err != nil {
		return nil, err
	}
	return p, nil
}
