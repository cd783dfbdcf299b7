package order

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/nuestra-carne/internal/domain/pricing"
	"github.com/xenking/nuestra-carne/internal/domain/promotion"
)

// PromotionResolver validates promotion codes without consuming them.
type PromotionResolver interface {
	Resolve(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (*promotion.Promotion, error)
}

// PromotionRedeemer consumes one use of a promotion.
type PromotionRedeemer interface {
	Redeem(ctx context.Context, id string) (*promotion.Promotion, error)
}

// SubmitResult holds an accepted order together with the best-effort steps
// that may have failed after acceptance.
type SubmitResult struct {
	Order *Order
	// PromotionErr is set when the submitted code was rejected; the order was
	// priced without a discount.
	PromotionErr error
	// RedemptionErr is set when the promotion could not be applied after the
	// order was stored.
	RedemptionErr error
	// NotificationErr is set when the order could not be announced.
	NotificationErr *NotificationError
}

// Config holds behavioural switches for the order Service.
type Config struct {
	Lifecycle Lifecycle
	// ClampNegative caps discounts at the subtotal.
	ClampNegative bool
}

// Service encapsulates order acceptance and fulfillment tracking.
type Service struct {
	orders    Repository
	resolver  PromotionResolver
	redeemer  PromotionRedeemer
	pricing   *pricing.Calculator
	notifier  Notifier
	lifecycle Lifecycle
	clamp     bool
	now       func() time.Time
}

// NewService creates an order Service with the required dependencies.
func NewService(
	cfg Config,
	orders Repository,
	resolver PromotionResolver,
	redeemer PromotionRedeemer,
	calc *pricing.Calculator,
	notifier Notifier,
) *Service {
	return &Service{
		orders:    orders,
		resolver:  resolver,
		redeemer:  redeemer,
		pricing:   calc,
		notifier:  notifier,
		lifecycle: cfg.Lifecycle,
		clamp:     cfg.ClampNegative,
		now:       time.Now,
	}
}

// Submit validates and prices a submission, stores it as pending, applies its
// promotion and announces it. Only validation and storage failures are
// returned as errors; later steps are reported on the result.
func (s *Service) Submit(ctx context.Context, sub Submission) (*SubmitResult, error) {
	draft, err := Validate(sub)
	if err != nil {
		return nil, err
	}

	lg := zctx.From(ctx)
	now := s.now()
	result := &SubmitResult{}
	subtotals := LineSubtotals(draft.LineItems)

	var promo *promotion.Promotion
	if code := promotion.NormalizeCode(draft.PromotionCode); code != "" {
		promo, err = s.resolver.Resolve(ctx, code, pricing.Subtotal(subtotals), now)
		switch {
		case err == nil:
		case promotion.IsNotEligible(err):
			result.PromotionErr = err
			promo = nil
			lg.Info("Promotion rejected at checkout", zap.String("code", code), zap.Error(err))
		default:
			return nil, errors.Wrap(err, "resolve promotion")
		}
	}

	breakdown := s.pricing.Compute(subtotals, promo)
	if s.clamp {
		breakdown = s.pricing.Clamp(breakdown)
	}

	o := &Order{
		ID:            uuid.New().String(),
		Customer:      draft.Customer,
		LineItems:     draft.LineItems,
		DeclaredTotal: draft.DeclaredTotal,
		Pricing:       breakdown,
		Total:         breakdown.Total,
		TotalMismatch: !draft.DeclaredTotal.Equal(breakdown.Total),
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if promo != nil {
		o.PromotionCode = promo.Code
		o.PromotionID = promo.ID
	}
	if o.TotalMismatch {
		lg.Warn("Declared total differs from computed total",
			zap.String("declared", o.DeclaredTotal.String()),
			zap.String("computed", o.Total.String()),
		)
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	result.Order = o

	if promo != nil {
		if _, err := s.redeemer.Redeem(ctx, promo.ID); err != nil {
			result.RedemptionErr = err
			lg.Warn("Promotion redemption failed after acceptance",
				zap.String("order_id", o.ID),
				zap.String("promotion_id", promo.ID),
				zap.Error(err),
			)
		}
	}

	if err := s.notifier.OrderAccepted(ctx, o); err != nil {
		result.NotificationErr = &NotificationError{OrderID: o.ID, Err: err}
		lg.Error("Order notification failed", zap.String("order_id", o.ID), zap.Error(err))
	}

	return result, nil
}

// UpdateStatus moves an order to the state named by target. Unknown states
// are rejected before the store is touched.
func (s *Service) UpdateStatus(ctx context.Context, id, target, notes string) (*Order, error) {
	if _, err := ParseStatus(target); err != nil {
		return nil, err
	}
	o, err := s.orders.Update(ctx, id, func(o *Order) error {
		return s.lifecycle.Transition(o, target, notes, s.now())
	})
	if err != nil {
		return nil, errors.Wrap(err, "update order status")
	}
	return o, nil
}

// Get returns a single order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// List returns every order, newest first.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

// All returns every order in storage order, for aggregation.
func (s *Service) All(ctx context.Context) ([]Order, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}
