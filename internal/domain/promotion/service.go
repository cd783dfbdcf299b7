package promotion

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Defaults applied to promotions created without explicit limits.
const (
	DefaultMaxRedemptions = 999999
	DefaultValidity       = 30 * 24 * time.Hour
)

// Validation failure reasons.
const (
	ReasonCodeRequired   = "code required"
	ReasonIDRequired     = "id required"
	ReasonMissingFields  = "missing required fields"
	ReasonUnknownKind    = "unknown kind"
	ReasonInvertedWindow = "inverted validity window"
)

// ValidationError reports a malformed promotion create/update request.
// Reason is one of the Reason* constants.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Draft holds the admin input for a new promotion. Zero values select the
// documented defaults.
type Draft struct {
	Code               string
	Name               string
	Description        string
	Kind               Kind
	Value              decimal.Decimal
	MinimumOrderAmount decimal.Decimal
	ValidFrom          *time.Time
	ValidUntil         *time.Time
	MaxRedemptions     int
	AppliesTo          string
	Categories         []string
}

// Patch holds a partial update. Nil fields are left untouched.
type Patch struct {
	Code               *string
	Name               *string
	Description        *string
	Kind               *Kind
	Value              *decimal.Decimal
	MinimumOrderAmount *decimal.Decimal
	ValidFrom          *time.Time
	ValidUntil         *time.Time
	MaxRedemptions     *int
	Active             *bool
	AppliesTo          *string
	Categories         []string
}

// Validation is the result of a read-only code check.
type Validation struct {
	Promotion *Promotion
	Discount  decimal.Decimal
}

// Service exposes promotion validation, redemption and administration.
type Service struct {
	repo     Repository
	resolver *Resolver
	now      func() time.Time
}

// NewService creates a promotion Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{
		repo:     repo,
		resolver: NewResolver(repo),
		now:      time.Now,
	}
}

// Resolver returns the read-only resolver used by the service.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// Validate checks code against amount and computes the discount it would
// grant. It never consumes a redemption.
func (s *Service) Validate(ctx context.Context, code string, amount decimal.Decimal) (*Validation, error) {
	if NormalizeCode(code) == "" {
		return nil, &ValidationError{Reason: ReasonCodeRequired, Message: "promotion code required"}
	}
	p, err := s.resolver.Resolve(ctx, code, amount, s.now())
	if err != nil {
		return nil, err
	}
	return &Validation{Promotion: p, Discount: Discount(p, amount)}, nil
}

// Apply consumes one redemption of the promotion identified by id.
func (s *Service) Apply(ctx context.Context, id string) (*Promotion, error) {
	if id == "" {
		return nil, &ValidationError{Reason: ReasonIDRequired, Message: "promotion id required"}
	}
	p, err := s.repo.Redeem(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "redeem promotion")
	}
	return p, nil
}

// Active returns promotions that are switched on and inside their validity
// window right now.
func (s *Service) Active(ctx context.Context) ([]Promotion, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list promotions")
	}
	now := s.now()
	active := make([]Promotion, 0, len(all))
	for _, p := range all {
		if p.Active && !now.Before(p.ValidFrom) && !now.After(p.ValidUntil) {
			active = append(active, p)
		}
	}
	return active, nil
}

// All returns every stored promotion, newest first.
func (s *Service) All(ctx context.Context) ([]Promotion, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list promotions")
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return all, nil
}

// Create validates d, applies defaults and stores a new active promotion.
func (s *Service) Create(ctx context.Context, d Draft) (*Promotion, error) {
	code := NormalizeCode(d.Code)
	if d.Name == "" || !d.Kind.Valid() || !d.Value.IsPositive() || code == "" {
		return nil, &ValidationError{Reason: ReasonMissingFields, Message: "name, kind, value and code are required"}
	}

	now := s.now()
	p := &Promotion{
		ID:                 uuid.New().String(),
		Code:               code,
		Name:               d.Name,
		Description:        d.Description,
		Kind:               d.Kind,
		Value:              d.Value,
		MinimumOrderAmount: d.MinimumOrderAmount,
		ValidFrom:          now,
		ValidUntil:         now.Add(DefaultValidity),
		MaxRedemptions:     d.MaxRedemptions,
		Active:             true,
		AppliesTo:          d.AppliesTo,
		Categories:         d.Categories,
		CreatedAt:          now,
	}
	if d.ValidFrom != nil {
		p.ValidFrom = *d.ValidFrom
	}
	if d.ValidUntil != nil {
		p.ValidUntil = *d.ValidUntil
	}
	if p.MaxRedemptions <= 0 {
		p.MaxRedemptions = DefaultMaxRedemptions
	}
	if p.MinimumOrderAmount.IsNegative() {
		p.MinimumOrderAmount = decimal.Zero
	}
	if p.AppliesTo == "" {
		p.AppliesTo = "todos"
	}
	if p.Categories == nil {
		p.Categories = []string{}
	}
	if p.ValidUntil.Before(p.ValidFrom) {
		return nil, &ValidationError{Reason: ReasonInvertedWindow, Message: "validity end precedes start"}
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create promotion")
	}
	return p, nil
}

// Update merges patch into the stored promotion.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Promotion, error) {
	if patch.Kind != nil && !patch.Kind.Valid() {
		return nil, &ValidationError{Reason: ReasonUnknownKind, Message: "unknown promotion kind"}
	}
	if patch.Code != nil {
		code := NormalizeCode(*patch.Code)
		if code == "" {
			return nil, &ValidationError{Reason: ReasonCodeRequired, Message: "promotion code required"}
		}
		patch.Code = &code
	}

	p, err := s.repo.Update(ctx, id, func(p *Promotion) error {
		patch.apply(p)
		if p.ValidUntil.Before(p.ValidFrom) {
			return &ValidationError{Reason: ReasonInvertedWindow, Message: "validity end precedes start"}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "update promotion")
	}
	return p, nil
}

// Delete removes the promotion identified by id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete promotion")
	}
	return nil
}

func (patch Patch) apply(p *Promotion) {
	if patch.Code != nil {
		p.Code = *patch.Code
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Kind != nil {
		p.Kind = *patch.Kind
	}
	if patch.Value != nil {
		p.Value = *patch.Value
	}
	if patch.MinimumOrderAmount != nil {
		p.MinimumOrderAmount = *patch.MinimumOrderAmount
	}
	if patch.ValidFrom != nil {
		p.ValidFrom = *patch.ValidFrom
	}
	if patch.ValidUntil != nil {
		p.ValidUntil = *patch.ValidUntil
	}
	if patch.MaxRedemptions != nil {
		p.MaxRedemptions = *patch.MaxRedemptions
	}
	if patch.Active != nil {
		p.Active = *patch.Active
	}
	if patch.AppliesTo != nil {
		p.AppliesTo = *patch.AppliesTo
	}
	if patch.Categories != nil {
		p.Categories = patch.Categories
	}
}
