package jsonfile

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/nuestra-carne/internal/domain/promotion"
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository on promociones.json.
type PromotionRepository struct {
	c *Collection[promotion.Promotion]
}

// NewPromotionRepository returns a repository backed by the file at path.
func NewPromotionRepository(path string) *PromotionRepository {
	return &PromotionRepository{c: NewCollection[promotion.Promotion](path)}
}

// FindByCode matches codes case-insensitively, so records written by older
// tools without normalization are still found.
func (r *PromotionRepository) FindByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	items, err := r.c.All(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading promotions")
	}
	for i := range items {
		if strings.EqualFold(items[i].Code, code) {
			return &items[i], nil
		}
	}
	return nil, promotion.ErrNotFound
}

func (r *PromotionRepository) Get(ctx context.Context, id string) (*promotion.Promotion, error) {
	items, err := r.c.All(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading promotions")
	}
	for i := range items {
		if items[i].ID == id {
			return &items[i], nil
		}
	}
	return nil, promotion.ErrNotFound
}

func (r *PromotionRepository) List(ctx context.Context) ([]promotion.Promotion, error) {
	items, err := r.c.All(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading promotions")
	}
	return items, nil
}

// Create appends p, rejecting codes already taken.
func (r *PromotionRepository) Create(ctx context.Context, p *promotion.Promotion) error {
	return r.c.Mutate(ctx, func(items []promotion.Promotion) ([]promotion.Promotion, error) {
		if codeTaken(items, p.Code, "") {
			return nil, promotion.ErrDuplicateCode
		}
		return append(items, *p), nil
	})
}

// Update applies fn under the collection lock and re-checks code uniqueness
// against the other records.
func (r *PromotionRepository) Update(ctx context.Context, id string, fn func(p *promotion.Promotion) error) (*promotion.Promotion, error) {
	var updated promotion.Promotion
	err := r.c.Mutate(ctx, func(items []promotion.Promotion) ([]promotion.Promotion, error) {
		i := indexOf(items, id)
		if i < 0 {
			return nil, promotion.ErrNotFound
		}
		p := items[i]
		if err := fn(&p); err != nil {
			return nil, err
		}
		if codeTaken(items, p.Code, id) {
			return nil, promotion.ErrDuplicateCode
		}
		items[i] = p
		updated = p
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *PromotionRepository) Delete(ctx context.Context, id string) error {
	return r.c.Mutate(ctx, func(items []promotion.Promotion) ([]promotion.Promotion, error) {
		i := indexOf(items, id)
		if i < 0 {
			return nil, promotion.ErrNotFound
		}
		return append(items[:i], items[i+1:]...), nil
	})
}

// Redeem checks the usage cap and increments the counter in one locked
// read-modify-write cycle.
func (r *PromotionRepository) Redeem(ctx context.Context, id string) (*promotion.Promotion, error) {
	var updated promotion.Promotion
	err := r.c.Mutate(ctx, func(items []promotion.Promotion) ([]promotion.Promotion, error) {
		i := indexOf(items, id)
		if i < 0 {
			return nil, promotion.ErrNotFound
		}
		p := &items[i]
		if p.CurrentRedemptions >= p.MaxRedemptions {
			return nil, &promotion.NotEligibleError{Code: p.Code, Reason: promotion.ErrUsageExhausted}
		}
		p.CurrentRedemptions++
		updated = *p
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Import replaces the whole collection, used by the seeding tools.
func (r *PromotionRepository) Import(ctx context.Context, promos []promotion.Promotion) error {
	return r.c.Replace(ctx, promos)
}

func indexOf(items []promotion.Promotion, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func codeTaken(items []promotion.Promotion, code, exceptID string) bool {
	for _, p := range items {
		if p.ID != exceptID && strings.EqualFold(p.Code, code) {
			return true
		}
	}
	return false
}
