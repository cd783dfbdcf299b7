package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/nuestra-carne/internal/domain/promotion"
)

var _ promotion.Repository = (*PromotionRepository)(nil)

const promotionColumns = `id, code, name, description, kind, value, minimum_order_amount,
	valid_from, valid_until, max_redemptions, current_redemptions, active,
	applies_to, categories, created_at`

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// FindByCode looks up a promotion by code. The query applies UPPER() on both
// sides, matching the unique index.
func (r *PromotionRepository) FindByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+promotionColumns+` FROM promotions WHERE UPPER(code) = UPPER($1)`, code)
	p, err := scanPromotion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrNotFound
		}
		return nil, errors.Wrapf(err, "finding promotion by code %q", code)
	}
	return p, nil
}

func (r *PromotionRepository) Get(ctx context.Context, id string) (*promotion.Promotion, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE id = $1`, id)
	p, err := scanPromotion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrNotFound
		}
		return nil, errors.Wrapf(err, "finding promotion %q", id)
	}
	return p, nil
}

func (r *PromotionRepository) List(ctx context.Context) ([]promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+promotionColumns+` FROM promotions ORDER BY created_at, id`)
	if err != nil {
		return nil, errors.Wrap(err, "listing promotions")
	}
	defer rows.Close()

	out := []promotion.Promotion{}
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning promotion")
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "listing promotions")
	}
	return out, nil
}

// Create inserts p. A taken code surfaces as promotion.ErrDuplicateCode.
func (r *PromotionRepository) Create(ctx context.Context, p *promotion.Promotion) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO promotions (`+promotionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		promotionArgs(p)...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return promotion.ErrDuplicateCode
		}
		return errors.Wrapf(err, "creating promotion %q", p.Code)
	}
	return nil
}

// Update locks the row, applies fn and rewrites every column.
func (r *PromotionRepository) Update(ctx context.Context, id string, fn func(p *promotion.Promotion) error) (*promotion.Promotion, error) {
	var updated *promotion.Promotion
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE id = $1 FOR UPDATE`, id)
		p, err := scanPromotion(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return promotion.ErrNotFound
			}
			return errors.Wrapf(err, "locking promotion %q", id)
		}
		if err := fn(p); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE promotions SET
				code = $2, name = $3, description = $4, kind = $5, value = $6,
				minimum_order_amount = $7, valid_from = $8, valid_until = $9,
				max_redemptions = $10, current_redemptions = $11, active = $12,
				applies_to = $13, categories = $14, created_at = $15
			WHERE id = $1`,
			promotionArgs(p)...,
		); err != nil {
			if isUniqueViolation(err) {
				return promotion.ErrDuplicateCode
			}
			return errors.Wrapf(err, "updating promotion %q", id)
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PromotionRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return errors.Wrapf(err, "deleting promotion %q", id)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

// Redeem increments the counter with a single conditional UPDATE, so the cap
// holds under concurrent redemptions without an explicit lock.
func (r *PromotionRepository) Redeem(ctx context.Context, id string) (*promotion.Promotion, error) {
	row := r.pool.QueryRow(ctx, `UPDATE promotions
		SET current_redemptions = current_redemptions + 1
		WHERE id = $1 AND current_redemptions < max_redemptions
		RETURNING `+promotionColumns, id)
	p, err := scanPromotion(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(err, "redeeming promotion %q", id)
	}

	// Nothing updated: either the id is unknown or the cap is reached.
	existing, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, &promotion.NotEligibleError{Code: existing.Code, Reason: promotion.ErrUsageExhausted}
}

// Import upserts promotions by id, used by the seeding tools.
func (r *PromotionRepository) Import(ctx context.Context, promos []promotion.Promotion) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for i := range promos {
			if _, err := tx.Exec(ctx, `INSERT INTO promotions (`+promotionColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
				ON CONFLICT (id) DO UPDATE SET
					current_redemptions = EXCLUDED.current_redemptions,
					active = EXCLUDED.active`,
				promotionArgs(&promos[i])...,
			); err != nil {
				return errors.Wrapf(err, "upsert promotion %q", promos[i].Code)
			}
		}
		return nil
	})
}

func promotionArgs(p *promotion.Promotion) []any {
	categories := p.Categories
	if categories == nil {
		categories = []string{}
	}
	return []any{
		p.ID, p.Code, p.Name, p.Description, string(p.Kind), p.Value, p.MinimumOrderAmount,
		p.ValidFrom, p.ValidUntil, p.MaxRedemptions, p.CurrentRedemptions, p.Active,
		p.AppliesTo, categories, p.CreatedAt,
	}
}

func scanPromotion(row pgx.Row) (*promotion.Promotion, error) {
	var (
		p    promotion.Promotion
		kind string
	)
	if err := row.Scan(
		&p.ID, &p.Code, &p.Name, &p.Description, &kind, &p.Value, &p.MinimumOrderAmount,
		&p.ValidFrom, &p.ValidUntil, &p.MaxRedemptions, &p.CurrentRedemptions, &p.Active,
		&p.AppliesTo, &p.Categories, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	p.Kind = promotion.Kind(kind)
	return &p, nil
}
