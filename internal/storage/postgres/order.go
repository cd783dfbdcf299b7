package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/nuestra-carne/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

const orderColumns = `id, customer, line_items, declared_total, subtotal, discount,
	delivery_fee, total, total_mismatch, promotion_code, promotion_id, status,
	notes, created_at, updated_at`

// OrderRepository implements order.Repository backed by PostgreSQL. Customer
// and line items are stored as JSONB.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	customer, items, err := marshalOrderDocs(o)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		o.ID, customer, items, o.DeclaredTotal, o.Pricing.Subtotal, o.Pricing.Discount,
		o.Pricing.DeliveryFee, o.Total, o.TotalMismatch, o.PromotionCode, o.PromotionID,
		string(o.Status), o.Notes, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "creating order %q", o.ID)
	}
	return nil
}

// Get returns the order with id or order.ErrNotFound.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "finding order %q", id)
	}
	return o, nil
}

// List returns every order in creation order.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at, id`)
	if err != nil {
		return nil, errors.Wrap(err, "listing orders")
	}
	defer rows.Close()

	out := []order.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning order")
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "listing orders")
	}
	return out, nil
}

// Update locks the row with SELECT ... FOR UPDATE, applies fn and writes the
// mutable columns back in the same transaction.
func (r *OrderRepository) Update(ctx context.Context, id string, fn func(o *order.Order) error) (*order.Order, error) {
	var updated *order.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
		o, err := scanOrder(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return errors.Wrapf(err, "locking order %q", id)
		}
		if err := fn(o); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE orders SET status = $2, notes = $3, updated_at = $4 WHERE id = $1`,
			o.ID, string(o.Status), o.Notes, o.UpdatedAt,
		); err != nil {
			return errors.Wrapf(err, "updating order %q", id)
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Import upserts orders by id, used by the seeding tool.
func (r *OrderRepository) Import(ctx context.Context, orders []order.Order) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for i := range orders {
			o := &orders[i]
			customer, items, err := marshalOrderDocs(o)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `INSERT INTO orders (`+orderColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
				ON CONFLICT (id) DO UPDATE SET
					status = EXCLUDED.status,
					notes = EXCLUDED.notes,
					updated_at = EXCLUDED.updated_at`,
				o.ID, customer, items, o.DeclaredTotal, o.Pricing.Subtotal, o.Pricing.Discount,
				o.Pricing.DeliveryFee, o.Total, o.TotalMismatch, o.PromotionCode, o.PromotionID,
				string(o.Status), o.Notes, o.CreatedAt, o.UpdatedAt,
			); err != nil {
				return errors.Wrapf(err, "upsert order %q", o.ID)
			}
		}
		return nil
	})
}

func marshalOrderDocs(o *order.Order) (customer, items []byte, err error) {
	customer, err = json.Marshal(o.Customer)
	if err != nil {
		return nil, nil, errors.Wrap(err, "marshaling customer")
	}
	lineItems := o.LineItems
	if lineItems == nil {
		lineItems = []order.LineItem{}
	}
	items, err = json.Marshal(lineItems)
	if err != nil {
		return nil, nil, errors.Wrap(err, "marshaling line items")
	}
	return customer, items, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o        order.Order
		customer []byte
		items    []byte
		status   string
	)
	if err := row.Scan(
		&o.ID, &customer, &items, &o.DeclaredTotal, &o.Pricing.Subtotal, &o.Pricing.Discount,
		&o.Pricing.DeliveryFee, &o.Total, &o.TotalMismatch, &o.PromotionCode, &o.PromotionID,
		&status, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return nil, errors.Wrap(err, "decoding customer")
	}
	if err := json.Unmarshal(items, &o.LineItems); err != nil {
		return nil, errors.Wrap(err, "decoding line items")
	}
	o.Status = order.Status(status)
	o.Pricing.Total = o.Total
	return &o, nil
}
