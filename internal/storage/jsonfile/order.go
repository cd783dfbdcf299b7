package jsonfile

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/nuestra-carne/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository on orders.json.
type OrderRepository struct {
	c *Collection[order.Order]
}

// NewOrderRepository returns a repository backed by the file at path.
func NewOrderRepository(path string) *OrderRepository {
	return &OrderRepository{c: NewCollection[order.Order](path)}
}

// Create appends o to the collection.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := r.c.Mutate(ctx, func(items []order.Order) ([]order.Order, error) {
		for _, existing := range items {
			if existing.ID == o.ID {
				return nil, errors.Errorf("order %s already exists", o.ID)
			}
		}
		return append(items, *o), nil
	})
	if err != nil {
		return errors.Wrapf(err, "creating order %q", o.ID)
	}
	return nil
}

// Get returns the order with id or order.ErrNotFound.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	items, err := r.c.All(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading orders")
	}
	for i := range items {
		if items[i].ID == id {
			return &items[i], nil
		}
	}
	return nil, order.ErrNotFound
}

// List returns all orders in file order.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	items, err := r.c.All(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading orders")
	}
	return items, nil
}

// Update applies fn to the stored order under the collection lock.
func (r *OrderRepository) Update(ctx context.Context, id string, fn func(o *order.Order) error) (*order.Order, error) {
	var updated order.Order
	err := r.c.Mutate(ctx, func(items []order.Order) ([]order.Order, error) {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			o := items[i]
			if err := fn(&o); err != nil {
				return nil, err
			}
			items[i] = o
			updated = o
			return items, nil
		}
		return nil, order.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Import replaces the whole collection, used by the seeding tool.
func (r *OrderRepository) Import(ctx context.Context, orders []order.Order) error {
	return r.c.Replace(ctx, orders)
}
