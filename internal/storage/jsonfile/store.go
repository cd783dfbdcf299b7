package jsonfile

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
)

// File names inside the data directory.
const (
	OrdersFile     = "orders.json"
	PromotionsFile = "promociones.json"
)

// Store groups the collections of one data directory.
type Store struct {
	dir        string
	orders     *OrderRepository
	promotions *PromotionRepository
}

// Open prepares dir, creating it if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create data dir %s", dir)
	}
	return &Store{
		dir:        dir,
		orders:     NewOrderRepository(filepath.Join(dir, OrdersFile)),
		promotions: NewPromotionRepository(filepath.Join(dir, PromotionsFile)),
	}, nil
}

// Orders returns the order repository.
func (s *Store) Orders() *OrderRepository {
	return s.orders
}

// Promotions returns the promotion repository.
func (s *Store) Promotions() *PromotionRepository {
	return s.promotions
}

// Ping checks that the data directory is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return errors.Wrap(err, "stat data dir")
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", s.dir)
	}
	return nil
}
